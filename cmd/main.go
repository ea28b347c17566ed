package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"OJTMessenger/server/internal/appMiddleware"
	"OJTMessenger/server/internal/config"
	"OJTMessenger/server/internal/db"
	"OJTMessenger/server/internal/handlers"
	"OJTMessenger/server/internal/pool"
	"OJTMessenger/server/internal/repository"
	"OJTMessenger/server/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %s\n", err)
	}

	ctx := context.Background()

	dbPool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %s\n", err)
	}
	defer dbPool.Close()

	if err := db.Migrate(dbPool); err != nil {
		log.Fatalf("Failed to migrate database: %s\n", err)
	}

	clock := clockwork.NewRealClock()

	userRepo := repository.NewUserRepository(dbPool)
	chatRepo := repository.NewChatRepository(dbPool)
	groupRepo := repository.NewGroupChatRepository(dbPool)

	userService := services.NewUserService(userRepo, clock)
	chatService := services.NewChatService(chatRepo, userRepo, clock)
	groupService := services.NewGroupChatService(groupRepo, userRepo, clock)

	clientPool := pool.NewPool()
	handler := handlers.New(userService, chatService, groupService, clientPool, []byte(cfg.JWTSecret))

	r := chi.NewRouter()

	r.Use(appMiddleware.CorsMiddleware(cfg.AllowOrigin))

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.AuthMiddleware([]byte(cfg.JWTSecret)))

		r.Get("/api/profile", handler.GetProfile)
		r.Get("/api/users/search", handler.SearchUsers)

		r.Get("/api/conversations", handler.GetConversations)
		r.Get("/api/conversations/{conversation_id}/messages", handler.GetConversationMessages)
		r.Post("/api/conversations/{conversation_id}/read", handler.MarkConversationRead)
		r.Post("/api/messages", handler.SendPrivateMessage)
		r.Get("/api/messages/unread-count", handler.GetUnreadCounts)
		r.Get("/api/messages/new-count", handler.GetNewMessageCount)

		r.Post("/api/groups", handler.CreateGroupChat)
		r.Get("/api/groups", handler.GetUserGroupChats)
		r.Get("/api/groups/{group_id}", handler.GetGroupChat)
		r.Delete("/api/groups/{group_id}", handler.DeleteGroupChat)
		r.Post("/api/groups/{group_id}/members", handler.AddGroupMember)
		r.Delete("/api/groups/{group_id}/members/{user_id}", handler.RemoveGroupMember)
		r.Get("/api/groups/{group_id}/messages", handler.GetGroupMessages)
		r.Post("/api/groups/{group_id}/messages", handler.SendGroupMessage)
		r.Post("/api/groups/{group_id}/read", handler.MarkGroupRead)
		r.Get("/api/groups/{group_id}/messages/{message_id}/reads", handler.GetMessageReadInfo)
	})

	r.Get("/chatHub", handler.WebSocketHandler)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server started on port %s\n", cfg.Port)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %s\n", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	log.Println("Stopping the server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown error: %s\n", err)
	}
	log.Println("Server has been successfully stopped")
}
