package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"OJTMessenger/server/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository is the read-mostly user directory: display names and roles
// for message attribution, plus the credential rows the auth surface needs.
type UserRepository interface {
	GetByID(ctx context.Context, userID int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Exists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User, now time.Time) (int, error)
	Search(ctx context.Context, term string) ([]models.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *userRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByID(ctx context.Context, userID int) (*models.User, error) {
	query := psql.Select("id", "full_name", "email", "password_hash", "role", "created_at").
		From("users").
		Where(squirrel.Eq{"id": userID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var user models.User
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(&user.ID, &user.FullName,
		&user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		log.Printf("Error fetching user %d: %v", userID, err)
		return nil, err
	}

	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := psql.Select("id", "full_name", "email", "password_hash", "role", "created_at").
		From("users").
		Where(squirrel.Eq{"email": email})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var user models.User
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(&user.ID, &user.FullName,
		&user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		log.Printf("Error fetching user by email %s: %v", email, err)
		return nil, err
	}

	return &user, nil
}

func (r *userRepository) Exists(ctx context.Context, email string) (bool, error) {
	query := psql.Select("COUNT(*)").
		From("users").
		Where(squirrel.Eq{"email": email})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return false, err
	}

	var count int
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(&count)
	if err != nil {
		log.Printf("Error checking user existence for %s: %v", email, err)
		return false, err
	}

	return count > 0, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User, now time.Time) (int, error) {
	query := psql.Insert("users").
		Columns("full_name", "email", "password_hash", "role", "created_at").
		Values(user.FullName, user.Email, user.PasswordHash, user.Role, now).
		Suffix("RETURNING id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}

	var userID int
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(&userID)
	if err != nil {
		log.Printf("Error creating user %s: %v", user.Email, err)
		return 0, err
	}

	log.Printf("User created: %s (ID: %d)", user.FullName, userID)
	return userID, nil
}

func (r *userRepository) Search(ctx context.Context, term string) ([]models.User, error) {
	pattern := fmt.Sprintf("%%%s%%", term)
	query := psql.Select("id", "full_name", "email", "password_hash", "role", "created_at").
		From("users").
		Where(squirrel.Or{
			squirrel.ILike{"full_name": pattern},
			squirrel.ILike{"email": pattern},
		}).
		OrderBy("full_name ASC").
		Limit(20)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error searching users for %q: %v", term, err)
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(&user.ID, &user.FullName, &user.Email, &user.PasswordHash,
			&user.Role, &user.CreatedAt)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}
