package pool

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Conn is the slice of a websocket connection the pool needs. Satisfied by
// *websocket.Conn.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type Client struct {
	ID     string
	UserID int
	Conn   Conn
}

type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Pool tracks the active websocket connections per user. A user may hold
// several connections (one per tab/session); every push goes to all of them.
// Delivery is best effort: a failed write closes and evicts that connection
// only, the durable row remains the source of truth.
type Pool struct {
	mu      sync.Mutex
	clients map[int]map[string]*Client
}

func NewPool() *Pool {
	return &Pool{
		clients: make(map[int]map[string]*Client),
	}
}

func (p *Pool) AddClient(userID int, conn Conn) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	client := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Conn:   conn,
	}
	if p.clients[userID] == nil {
		p.clients[userID] = make(map[string]*Client)
	}
	p.clients[userID][client.ID] = client

	log.Printf("Client %s (user %d) added to pool", client.ID, userID)
	return client
}

func (p *Pool) RemoveClient(client *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(client)
}

func (p *Pool) removeLocked(client *Client) {
	conns, ok := p.clients[client.UserID]
	if !ok {
		return
	}
	if _, exists := conns[client.ID]; !exists {
		return
	}
	delete(conns, client.ID)
	if len(conns) == 0 {
		delete(p.clients, client.UserID)
	}
	log.Printf("Client %s (user %d) removed from pool", client.ID, client.UserID)
}

// SendToUser pushes an event to every active connection of userID and
// reports whether at least one connection accepted the write. A user with no
// connections is simply skipped.
func (p *Pool) SendToUser(userID int, event string, data interface{}) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	delivered := false
	for _, client := range p.clients[userID] {
		if err := client.Conn.WriteJSON(Event{Event: event, Data: data}); err != nil {
			log.Printf("Error sending event %q to user %d: %v", event, userID, err)
			client.Conn.Close()
			p.removeLocked(client)
			continue
		}
		delivered = true
	}
	return delivered
}

// SendToClient pushes an event to a single connection. It shares the pool
// mutex with SendToUser so the underlying websocket never sees two
// concurrent writers; gorilla/websocket allows only one.
func (p *Pool) SendToClient(client *Client, event string, data interface{}) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := client.Conn.WriteJSON(Event{Event: event, Data: data}); err != nil {
		log.Printf("Error sending event %q to client %s (user %d): %v", event, client.ID, client.UserID, err)
		client.Conn.Close()
		p.removeLocked(client)
		return false
	}
	return true
}

// SendToUsers pushes the same event to each listed user.
func (p *Pool) SendToUsers(userIDs []int, event string, data interface{}) {
	for _, userID := range userIDs {
		p.SendToUser(userID, event, data)
	}
}
