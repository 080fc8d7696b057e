package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Manager manages all WebSocket connections, keyed by the event channel
// key they watch ("items:42", "topics:7").
type Manager struct {
	subscribers sync.Map // map[string]*sync.Map of *Client -> bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	log zerolog.Logger
}

// Client represents a WebSocket client connection.
type Client struct {
	ID   string
	Key  string // channel key this client watches
	Conn *websocket.Conn
	Send chan []byte
}

// BroadcastMessage is a payload destined for every client on a key.
type BroadcastMessage struct {
	Key     string
	Payload []byte
}

// NewManager creates a new WebSocket manager.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256), // buffered for high throughput
		log:        logger,
	}
}

// Run starts the manager's main loop. Run it in a goroutine.
func (m *Manager) Run() {
	for {
		select {
		case client := <-m.register:
			m.registerClient(client)

		case client := <-m.unregister:
			m.unregisterClient(client)

		case message := <-m.broadcast:
			m.broadcastToKey(message.Key, message.Payload)
		}
	}
}

// RegisterClient adds a client to the manager.
func (m *Manager) RegisterClient(client *Client) {
	m.register <- client
}

// UnregisterClient removes a client from the manager.
func (m *Manager) UnregisterClient(client *Client) {
	m.unregister <- client
}

// Broadcast sends a message to all clients watching a key.
func (m *Manager) Broadcast(key string, payload []byte) {
	m.broadcast <- &BroadcastMessage{Key: key, Payload: payload}
}

func (m *Manager) registerClient(client *Client) {
	subscribers, _ := m.subscribers.LoadOrStore(client.Key, &sync.Map{})
	subscribers.(*sync.Map).Store(client, true)

	m.log.Info().Str("client", client.ID).Str("key", client.Key).Msg("client subscribed")

	go client.writePump()
}

func (m *Manager) unregisterClient(client *Client) {
	subscribers, ok := m.subscribers.Load(client.Key)
	if !ok {
		return
	}
	// An evicted client's read pump reports the disconnect too; only the
	// removal that actually found the client may close Send.
	if _, present := subscribers.(*sync.Map).LoadAndDelete(client); !present {
		return
	}

	close(client.Send)
	client.Conn.Close()

	m.log.Info().Str("client", client.ID).Str("key", client.Key).Msg("client unsubscribed")
}

func (m *Manager) broadcastToKey(key string, payload []byte) {
	subscribers, ok := m.subscribers.Load(key)
	if !ok {
		return
	}

	count := 0
	subscribers.(*sync.Map).Range(func(k, _ interface{}) bool {
		client := k.(*Client)
		select {
		case client.Send <- payload:
			count++
		default:
			// Full send buffer: disconnect so one slow client cannot
			// block the others. Already on Run's goroutine, so remove
			// directly; sending on m.unregister here would deadlock the
			// manager against its own loop.
			m.unregisterClient(client)
		}
		return true
	})

	m.log.Debug().Int("clients", count).Str("key", key).Msg("broadcasted")
}

// GetSubscriberCount returns the number of clients watching a key.
func (m *Manager) GetSubscriberCount(key string) int {
	subscribers, ok := m.subscribers.Load(key)
	if !ok {
		return 0
	}
	count := 0
	subscribers.(*sync.Map).Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

// writePump pumps messages from the Send channel to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			// keepalive
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client messages and detects disconnects.
func (c *Client) readPump(unregister chan *Client) {
	defer func() {
		unregister <- c
	}()

	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			break
		}
	}
}

// StartReadPump starts the read pump for this client.
func (c *Client) StartReadPump(unregister chan *Client) {
	go c.readPump(unregister)
}
