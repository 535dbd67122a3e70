package wallmodule

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
)

// wsMessage is the envelope for everything pushed over the wall socket
type wsMessage struct {
	Type    string        `json:"type"`
	Command string        `json:"command,omitempty"`
	Wall    *WallSnapshot `json:"wall,omitempty"`
}

// Hub fans wall snapshots and commands out to connected websocket clients.
// Slow clients get dropped rather than backing up the broadcast path.
type Hub struct {
	logger   hclog.Logger
	upgrader websocket.Upgrader

	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
	stop       chan struct{}

	mu      sync.Mutex
	stopped bool
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub; call Run on its own goroutine before serving clients
func NewHub(logger hclog.Logger) *Hub {
	return &Hub{
		logger: logger.Named("wall-hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, 16),
		stop:       make(chan struct{}),
	}
}

// Run owns the client set. Single goroutine, no locking on the hot path.
func (h *Hub) Run() {
	clients := make(map[*wsClient]struct{})
	defer func() {
		for c := range clients {
			close(c.send)
			c.conn.Close()
		}
	}()

	for {
		select {
		case client := <-h.register:
			clients[client] = struct{}{}
			h.logger.Debug("client connected", "id", client.id, "total", len(clients))
		case client := <-h.unregister:
			if _, ok := clients[client]; ok {
				delete(clients, client)
				close(client.send)
				h.logger.Debug("client disconnected", "id", client.id, "total", len(clients))
			}
		case msg := <-h.broadcast:
			for client := range clients {
				select {
				case client.send <- msg:
				default:
					delete(clients, client)
					close(client.send)
					h.logger.Warn("dropping slow client", "id", client.id)
				}
			}
		case <-h.stop:
			return
		}
	}
}

// BroadcastSnapshot pushes wall state to every client. Non-blocking: if the
// broadcast buffer is full the frame is skipped, a newer one is coming.
func (h *Hub) BroadcastSnapshot(snap WallSnapshot) {
	h.send(wsMessage{Type: "wall", Wall: &snap})
}

// BroadcastCommand forwards a client-side command such as fullscreen
func (h *Hub) BroadcastCommand(command string) {
	h.send(wsMessage{Type: "command", Command: command})
}

func (h *Hub) send(msg wsMessage) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast failed", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
	}
}

// ServeWS upgrades an HTTP request and attaches the client to the hub
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 8),
	}
	select {
	case h.register <- client:
	case <-h.stop:
		conn.Close()
		return
	}

	go client.writeLoop()
	go client.readLoop(h)
}

// Stop shuts the hub down and closes all client connections
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()
	close(h.stop)
}

func (c *wsClient) writeLoop() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readLoop drains the connection so pings and close frames are processed
func (c *wsClient) readLoop(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.stop:
		}
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
