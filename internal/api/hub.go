package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/palmpipe/palmpipe/internal/inference"
)

// broadcastWriteWait bounds how long one stalled overlay client can hold
// up a broadcast before it is dropped.
var broadcastWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type hubClient struct {
	conn     *websocket.Conn
	writeMux sync.Mutex
}

// Hub fans live inference results out to connected overlay clients. The
// pipeline never waits on a client: a client whose write fails is dropped.
type Hub struct {
	log *logrus.Entry

	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

func NewHub() *Hub {
	return &Hub{
		log:     logrus.WithField("component", "hub"),
		clients: make(map[*hubClient]struct{}),
	}
}

func (h *Hub) add(c *hubClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.conn.Close()
}

// Broadcast sends one result to every connected client.
func (h *Hub) Broadcast(res *inference.Result) {
	h.mu.Lock()
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.writeMux.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(broadcastWriteWait))
		err := c.conn.WriteJSON(res)
		c.writeMux.Unlock()
		if err != nil {
			h.log.WithError(err).Debug("dropping slow landmark client")
			h.remove(c)
		}
	}
}

// ClientCount reports connected overlay clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
