package httpapi

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/runs"
	"github.com/atlas-desktop/trading-backend/internal/store"
)

// WSMessage is one message sent down a run's event stream.
type WSMessage struct {
	RunID     string      `json:"run_id"`
	Type      string      `json:"type"` // always "event"
	Event     *runs.Event `json:"event,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Client is one subscribed websocket connection, watching a single run.
type Client struct {
	id    string
	runID uuid.UUID
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
}

// Hub fans out run events to subscribed clients. The worker that produces
// events runs as a separate process with no in-process call path to the API
// server, so the hub can't be pushed to directly — instead it polls each
// subscribed run's event log on an interval and forwards whatever is new.
type Hub struct {
	store  store.Store
	logger *zap.Logger

	mu       sync.RWMutex
	channels map[uuid.UUID]map[*Client]bool
	lastSeen map[uuid.UUID]int64

	register   chan *Client
	unregister chan *Client
}

// NewHub returns a Hub polling through store.
func NewHub(s store.Store, logger *zap.Logger) *Hub {
	return &Hub{
		store:      s,
		logger:     logger,
		channels:   make(map[uuid.UUID]map[*Client]bool),
		lastSeen:   make(map[uuid.UUID]int64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// pollInterval is how often the hub checks a subscribed run for new events.
const pollInterval = 1 * time.Second

// Run drives registration/unregistration and the per-run polling loop until
// ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, clients := range h.channels {
				for c := range clients {
					close(c.send)
				}
			}
			h.channels = make(map[uuid.UUID]map[*Client]bool)
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			if h.channels[c.runID] == nil {
				h.channels[c.runID] = make(map[*Client]bool)
			}
			h.channels[c.runID][c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.channels[c.runID]; ok {
				if _, ok := clients[c]; ok {
					delete(clients, c)
					close(c.send)
					if len(clients) == 0 {
						delete(h.channels, c.runID)
						delete(h.lastSeen, c.runID)
					}
				}
			}
			h.mu.Unlock()

		case <-ticker.C:
			h.pollAll(ctx)
		}
	}
}

func (h *Hub) pollAll(ctx context.Context) {
	h.mu.RLock()
	runIDs := make([]uuid.UUID, 0, len(h.channels))
	for id := range h.channels {
		runIDs = append(runIDs, id)
	}
	h.mu.RUnlock()

	for _, runID := range runIDs {
		events, err := h.store.ListEvents(ctx, runID, 200)
		if err != nil {
			h.logger.Error("poll events failed", zap.String("run_id", runID.String()), zap.Error(err))
			continue
		}

		h.mu.Lock()
		since := h.lastSeen[runID]
		var fresh []runs.Event
		for _, e := range events {
			if e.ID > since {
				fresh = append(fresh, e)
			}
			if e.ID > h.lastSeen[runID] {
				h.lastSeen[runID] = e.ID
			}
		}
		clients := make([]*Client, 0, len(h.channels[runID]))
		for c := range h.channels[runID] {
			clients = append(clients, c)
		}
		h.mu.Unlock()

		// ListEvents returns newest-first; send oldest-first so a client's
		// log reads in chronological order.
		for i := len(fresh) - 1; i >= 0; i-- {
			ev := fresh[i]
			msg, err := json.Marshal(WSMessage{
				RunID:     runID.String(),
				Type:      "event",
				Event:     &ev,
				Timestamp: time.Now().UnixMilli(),
			})
			if err != nil {
				continue
			}
			for _, c := range clients {
				select {
				case c.send <- msg:
				default:
				}
			}
		}
	}
}

// NewClient returns a Client subscribed to runID's event stream.
func NewClient(id string, runID uuid.UUID, hub *Hub, conn *websocket.Conn) *Client {
	return &Client{id: id, runID: runID, hub: hub, conn: conn, send: make(chan []byte, 64)}
}

// ReadPump discards inbound client frames (the stream is server-to-client
// only) but must run so ping/pong control frames and close detection work.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// WritePump pumps the hub's fan-out channel to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
