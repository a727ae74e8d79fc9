// Package realtime pushes slot availability changes to websocket watchers.
package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/cassiomorais/courts/internal/infrastructure/observability"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 16
)

// SlotEvent is the message sent to watchers of a court day.
type SlotEvent struct {
	Type       string `json:"type"`
	Court      string `json:"cancha"`
	Date       string `json:"fecha"`
	TimeSlot   string `json:"horario"`
	Status     string `json:"estado"`
	Disponible bool   `json:"disponible"`
}

// NewSlotEvent converts a slot change to its wire form.
func NewSlotEvent(c reservation.SlotChange) SlotEvent {
	return SlotEvent{
		Type:       "slot_changed",
		Court:      string(c.Court),
		Date:       c.Date.Format(reservation.DateLayout),
		TimeSlot:   string(c.TimeSlot),
		Status:     string(c.Status),
		Disponible: c.Available(),
	}
}

func topicOf(court, date string) string {
	return court + "|" + date
}

type client struct {
	conn  *websocket.Conn
	send  chan SlotEvent
	topic string
}

// Hub fans slot events out to the websocket clients watching each court day.
type Hub struct {
	upgrader websocket.Upgrader
	metrics  *observability.Metrics

	mu     sync.RWMutex
	topics map[string]map[*client]struct{}
}

// NewHub creates a Hub. allowedOrigins restricts browser origins; an empty
// list accepts any origin.
func NewHub(allowedOrigins []string, metrics *observability.Metrics) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
		metrics: metrics,
		topics:  make(map[string]map[*client]struct{}),
	}
}

// SlotChanged broadcasts a change to local watchers.
func (h *Hub) SlotChanged(_ context.Context, change reservation.SlotChange) {
	h.Broadcast(NewSlotEvent(change))
}

// Broadcast delivers ev to every watcher of its court day. Watchers that
// cannot keep up are disconnected.
func (h *Hub) Broadcast(ev SlotEvent) {
	topic := topicOf(ev.Court, ev.Date)

	h.mu.RLock()
	var slow []*client
	for c := range h.topics[topic] {
		select {
		case c.send <- ev:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.unregister(c)
	}
}

// Serve upgrades the request and streams events for the court day until the
// client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, court reservation.Court, date time.Time) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		conn:  conn,
		send:  make(chan SlotEvent, sendBuffer),
		topic: topicOf(string(court), date.Format(reservation.DateLayout)),
	}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
}

// Watchers returns the number of connected clients.
func (h *Hub) Watchers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.topics {
		n += len(clients)
	}
	return n
}

// Close disconnects every watcher.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*client
	for _, clients := range h.topics {
		for c := range clients {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	for _, c := range all {
		h.unregister(c)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.topics[c.topic]
	if !ok {
		clients = make(map[*client]struct{})
		h.topics[c.topic] = clients
	}
	clients[c] = struct{}{}
	if h.metrics != nil {
		h.metrics.AvailabilityWatchers.Inc()
	}
}

// unregister removes c once; later calls are no-ops.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.topics[c.topic]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.topics, c.topic)
	}
	close(c.send)
	if h.metrics != nil {
		h.metrics.AvailabilityWatchers.Dec()
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				h.unregister(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}

// readPump only services control frames; watchers do not send data.
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("availability watcher disconnected")
			}
			return
		}
	}
}
