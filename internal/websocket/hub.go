package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"water-monitor/internal/aggregator"
	"water-monitor/internal/logger"
	"water-monitor/internal/metrics"
	"water-monitor/internal/models"
	"water-monitor/internal/supervisor"
)

// Message types sent to dashboards.
const (
	TypeReading = "reading"
	TypeStatus  = "status"
	TypeHistory = "history"
	TypeAlert   = "alert"
)

// Envelope is the frame written to dashboard clients.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ReadingUpdate is the payload of a reading frame.
type ReadingUpdate struct {
	Reading models.ReadingView        `json:"reading"`
	History []aggregator.HistoryPoint `json:"history,omitempty"`
}

// Hub maintains the set of active dashboard clients and broadcasts to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	// snapshot builds the initial frame for a newly registered client
	snapshot func() interface{}

	lastStatusSeq uint64
	statusMu      sync.Mutex

	log zerolog.Logger
}

// NewHub creates a hub. snapshot may be nil.
func NewHub(snapshot func() interface{}) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		snapshot:   snapshot,
		log:        logger.WithComponent("ws-hub"),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info().Msg("hub started")
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			metrics.DisplayClients.Set(0)
			h.log.Info().Msg("hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			metrics.DisplayClients.Set(float64(len(h.clients)))
			h.mu.Unlock()
			h.log.Info().Str("remote", client.remoteAddr()).Msg("client registered")
			h.sendInitial(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.log.Info().Str("remote", client.remoteAddr()).Msg("client unregistered")
			}
			metrics.DisplayClients.Set(float64(len(h.clients)))
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					h.log.Warn().Str("remote", client.remoteAddr()).Msg("client send buffer full, removing")
					close(client.Send)
					delete(h.clients, client)
				}
			}
			metrics.DisplayClients.Set(float64(len(h.clients)))
			h.mu.Unlock()
		}
	}
}

func (h *Hub) sendInitial(client *Client) {
	if h.snapshot == nil {
		return
	}
	msg, err := json.Marshal(Envelope{Type: TypeHistory, Payload: h.snapshot()})
	if err != nil {
		h.log.Error().Err(err).Msg("marshal snapshot")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.Send <- msg:
	default:
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast marshals an envelope and queues it for every client. Frames are
// dropped rather than blocking the caller when the queue is full.
func (h *Hub) Broadcast(msgType string, payload interface{}) {
	msg, err := json.Marshal(Envelope{Type: msgType, Payload: payload})
	if err != nil {
		h.log.Error().Err(err).Str("type", msgType).Msg("marshal broadcast")
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn().Str("type", msgType).Msg("broadcast queue full, dropping frame")
	}
}

// ShowReading pushes the latest reading and the chart window.
func (h *Hub) ShowReading(view models.ReadingView, history []aggregator.HistoryPoint) {
	h.Broadcast(TypeReading, ReadingUpdate{Reading: view, History: history})
}

// ShowStatus pushes a connection status, ignoring ones older than the last sent.
func (h *Hub) ShowStatus(st supervisor.Status) {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()
	if st.Seq != 0 && st.Seq < h.lastStatusSeq {
		return
	}
	h.lastStatusSeq = st.Seq

	// Broadcast never blocks, so queueing under the lock keeps frames in Seq order.
	h.Broadcast(TypeStatus, st)
}

// ShowAlert pushes an alert outcome.
func (h *Hub) ShowAlert(alert interface{}) {
	h.Broadcast(TypeAlert, alert)
}
