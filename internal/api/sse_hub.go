package api

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"gogrid/domain/core"
	"gogrid/internal"
	"gogrid/models"

	"github.com/gin-gonic/gin"
)

const (
	clientBuffer    = 16
	broadcastBuffer = 256
)

// SSEClient represents a connected SSE client
type SSEClient struct {
	ID      core.ClientID
	Key     core.GridKey
	Channel chan models.GridEvent
}

// SSEHub manages Server-Sent Events for grid updates. Clients subscribe to
// one grid key and receive every event published for it.
type SSEHub struct {
	clients    map[core.GridKey]map[chan models.GridEvent]core.ClientID
	clientsMu  sync.RWMutex
	register   chan SSEClient
	unregister chan SSEClient
	broadcast  chan models.GridEvent
	stop       chan struct{}
	stopOnce   sync.Once
	done       chan struct{}

	PingInterval time.Duration
	logger       *internal.Logger
}

// NewSSEHub creates a new SSE hub and starts its dispatch loop
func NewSSEHub(logger *internal.Logger) *SSEHub {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	hub := &SSEHub{
		clients:      make(map[core.GridKey]map[chan models.GridEvent]core.ClientID),
		register:     make(chan SSEClient),
		unregister:   make(chan SSEClient),
		broadcast:    make(chan models.GridEvent, broadcastBuffer),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		PingInterval: 30 * time.Second,
		logger:       logger.With("SSE"),
	}

	go hub.run()
	return hub
}

// run processes SSE hub operations
func (h *SSEHub) run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			if h.clients[client.Key] == nil {
				h.clients[client.Key] = make(map[chan models.GridEvent]core.ClientID)
			}
			h.clients[client.Key][client.Channel] = client.ID
			h.logger.Debug("client %s registered for grid %s (total clients: %d)",
				client.ID, client.Key, len(h.clients[client.Key]))
			h.clientsMu.Unlock()

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if clients, exists := h.clients[client.Key]; exists {
				if _, ok := clients[client.Channel]; ok {
					delete(clients, client.Channel)
					close(client.Channel)
				}
				h.logger.Debug("client %s unregistered from grid %s (remaining clients: %d)",
					client.ID, client.Key, len(clients))
				if len(clients) == 0 {
					delete(h.clients, client.Key)
				}
			}
			h.clientsMu.Unlock()

		case event := <-h.broadcast:
			h.clientsMu.RLock()
			for clientChan, id := range h.clients[event.Key] {
				select {
				case clientChan <- event:
				default:
					h.logger.Warn("client %s channel full for grid %s, skipping %s event",
						id, event.Key, event.Type)
				}
			}
			h.clientsMu.RUnlock()

		case <-h.stop:
			h.clientsMu.Lock()
			for key, clients := range h.clients {
				for clientChan := range clients {
					close(clientChan)
				}
				delete(h.clients, key)
			}
			h.clientsMu.Unlock()
			return
		}
	}
}

// Publish queues an event for every client watching event.Key. It never
// blocks; events are dropped when the hub is saturated.
func (h *SSEHub) Publish(event models.GridEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast channel full, dropping %s event for grid %s", event.Type, event.Key)
	}
}

// Subscribe registers a client for key. The returned channel is closed by
// cancel or when the hub stops.
func (h *SSEHub) Subscribe(key core.GridKey) (<-chan models.GridEvent, func(), error) {
	client := SSEClient{
		ID:      core.NewClientID(),
		Key:     key,
		Channel: make(chan models.GridEvent, clientBuffer),
	}

	select {
	case h.register <- client:
	case <-h.done:
		return nil, nil, core.ErrChannelClosed
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			select {
			case h.unregister <- client:
			case <-h.done:
			}
		})
	}
	return client.Channel, cancel, nil
}

// HandleSSE streams events for the grid named by the :key path parameter
func (h *SSEHub) HandleSSE(c *gin.Context) {
	key, err := core.ParseGridKey(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, cancel, err := h.Subscribe(key)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream unavailable"})
		return
	}
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Headers", "Cache-Control")

	ping := time.NewTicker(h.PingInterval)
	defer ping.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			eventJSON, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event: %v", err)
				return true
			}
			c.SSEvent(string(event.Type), string(eventJSON))
			return true

		case <-ping.C:
			c.SSEvent("ping", `{"status": "alive", "timestamp": "`+time.Now().Format(time.RFC3339)+`"}`)
			return true

		case <-ctx.Done():
			return false
		}
	})
}

// ActiveGrids returns the keys that have at least one subscriber
func (h *SSEHub) ActiveGrids() []core.GridKey {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	keys := make([]core.GridKey, 0, len(h.clients))
	for key := range h.clients {
		keys = append(keys, key)
	}
	return keys
}

// ClientCount returns the number of subscribers for key
func (h *SSEHub) ClientCount(key core.GridKey) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[key])
}

// Close disconnects every client and stops the hub
func (h *SSEHub) Close() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}
