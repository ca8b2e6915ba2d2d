package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"surveychat/internal/metrics"
	"surveychat/internal/model"
)

// Hub fans survey events out to the authors watching each survey
type Hub struct {
	// survey -> connections
	conns map[string]map[*Connection]struct{}

	mu sync.RWMutex

	// Channels for coordination
	register   chan *Connection
	unregister chan *Connection
	broadcast  chan model.SurveyEvent
	done       chan struct{}
	closeOnce  sync.Once
	stopped    sync.WaitGroup

	logger *zap.Logger
}

// Connection is one author socket subscribed to a survey
type Connection struct {
	SurveyID string
	AuthorID string
	Send     chan []byte
}

// NewHub creates a hub and starts its dispatch loop
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		conns:      make(map[string]map[*Connection]struct{}),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan model.SurveyEvent, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
	h.stopped.Add(1)
	go h.run()
	return h
}

func (h *Hub) run() {
	defer h.stopped.Done()
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if h.conns[conn.SurveyID] == nil {
				h.conns[conn.SurveyID] = make(map[*Connection]struct{})
			}
			h.conns[conn.SurveyID][conn] = struct{}{}
			h.mu.Unlock()
			metrics.WSConnections.Inc()
			h.logger.Info("author subscribed", zap.String("survey_id", conn.SurveyID), zap.String("author_id", conn.AuthorID))

		case conn := <-h.unregister:
			h.mu.Lock()
			if subs, ok := h.conns[conn.SurveyID]; ok {
				if _, ok := subs[conn]; ok {
					delete(subs, conn)
					close(conn.Send)
					metrics.WSConnections.Dec()
					if len(subs) == 0 {
						delete(h.conns, conn.SurveyID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn("failed to encode survey event", zap.Error(err))
				continue
			}
			h.mu.RLock()
			for conn := range h.conns[event.SurveyID] {
				select {
				case conn.Send <- data:
				default:
					// Drop message if buffer full
				}
			}
			h.mu.RUnlock()

		case <-h.done:
			h.mu.Lock()
			for _, subs := range h.conns {
				for conn := range subs {
					close(conn.Send)
					metrics.WSConnections.Dec()
				}
			}
			h.conns = make(map[string]map[*Connection]struct{})
			h.mu.Unlock()
			return
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		close(conn.Send)
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Publish queues an event for the survey's subscribers (implements service.Broadcaster)
func (h *Hub) Publish(event model.SurveyEvent) {
	select {
	case h.broadcast <- event:
	case <-h.done:
	default:
		h.logger.Warn("survey event dropped", zap.String("survey_id", event.SurveyID), zap.String("type", event.Type))
	}
}

// Subscribers returns the number of connections watching a survey
func (h *Hub) Subscribers(surveyID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[surveyID])
}

// Close stops the dispatch loop and closes every connection's send channel
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
	h.stopped.Wait()
}
