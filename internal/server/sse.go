package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alfredjeanlab/schoolline/internal/events"
)

const (
	// hubRingSize is the number of recent events kept for Last-Event-ID
	// replay.
	hubRingSize = 1000

	sseKeepaliveInterval = 15 * time.Second
)

// hubEvent is a single event stored in the ring buffer and sent to clients.
type hubEvent struct {
	ID    uint64 // monotonically increasing sequence number
	Topic string
	Data  []byte // JSON-encoded payload
}

// Hub fans engine events out to connected event-stream clients and keeps a
// ring buffer for reconnection.
type Hub struct {
	mu      sync.RWMutex
	clients map[*hubClient]struct{}
	nextID  atomic.Uint64

	ringMu  sync.RWMutex
	ring    [hubRingSize]hubEvent
	ringPos int // next write position (wraps around)
	ringLen int // number of valid entries (up to hubRingSize)
}

// hubClient is a single connected stream consumer.
type hubClient struct {
	topics []string       // topic patterns to match (empty = all)
	ch     chan *hubEvent // buffered; slow clients drop events
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*hubClient]struct{})}
}

// Publisher returns an events.Publisher that broadcasts on the hub and then
// forwards to next. A nil next only broadcasts.
func (h *Hub) Publisher(next events.Publisher) events.Publisher {
	if next == nil {
		next = events.NoopPublisher{}
	}
	return &hubPublisher{hub: h, next: next}
}

type hubPublisher struct {
	hub  *Hub
	next events.Publisher
}

func (p *hubPublisher) Publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	p.hub.broadcast(topic, payload)
	return p.next.Publish(ctx, topic, event)
}

func (p *hubPublisher) Close() error { return p.next.Close() }

// broadcast sends an event to every client whose topic filters match.
func (h *Hub) broadcast(topic string, payload []byte) {
	evt := &hubEvent{
		ID:    h.nextID.Add(1),
		Topic: topic,
		Data:  payload,
	}

	h.ringMu.Lock()
	h.ring[h.ringPos] = *evt
	h.ringPos = (h.ringPos + 1) % hubRingSize
	if h.ringLen < hubRingSize {
		h.ringLen++
	}
	h.ringMu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.matchesTopic(topic) {
			select {
			case c.ch <- evt:
			default:
			}
		}
	}
}

// subscribe registers a new client. Call unsubscribe when done.
func (h *Hub) subscribe(topics []string) *hubClient {
	c := &hubClient{
		topics: topics,
		ch:     make(chan *hubEvent, 64),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unsubscribe(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// eventsSince returns buffered events with ID > lastID, oldest first.
func (h *Hub) eventsSince(lastID uint64) []*hubEvent {
	h.ringMu.RLock()
	defer h.ringMu.RUnlock()

	var result []*hubEvent
	start := h.ringPos - h.ringLen
	if start < 0 {
		start += hubRingSize
	}
	for i := range h.ringLen {
		evt := &h.ring[(start+i)%hubRingSize]
		if evt.ID > lastID {
			result = append(result, evt)
		}
	}
	return result
}

func (c *hubClient) matchesTopic(topic string) bool {
	if len(c.topics) == 0 {
		return true
	}
	for _, pattern := range c.topics {
		if matchTopicPattern(pattern, topic) {
			return true
		}
	}
	return false
}

// matchTopicPattern matches a dot-separated topic against a NATS-style
// pattern: "*" matches one segment, a trailing ">" one or more.
func matchTopicPattern(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	patParts := strings.Split(pattern, ".")
	topParts := strings.Split(topic, ".")

	for i, pp := range patParts {
		if pp == ">" {
			return i < len(topParts)
		}
		if i >= len(topParts) {
			return false
		}
		if pp != "*" && pp != topParts[i] {
			return false
		}
	}
	return len(patParts) == len(topParts)
}

// handleEventStream handles GET /v1/events/stream?topics=a,b (SSE).
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream not configured")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var topics []string
	if q := r.URL.Query().Get("topics"); q != "" {
		for _, t := range strings.Split(q, ",") {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}
	}

	client := s.hub.subscribe(topics)
	defer s.hub.unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if lastIDStr := r.Header.Get("Last-Event-ID"); lastIDStr != "" {
		if lastID, err := strconv.ParseUint(lastIDStr, 10, 64); err == nil {
			for _, evt := range s.hub.eventsSince(lastID) {
				if client.matchesTopic(evt.Topic) {
					writeSSEEvent(w, evt)
				}
			}
			flusher.Flush()
		} else {
			s.logger.Debug("ignoring bad Last-Event-ID", "value", lastIDStr, slog.Any("err", err))
		}
	}

	ctx := r.Context()
	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-client.ch:
			writeSSEEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, evt *hubEvent) {
	fmt.Fprintf(w, "id:%d\n", evt.ID)
	fmt.Fprintf(w, "event:%s\n", evt.Topic)
	fmt.Fprintf(w, "data:%s\n\n", evt.Data)
}
