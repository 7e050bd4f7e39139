// Package feed streams a session's analytics records to websocket clients as
// they are delivered.
package feed

import (
	"context"
	"net/http"
	"sync"
	"time"

	"splitstream/internal/core/domain"
	"splitstream/internal/core/ports"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Message struct {
	Kind    string                 `json:"kind"`
	Event   *domain.AnalyticsEvent `json:"event,omitempty"`
	Summary *domain.SessionSummary `json:"summary,omitempty"`
}

type Config struct {
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	SendBuffer     int
	AllowedOrigins []string // empty allows any origin
}

func DefaultConfig() Config {
	return Config{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		SendBuffer:   32,
	}
}

type subscriber struct {
	sessionID domain.SessionID
	send      chan Message
	closeOnce sync.Once
	done      chan struct{}
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Hub is an AnalyticsSink that never fails: a subscriber that cannot keep up
// is disconnected instead of slowing delivery down.
type Hub struct {
	cfg      Config
	logger   *zap.SugaredLogger
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	subscribers map[domain.SessionID]map[*subscriber]struct{}
}

var _ ports.AnalyticsSink = (*Hub)(nil)

func NewHub(cfg Config, logger *zap.SugaredLogger) *Hub {
	if cfg.SendBuffer < 1 {
		cfg.SendBuffer = 1
	}

	h := &Hub{
		cfg:         cfg,
		logger:      logger,
		subscribers: make(map[domain.SessionID]map[*subscriber]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) AppendEvent(ctx context.Context, event domain.AnalyticsEvent) error {
	h.publish(event.SessionID, Message{Kind: "event", Event: &event})
	return nil
}

func (h *Hub) AppendSummary(ctx context.Context, summary domain.SessionSummary) error {
	h.publish(summary.SessionID, Message{Kind: "summary", Summary: &summary})
	return nil
}

// Subscribers reports how many clients follow the session.
func (h *Hub) Subscribers(sessionID domain.SessionID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[sessionID])
}

// ServeSession upgrades the request and streams the session's records until
// the client goes away or Close is called.
func (h *Hub) ServeSession(w http.ResponseWriter, r *http.Request, sessionID domain.SessionID) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}
	defer conn.Close()

	sub := &subscriber{
		sessionID: sessionID,
		send:      make(chan Message, h.cfg.SendBuffer),
		done:      make(chan struct{}),
	}
	h.add(sub)
	defer h.remove(sub)

	h.logger.Debugw("feed subscriber connected", "session_id", sessionID)

	if h.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	}
	conn.SetPongHandler(func(string) error {
		if h.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
		}
		return nil
	})

	// The feed is one-way; reading only serves control frames and notices the
	// client closing.
	go func() {
		defer sub.close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debugw("feed subscriber read failed", "session_id", sessionID, "error", err)
				}
				return
			}
		}
	}()

	var ping <-chan time.Time
	if h.cfg.PingInterval > 0 {
		ticker := time.NewTicker(h.cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case msg := <-sub.send:
			h.setWriteDeadline(conn)
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debugw("feed write failed", "session_id", sessionID, "error", err)
				return
			}
		case <-ping:
			h.setWriteDeadline(conn)
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sub.done:
			h.setWriteDeadline(conn)
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, subs := range h.subscribers {
		for sub := range subs {
			sub.close()
		}
		delete(h.subscribers, id)
	}
}

func (h *Hub) publish(sessionID domain.SessionID, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers[sessionID] {
		select {
		case sub.send <- msg:
		default:
			h.logger.Warnw("feed subscriber too slow, disconnecting", "session_id", sessionID)
			sub.close()
		}
	}
}

func (h *Hub) add(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[sub.sessionID]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.subscribers[sub.sessionID] = subs
	}
	subs[sub] = struct{}{}
}

func (h *Hub) remove(sub *subscriber) {
	sub.close()

	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.subscribers[sub.sessionID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subscribers, sub.sessionID)
		}
	}
}

func (h *Hub) setWriteDeadline(conn *websocket.Conn) {
	if h.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
