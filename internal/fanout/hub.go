package fanout

import (
	"sync"

	"go.uber.org/zap"

	"kidsafe/internal/models"
)

// Session is one guardian device's live alert feed. Alerts are pushed in
// creation order; there is no replay of alerts created before subscribing.
type Session struct {
	guardianID int64
	ch         chan models.Alert
	hub        *Hub
	closeOnce  sync.Once
}

// Alerts is the receive side of the session's feed. It is closed when the
// session is closed.
func (s *Session) Alerts() <-chan models.Alert {
	return s.ch
}

// Close unsubscribes the session and closes its feed. Safe to call more
// than once; closing one session never affects other sessions.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.hub.remove(s)
	})
}

// Hub maintains the per-guardian registry of live sessions and pushes each
// newly created alert to every session of its guardian. Registration and
// removal are safe while a broadcast is in flight.
type Hub struct {
	buffer int
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[int64]map[*Session]struct{}
}

// NewHub creates a hub whose sessions buffer up to buffer undelivered
// alerts each.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		buffer:   buffer,
		logger:   logger,
		sessions: make(map[int64]map[*Session]struct{}),
	}
}

// Subscribe opens a live session for one guardian. Multiple concurrent
// sessions for the same guardian each receive every alert independently.
func (h *Hub) Subscribe(guardianID int64) *Session {
	s := &Session{
		guardianID: guardianID,
		ch:         make(chan models.Alert, h.buffer),
		hub:        h,
	}

	h.mu.Lock()
	if h.sessions[guardianID] == nil {
		h.sessions[guardianID] = make(map[*Session]struct{})
	}
	h.sessions[guardianID][s] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("Guardian session subscribed", zap.Int64("guardian_id", guardianID))
	return s
}

func (h *Hub) remove(s *Session) {
	h.mu.Lock()
	if set, ok := h.sessions[s.guardianID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.sessions, s.guardianID)
		}
	}
	close(s.ch)
	h.mu.Unlock()

	h.logger.Debug("Guardian session unsubscribed", zap.Int64("guardian_id", s.guardianID))
}

// Publish pushes an alert to all current sessions of its guardian. A session
// whose buffer is full misses this alert but stays subscribed; the guardian
// recovers missed alerts through the recent-alerts endpoint.
func (h *Hub) Publish(alert models.Alert) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.sessions[alert.GuardianID] {
		select {
		case s.ch <- alert:
		default:
			h.logger.Warn("Session buffer full, alert not pushed to this session",
				zap.Int64("guardian_id", alert.GuardianID),
				zap.Int64("alert_id", alert.ID))
		}
	}
}

// SessionCount reports how many live sessions a guardian has.
func (h *Hub) SessionCount(guardianID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[guardianID])
}
