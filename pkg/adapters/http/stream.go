package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/escrow/internal/logging"
	"github.com/aretw0/escrow/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// StreamManager fans tracker events out to server-sent event subscribers per transaction.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // TransactionID -> Set of Channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty StreamManager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logging.NewNop(),
	}
}

// Subscribe registers a buffered channel for a transaction. Call the returned func to leave.
func (sm *StreamManager) Subscribe(transactionID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[transactionID]; !ok {
		sm.subscribers[transactionID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[transactionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[transactionID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, transactionID)
			}
		}
	}
}

// Broadcast delivers msg to every subscriber of a transaction, dropping it for slow clients.
func (sm *StreamManager) Broadcast(transactionID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[transactionID] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping message", "transaction_id", transactionID)
		}
	}
}

// Hooks publishes tracker events to subscribers.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTaskUpdated: func(_ context.Context, e *domain.TaskEvent) {
			sm.publish(e.TransactionID, e)
		},
		OnStageAdvanced: func(_ context.Context, e *domain.StageEvent) {
			sm.publish(e.TransactionID, e)
		},
		OnStageOverridden: func(_ context.Context, e *domain.StageEvent) {
			sm.publish(e.TransactionID, e)
		},
	}
}

func (sm *StreamManager) publish(transactionID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		sm.logger.Error("SSE: Failed to encode event", "transaction_id", transactionID, "err", err)
		return
	}
	sm.Broadcast(transactionID, string(payload))
}

// SubscribeEvents handles the GET /transactions/{id}/events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeMessage(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	tx, err := s.Tracker.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ch, cancel := s.Streams.Subscribe(tx.ID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	s.logger.Info("SSE: Subscribed to transaction", "transaction_id", tx.ID)
	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
