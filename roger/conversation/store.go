package conversation

import (
	"context"
	"fmt"
	"sync"
)

// Store persists per-session conversation history. Sessions are fully
// independent; no mutable state is shared between them.
type Store interface {
	SaveTurn(ctx context.Context, sessionID string, turn Turn) error
	LoadHistory(ctx context.Context, sessionID string) (*History, error)
	TurnCount(ctx context.Context, sessionID string) (int, error)
}

// InMemoryStore keeps session histories in process memory. The pipeline
// owns no persistence layer; callers that need durability wrap this
// behind the same interface.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*History
}

// NewInMemoryStore creates an empty session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*History)}
}

// SaveTurn appends a turn to the session's history, creating the session
// on first use.
func (s *InMemoryStore) SaveTurn(ctx context.Context, sessionID string, turn Turn) error {
	if sessionID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.sessions[sessionID]
	if !ok {
		h = NewHistory()
		s.sessions[sessionID] = h
	}
	h.Append(turn)
	return nil
}

// LoadHistory returns an independent copy of the session's history.
func (s *InMemoryStore) LoadHistory(ctx context.Context, sessionID string) (*History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.sessions[sessionID]
	if !ok {
		return NewHistory(), nil
	}
	return h.Clone(), nil
}

// TurnCount returns the number of user turns recorded for the session.
func (s *InMemoryStore) TurnCount(ctx context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.sessions[sessionID]
	if !ok {
		return 0, nil
	}
	n := 0
	for _, t := range h.Turns() {
		if t.Speaker == SpeakerUser {
			n++
		}
	}
	return n, nil
}

var _ Store = (*InMemoryStore)(nil)
