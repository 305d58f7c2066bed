package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/CVMHW/roger-74-sub004/roger/conversation"
)

// Session serializes one conversation's turns through the orchestrator.
// Turns are processed strictly in arrival order: the memory record for
// turn n+1 always reflects the committed history through turn n.
// Sessions share no mutable state with each other.
type Session struct {
	id    string
	store conversation.Store
	orch  *Orchestrator

	mu sync.Mutex
}

// NewSession binds a session ID to a turn store and an orchestrator.
func NewSession(id string, store conversation.Store, orch *Orchestrator) *Session {
	return &Session{id: id, store: store, orch: orch}
}

// HandleTurn loads the committed history, runs the pipeline, and persists
// the two turns the pipeline appended. The reply is valid even when
// persistence fails; the error reports the storage problem separately.
func (s *Session) HandleTurn(ctx context.Context, utterance string) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.store.LoadHistory(ctx, s.id)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to load session history: %w", err)
	}

	turnCount := len(history.LastUserTurns(history.Len())) + 1
	reply := s.orch.Process(ctx, utterance, history, turnCount)

	turns := history.Turns()
	for _, turn := range turns[len(turns)-2:] {
		if err := s.store.SaveTurn(ctx, s.id, turn); err != nil {
			return reply, fmt.Errorf("failed to persist turn: %w", err)
		}
	}
	return reply, nil
}
