package chat

import (
	"sync"

	"github.com/m-mizutani/lectern/pkg/model"
)

const defaultMaxTurns = 10

// SessionStore keeps the bounded per-session conversation history.
// Sessions are created lazily on first append; an unknown id just has an
// empty history. Appends are atomic per id, so concurrent queries for
// different sessions never interleave one session's turns.
type SessionStore struct {
	mu       sync.Mutex
	maxTurns int
	sessions map[model.SessionID][]model.Turn
}

func NewSessionStore(maxTurns int) *SessionStore {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &SessionStore{
		maxTurns: maxTurns,
		sessions: make(map[model.SessionID][]model.Turn),
	}
}

// Append adds one turn, evicting the oldest turns once the cap is exceeded.
func (s *SessionStore) Append(id model.SessionID, role model.Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.append(id, model.Turn{Role: role, Text: text})
}

// AppendExchange adds a user/assistant pair in one critical section, so a
// finalized answer never ends up interleaved with another query's turns.
func (s *SessionStore) AppendExchange(id model.SessionID, userText, assistantText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.append(id, model.Turn{Role: model.RoleUser, Text: userText})
	s.append(id, model.Turn{Role: model.RoleAssistant, Text: assistantText})
}

func (s *SessionStore) append(id model.SessionID, turn model.Turn) {
	turns := append(s.sessions[id], turn)
	if len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}
	s.sessions[id] = turns
}

// History returns the session's turns oldest first. Unknown ids yield an
// empty slice.
func (s *SessionStore) History(id model.SessionID) []model.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]model.Turn(nil), s.sessions[id]...)
}

// Clear removes the session's history.
func (s *SessionStore) Clear(id model.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
}
