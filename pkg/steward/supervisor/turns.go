// Package supervisor – turns.go segments the snapshot stream into
// request/response conversation turns and renders recent turns as
// context for the instruction generator.
package supervisor

import (
	"fmt"
	"strings"
	"time"
)

// TurnStatus marks a turn as still accumulating responses or closed.
type TurnStatus string

const (
	TurnActive    TurnStatus = "active"
	TurnCompleted TurnStatus = "completed"
)

// TurnResponse is one observed reply within a turn.
type TurnResponse struct {
	Timestamp time.Time
	Content   string
}

// Turn is one user-request-to-completion cycle in the observed dialog.
type Turn struct {
	StartTime   time.Time
	UserRequest string
	Responses   []TurnResponse
	Status      TurnStatus
	EndTime     time.Time
}

// TurnManager maintains a bounded list of past turns plus the currently
// active one.
type TurnManager struct {
	cfg        Config
	turns      []Turn
	current    *Turn
	request    []string
	completion []string
}

// NewTurnManager builds a turn manager from the configured request and
// completion marker tables.
func NewTurnManager(cfg Config) *TurnManager {
	return &TurnManager{
		cfg:        cfg,
		request:    lowerAll(cfg.Markers.Request),
		completion: lowerAll(cfg.Markers.Completion),
	}
}

// ObserveContent folds one changed snapshot into the turn record. busy
// reports whether a busy signal is active; user-intent text seen while
// generation is running belongs to the in-progress turn, not a new one.
func (m *TurnManager) ObserveContent(text string, ts time.Time, busy bool) {
	lower := strings.ToLower(text)

	if containsAny(lower, m.request) && !busy {
		// New user intent: close out the active turn and open a fresh one.
		if m.current != nil {
			m.archive(*m.current)
		}
		m.current = &Turn{
			StartTime:   ts,
			UserRequest: text,
			Status:      TurnActive,
		}
		return
	}

	if m.current != nil && m.current.Status == TurnActive {
		m.current.Responses = append(m.current.Responses, TurnResponse{
			Timestamp: ts,
			Content:   text,
		})
		if containsAny(lower, m.completion) {
			m.current.Status = TurnCompleted
			m.current.EndTime = ts
		}
	}
}

func (m *TurnManager) archive(t Turn) {
	m.turns = append(m.turns, t)
	if len(m.turns) > m.cfg.TurnCap {
		m.turns = m.turns[len(m.turns)-m.cfg.TurnKeep:]
	}
}

// Current returns the active turn, or nil.
func (m *TurnManager) Current() *Turn { return m.current }

// Completed returns the retained past turns.
func (m *TurnManager) Completed() []Turn { return m.turns }

// LatestContext renders the most recently completed turn plus the
// active one for use as generation context. Never fails: with no
// history it returns a placeholder.
func (m *TurnManager) LatestContext() string {
	var parts []string

	var lastCompleted *Turn
	if m.current != nil && m.current.Status == TurnCompleted {
		lastCompleted = m.current
	} else if len(m.turns) > 0 {
		lastCompleted = &m.turns[len(m.turns)-1]
	}

	if lastCompleted != nil {
		parts = append(parts,
			"Previous turn:",
			"User request: "+truncate(lastCompleted.UserRequest, 200))
		if n := len(lastCompleted.Responses); n > 0 {
			parts = append(parts,
				"Reply: "+truncate(lastCompleted.Responses[n-1].Content, 200))
		}
	}

	if m.current != nil && m.current.Status == TurnActive {
		parts = append(parts,
			"Current turn:",
			"User request: "+truncate(m.current.UserRequest, 200))
		if n := len(m.current.Responses); n > 0 {
			parts = append(parts, fmt.Sprintf(
				"%d replies so far, latest: %s",
				n, truncate(m.current.Responses[n-1].Content, 200)))
		}
	}

	if len(parts) == 0 {
		return "No conversation history yet."
	}
	return strings.Join(parts, "\n")
}

// truncate cuts s to at most n bytes, discarding any partial rune at
// the boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "") + "..."
}
