// Package memory holds the conversation history of one session.
package memory

import (
	"sync"

	"github.com/hyperjump/tanya/internal/models"
)

// Memory is an ordered, capped list of conversation turns. When the cap is exceeded the
// oldest turns are dropped first. It is safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	turns    []models.Turn
	maxTurns int
}

// New returns an empty memory that keeps at most maxTurns turns. maxTurns <= 0 keeps everything.
// With an odd cap the oldest exchange is evicted whole, so one fewer turn may be kept.
func New(maxTurns int) *Memory {
	return &Memory{maxTurns: maxTurns}
}

// Append adds turns in order.
func (m *Memory) Append(turns ...models.Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turns...)
	m.trim()
}

// AppendExchange records a user query and the assistant reply as one step, so readers
// never observe the question without its answer.
func (m *Memory) AppendExchange(query, answer string) {
	m.Append(
		models.Turn{Role: models.RoleUser, Content: query},
		models.Turn{Role: models.RoleAssistant, Content: answer},
	)
}

// trim drops the oldest turns until the cap holds. An assistant turn whose question was
// dropped goes with it, so history always starts with a user turn.
func (m *Memory) trim() {
	if m.maxTurns <= 0 || len(m.turns) <= m.maxTurns {
		return
	}
	drop := len(m.turns) - m.maxTurns
	for drop < len(m.turns) && m.turns[drop].Role == models.RoleAssistant {
		drop++
	}
	kept := make([]models.Turn, len(m.turns)-drop)
	copy(kept, m.turns[drop:])
	m.turns = kept
}

// History returns a copy of the turns, oldest first.
func (m *Memory) History() []models.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Len returns the number of stored turns.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

// Clear removes all turns.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
}
