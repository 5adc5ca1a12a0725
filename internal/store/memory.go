package store

import (
	"context"
	"sync"
)

const defaultMemoryCapacity = 500

// MemoryRecorder keeps the last results in a ring. It is the default when no
// database is configured.
type MemoryRecorder struct {
	mu      sync.Mutex
	cap     int
	nextID  uint
	results []MatchResult
}

func NewMemoryRecorder(capacity int) *MemoryRecorder {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryRecorder{cap: capacity}
}

func (m *MemoryRecorder) RecordMatch(ctx context.Context, res MatchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	res.ID = m.nextID
	m.results = append(m.results, res)
	if len(m.results) > m.cap {
		m.results = m.results[len(m.results)-m.cap:]
	}
	return nil
}

func (m *MemoryRecorder) Recent(ctx context.Context, limit int) ([]MatchResult, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n := min(limit, len(m.results))
	out := make([]MatchResult, 0, n)
	for i := len(m.results) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.results[i])
	}
	return out, nil
}
