package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/hupe1980/agentkernel/core"
)

// Provider returns the Memory scope for one agent.
type Provider func(agentID string) core.Memory

// InMemoryProvider returns a Provider creating a fresh InMemoryStore per agent.
func InMemoryProvider() Provider {
	return func(string) core.Memory { return NewInMemoryStore() }
}

// InMemoryStore is a process-local Memory for a single agent. It is pre-seeded
// with the two reserved keys: an empty scratchpad mapping and an empty history
// sequence.
//
// Concurrency: protected by RWMutex. Values are stored as given; callers must
// not mutate a value after handing it to Set.
type InMemoryStore struct {
	mu    sync.RWMutex
	store map[string]any
}

var (
	_ core.Memory          = (*InMemoryStore)(nil)
	_ core.SequenceTrimmer = (*InMemoryStore)(nil)
)

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	m := &InMemoryStore{}
	m.Clear()
	return m
}

// Get returns the value for key or def when absent.
func (m *InMemoryStore) Get(_ context.Context, key string, def any) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.store[key]
	if !ok {
		return def, nil
	}

	if seq, ok := v.([]any); ok {
		return slices.Clone(seq), nil
	}

	return v, nil
}

// Set overwrites the value for key.
func (m *InMemoryStore) Set(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = value
	return nil
}

// AppendToSequence appends value to the sequence under key, replacing any
// non-sequence value with a fresh sequence.
func (m *InMemoryStore) AppendToSequence(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq, ok := m.store[key].([]any)
	if !ok {
		seq = []any{}
	}

	m.store[key] = append(seq, value)

	return nil
}

// TrimSequence keeps only the last keepLast entries of the sequence under key.
func (m *InMemoryStore) TrimSequence(_ context.Context, key string, keepLast int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq, ok := m.store[key].([]any)
	if !ok || len(seq) <= keepLast {
		return nil
	}

	if keepLast <= 0 {
		m.store[key] = []any{}
		return nil
	}

	m.store[key] = slices.Clone(seq[len(seq)-keepLast:])

	return nil
}

// Clear resets the store to the reserved keys only.
func (m *InMemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = map[string]any{
		core.KeyScratchpad: map[string]any{},
		core.KeyHistory:    []any{},
	}
}
