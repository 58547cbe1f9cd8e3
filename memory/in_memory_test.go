package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkernel/core"
)

func TestInMemoryStore_GetSet(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryStore()

	v, err := m.Get(ctx, "missing", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)

	require.NoError(t, m.Set(ctx, "k", map[string]any{"step": 1}))
	v, _ = m.Get(ctx, "k", nil)
	assert.Equal(t, map[string]any{"step": 1}, v)

	// reserved keys are pre-seeded
	sp, _ := m.Get(ctx, core.KeyScratchpad, nil)
	assert.Equal(t, map[string]any{}, sp)
	h, _ := m.Get(ctx, core.KeyHistory, nil)
	assert.Equal(t, []any{}, h)
}

func TestInMemoryStore_AppendToSequence(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryStore()

	require.NoError(t, m.AppendToSequence(ctx, "log", "a"))
	require.NoError(t, m.AppendToSequence(ctx, "log", "b"))
	v, _ := m.Get(ctx, "log", nil)
	assert.Equal(t, []any{"a", "b"}, v)

	// returned sequence is a copy
	v.([]any)[0] = "changed"
	v, _ = m.Get(ctx, "log", nil)
	assert.Equal(t, "a", v.([]any)[0])

	// a non-sequence value is replaced by a fresh sequence
	require.NoError(t, m.Set(ctx, "scalar", 42))
	require.NoError(t, m.AppendToSequence(ctx, "scalar", "x"))
	v, _ = m.Get(ctx, "scalar", nil)
	assert.Equal(t, []any{"x"}, v)
}

func TestInMemoryStore_TrimSequence(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryStore()
	for i := 0; i < 5; i++ {
		require.NoError(t, m.AppendToSequence(ctx, "h", i))
	}

	require.NoError(t, m.TrimSequence(ctx, "h", 3))
	v, _ := m.Get(ctx, "h", nil)
	assert.Equal(t, []any{2, 3, 4}, v)

	require.NoError(t, m.TrimSequence(ctx, "h", 10))
	v, _ = m.Get(ctx, "h", nil)
	assert.Len(t, v, 3)

	require.NoError(t, m.TrimSequence(ctx, "missing", 1))
}

func TestInMemoryStore_Clear(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryStore()
	require.NoError(t, m.Set(ctx, "k", "v"))
	m.Clear()

	v, _ := m.Get(ctx, "k", nil)
	assert.Nil(t, v)
}

func TestInMemoryProvider_IsolatesAgents(t *testing.T) {
	ctx := context.Background()
	p := InMemoryProvider()
	a, b := p("a"), p("b")

	require.NoError(t, a.Set(ctx, "k", "a"))
	v, _ := b.Get(ctx, "k", nil)
	assert.Nil(t, v)
}

func TestInMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, m.AppendToSequence(ctx, core.KeyHistory, i))
			_, err := m.Get(ctx, core.KeyHistory, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	v, _ := m.Get(ctx, core.KeyHistory, nil)
	assert.Len(t, v, 25)
}

func TestInMemoryStore_EmptySequenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryStore()

	require.NoError(t, m.Set(ctx, "seq", []any{}))

	v, err := m.Get(ctx, "seq", "fallback")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, []any{}, v)

	require.NoError(t, m.AppendToSequence(ctx, "seq", 1))
	v, _ = m.Get(ctx, "seq", nil)
	seq := v.([]any)
	seq[0] = 99

	v, _ = m.Get(ctx, "seq", nil)
	assert.Equal(t, []any{1}, v, "Get must return a copy")
}
