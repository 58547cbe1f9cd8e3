package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkernel/core"
)

func newTestStore(t *testing.T, optFns ...func(o *Options)) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, "C-test", optFns...), mr
}

func TestStore_GetSetScalar(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	v, err := s.Get(ctx, core.KeyScratchpad, "default")
	require.NoError(t, err)
	assert.Equal(t, "default", v)

	require.NoError(t, s.Set(ctx, core.KeyScratchpad, map[string]any{"intent": map[string]any{"goal": "echo"}}))
	assert.True(t, mr.Exists("agentkernel:C-test:scratchpad"))

	v, err = s.Get(ctx, core.KeyScratchpad, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"intent": map[string]any{"goal": "echo"}}, v)
}

func TestStore_SequenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	rec := core.HistoryRecord{Phase: core.PhaseIntent, Payload: map[string]any{"goal": "echo"}}
	require.NoError(t, s.AppendToSequence(ctx, core.KeyHistory, rec))
	require.NoError(t, s.AppendToSequence(ctx, core.KeyHistory, core.HistoryRecord{Phase: core.PhasePlanning}))

	v, err := s.Get(ctx, core.KeyHistory, nil)
	require.NoError(t, err)

	history, err := core.HistoryFromValue(v)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, core.PhaseIntent, history[0].Phase)
	assert.Equal(t, core.PhasePlanning, history[1].Phase)
}

func TestStore_SetSliceStoresList(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	require.NoError(t, s.Set(ctx, "seq", []any{"a", "b", "c"}))
	items, err := mr.List("agentkernel:C-test:seq")
	require.NoError(t, err)
	assert.Len(t, items, 3)

	require.NoError(t, s.AppendToSequence(ctx, "seq", "d"))
	v, _ := s.Get(ctx, "seq", nil)
	assert.Equal(t, []any{"a", "b", "c", "d"}, v)

	require.NoError(t, s.Set(ctx, "seq", []any{}))
	v, err = s.Get(ctx, "seq", "empty")
	require.NoError(t, err)
	assert.Equal(t, []any{}, v)

	require.NoError(t, s.AppendToSequence(ctx, "seq", "e"))
	v, _ = s.Get(ctx, "seq", nil)
	assert.Equal(t, []any{"e"}, v)
}

func TestStore_AppendReplacesNonSequence(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.Set(ctx, "k", 42))
	require.NoError(t, s.AppendToSequence(ctx, "k", "x"))

	v, err := s.Get(ctx, "k", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"x"}, v)
}

func TestStore_TrimSequence(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendToSequence(ctx, "h", i))
	}
	require.NoError(t, s.TrimSequence(ctx, "h", 2))

	v, _ := s.Get(ctx, "h", nil)
	assert.Equal(t, []any{float64(3), float64(4)}, v)

	require.NoError(t, s.TrimSequence(ctx, "h", 0))
	v, _ = s.Get(ctx, "h", "absent")
	assert.Equal(t, []any{}, v)

	require.NoError(t, s.Set(ctx, "scalar", "v"))
	require.NoError(t, s.TrimSequence(ctx, "scalar", 1))
	v, _ = s.Get(ctx, "scalar", nil)
	assert.Equal(t, "v", v)
}

func TestStore_TTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, func(o *Options) { o.TTL = time.Minute; o.Prefix = "test" })

	require.NoError(t, s.Set(ctx, "k", "v"))
	require.NoError(t, s.AppendToSequence(ctx, "h", "x"))
	assert.Equal(t, time.Minute, mr.TTL("test:C-test:k"))
	assert.Equal(t, time.Minute, mr.TTL("test:C-test:h"))

	mr.FastForward(2 * time.Minute)
	v, _ := s.Get(ctx, "k", nil)
	assert.Nil(t, v)
}

func TestProvider_ScopesByAgent(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	p := Provider(client)
	a, b := p("a"), p("b")

	require.NoError(t, a.Set(ctx, "k", "a"))
	v, err := b.Get(ctx, "k", nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Ping(context.Background()).Err())

	_, err = NewClient("://bad")
	assert.Error(t, err)
	assert.Panics(t, func() { MustClient("://bad") })
}
