package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkernel/agent"
	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/internal/testutil"
	"github.com/hupe1980/agentkernel/memory"
	"github.com/hupe1980/agentkernel/tool"
)

type step struct {
	res     core.CycleResult
	err     error
	enqueue int
	sleep   time.Duration
}

// scriptedAgent replays one step per cycle; the last step repeats.
type scriptedAgent struct {
	id     string
	parent string
	steps  []step

	mu    sync.Mutex
	sched core.Enqueuer
	n     int

	running atomic.Int32
	overlap atomic.Bool
}

func newScripted(id string, steps ...step) *scriptedAgent {
	return &scriptedAgent{id: id, steps: steps}
}

// continues returns k self-enqueueing continue steps followed by final.
func continues(k int, final step) []step {
	out := make([]step, 0, k+1)
	for i := 0; i < k; i++ {
		out = append(out, step{res: core.Continue(), enqueue: 1})
	}
	return append(out, final)
}

func (a *scriptedAgent) ID() string       { return a.id }
func (a *scriptedAgent) ParentID() string { return a.parent }

func (a *scriptedAgent) Attach(s core.Enqueuer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sched = s
}

func (a *scriptedAgent) RunCycle(context.Context) (core.CycleResult, error) {
	if a.running.Add(1) > 1 {
		a.overlap.Store(true)
	}
	defer a.running.Add(-1)

	a.mu.Lock()
	i := a.n
	if i >= len(a.steps) {
		i = len(a.steps) - 1
	}
	a.n++
	st := a.steps[i]
	sched := a.sched
	a.mu.Unlock()

	time.Sleep(st.sleep)

	for j := 0; j < st.enqueue; j++ {
		sched.Enqueue(a.id)
	}

	return st.res, st.err
}

func (a *scriptedAgent) cycles() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.n
}

func TestRegisterAgent_Capacity(t *testing.T) {
	s := New(func(o *Options) { o.MaxLiveAgents = 2 })

	require.NoError(t, s.RegisterAgent(newScripted("a"), true))
	require.NoError(t, s.RegisterAgent(newScripted("b"), false))

	err := s.RegisterAgent(newScripted("c"), true)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	st := s.Stats()
	assert.Equal(t, 2, st.LiveAgents)
	assert.Equal(t, 1, st.QueueDepth)
	assert.False(t, s.Live("c"))
}

func TestRegisterAgent_Duplicate(t *testing.T) {
	s := New()
	require.NoError(t, s.RegisterAgent(newScripted("a"), false))
	assert.ErrorIs(t, s.RegisterAgent(newScripted("a"), false), ErrDuplicateAgent)
	assert.Equal(t, 1, s.Stats().LiveAgents)
}

func TestEnqueue_DropsUnknownAndDedupes(t *testing.T) {
	s := New()
	require.NoError(t, s.RegisterAgent(newScripted("a"), true))

	s.Enqueue("a")
	s.Enqueue("ghost")

	st := s.Stats()
	assert.Equal(t, 1, st.QueueDepth)
	assert.Equal(t, int64(1), st.DroppedEnqueues)
}

func TestRunLoop_EndToEndEcho(t *testing.T) {
	tools := tool.NewRegistry()
	tools.MustRegister(tool.Echo())

	oracle := testutil.NewOracleBuilder().
		Intent(core.Intent{Goal: "echo"}).
		Plan(core.Plan{Action: core.CallTool{Tool: "echo", Args: map[string]any{"text": "hello"}}}).
		Plan(core.Plan{Action: core.Finish{Spec: map[string]any{"ok": true}}}).
		Build()

	var outcomes []Outcome
	s := New(func(o *Options) {
		o.OnOutcome = func(out Outcome) { outcomes = append(outcomes, out) }
	})

	a := agent.New(oracle, memory.NewInMemoryStore(), tools, func(o *agent.Options) { o.Seed = "dummy request" })
	require.NoError(t, s.RegisterAgent(a, true))

	require.NoError(t, s.RunLoop(context.Background()))

	st := s.Stats()
	assert.Equal(t, int64(2), st.CyclesExecuted)
	assert.Equal(t, int64(1), st.Completed)
	assert.Equal(t, int64(0), st.Failed)
	assert.Equal(t, 0, st.LiveAgents)
	assert.Equal(t, 0, st.QueueDepth)
	assert.False(t, s.Live(a.ID()))

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Completed())
	assert.Equal(t, map[string]any{"ok": true}, outcomes[0].Result.Spec)

	stats, _ := tools.Stats("echo")
	assert.Equal(t, int64(1), stats.Successes)

	// a removed agent re-queueing itself is dropped
	s.Enqueue(a.ID())
	assert.Equal(t, int64(1), s.Stats().DroppedEnqueues)
}

func TestRunLoop_CountersMatchTerminalResults(t *testing.T) {
	boom := errors.New("boom")

	agents := []*scriptedAgent{
		newScripted("finisher", continues(2, step{res: core.Finished("done")})...),
		newScripted("timeout", continues(1, step{res: core.Timeout()})...),
		newScripted("exhausted", step{res: core.CyclesExceeded()}),
		newScripted("crasher", continues(1, step{err: boom})...),
		newScripted("idle", step{res: core.Continue()}),
	}

	var (
		mu       sync.Mutex
		outcomes = map[string]Outcome{}
	)

	s := New(func(o *Options) {
		o.OnOutcome = func(out Outcome) {
			mu.Lock()
			defer mu.Unlock()
			outcomes[out.AgentID] = out
		}
	})

	for _, a := range agents {
		require.NoError(t, s.RegisterAgent(a, true))
	}

	require.NoError(t, s.RunLoop(context.Background()))

	st := s.Stats()
	assert.Equal(t, int64(1), st.Completed)
	assert.Equal(t, int64(3), st.Failed)
	assert.Equal(t, int64(3+2+1+2+1), st.CyclesExecuted)
	assert.Equal(t, int64(len(outcomes)), st.Completed+st.Failed)

	// the agent that continued without re-queueing stays live
	assert.Equal(t, 1, st.LiveAgents)
	assert.True(t, s.Live("idle"))

	for id := range outcomes {
		assert.False(t, s.Live(id), id)
	}

	assert.ErrorIs(t, outcomes["crasher"].Err, boom)
	assert.Equal(t, core.StatusTimeout, outcomes["timeout"].Result.Status)
	assert.False(t, outcomes["timeout"].Completed())
}

func TestRunLoop_WorkersKeepOneCycleInFlightPerAgent(t *testing.T) {
	s := New(func(o *Options) { o.Workers = 4 })

	const n = 8

	agents := make([]*scriptedAgent, 0, n)
	for i := 0; i < n; i++ {
		steps := make([]step, 0, 6)
		for j := 0; j < 5; j++ {
			// enqueue twice to provoke a second pop while the cycle runs
			steps = append(steps, step{res: core.Continue(), enqueue: 2, sleep: time.Millisecond})
		}
		steps = append(steps, step{res: core.Finished(i)})

		a := newScripted(fmt.Sprintf("a-%d", i), steps...)
		agents = append(agents, a)
		require.NoError(t, s.RegisterAgent(a, true))
	}

	require.NoError(t, s.RunLoop(context.Background()))

	for _, a := range agents {
		assert.False(t, a.overlap.Load(), a.id)
		assert.Equal(t, 6, a.cycles(), a.id)
	}

	st := s.Stats()
	assert.Equal(t, int64(n), st.Completed)
	assert.Equal(t, int64(n*6), st.CyclesExecuted)
	assert.Equal(t, 0, st.InFlight)
}

func TestRunLoop_ErrorPolicy(t *testing.T) {
	flaky := func() *scriptedAgent {
		retryable := tool.NewError("timeout", "upstream slow", true)
		return newScripted("flaky", step{err: retryable}, step{err: retryable}, step{res: core.Finished("ok")})
	}

	t.Run("remove on error", func(t *testing.T) {
		s := New()
		require.NoError(t, s.RegisterAgent(flaky(), true))
		require.NoError(t, s.RunLoop(context.Background()))

		st := s.Stats()
		assert.Equal(t, int64(1), st.Failed)
		assert.Equal(t, int64(1), st.CyclesExecuted)
	})

	t.Run("requeue retryable", func(t *testing.T) {
		s := New(func(o *Options) { o.ErrorPolicy = RequeueRetryable })
		require.NoError(t, s.RegisterAgent(flaky(), true))
		require.NoError(t, s.RunLoop(context.Background()))

		st := s.Stats()
		assert.Equal(t, int64(1), st.Completed)
		assert.Equal(t, int64(3), st.CyclesExecuted)
	})

	t.Run("retry budget exhausted", func(t *testing.T) {
		s := New(func(o *Options) {
			o.ErrorPolicy = RequeueRetryable
			o.MaxErrorRetries = 1
		})
		require.NoError(t, s.RegisterAgent(flaky(), true))
		require.NoError(t, s.RunLoop(context.Background()))

		st := s.Stats()
		assert.Equal(t, int64(1), st.Failed)
		assert.Equal(t, int64(2), st.CyclesExecuted)
	})

	t.Run("non retryable errors are terminal", func(t *testing.T) {
		s := New(func(o *Options) { o.ErrorPolicy = RequeueRetryable })
		require.NoError(t, s.RegisterAgent(newScripted("x", step{err: errors.New("fatal")}), true))
		require.NoError(t, s.RunLoop(context.Background()))
		assert.Equal(t, int64(1), s.Stats().Failed)
	})
}

func TestRunLoop_ContextCancelled(t *testing.T) {
	s := New()
	require.NoError(t, s.RegisterAgent(newScripted("a", step{res: core.Continue(), enqueue: 1}), true))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.RunLoop(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, s.Live("a"))
}

func TestParseErrorPolicy(t *testing.T) {
	p, err := ParseErrorPolicy("requeue_retryable")
	require.NoError(t, err)
	assert.Equal(t, RequeueRetryable, p)
	assert.Equal(t, "requeue_retryable", p.String())

	p, err = ParseErrorPolicy("")
	require.NoError(t, err)
	assert.Equal(t, RemoveOnError, p)

	_, err = ParseErrorPolicy("retry_forever")
	assert.Error(t, err)
}
