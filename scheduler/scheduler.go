package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/logging"
	"github.com/hupe1980/agentkernel/tool"
)

var (
	// ErrCapacityExceeded is returned by RegisterAgent when the live-agent
	// ceiling is reached.
	ErrCapacityExceeded = errors.New("live agent capacity exceeded")
	// ErrDuplicateAgent is returned by RegisterAgent for an id that is
	// already live.
	ErrDuplicateAgent = errors.New("agent already registered")
)

// Agent is the part of agent.Agent the scheduler drives.
type Agent interface {
	ID() string
	ParentID() string
	RunCycle(ctx context.Context) (core.CycleResult, error)
	Attach(s core.Enqueuer)
}

// ErrorPolicy decides what happens to an agent whose cycle returned an error.
type ErrorPolicy int

const (
	// RemoveOnError treats every cycle error as a terminal failure.
	RemoveOnError ErrorPolicy = iota
	// RequeueRetryable requeues agents failing with a retryable tool error.
	RequeueRetryable
)

// String returns the policy name.
func (p ErrorPolicy) String() string {
	switch p {
	case RemoveOnError:
		return "remove"
	case RequeueRetryable:
		return "requeue_retryable"
	default:
		return "unknown"
	}
}

// ParseErrorPolicy maps a policy name to an ErrorPolicy.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch s {
	case "", "remove":
		return RemoveOnError, nil
	case "requeue_retryable":
		return RequeueRetryable, nil
	default:
		return RemoveOnError, fmt.Errorf("unknown error policy %q", s)
	}
}

// Outcome is reported once for every agent the scheduler removes.
type Outcome struct {
	AgentID  string
	ParentID string
	// Result is the terminal result. It is zero when Err is set.
	Result core.CycleResult
	Err    error
}

// Completed reports whether the agent finished successfully.
func (o Outcome) Completed() bool {
	return o.Err == nil && o.Result.Status == core.StatusFinished
}

// Stats is a point-in-time snapshot of the scheduler's diagnostics.
type Stats struct {
	LiveAgents      int   `json:"live_agents"`
	QueueDepth      int   `json:"queue_len"`
	InFlight        int   `json:"in_flight"`
	CyclesExecuted  int64 `json:"cycles_executed"`
	Completed       int64 `json:"completed"`
	Failed          int64 `json:"failed"`
	DroppedEnqueues int64 `json:"dropped_enqueues"`
}

// Options configures a Scheduler.
type Options struct {
	// MaxLiveAgents caps the live-agent registry. Defaults to 32.
	MaxLiveAgents int
	// Workers is the number of goroutines executing cycles. Defaults to 1.
	Workers int
	// ErrorPolicy defaults to RemoveOnError.
	ErrorPolicy ErrorPolicy
	// MaxErrorRetries bounds requeues per agent under RequeueRetryable.
	// Defaults to 3.
	MaxErrorRetries int
	// OnOutcome is called, outside any lock, for every removed agent.
	OnOutcome func(Outcome)
	// Logger defaults to NoOp if nil.
	Logger logging.Logger
}

// DefaultOptions returns the baseline configuration.
func DefaultOptions() Options {
	return Options{
		MaxLiveAgents:   32,
		Workers:         1,
		ErrorPolicy:     RemoveOnError,
		MaxErrorRetries: 3,
		Logger:          logging.NoOpLogger{},
	}
}

type entry struct {
	agent Agent

	queued   bool
	inFlight bool
	// rerun records an Enqueue received while the agent's cycle was running.
	rerun   bool
	retries int
}

// Scheduler executes agent cycles from a FIFO ready queue.
type Scheduler struct {
	mu     sync.Mutex
	cond   *sync.Cond
	agents map[string]*entry
	queue  []string

	inFlight  int
	cycles    int64
	completed int64
	failed    int64
	dropped   int64

	opts   Options
	logger logging.Logger
}

var _ core.Enqueuer = (*Scheduler)(nil)

// New creates a Scheduler.
func New(optFns ...func(o *Options)) *Scheduler {
	opts := DefaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	d := DefaultOptions()
	if opts.MaxLiveAgents <= 0 {
		opts.MaxLiveAgents = d.MaxLiveAgents
	}
	if opts.Workers <= 0 {
		opts.Workers = d.Workers
	}
	if opts.MaxErrorRetries < 0 {
		opts.MaxErrorRetries = 0
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	s := &Scheduler{
		agents: make(map[string]*entry),
		opts:   opts,
		logger: opts.Logger,
	}
	s.cond = sync.NewCond(&s.mu)

	return s
}

// RegisterAgent adds a to the live registry and attaches the scheduler as
// its enqueuer. With runImmediately the agent is also queued.
func (s *Scheduler) RegisterAgent(a Agent, runImmediately bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := a.ID()

	if _, exists := s.agents[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, id)
	}

	if len(s.agents) >= s.opts.MaxLiveAgents {
		return fmt.Errorf("%w: limit %d", ErrCapacityExceeded, s.opts.MaxLiveAgents)
	}

	e := &entry{agent: a}
	s.agents[id] = e
	a.Attach(s)

	if runImmediately {
		s.push(id, e)
	}

	s.logger.Debug("scheduler.agent.registered", "agent_id", id, "parent_id", a.ParentID(), "queued", runImmediately)

	return nil
}

// Enqueue requests another cycle for id. Ids that are not live are dropped
// and counted; an id that is already queued is not queued twice. An Enqueue
// issued while the agent's cycle is running takes effect once that cycle
// completes.
func (s *Scheduler) Enqueue(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.agents[id]
	if !ok {
		s.dropped++
		s.logger.Debug("scheduler.enqueue.dropped", "agent_id", id)
		return
	}

	if e.inFlight {
		e.rerun = true
		return
	}

	s.push(id, e)
}

// push must be called with mu held.
func (s *Scheduler) push(id string, e *entry) {
	if e.queued {
		return
	}
	e.queued = true
	s.queue = append(s.queue, id)
	s.cond.Signal()
}

// Live reports whether id is in the live registry.
func (s *Scheduler) Live(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.agents[id]
	return ok
}

// Stats returns a snapshot of the scheduler's diagnostics.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		LiveAgents:      len(s.agents),
		QueueDepth:      len(s.queue),
		InFlight:        s.inFlight,
		CyclesExecuted:  s.cycles,
		Completed:       s.completed,
		Failed:          s.failed,
		DroppedEnqueues: s.dropped,
	}
}

// RunLoop executes queued cycles until the ready queue is empty and no
// cycle is in flight. It returns ctx's error when ctx ends first; cycles
// already running are allowed to return.
func (s *Scheduler) RunLoop(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	stop := context.AfterFunc(gctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	for i := 0; i < s.opts.Workers; i++ {
		g.Go(func() error {
			return s.work(gctx)
		})
	}

	err := g.Wait()

	st := s.Stats()
	s.logger.Info("scheduler.loop.stopped",
		"cycles_executed", st.CyclesExecuted,
		"completed", st.Completed,
		"failed", st.Failed,
		"live_agents", st.LiveAgents,
	)

	return err
}

func (s *Scheduler) work(ctx context.Context) error {
	for {
		id, e, ok := s.next(ctx)
		if !ok {
			return ctx.Err()
		}

		s.run(ctx, id, e)
	}
}

// next blocks until an agent is ready, the queue is drained with nothing in
// flight, or ctx is done.
func (s *Scheduler) next(ctx context.Context) (string, *entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return "", nil, false
		}

		if len(s.queue) > 0 {
			id := s.queue[0]
			s.queue[0] = ""
			s.queue = s.queue[1:]

			e, ok := s.agents[id]
			if !ok {
				continue
			}

			e.queued = false
			e.inFlight = true
			s.inFlight++

			return id, e, true
		}

		if s.inFlight == 0 {
			s.cond.Broadcast()
			return "", nil, false
		}

		s.cond.Wait()
	}
}

func (s *Scheduler) run(ctx context.Context, id string, e *entry) {
	start := time.Now()
	res, err := e.agent.RunCycle(ctx)
	dur := time.Since(start)

	outcome, removed := s.settle(id, e, res, err)

	if err != nil {
		s.logger.Warn("scheduler.cycle.error", "agent_id", id, "duration", dur, "error", err.Error(), "removed", removed)
	} else {
		s.logger.Debug("scheduler.cycle.done", "agent_id", id, "duration", dur, "status", res.String())
	}

	if removed && s.opts.OnOutcome != nil {
		s.opts.OnOutcome(outcome)
	}
}

// settle applies the result of one cycle to the registry and counters.
func (s *Scheduler) settle(id string, e *entry, res core.CycleResult, err error) (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.cond.Broadcast()

	s.cycles++
	s.inFlight--
	e.inFlight = false

	outcome := Outcome{AgentID: id, ParentID: e.agent.ParentID(), Result: res, Err: err}

	switch {
	case err != nil:
		if s.opts.ErrorPolicy == RequeueRetryable && tool.IsRetryable(err) && e.retries < s.opts.MaxErrorRetries {
			e.retries++
			e.rerun = false
			s.push(id, e)
			return outcome, false
		}

		outcome.Result = core.CycleResult{}
		s.failed++
	case res.IsTerminal():
		if res.Status == core.StatusFinished {
			s.completed++
		} else {
			s.failed++
		}
	default:
		if e.rerun {
			e.rerun = false
			s.push(id, e)
		}
		return outcome, false
	}

	delete(s.agents, id)

	return outcome, true
}
