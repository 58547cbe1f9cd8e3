package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/logging"
)

// Options configures an Agent.
type Options struct {
	// ID uniquely identifies the agent. Generated as "C-xxxxxxxx" when empty.
	ID string
	// ParentID links a spawned agent to the agent that spawned it.
	ParentID string
	// Seed is the initiating input. The first cycle fails without one.
	Seed string
	// Config bounds the agent's life. Zero fields fall back to
	// core.DefaultAgentConfig.
	Config core.AgentConfig
	// Scheduler, when set, is asked to enqueue the agent after every
	// non-terminal cycle.
	Scheduler core.Enqueuer
	// Logger defaults to NoOp if nil.
	Logger logging.Logger
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Agent runs the five-phase loop (intent → plan → act → observe → reflect)
// one cycle at a time. Scratch and History live in the agent's Memory so that
// a durable backend persists them between cycles.
//
// An Agent is not safe for concurrent RunCycle calls; schedulers guarantee at
// most one cycle in flight per agent.
type Agent struct {
	id       string
	parentID string
	seed     string
	cfg      core.AgentConfig

	mem    core.Memory
	oracle core.Oracle
	tools  core.ToolInvoker
	sched  core.Enqueuer
	logger logging.Logger
	now    func() time.Time

	startedAt time.Time
	cycles    int
}

// NewID returns a fresh agent identifier.
func NewID() string {
	return "C-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// New creates an Agent bound to an oracle, its own memory scope and a tool
// invoker. The TTL clock starts now.
func New(oracle core.Oracle, mem core.Memory, tools core.ToolInvoker, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Config: core.DefaultAgentConfig,
		Logger: logging.NoOpLogger{},
		Clock:  time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.ID == "" {
		opts.ID = NewID()
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Agent{
		id:        opts.ID,
		parentID:  opts.ParentID,
		seed:      opts.Seed,
		cfg:       withDefaults(opts.Config),
		mem:       mem,
		oracle:    oracle,
		tools:     tools,
		sched:     opts.Scheduler,
		logger:    opts.Logger,
		now:       opts.Clock,
		startedAt: opts.Clock(),
	}
}

func withDefaults(cfg core.AgentConfig) core.AgentConfig {
	d := core.DefaultAgentConfig
	if cfg.MaxCycles <= 0 {
		cfg.MaxCycles = d.MaxCycles
	}
	if cfg.TTL <= 0 {
		cfg.TTL = d.TTL
	}
	if cfg.ClarityThreshold <= 0 {
		cfg.ClarityThreshold = d.ClarityThreshold
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = d.HistoryLimit
	}
	return cfg
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.id }

// ParentID returns the spawning agent's id, or "" for root agents.
func (a *Agent) ParentID() string { return a.parentID }

// Config returns the effective configuration.
func (a *Agent) Config() core.AgentConfig { return a.cfg }

// Cycles returns the number of cycles started so far.
func (a *Agent) Cycles() int { return a.cycles }

// StartedAt returns the time the TTL clock started.
func (a *Agent) StartedAt() time.Time { return a.startedAt }

// Attach sets the scheduler asked to enqueue the agent after each cycle.
func (a *Agent) Attach(s core.Enqueuer) { a.sched = s }

// RunCycle executes one traversal of the loop.
//
// Guards run first and touch nothing: an exceeded TTL returns Timeout, an
// exhausted budget returns CyclesExceeded. A plan with a Finish action ends
// the agent with Finished before observation and reflection run. Oracle and
// tool failures are returned as errors without retry; the caller decides what
// happens to the agent.
func (a *Agent) RunCycle(ctx context.Context) (core.CycleResult, error) {
	if a.cycles == 0 && a.seed == "" {
		return core.CycleResult{}, core.ErrMissingSeed
	}

	if a.now().Sub(a.startedAt) > a.cfg.TTL {
		return core.Timeout(), nil
	}

	if a.cycles >= a.cfg.MaxCycles {
		return core.CyclesExceeded(), nil
	}

	a.cycles++
	start := time.Now()

	res, err := a.cycle(ctx)

	logging.LogCycle(a.logger, a.id, a.cycles, res.String(), time.Since(start), err)

	return res, err
}

func (a *Agent) cycle(ctx context.Context) (core.CycleResult, error) {
	s, err := a.intentPhase(ctx)
	if err != nil {
		return core.CycleResult{}, err
	}

	if err := a.planningPhase(ctx, &s); err != nil {
		return core.CycleResult{}, err
	}

	actResult, err := a.actionPhase(ctx, s.Plan)
	if err != nil {
		return core.CycleResult{}, err
	}

	if s.Plan.IsFinish() {
		return core.Finished(actResult), nil
	}

	if err := a.observationPhase(ctx, &s, actResult); err != nil {
		return core.CycleResult{}, err
	}

	if err := a.reflectionPhase(ctx, &s); err != nil {
		return core.CycleResult{}, err
	}

	if a.sched != nil {
		a.sched.Enqueue(a.id)
	}

	return core.Continue(), nil
}

func (a *Agent) intentPhase(ctx context.Context) (core.Scratch, error) {
	s, err := a.Scratch(ctx)
	if err != nil {
		return s, err
	}

	if s.Intent != nil {
		return s, nil
	}

	history, err := a.History(ctx)
	if err != nil {
		return s, err
	}

	res, err := a.oracle.DeriveIntent(ctx, a.seed, history)
	if err := checkOracle("derive_intent", res.Success, res.Error, err); err != nil {
		return s, err
	}

	s.Intent = &res.Content
	if err := a.saveScratch(ctx, s); err != nil {
		return s, err
	}

	return s, a.pushHistory(ctx, core.PhaseIntent, *s.Intent)
}

func (a *Agent) planningPhase(ctx context.Context, s *core.Scratch) error {
	history, err := a.History(ctx)
	if err != nil {
		return err
	}

	res, err := a.oracle.PlanNextStep(ctx, *s.Intent, history, a.tools.Manifest())
	if err := checkOracle("plan_next_step", res.Success, res.Error, err); err != nil {
		return err
	}

	s.Plan = &res.Content
	if err := a.saveScratch(ctx, *s); err != nil {
		return err
	}

	return a.pushHistory(ctx, core.PhasePlanning, *s.Plan)
}

func (a *Agent) actionPhase(ctx context.Context, plan *core.Plan) (any, error) {
	switch act := plan.Action.(type) {
	case core.CallTool:
		return a.tools.Invoke(ctx, act.Tool, act.Args)
	case core.SpawnCore:
		args := make(map[string]any, len(act.Spec)+1)
		for k, v := range act.Spec {
			args[k] = v
		}
		args["parent_id"] = a.id
		return a.tools.Invoke(ctx, core.SpawnToolName, args)
	case core.AskParent:
		return nil, a.pushHistory(ctx, core.PhaseAction, map[string]any{"ask_parent": act.Prompt})
	case core.Finish:
		return act.Spec, nil
	case core.UnknownAction:
		return nil, &core.UnknownActionError{Action: act.Name}
	default:
		return nil, &core.UnknownActionError{Action: fmt.Sprintf("%T", plan.Action)}
	}
}

func (a *Agent) observationPhase(ctx context.Context, s *core.Scratch, result any) error {
	res, err := a.oracle.SummarizeObservation(ctx, result, *s.Intent)
	if err := checkOracle("summarize_observation", res.Success, res.Error, err); err != nil {
		return err
	}

	s.Observation = &res.Content
	if err := a.saveScratch(ctx, *s); err != nil {
		return err
	}

	return a.pushHistory(ctx, core.PhaseObservation, *s.Observation)
}

func (a *Agent) reflectionPhase(ctx context.Context, s *core.Scratch) error {
	history, err := a.History(ctx)
	if err != nil {
		return err
	}

	res, err := a.oracle.Reflect(ctx, *s, history)
	if err := checkOracle("reflect", res.Success, res.Error, err); err != nil {
		return err
	}

	s.Reflection = &res.Content
	if err := a.saveScratch(ctx, *s); err != nil {
		return err
	}

	return a.pushHistory(ctx, core.PhaseReflection, *s.Reflection)
}

func checkOracle(op string, success bool, msg string, err error) error {
	if err != nil {
		return fmt.Errorf("oracle %s: %w", op, err)
	}
	if !success {
		return &core.OracleError{Op: op, Message: msg}
	}
	return nil
}
