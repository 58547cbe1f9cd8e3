// Package agentkernel wires the agent loop, the cooperative scheduler, the
// tool registry and a memory backend into one Kernel. Most applications:
//  1. Create a Kernel via New() with an oracle (optionally overriding the
//     in-memory backend and the built-in tools)
//  2. Spawn one or more root agents with a seed input
//  3. Drive them with Run (all agents) or RunSync (a single seed)
//
// Child agents requested through spawn_new_core are built by the Kernel
// with the same oracle, tools and memory backend as their parent.
package agentkernel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentkernel/agent"
	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/logging"
	"github.com/hupe1980/agentkernel/memory"
	"github.com/hupe1980/agentkernel/scheduler"
	"github.com/hupe1980/agentkernel/tool"
)

// ErrUnknownAgent is returned by Agent for ids the Kernel never created.
var ErrUnknownAgent = errors.New("unknown agent")

// Options configures a Kernel.
type Options struct {
	// Agent bounds every agent created by the Kernel.
	Agent core.AgentConfig

	// Scheduler is passed to scheduler.New. OnOutcome is chained, not
	// replaced.
	Scheduler scheduler.Options

	// Spawn bounds hierarchical spawning.
	Spawn scheduler.SpawnOptions

	// Memory hands out one scope per agent. Defaults to in-memory stores.
	Memory memory.Provider

	// Tools are registered in order before the spawn tool. Defaults to
	// tool.Echo and tool.ReverseString.
	Tools []tool.Descriptor

	// DisableSpawn leaves spawn_new_core out of the registry.
	DisableSpawn bool

	// ValidateToolArgs checks call arguments against each tool's ArgsSchema
	// before dispatch. Invalid arguments fail with a validation_error.
	ValidateToolArgs bool

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Kernel owns the scheduler and registry shared by a tree of agents.
type Kernel struct {
	opts   Options
	oracle core.Oracle
	sched  *scheduler.Scheduler
	tools  *tool.Registry

	mu       sync.Mutex
	agents   map[string]*agent.Agent
	outcomes []scheduler.Outcome
}

// New creates a Kernel consulting oracle for every agent it runs.
func New(oracle core.Oracle, optFns ...func(o *Options)) (*Kernel, error) {
	opts := Options{
		Agent:     core.DefaultAgentConfig,
		Scheduler: scheduler.DefaultOptions(),
		Spawn:     scheduler.SpawnOptions{MaxDepth: 3, MaxChildren: 3},
		Memory:    memory.InMemoryProvider(),
		Tools:     []tool.Descriptor{tool.Echo(), tool.ReverseString()},
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if oracle == nil {
		return nil, errors.New("oracle is required")
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.Memory == nil {
		opts.Memory = memory.InMemoryProvider()
	}

	k := &Kernel{
		opts:   opts,
		oracle: oracle,
		agents: make(map[string]*agent.Agent),
	}

	schedOpts := opts.Scheduler
	onOutcome := schedOpts.OnOutcome
	schedOpts.Logger = component(opts.Logger, "scheduler")
	schedOpts.OnOutcome = func(out scheduler.Outcome) {
		k.mu.Lock()
		k.outcomes = append(k.outcomes, out)
		k.mu.Unlock()

		if onOutcome != nil {
			onOutcome(out)
		}
	}

	k.sched = scheduler.New(func(o *scheduler.Options) { *o = schedOpts })

	k.tools = tool.NewRegistry(func(o *tool.Options) {
		o.Logger = component(opts.Logger, "tool")
		o.ValidateArgs = opts.ValidateToolArgs
	})

	for _, d := range opts.Tools {
		if err := k.tools.Register(d); err != nil {
			return nil, err
		}
	}

	if !opts.DisableSpawn {
		spawn := scheduler.SpawnTool(k.sched, k.spawnChild, func(o *scheduler.SpawnOptions) {
			*o = opts.Spawn
			onSpawned := o.OnSpawned
			o.OnSpawned = func(child scheduler.Agent, req scheduler.SpawnRequest) {
				if a, ok := child.(*agent.Agent); ok {
					k.track(a)
				}
				if onSpawned != nil {
					onSpawned(child, req)
				}
			}
		})
		if err := k.tools.Register(spawn); err != nil {
			return nil, err
		}
	}

	return k, nil
}

// Spawn registers a root agent seeded with input and queues its first cycle.
func (k *Kernel) Spawn(input string) (string, error) {
	a := k.newAgent(agent.NewID(), "", input)

	if err := k.sched.RegisterAgent(a, true); err != nil {
		return "", fmt.Errorf("spawn agent: %w", err)
	}

	k.track(a)

	return a.ID(), nil
}

// Run drives every queued agent until the scheduler is idle and returns the
// outcomes collected since the previous Run.
func (k *Kernel) Run(ctx context.Context) ([]scheduler.Outcome, error) {
	err := k.sched.RunLoop(ctx)

	k.mu.Lock()
	outcomes := k.outcomes
	k.outcomes = nil
	k.mu.Unlock()

	return outcomes, err
}

// RunSync spawns a root agent for input, runs the scheduler until idle and
// returns that agent's outcome. Outcomes of its children are discarded.
func (k *Kernel) RunSync(ctx context.Context, input string) (scheduler.Outcome, error) {
	id, err := k.Spawn(input)
	if err != nil {
		return scheduler.Outcome{}, err
	}

	outcomes, err := k.Run(ctx)
	if err != nil {
		return scheduler.Outcome{}, err
	}

	for _, out := range outcomes {
		if out.AgentID == id {
			return out, nil
		}
	}

	return scheduler.Outcome{}, fmt.Errorf("agent %s produced no outcome", id)
}

// Agent returns an agent the Kernel registered with its scheduler, live or
// finished, so that callers can inspect its Scratch and History.
func (k *Kernel) Agent(id string) (*agent.Agent, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	a, ok := k.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}

	return a, nil
}

// Tools exposes the shared registry, e.g. for its manifest or stats.
func (k *Kernel) Tools() *tool.Registry { return k.tools }

// Scheduler exposes the shared scheduler.
func (k *Kernel) Scheduler() *scheduler.Scheduler { return k.sched }

func (k *Kernel) spawnChild(_ context.Context, req scheduler.SpawnRequest) (scheduler.Agent, error) {
	return k.newAgent(agent.NewID(), req.ParentID, req.Seed()), nil
}

func (k *Kernel) newAgent(id, parentID, seed string) *agent.Agent {
	return agent.New(k.oracle, k.opts.Memory(id), k.tools, func(o *agent.Options) {
		o.ID = id
		o.ParentID = parentID
		o.Seed = seed
		o.Config = k.opts.Agent
		o.Logger = withAgent(k.opts.Logger, id)
	})
}

func (k *Kernel) track(a *agent.Agent) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.agents[a.ID()] = a
}

func component(l logging.Logger, name string) logging.Logger {
	if sl, ok := l.(*logging.StructuredLogger); ok {
		return sl.WithComponent(name)
	}
	return l
}

func withAgent(l logging.Logger, id string) logging.Logger {
	if sl, ok := l.(*logging.StructuredLogger); ok {
		return sl.WithComponent("agent").WithAgent(id)
	}
	return l
}
