package scheduler

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/tool"
)

// SpawnRequest carries a child agent specification produced by a plan.
type SpawnRequest struct {
	ParentID string
	Depth    int
	// Spec is the plan's core_spec with parent_id removed.
	Spec map[string]any
}

// Seed returns the "seed" (or "input") string of Spec, if any.
func (r SpawnRequest) Seed() string {
	for _, k := range []string{"seed", "input"} {
		if s, ok := r.Spec[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Factory builds the child agent for a spawn request. The child's ParentID
// must be req.ParentID.
type Factory func(ctx context.Context, req SpawnRequest) (Agent, error)

// SpawnOptions bounds hierarchical spawning.
type SpawnOptions struct {
	// MaxDepth is the deepest allowed generation below a root agent.
	// Defaults to 3 when not positive.
	MaxDepth int
	// MaxChildren caps the number of children per parent. Defaults to 3.
	MaxChildren int
	// OnSpawned is called once a child has been registered with the
	// scheduler. Children whose registration failed are never reported.
	OnSpawned func(child Agent, req SpawnRequest)
}

// KindSpawnLimit tags spawn requests rejected by the depth or fan-out
// limits.
const KindSpawnLimit = "spawn_limit"

type spawner struct {
	sched   *Scheduler
	factory Factory
	opts    SpawnOptions

	mu       sync.Mutex
	depth    map[string]int
	children map[string]int
}

// SpawnTool returns the descriptor of the reserved spawn_new_core tool.
// Each call builds a child through factory and registers it with sched,
// queued to run immediately. The tool returns {"child_id", "depth"}.
func SpawnTool(sched *Scheduler, factory Factory, optFns ...func(o *SpawnOptions)) tool.Descriptor {
	opts := SpawnOptions{MaxDepth: 3, MaxChildren: 3}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 3
	}
	if opts.MaxChildren <= 0 {
		opts.MaxChildren = 3
	}

	sp := &spawner{
		sched:    sched,
		factory:  factory,
		opts:     opts,
		depth:    map[string]int{},
		children: map[string]int{},
	}

	return tool.Descriptor{
		Name:    core.SpawnToolName,
		Summary: "Spawn a child agent for a sub-task described by core_spec.",
		ArgsSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"seed":      map[string]any{"type": "string", "description": "Input for the child agent (or \"input\")"},
				"parent_id": map[string]any{"type": "string", "description": "Set by the runtime"},
			},
			"required": []string{"parent_id"},
		},
		ReturnsSchema: map[string]any{"child_id": "string", "depth": "integer"},
		SideEffects:   []string{"spawn"},
		Fn:            sp.spawn,
	}
}

func (sp *spawner) spawn(ctx context.Context, args map[string]any) (any, error) {
	parentID, _ := args["parent_id"].(string)
	if parentID == "" {
		return nil, tool.NewError(tool.KindValidation, "parent_id is required", false)
	}

	spec := maps.Clone(args)
	delete(spec, "parent_id")

	req := SpawnRequest{ParentID: parentID, Spec: spec}
	if req.Seed() == "" {
		return nil, tool.NewError(tool.KindValidation, "core_spec requires a non-empty seed or input", false)
	}

	depth, err := sp.reserve(parentID)
	if err != nil {
		return nil, err
	}

	req.Depth = depth

	child, err := sp.factory(ctx, req)
	if err != nil {
		sp.release(parentID)
		return nil, err
	}

	if err := sp.sched.RegisterAgent(child, true); err != nil {
		sp.release(parentID)
		if errors.Is(err, ErrCapacityExceeded) {
			return nil, tool.NewError("capacity_exceeded", err.Error(), true)
		}
		return nil, err
	}

	sp.mu.Lock()
	sp.depth[child.ID()] = depth
	sp.mu.Unlock()

	if sp.opts.OnSpawned != nil {
		sp.opts.OnSpawned(child, req)
	}

	sp.sched.logger.Info("scheduler.agent.spawned", "agent_id", child.ID(), "parent_id", parentID, "depth", depth)

	return map[string]any{"child_id": child.ID(), "depth": depth}, nil
}

func (sp *spawner) reserve(parentID string) (int, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	depth := sp.depth[parentID] + 1
	if depth > sp.opts.MaxDepth {
		return 0, tool.NewError(KindSpawnLimit, fmt.Sprintf("spawn depth %d exceeds limit %d", depth, sp.opts.MaxDepth), false)
	}

	if sp.children[parentID] >= sp.opts.MaxChildren {
		return 0, tool.NewError(KindSpawnLimit, fmt.Sprintf("agent %s reached %d children", parentID, sp.opts.MaxChildren), false)
	}

	sp.children[parentID]++

	return depth, nil
}

func (sp *spawner) release(parentID string) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.children[parentID]--
}
