package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentkernel/core"
)

// ScriptedOracle is a deterministic core.Oracle. Plans are served from a
// script in order; once the script is exhausted the last plan repeats.
// It counts calls per operation and is safe for concurrent use.
//
// Example:
//
//	o := NewOracleBuilder().
//		Plan(core.Plan{Action: core.CallTool{Tool: "echo"}}).
//		Plan(core.Plan{Action: core.Finish{Spec: "done"}}).
//		Build()
type ScriptedOracle struct {
	mu      sync.Mutex
	intent  func(input string) core.Result[core.Intent]
	plans   []core.Result[core.Plan]
	next    int
	observe func(result any) core.Result[core.Observation]
	reflect core.Result[core.Reflection]
	err     map[string]error
	calls   map[string]int
	results []any
}

var _ core.Oracle = (*ScriptedOracle)(nil)

// OracleBuilder configures a ScriptedOracle with fluent chaining.
type OracleBuilder struct {
	o *ScriptedOracle
}

// NewOracleBuilder returns a builder whose oracle derives the input verbatim
// as goal, summarizes results with %v and reflects success with full
// confidence.
func NewOracleBuilder() *OracleBuilder {
	return &OracleBuilder{o: &ScriptedOracle{
		intent: func(input string) core.Result[core.Intent] {
			return core.OK(core.Intent{Goal: input})
		},
		observe: func(result any) core.Result[core.Observation] {
			return core.OK(core.Observation{Summary: fmt.Sprintf("%v", result)})
		},
		reflect: core.OK(core.Reflection{Success: true, Confidence: 1}),
		err:     map[string]error{},
		calls:   map[string]int{},
	}}
}

// Intent sets the intent returned for every input (chainable).
func (b *OracleBuilder) Intent(i core.Intent) *OracleBuilder {
	b.o.intent = func(string) core.Result[core.Intent] { return core.OK(i) }
	return b
}

// Plan appends a plan to the script (chainable).
func (b *OracleBuilder) Plan(p core.Plan) *OracleBuilder {
	b.o.plans = append(b.o.plans, core.OK(p))
	return b
}

// FailingPlan appends a success=false planning result (chainable).
func (b *OracleBuilder) FailingPlan(msg string) *OracleBuilder {
	b.o.plans = append(b.o.plans, core.Fail[core.Plan](msg))
	return b
}

// Observation sets a fixed observation (chainable).
func (b *OracleBuilder) Observation(o core.Observation) *OracleBuilder {
	b.o.observe = func(any) core.Result[core.Observation] { return core.OK(o) }
	return b
}

// Reflection sets a fixed reflection (chainable).
func (b *OracleBuilder) Reflection(r core.Reflection) *OracleBuilder {
	b.o.reflect = core.OK(r)
	return b
}

// Error makes the named operation ("derive_intent", "plan_next_step",
// "summarize_observation" or "reflect") return err (chainable).
func (b *OracleBuilder) Error(op string, err error) *OracleBuilder {
	b.o.err[op] = err
	return b
}

// Build returns the configured oracle.
func (b *OracleBuilder) Build() *ScriptedOracle { return b.o }

func (o *ScriptedOracle) enter(op string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls[op]++
	return o.err[op]
}

// Calls returns how often op has been called.
func (o *ScriptedOracle) Calls(op string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[op]
}

// Results returns every action result passed to SummarizeObservation.
func (o *ScriptedOracle) Results() []any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]any(nil), o.results...)
}

func (o *ScriptedOracle) DeriveIntent(_ context.Context, input string, _ []core.HistoryRecord) (core.Result[core.Intent], error) {
	if err := o.enter("derive_intent"); err != nil {
		return core.Result[core.Intent]{}, err
	}
	return o.intent(input), nil
}

func (o *ScriptedOracle) PlanNextStep(context.Context, core.Intent, []core.HistoryRecord, []core.ManifestEntry) (core.Result[core.Plan], error) {
	if err := o.enter("plan_next_step"); err != nil {
		return core.Result[core.Plan]{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.plans) == 0 {
		return core.Fail[core.Plan]("no plan scripted"), nil
	}

	i := o.next
	if i >= len(o.plans) {
		i = len(o.plans) - 1
	} else {
		o.next++
	}

	return o.plans[i], nil
}

func (o *ScriptedOracle) SummarizeObservation(_ context.Context, result any, _ core.Intent) (core.Result[core.Observation], error) {
	if err := o.enter("summarize_observation"); err != nil {
		return core.Result[core.Observation]{}, err
	}

	o.mu.Lock()
	o.results = append(o.results, result)
	o.mu.Unlock()

	return o.observe(result), nil
}

func (o *ScriptedOracle) Reflect(context.Context, core.Scratch, []core.HistoryRecord) (core.Result[core.Reflection], error) {
	if err := o.enter("reflect"); err != nil {
		return core.Result[core.Reflection]{}, err
	}
	return o.reflect, nil
}
