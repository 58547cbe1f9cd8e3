package oracle

import (
	"context"

	"github.com/hupe1980/agentkernel/core"
)

// Funcs implements core.Oracle with function fields. Unset fields report
// success=false.
type Funcs struct {
	DeriveIntentFn         func(ctx context.Context, input string, history []core.HistoryRecord) (core.Result[core.Intent], error)
	PlanNextStepFn         func(ctx context.Context, intent core.Intent, history []core.HistoryRecord, manifest []core.ManifestEntry) (core.Result[core.Plan], error)
	SummarizeObservationFn func(ctx context.Context, result any, intent core.Intent) (core.Result[core.Observation], error)
	ReflectFn              func(ctx context.Context, scratch core.Scratch, history []core.HistoryRecord) (core.Result[core.Reflection], error)
}

var _ core.Oracle = Funcs{}

const notImplemented = "operation not implemented"

func (f Funcs) DeriveIntent(ctx context.Context, input string, history []core.HistoryRecord) (core.Result[core.Intent], error) {
	if f.DeriveIntentFn == nil {
		return core.Fail[core.Intent](notImplemented), nil
	}
	return f.DeriveIntentFn(ctx, input, history)
}

func (f Funcs) PlanNextStep(ctx context.Context, intent core.Intent, history []core.HistoryRecord, manifest []core.ManifestEntry) (core.Result[core.Plan], error) {
	if f.PlanNextStepFn == nil {
		return core.Fail[core.Plan](notImplemented), nil
	}
	return f.PlanNextStepFn(ctx, intent, history, manifest)
}

func (f Funcs) SummarizeObservation(ctx context.Context, result any, intent core.Intent) (core.Result[core.Observation], error) {
	if f.SummarizeObservationFn == nil {
		return core.Fail[core.Observation](notImplemented), nil
	}
	return f.SummarizeObservationFn(ctx, result, intent)
}

func (f Funcs) Reflect(ctx context.Context, scratch core.Scratch, history []core.HistoryRecord) (core.Result[core.Reflection], error) {
	if f.ReflectFn == nil {
		return core.Fail[core.Reflection](notImplemented), nil
	}
	return f.ReflectFn(ctx, scratch, history)
}
