package oracle

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentkernel/core"
)

// Echo returns an offline oracle that needs no model: the goal is the input
// verbatim, the first plan calls the named tool with {"text": goal}, and once
// an observation is recorded the next plan finishes with that observation.
func Echo(toolName string) Funcs {
	return Funcs{
		DeriveIntentFn: func(_ context.Context, input string, _ []core.HistoryRecord) (core.Result[core.Intent], error) {
			return core.OK(core.Intent{Goal: input, SuccessCriteria: "tool output observed"}), nil
		},
		PlanNextStepFn: func(_ context.Context, intent core.Intent, history []core.HistoryRecord, _ []core.ManifestEntry) (core.Result[core.Plan], error) {
			for i := len(history) - 1; i >= 0; i-- {
				if history[i].Phase != core.PhaseObservation {
					continue
				}

				var obs core.Observation
				if payload, ok := history[i].Payload.(core.Observation); ok {
					obs = payload
				} else if m, err := core.ToMap(history[i].Payload); err == nil {
					obs.Summary, _ = m["summary"].(string)
				}

				return core.OK(core.Plan{Action: core.Finish{Spec: map[string]any{"result": obs.Summary}}}), nil
			}

			return core.OK(core.Plan{Action: core.CallTool{Tool: toolName, Args: map[string]any{"text": intent.Goal}}}), nil
		},
		SummarizeObservationFn: func(_ context.Context, result any, _ core.Intent) (core.Result[core.Observation], error) {
			if m, ok := result.(map[string]any); ok {
				if text, ok := m["text"].(string); ok {
					return core.OK(core.Observation{Summary: text}), nil
				}
			}
			return core.OK(core.Observation{Summary: fmt.Sprintf("%v", result)}), nil
		},
		ReflectFn: func(_ context.Context, scratch core.Scratch, _ []core.HistoryRecord) (core.Result[core.Reflection], error) {
			done := scratch.Observation != nil && scratch.Observation.Summary != ""
			return core.OK(core.Reflection{Success: done, Confidence: 1, NextSteps: []string{"finish"}}), nil
		},
	}
}
