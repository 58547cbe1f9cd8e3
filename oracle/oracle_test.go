package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/model"
)

func TestDecodeJSON(t *testing.T) {
	var v map[string]any

	require.NoError(t, DecodeJSON("```json\n{\"goal\": \"echo\"}\n```", &v))
	assert.Equal(t, "echo", v["goal"])

	require.NoError(t, DecodeJSON(`Sure! {not json} then {"a": {"b": 1}} trailing`, &v))
	assert.Equal(t, map[string]any{"b": float64(1)}, v["a"])

	assert.ErrorIs(t, DecodeJSON("no braces here", &v), ErrNoJSON)
	assert.ErrorIs(t, DecodeJSON("{ broken", &v), ErrNoJSON)
}

func TestModelOracle_Operations(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Enqueue(
		`{"goal": "echo", "success_criteria": "done", "priority": "low"}`,
		"```json\n{\"action\": \"call_tool\", \"tool\": \"echo\", \"args\": {\"text\": \"hello\"}}\n```",
		"The echo tool returned hello.",
		`{"success": true, "confidence": 0.9, "issues": [], "next_steps": ["finish"]}`,
	)

	o := New(m)
	ctx := context.Background()

	intent, err := o.DeriveIntent(ctx, "say hello", nil)
	require.NoError(t, err)
	require.True(t, intent.Success)
	assert.Equal(t, "echo", intent.Content.Goal)
	assert.Equal(t, map[string]any{"priority": "low"}, intent.Content.Extra)

	plan, err := o.PlanNextStep(ctx, intent.Content, []core.HistoryRecord{{Phase: core.PhaseIntent, Payload: intent.Content}}, []core.ManifestEntry{{Name: "echo"}})
	require.NoError(t, err)
	require.True(t, plan.Success)
	assert.Equal(t, core.CallTool{Tool: "echo", Args: map[string]any{"text": "hello"}}, plan.Content.Action)

	obs, err := o.SummarizeObservation(ctx, map[string]any{"text": "hello"}, intent.Content)
	require.NoError(t, err)
	require.True(t, obs.Success)
	assert.Equal(t, "The echo tool returned hello.", obs.Content.Summary)

	refl, err := o.Reflect(ctx, core.Scratch{Intent: &intent.Content}, nil)
	require.NoError(t, err)
	require.True(t, refl.Success)
	assert.True(t, refl.Content.Success)
	assert.InDelta(t, 0.9, refl.Content.Confidence, 1e-9)
	assert.Equal(t, []string{"finish"}, refl.Content.NextSteps)

	assert.Equal(t, 4, o.Calls())

	reqs := m.Requests()
	require.Len(t, reqs, 4)
	assert.Equal(t, defaultInstructions, reqs[0].Instructions)
	assert.Contains(t, reqs[0].LastUserText(), "User input: say hello")
	assert.Contains(t, reqs[1].LastUserText(), `"name": "echo"`)
	assert.Contains(t, reqs[2].LastUserText(), "Goal: echo")
}

func TestModelOracle_InvalidReplyIsUnsuccessful(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Enqueue("I cannot comply.")

	o := New(m)

	res, err := o.DeriveIntent(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "derive_intent")
}

type failingModel struct{}

func (failingModel) Generate(context.Context, model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response)
	errCh := make(chan error, 1)
	errCh <- errors.New("rate limited")
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (failingModel) Info() model.Info { return model.Info{Name: "failing"} }

func TestModelOracle_ModelErrorIsUnsuccessful(t *testing.T) {
	o := New(failingModel{})

	res, err := o.Reflect(context.Background(), core.Scratch{}, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "rate limited", res.Error)
}

func TestModelOracle_CallBudget(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	o := New(m, func(o *Options) { o.MaxCalls = 1 })

	_, err := o.SummarizeObservation(context.Background(), "r", core.Intent{Goal: "g"})
	require.NoError(t, err)

	_, err = o.SummarizeObservation(context.Background(), "r", core.Intent{Goal: "g"})
	assert.ErrorIs(t, err, ErrCallBudgetExceeded)
	assert.Len(t, m.Requests(), 1)
}

func TestCallLimiter(t *testing.T) {
	l := NewCallLimiter(2)
	require.NoError(t, l.Increment())
	assert.Equal(t, 1, l.Remaining())
	require.NoError(t, l.Increment())
	assert.ErrorIs(t, l.Increment(), ErrCallBudgetExceeded)
	assert.Equal(t, 0, l.Remaining())
	assert.Equal(t, 3, l.Count())

	assert.Equal(t, -1, NewCallLimiter(0).Remaining())
}

func TestFuncs(t *testing.T) {
	f := Funcs{
		DeriveIntentFn: func(_ context.Context, input string, _ []core.HistoryRecord) (core.Result[core.Intent], error) {
			return core.OK(core.Intent{Goal: input}), nil
		},
	}

	res, err := f.DeriveIntent(context.Background(), "g", nil)
	require.NoError(t, err)
	assert.Equal(t, "g", res.Content.Goal)

	plan, err := f.PlanNextStep(context.Background(), core.Intent{}, nil, nil)
	require.NoError(t, err)
	assert.False(t, plan.Success)
}

func TestEcho(t *testing.T) {
	o := Echo("echo")
	ctx := context.Background()

	intent, err := o.DeriveIntent(ctx, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", intent.Content.Goal)

	plan, err := o.PlanNextStep(ctx, intent.Content, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, core.CallTool{Tool: "echo", Args: map[string]any{"text": "hello"}}, plan.Content.Action)

	obs, err := o.SummarizeObservation(ctx, map[string]any{"text": "hello"}, intent.Content)
	require.NoError(t, err)
	assert.Equal(t, "hello", obs.Content.Summary)

	history := []core.HistoryRecord{
		{Phase: core.PhaseIntent, Payload: intent.Content},
		{Phase: core.PhaseObservation, Payload: map[string]any{"summary": "hello"}},
	}
	plan, err = o.PlanNextStep(ctx, intent.Content, history, nil)
	require.NoError(t, err)
	assert.Equal(t, core.Finish{Spec: map[string]any{"result": "hello"}}, plan.Content.Action)

	refl, err := o.Reflect(ctx, core.Scratch{Observation: &obs.Content}, nil)
	require.NoError(t, err)
	assert.True(t, refl.Content.Success)
}
