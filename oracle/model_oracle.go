package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/internal/util"
	"github.com/hupe1980/agentkernel/logging"
	"github.com/hupe1980/agentkernel/model"
)

// ErrNoJSON is reported when a model reply contains no JSON object.
var ErrNoJSON = errors.New("reply contains no JSON object")

// Options configures a ModelOracle.
type Options struct {
	// Instructions is the system prompt sent with every request.
	Instructions string
	// MaxCalls caps the number of model calls. 0 means unlimited.
	MaxCalls int
	// Stream requests streaming generation from the model.
	Stream bool
	// Logger defaults to NoOp if nil.
	Logger logging.Logger
}

// ModelOracle implements core.Oracle on top of a language model.
//
// Error Semantics:
//
//	model error / undecodable reply -> Result{Success: false}
//	exhausted call budget           -> error wrapping ErrCallBudgetExceeded
//	template rendering failure      -> error
type ModelOracle struct {
	model   model.Model
	opts    Options
	limiter *CallLimiter
	logger  logging.Logger
}

var _ core.Oracle = (*ModelOracle)(nil)

// New creates a ModelOracle backed by m.
func New(m model.Model, optFns ...func(o *Options)) *ModelOracle {
	opts := Options{
		Instructions: defaultInstructions,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &ModelOracle{
		model:   m,
		opts:    opts,
		limiter: NewCallLimiter(opts.MaxCalls),
		logger:  opts.Logger,
	}
}

// Calls returns the number of model calls made so far.
func (o *ModelOracle) Calls() int { return o.limiter.Count() }

func (o *ModelOracle) DeriveIntent(ctx context.Context, input string, history []core.HistoryRecord) (core.Result[core.Intent], error) {
	return ask[core.Intent](ctx, o, "derive_intent", intentPrompt, map[string]any{
		"input":   input,
		"history": history,
	}, nil)
}

func (o *ModelOracle) PlanNextStep(ctx context.Context, intent core.Intent, history []core.HistoryRecord, manifest []core.ManifestEntry) (core.Result[core.Plan], error) {
	return ask[core.Plan](ctx, o, "plan_next_step", planPrompt, map[string]any{
		"intent":   intent,
		"history":  history,
		"manifest": manifest,
	}, nil)
}

// SummarizeObservation accepts a plain-text reply as the summary.
func (o *ModelOracle) SummarizeObservation(ctx context.Context, result any, intent core.Intent) (core.Result[core.Observation], error) {
	intentMap, err := core.ToMap(intent)
	if err != nil {
		return core.Result[core.Observation]{}, fmt.Errorf("encode intent: %w", err)
	}

	return ask[core.Observation](ctx, o, "summarize_observation", observePrompt, map[string]any{
		"intent": intentMap,
		"result": result,
	}, func(text string) (core.Observation, bool) {
		text = strings.TrimSpace(text)
		return core.Observation{Summary: text}, text != ""
	})
}

func (o *ModelOracle) Reflect(ctx context.Context, scratch core.Scratch, history []core.HistoryRecord) (core.Result[core.Reflection], error) {
	return ask[core.Reflection](ctx, o, "reflect", reflectPrompt, map[string]any{
		"scratch": scratch,
		"history": history,
	}, nil)
}

// ask renders the prompt, calls the model and decodes the reply. fallback,
// when set, interprets replies without JSON.
func ask[T any](ctx context.Context, o *ModelOracle, op, tmpl string, data map[string]any, fallback func(string) (T, bool)) (core.Result[T], error) {
	prompt, err := util.RenderTemplate(tmpl, data)
	if err != nil {
		return core.Result[T]{}, fmt.Errorf("render %s prompt: %w", op, err)
	}

	if err := o.limiter.Increment(); err != nil {
		return core.Result[T]{}, err
	}

	start := time.Now()

	respCh, errCh := o.model.Generate(ctx, model.Request{
		Instructions: o.opts.Instructions,
		Messages:     []model.Message{model.UserMessage(prompt)},
		Stream:       o.opts.Stream,
	})

	resp, err := model.Collect(ctx, respCh, errCh)
	if err != nil {
		o.logger.Warn("oracle.call.failed", "op", op, "duration", time.Since(start), "error", err.Error())
		return core.Fail[T](err.Error()), nil
	}

	o.logger.Debug("oracle.call.completed", "op", op, "duration", time.Since(start), "finish_reason", resp.FinishReason)

	var content T

	err = DecodeJSON(resp.Text, &content)
	if err == nil {
		return core.OK(content), nil
	}

	if fallback != nil && errors.Is(err, ErrNoJSON) {
		if v, ok := fallback(resp.Text); ok {
			return core.OK(v), nil
		}
	}

	o.logger.Warn("oracle.reply.invalid", "op", op, "error", err.Error())

	return core.Fail[T](fmt.Sprintf("decode %s reply: %v", op, err)), nil
}

// DecodeJSON decodes the first JSON object found in text into out. Markdown
// code fences and surrounding prose are ignored.
func DecodeJSON(text string, out any) error {
	for i := strings.IndexByte(text, '{'); i >= 0; {
		dec := json.NewDecoder(bytes.NewReader([]byte(text[i:])))

		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil {
			return json.Unmarshal(raw, out)
		}

		next := strings.IndexByte(text[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}

	return ErrNoJSON
}
