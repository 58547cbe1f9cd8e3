package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reserved memory keys.
const (
	KeyScratchpad = "scratchpad"
	KeyHistory    = "history"
)

// Phase names a step of the five-phase loop as recorded in History.
type Phase string

const (
	PhaseIntent      Phase = "intent"
	PhasePlanning    Phase = "planning"
	PhaseAction      Phase = "action"
	PhaseObservation Phase = "observation"
	PhaseReflection  Phase = "reflection"
)

// HistoryRecord is one entry of an agent's bounded phase log.
type HistoryRecord struct {
	Phase   Phase `json:"phase"`
	Payload any   `json:"payload,omitempty"`
}

// Intent is the structured goal derived from the seed input.
type Intent struct {
	Goal            string         `json:"goal"`
	Constraints     map[string]any `json:"constraints,omitempty"`
	SuccessCriteria string         `json:"success_criteria,omitempty"`

	// Extra holds fields the oracle emitted that are not modelled above.
	Extra map[string]any `json:"-"`
}

// MarshalJSON flattens Extra into the encoded object.
func (i Intent) MarshalJSON() ([]byte, error) {
	type alias Intent
	return mergeExtra(alias(i), i.Extra)
}

// UnmarshalJSON captures unknown fields into Extra.
func (i *Intent) UnmarshalJSON(data []byte) error {
	type alias Intent

	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	extra, err := extraFields(data, "goal", "constraints", "success_criteria")
	if err != nil {
		return err
	}

	a.Extra = extra
	*i = Intent(a)

	return nil
}

// Observation summarizes the result of the acting phase.
type Observation struct {
	Summary string         `json:"summary"`
	Extra   map[string]any `json:"-"`
}

// MarshalJSON flattens Extra into the encoded object.
func (o Observation) MarshalJSON() ([]byte, error) {
	type alias Observation
	return mergeExtra(alias(o), o.Extra)
}

// UnmarshalJSON captures unknown fields into Extra.
func (o *Observation) UnmarshalJSON(data []byte) error {
	type alias Observation

	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	extra, err := extraFields(data, "summary")
	if err != nil {
		return err
	}

	a.Extra = extra
	*o = Observation(a)

	return nil
}

// Reflection is the oracle's self-assessment at the end of a cycle.
type Reflection struct {
	Success    bool           `json:"success"`
	Confidence float64        `json:"confidence"`
	Issues     []string       `json:"issues,omitempty"`
	NextSteps  []string       `json:"next_steps,omitempty"`
	Extra      map[string]any `json:"-"`
}

// MarshalJSON flattens Extra into the encoded object.
func (r Reflection) MarshalJSON() ([]byte, error) {
	type alias Reflection
	return mergeExtra(alias(r), r.Extra)
}

// UnmarshalJSON captures unknown fields into Extra.
func (r *Reflection) UnmarshalJSON(data []byte) error {
	type alias Reflection

	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	extra, err := extraFields(data, "success", "confidence", "issues", "next_steps")
	if err != nil {
		return err
	}

	a.Extra = extra
	*r = Reflection(a)

	return nil
}

// Scratch is the per-agent working state. Intent is set once per run unless
// explicitly cleared; the remaining fields are overwritten every cycle.
type Scratch struct {
	Intent      *Intent        `json:"intent"`
	Plan        *Plan          `json:"plan"`
	Observation *Observation   `json:"observation"`
	Reflection  *Reflection    `json:"reflection"`
	Meta        map[string]any `json:"meta"`
}

// ScratchFromValue decodes whatever a Memory backend returned for the
// scratchpad key. A nil value yields an empty Scratch.
func ScratchFromValue(v any) (Scratch, error) {
	switch s := v.(type) {
	case nil:
		return Scratch{Meta: map[string]any{}}, nil
	case Scratch:
		return s, nil
	case *Scratch:
		return *s, nil
	}

	var s Scratch
	if err := convert(v, &s); err != nil {
		return Scratch{}, fmt.Errorf("decode scratchpad: %w", err)
	}

	if s.Meta == nil {
		s.Meta = map[string]any{}
	}

	return s, nil
}

// HistoryFromValue decodes whatever a Memory backend returned for the history
// key. Anything that is not a sequence decodes to an empty history.
func HistoryFromValue(v any) ([]HistoryRecord, error) {
	switch h := v.(type) {
	case nil:
		return []HistoryRecord{}, nil
	case []HistoryRecord:
		return append([]HistoryRecord(nil), h...), nil
	case []any:
		out := make([]HistoryRecord, 0, len(h))
		for _, item := range h {
			if rec, ok := item.(HistoryRecord); ok {
				out = append(out, rec)
				continue
			}

			var rec HistoryRecord
			if err := convert(item, &rec); err != nil {
				return nil, fmt.Errorf("decode history record: %w", err)
			}

			out = append(out, rec)
		}

		return out, nil
	default:
		return []HistoryRecord{}, nil
	}
}

// AgentConfig bounds the life of one agent.
type AgentConfig struct {
	// MaxCycles is the number of cycles after which the agent terminates with
	// CyclesExceeded.
	MaxCycles int `mapstructure:"max_cycles"`

	// TTL is the wall-clock budget measured from agent creation.
	TTL time.Duration `mapstructure:"ttl"`

	// ClarityThreshold is reserved for escalation policy. The loop itself
	// does not enforce it.
	ClarityThreshold float64 `mapstructure:"clarity_threshold"`

	// HistoryLimit caps the retained history window (oldest evicted first).
	HistoryLimit int `mapstructure:"history_limit"`
}

// DefaultAgentConfig holds the bounds applied to unset AgentConfig fields.
var DefaultAgentConfig = AgentConfig{
	MaxCycles:        40,
	TTL:              300 * time.Second,
	ClarityThreshold: 0.70,
	HistoryLimit:     100,
}

// Status discriminates a CycleResult.
type Status string

const (
	StatusContinue       Status = "continue"
	StatusFinished       Status = "finished"
	StatusTimeout        Status = "timeout"
	StatusCyclesExceeded Status = "cycles_exceeded"
)

// CycleResult is the outcome of one RunCycle call. Spec is only set for
// StatusFinished.
type CycleResult struct {
	Status Status `json:"status"`
	Spec   any    `json:"spec,omitempty"`
}

// Continue signals that the agent wants another cycle.
func Continue() CycleResult { return CycleResult{Status: StatusContinue} }

// Finished is the successful terminal result carrying the finish payload.
func Finished(spec any) CycleResult { return CycleResult{Status: StatusFinished, Spec: spec} }

// Timeout is the terminal result for an exceeded TTL.
func Timeout() CycleResult { return CycleResult{Status: StatusTimeout} }

// CyclesExceeded is the terminal result for an exhausted cycle budget.
func CyclesExceeded() CycleResult { return CycleResult{Status: StatusCyclesExceeded} }

// IsTerminal reports whether the agent should be removed from its scheduler.
func (r CycleResult) IsTerminal() bool { return r.Status != StatusContinue }

// String implements fmt.Stringer.
func (r CycleResult) String() string { return string(r.Status) }

// ManifestEntry is the projection of a tool descriptor exposed to the
// planning step. Field order is part of the contract.
type ManifestEntry struct {
	Name              string         `json:"name"`
	Summary           string         `json:"summary"`
	ArgsSchema        map[string]any `json:"args_schema"`
	ReturnsSchema     map[string]any `json:"returns_schema"`
	SideEffects       []string       `json:"side_effects"`
	DefaultConfidence float64        `json:"default_confidence"`
	Idempotent        bool           `json:"idempotent"`
}

// Result is the envelope every oracle operation returns.
type Result[T any] struct {
	Success bool   `json:"success"`
	Content T      `json:"content"`
	Error   string `json:"error,omitempty"`
}

// OK wraps content in a successful Result.
func OK[T any](content T) Result[T] { return Result[T]{Success: true, Content: content} }

// Fail builds an unsuccessful Result with the given message.
func Fail[T any](msg string) Result[T] { return Result[T]{Error: msg} }
