package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentkernel/core"
)

// Scratch returns the agent's working state. An agent that has not run yet
// has an empty Scratch.
func (a *Agent) Scratch(ctx context.Context) (core.Scratch, error) {
	v, err := a.mem.Get(ctx, core.KeyScratchpad, nil)
	if err != nil {
		return core.Scratch{}, fmt.Errorf("load scratchpad: %w", err)
	}
	return core.ScratchFromValue(v)
}

// History returns the retained phase records, oldest first.
func (a *Agent) History(ctx context.Context) ([]core.HistoryRecord, error) {
	v, err := a.mem.Get(ctx, core.KeyHistory, nil)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return core.HistoryFromValue(v)
}

// ResetIntent clears the cached intent so the next cycle derives it again
// from input. It is the only way to re-run intent derivation.
func (a *Agent) ResetIntent(ctx context.Context, input string) error {
	s, err := a.Scratch(ctx)
	if err != nil {
		return err
	}

	s.Intent = nil
	if input != "" {
		a.seed = input
	}

	return a.saveScratch(ctx, s)
}

func (a *Agent) saveScratch(ctx context.Context, s core.Scratch) error {
	m, err := core.ToMap(s)
	if err != nil {
		return fmt.Errorf("encode scratchpad: %w", err)
	}

	if err := a.mem.Set(ctx, core.KeyScratchpad, m); err != nil {
		return fmt.Errorf("save scratchpad: %w", err)
	}

	return nil
}

// pushHistory appends a record and evicts the oldest entries beyond the
// configured window.
func (a *Agent) pushHistory(ctx context.Context, phase core.Phase, payload any) error {
	rec := core.HistoryRecord{Phase: phase, Payload: payload}
	if err := a.mem.AppendToSequence(ctx, core.KeyHistory, rec); err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	limit := a.cfg.HistoryLimit

	if t, ok := a.mem.(core.SequenceTrimmer); ok {
		if err := t.TrimSequence(ctx, core.KeyHistory, limit); err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
		return nil
	}

	v, err := a.mem.Get(ctx, core.KeyHistory, nil)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	seq, ok := v.([]any)
	if !ok || len(seq) <= limit {
		return nil
	}

	if err := a.mem.Set(ctx, core.KeyHistory, seq[len(seq)-limit:]); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}

	return nil
}
