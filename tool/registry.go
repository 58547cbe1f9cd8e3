package tool

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/internal/util"
	"github.com/hupe1980/agentkernel/logging"
)

// Func is the callable bound to a descriptor. Args follow the descriptor's
// ArgsSchema; the returned value should follow ReturnsSchema.
type Func func(ctx context.Context, args map[string]any) (any, error)

// DefaultConfidence is applied to descriptors registered without one.
const DefaultConfidence = 0.7

// Confidence returns a DefaultConfidence value for a Descriptor literal.
func Confidence(v float64) *float64 { return &v }

// Descriptor describes a tool. It is immutable once registered.
type Descriptor struct {
	Name              string
	Summary           string
	ArgsSchema        map[string]any
	ReturnsSchema     map[string]any
	SideEffects       []string
	// DefaultConfidence is in [0,1]. Nil means DefaultConfidence (0.7).
	DefaultConfidence *float64
	Idempotent        bool
	// Doc is free-form documentation for humans. It is never exposed to the
	// oracle.
	Doc string
	Fn  Func
}

func (d Descriptor) clone() Descriptor {
	d.ArgsSchema = maps.Clone(d.ArgsSchema)
	d.ReturnsSchema = maps.Clone(d.ReturnsSchema)
	d.SideEffects = slices.Clone(d.SideEffects)
	if d.DefaultConfidence != nil {
		d.DefaultConfidence = Confidence(*d.DefaultConfidence)
	}
	return d
}

// Stats is a snapshot of the counters kept for one tool.
type Stats struct {
	Calls     int64         `json:"calls"`
	Successes int64         `json:"success"`
	Failures  int64         `json:"failure"`
	Latency   time.Duration `json:"latency"`
}

type counters struct {
	calls     atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
	latency   atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Calls:     c.calls.Load(),
		Successes: c.successes.Load(),
		Failures:  c.failures.Load(),
		Latency:   time.Duration(c.latency.Load()),
	}
}

type entry struct {
	desc  Descriptor
	stats counters
}

// Options configures a Registry.
type Options struct {
	// ValidateArgs checks call arguments against each descriptor's
	// ArgsSchema before dispatch.
	ValidateArgs bool

	// Logger defaults to NoOp if nil.
	Logger logging.Logger
}

// Registry maps tool names to descriptors. Registration is append-only:
// there is no overwrite and no deregistration. All methods are safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*entry
	order  []string
	opts   Options
	logger logging.Logger
}

var _ core.ToolInvoker = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry(optFns ...func(o *Options)) *Registry {
	opts := Options{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Registry{
		tools:  make(map[string]*entry),
		opts:   opts,
		logger: opts.Logger,
	}
}

// Register adds a descriptor. It fails with ErrDuplicateTool when the name is
// taken, leaving the existing descriptor untouched.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" || d.Fn == nil {
		return fmt.Errorf("%w: name and func are required", ErrInvalidDescriptor)
	}

	d = d.clone()

	if d.DefaultConfidence == nil {
		d.DefaultConfidence = Confidence(DefaultConfidence)
	}

	if c := *d.DefaultConfidence; c < 0 || c > 1 {
		return fmt.Errorf("%w: default confidence %.2f outside [0,1]", ErrInvalidDescriptor, c)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, d.Name)
	}

	r.tools[d.Name] = &entry{desc: d}
	r.order = append(r.order, d.Name)

	r.logger.Debug("tool.registered", "tool", d.Name, "side_effects", d.SideEffects)

	return nil
}

// MustRegister registers every descriptor and panics on the first failure.
// Intended for startup-time registration lists.
func (r *Registry) MustRegister(ds ...Descriptor) {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) lookup(name string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	return e, ok
}

// Lookup returns a copy of the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	e, ok := r.lookup(name)
	if !ok {
		return Descriptor{}, false
	}
	return e.desc.clone(), true
}

// Invoke runs the named tool inside the metrics / error boundary.
//
// Error Semantics:
//
//	unknown name                 -> ErrNotFound (no counters touched)
//	*Error returned by the tool  -> forwarded unchanged
//	argument validation failure  -> *Error{Kind: "validation_error"}
//	other error or panic         -> *Error{Kind: "runtime_error", Retryable: false}
//
// The registry never retries; callers inspect Retryable.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (result any, err error) {
	e, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if args == nil {
		args = map[string]any{}
	}

	start := time.Now()
	e.stats.calls.Add(1)

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}

		if err != nil {
			result = nil
			err = classify(name, err)
			e.stats.failures.Add(1)
		} else {
			e.stats.successes.Add(1)
		}

		dur := time.Since(start)
		e.stats.latency.Add(int64(dur))

		logging.LogToolCall(r.logger, name, dur, err)
	}()

	if r.opts.ValidateArgs && len(e.desc.ArgsSchema) > 0 {
		if verr := util.ValidateParameters(args, e.desc.ArgsSchema); verr != nil {
			return nil, &Error{Tool: name, Kind: KindValidation, Message: verr.Error(), cause: verr}
		}
	}

	return e.desc.Fn(ctx, args)
}

func classify(name string, err error) error {
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return runtimeError(name, err)
}

// Manifest returns the oracle-facing projection of every descriptor, ordered
// by registration. Func and Doc are never included.
func (r *Registry) Manifest() []core.ManifestEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.ManifestEntry, 0, len(r.order))
	for _, name := range r.order {
		d := r.tools[name].desc
		sideEffects := slices.Clone(d.SideEffects)
		if sideEffects == nil {
			sideEffects = []string{}
		}
		out = append(out, core.ManifestEntry{
			Name:              d.Name,
			Summary:           d.Summary,
			ArgsSchema:        maps.Clone(d.ArgsSchema),
			ReturnsSchema:     maps.Clone(d.ReturnsSchema),
			SideEffects:       sideEffects,
			DefaultConfidence: *d.DefaultConfidence,
			Idempotent:        d.Idempotent,
		})
	}

	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Stats returns a snapshot of the counters for name.
func (r *Registry) Stats(name string) (Stats, bool) {
	e, ok := r.lookup(name)
	if !ok {
		return Stats{}, false
	}
	return e.stats.snapshot(), true
}

// AllStats returns a snapshot of every tool's counters keyed by name.
func (r *Registry) AllStats() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Stats, len(r.tools))
	for name, e := range r.tools {
		out[name] = e.stats.snapshot()
	}
	return out
}
