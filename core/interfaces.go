package core

import "context"

// Memory is a key/value store scoped to exactly one agent. Values must be
// JSON-compatible so that durable backends can persist them.
type Memory interface {
	// Get returns the value stored under key, or def when the key is absent.
	Get(ctx context.Context, key string, def any) (any, error)
	// Set overwrites the value stored under key.
	Set(ctx context.Context, key string, value any) error
	// AppendToSequence appends value to the sequence stored under key. The
	// sequence is created when the key is absent or holds a non-sequence.
	AppendToSequence(ctx context.Context, key string, value any) error
}

// SequenceTrimmer is implemented by backends that can cap a sequence in
// place. The agent falls back to read-slice-write otherwise.
type SequenceTrimmer interface {
	TrimSequence(ctx context.Context, key string, keepLast int) error
}

// Oracle is the external reasoning component consulted at each phase
// boundary. Implementations report expected failures through Result.Success
// and reserve the error return for transport-level problems.
type Oracle interface {
	DeriveIntent(ctx context.Context, input string, history []HistoryRecord) (Result[Intent], error)
	PlanNextStep(ctx context.Context, intent Intent, history []HistoryRecord, manifest []ManifestEntry) (Result[Plan], error)
	SummarizeObservation(ctx context.Context, result any, intent Intent) (Result[Observation], error)
	Reflect(ctx context.Context, scratch Scratch, history []HistoryRecord) (Result[Reflection], error)
}

// ToolInvoker is the slice of the tool registry an agent depends on.
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
	Manifest() []ManifestEntry
}

// Enqueuer lets an agent request another cycle from its scheduler.
type Enqueuer interface {
	Enqueue(id string)
}
