// Package scheduler drives agents cycle by cycle.
//
// A Scheduler holds the live-agent registry and a FIFO of ready agent ids.
// RunLoop pops ids, executes one agent.RunCycle per pop and removes agents
// once they produce a terminal result. Agents request further cycles by
// calling Enqueue on the scheduler they were registered with.
//
// Concurrency:
//
//	With Workers == 1 (the default) cycles of different agents never
//	interleave. With Workers > 1 distinct agents run concurrently on a fixed
//	pool of goroutines, while an explicit per-agent in-flight flag keeps at
//	most one cycle of any agent in flight. A tool call that blocks stalls
//	only the worker running it.
//
// Error Policy:
//
//	A cycle error is terminal by default: the agent is counted as failed and
//	removed (RemoveOnError). RequeueRetryable instead requeues agents whose
//	error is a retryable tool error, up to MaxErrorRetries times.
//
// Hierarchical spawning is provided by SpawnTool, which exposes the
// scheduler to agents as the reserved spawn_new_core tool.
package scheduler
