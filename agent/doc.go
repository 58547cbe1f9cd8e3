// Package agent implements the agent life-cycle state machine.
//
// One call to Agent.RunCycle performs exactly one traversal of
//
//	Intent → Planning → Acting → (Observing → Reflecting)
//
// and returns a core.CycleResult: Continue, Finished, Timeout or
// CyclesExceeded. Intent is derived once per agent and cached in Scratch;
// the plan, observation and reflection are overwritten every cycle. Each
// phase writes Scratch and appends a History record to the agent's Memory
// before the next phase starts, which makes Memory writes the only persisted
// effect of a cycle.
//
// Agents are usually driven by a scheduler.Scheduler, which they notify
// through core.Enqueuer after every non-terminal cycle.
package agent
