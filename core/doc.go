// Package core provides the foundational domain types and interfaces shared by
// the agentkernel packages. It defines:
//
//   - Scratch / History (per-agent working state persisted through Memory)
//   - Intent, Plan, Observation, Reflection (structured oracle payloads)
//   - The sealed Action variant carried by a Plan
//   - CycleResult and AgentConfig (life-cycle outcomes and bounds)
//   - Small interfaces for the external collaborators: Memory, Oracle,
//     ToolInvoker and Enqueuer
//
// Concrete behavior (the state machine, the scheduler, tool registry and
// storage backends) lives in sibling packages so that this package stays
// dependency free and can be imported from everywhere.
package core
