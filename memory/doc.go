// Package memory contains concrete core.Memory implementations. The Memory
// interface lives in the core package; depend on core.Memory in your code and
// select an implementation (the in-memory store below, or memory/redis) at
// wiring time.
//
// Every store is scoped to exactly one agent. A Provider hands out a fresh
// scope per agent id, which is what spawned child agents use.
package memory
