// Package testutil contains helpers used across tests to reduce boilerplate
// when driving agents: a scripted oracle with a fluent builder and a manually
// advanced clock. They are not intended for production usage.
package testutil
