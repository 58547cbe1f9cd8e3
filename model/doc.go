// Package model defines the provider-agnostic abstractions for talking to
// language models from the reasoning oracle.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Keep request/response shapes text-only and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (anthropic, openai) implement Model so that the oracle stays
// decoupled from vendor SDKs. Collect reduces a generation to its final
// response.
package model
