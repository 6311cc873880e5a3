// Package testutil provides shared fixtures for mcp-gate tests: a mock clock,
// PKCE pairs, random states, a token issuer and credential records.
package testutil
