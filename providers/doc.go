// Package providers defines the upstream identity provider interface.
//
// The gate delegates user authentication to exactly one upstream provider.
// A Provider builds the consent URL, exchanges the returned code for tokens
// and turns those tokens into a verified Identity.
//
// Implementations are provided in subpackages:
//   - providers/google: Google OAuth 2.0 with ID token verification
//   - providers/mock: function-field mock for tests
package providers
