// Package server implements the authorization flow controller.
//
// The flow has three legs:
//
//  1. StartAuthorization stores the client's request under its state and
//     sends the user to the identity provider.
//  2. HandleCallback verifies the provider identity, applies the allow policy
//     and binds a one-time code to the pending request.
//  3. ExchangeAuthorizationCode checks the PKCE verifier and trades the code
//     for a token pair; RefreshAccessToken mints new pairs from a refresh
//     token.
//
// RegisterClient implements unauthenticated dynamic client registration.
//
// Every failure is a *Error whose Kind decides the HTTP status and OAuth
// error code, and whose Message is safe to return to clients.
//
// Example usage:
//
//	srv, err := server.New(provider, store, issuer, server.AllowEmail(allowed), &server.Config{}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
package server
