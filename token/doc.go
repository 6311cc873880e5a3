// Package token issues and verifies the gate's bearer tokens.
//
// Tokens are HS256-signed JWTs carrying the subject (the verified email) and a
// type discriminator, "access" or "refresh". They are self-contained: nothing is
// persisted, and a token stays valid until it expires. Verify checks signature
// and expiry only; callers that need a particular kind of token check
// Claims.Type themselves.
//
//	issuer, err := token.NewIssuer(secret)
//	pair, err := issuer.IssuePair("alice@example.com")
//	claims, err := issuer.Verify(pair.AccessToken)
package token
