// Package google provides the Google OAuth 2.0 upstream provider.
//
// The consent URL requests the fixed "email profile" scopes with offline
// access. After the code exchange, the id_token in the token response is
// verified with go-oidc against Google's JWKS (issuer
// https://accounts.google.com, audience = client ID) and its email claim
// becomes the identity.
//
// Example usage:
//
//	provider, err := google.NewProvider(&google.Config{
//	    ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
//	    ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
//	    RedirectURL:  baseURL + google.CallbackPath,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
package google
