package oauth

// TokenResponse is the body of a successful token request
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// TokenRequest holds the token endpoint parameters, read from either a JSON
// or a form-encoded body
type TokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	CodeVerifier string `json:"code_verifier"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

// ClientRegistrationRequest represents a dynamic client registration request
type ClientRegistrationRequest struct {
	RedirectURIs []string `json:"redirect_uris"`
}

// ClientRegistrationResponse carries the only copy of the plaintext secret
type ClientRegistrationResponse struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURIs []string `json:"redirect_uris"`
}

// ErrorResponse is the body of every error response. Error holds the
// human-readable message, ErrorCode the OAuth error code.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

// SessionResponse describes the verified bearer token of a request
type SessionResponse struct {
	Subject   string `json:"sub"`
	Type      string `json:"type"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// HealthResponse is the body of /health
type HealthResponse struct {
	Status string `json:"status"`
}
