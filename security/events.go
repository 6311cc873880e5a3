package security

// Audit event types.
const (
	// EventAuthorizationStarted is logged when /authorize stores a pending authorization
	EventAuthorizationStarted = "authorization_started"

	// EventUpstreamError is logged when the identity provider reports an error or the exchange fails
	EventUpstreamError = "upstream_error"

	// EventInvalidState is logged when a callback arrives with an unknown or expired state
	EventInvalidState = "invalid_state"

	// EventAccessDenied is logged when a verified identity is not on the allow policy
	EventAccessDenied = "access_denied"

	// EventAuthorizationCodeIssued is logged when a code is bound to a verified identity
	EventAuthorizationCodeIssued = "authorization_code_issued"

	// EventInvalidCode is logged when an unknown, expired or foreign code is redeemed
	EventInvalidCode = "invalid_code"

	// EventPKCEValidationFailed is logged when the code_verifier does not match the stored challenge
	EventPKCEValidationFailed = "pkce_validation_failed"

	// EventTokenIssued is logged when a token pair is issued for a code
	EventTokenIssued = "token_issued"

	// EventTokenRefreshed is logged when a refresh grant succeeds
	EventTokenRefreshed = "token_refreshed"

	// EventInvalidRefreshToken is logged when a refresh grant presents a bad or mistyped token
	EventInvalidRefreshToken = "invalid_refresh_token" //nolint:gosec // event name

	// EventInvalidBearerToken is logged when a protected request presents a bad bearer token
	EventInvalidBearerToken = "invalid_bearer_token" //nolint:gosec // event name

	// EventClientRegistered is logged when a client is registered
	EventClientRegistered = "client_registered"

	// EventInvalidClientCredentials is logged when a presented client secret does not match
	EventInvalidClientCredentials = "invalid_client_credentials"

	// EventRateLimitExceeded is logged when a request is rejected by rate limiting
	EventRateLimitExceeded = "rate_limit_exceeded"
)
