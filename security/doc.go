// Package security provides the security helpers of the gate.
//
//   - Auditor: structured security events with hashed user identifiers
//   - Encryptor: XChaCha20-Poly1305 encryption of upstream tokens at rest
//   - RateLimiter: per-identifier token buckets held in a bounded ttlcache
//   - SetSecurityHeaders, GetClientIP, RequestIDMiddleware: HTTP helpers
//
// The rate limiter is opt-in. When configured, the HTTP adapter keys it by
// client IP on the registration and token endpoints:
//
//	limiter := security.NewRateLimiter(5, 10, logger)
//	defer limiter.Stop()
//
//	if !limiter.Allow(security.GetClientIP(r, trustProxy)) {
//	    // 429
//	}
package security
