package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/giantswarm/mcp-gate/instrumentation"
)

// Auditor logs security events. User identifiers are emails, so they are
// hashed before they reach the log.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
	metrics *instrumentation.Metrics
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// SetInstrumentation counts audit events in oauth.audit.events.total.
func (a *Auditor) SetInstrumentation(inst *instrumentation.Instrumentation) {
	a.metrics = inst.Metrics()
}

// Event represents a security audit event
type Event struct {
	Type      string
	UserID    string
	ClientID  string
	IPAddress string
	RequestID string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII. Nil and disabled auditors
// drop the event.
func (a *Auditor) LogEvent(ctx context.Context, event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.Timestamp = time.Now()
	if event.RequestID == "" {
		event.RequestID = GetRequestID(ctx)
	}
	if event.IPAddress == "" {
		event.IPAddress = ClientIPFromContext(ctx)
	}

	a.logger.InfoContext(ctx, "security_audit",
		"event_type", event.Type,
		"user_id_hash", HashForLogging(event.UserID),
		"client_id", event.ClientID,
		"ip_address", event.IPAddress,
		"request_id", event.RequestID,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
	a.metrics.RecordAuditEvent(ctx, event.Type)
}

// LogAuthorizationStarted logs a stored pending authorization
func (a *Auditor) LogAuthorizationStarted(ctx context.Context, clientID, ipAddress string) {
	a.LogEvent(ctx, Event{
		Type:      EventAuthorizationStarted,
		ClientID:  clientID,
		IPAddress: ipAddress,
	})
}

// LogAccessDenied logs a verified identity rejected by the allow policy
func (a *Auditor) LogAccessDenied(ctx context.Context, userID, clientID string) {
	a.LogEvent(ctx, Event{
		Type:     EventAccessDenied,
		UserID:   userID,
		ClientID: clientID,
	})
}

// LogCodeIssued logs an authorization code bound to userID
func (a *Auditor) LogCodeIssued(ctx context.Context, userID, clientID string) {
	a.LogEvent(ctx, Event{
		Type:     EventAuthorizationCodeIssued,
		UserID:   userID,
		ClientID: clientID,
	})
}

// LogPKCEFailure logs a code_verifier mismatch
func (a *Auditor) LogPKCEFailure(ctx context.Context, userID, clientID string) {
	a.LogEvent(ctx, Event{
		Type:     EventPKCEValidationFailed,
		UserID:   userID,
		ClientID: clientID,
	})
}

// LogTokenIssued logs a token pair issued for grantType
func (a *Auditor) LogTokenIssued(ctx context.Context, userID, clientID, grantType string) {
	a.LogEvent(ctx, Event{
		Type:     EventTokenIssued,
		UserID:   userID,
		ClientID: clientID,
		Details: map[string]any{
			"grant_type": grantType,
		},
	})
}

// LogTokenRefreshed logs a successful refresh grant
func (a *Auditor) LogTokenRefreshed(ctx context.Context, userID string) {
	a.LogEvent(ctx, Event{
		Type:   EventTokenRefreshed,
		UserID: userID,
	})
}

// LogAuthFailure logs a rejected credential of the given event type
func (a *Auditor) LogAuthFailure(ctx context.Context, eventType, clientID, ipAddress, reason string) {
	a.LogEvent(ctx, Event{
		Type:      eventType,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogClientRegistered logs a new client registration
func (a *Auditor) LogClientRegistered(ctx context.Context, clientID, ipAddress string, redirectURIs int) {
	a.LogEvent(ctx, Event{
		Type:      EventClientRegistered,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"redirect_uris": redirectURIs,
		},
	})
}

// LogRateLimitExceeded logs a rate limit violation
func (a *Auditor) LogRateLimitExceeded(ctx context.Context, ipAddress, endpoint string) {
	a.LogEvent(ctx, Event{
		Type:      EventRateLimitExceeded,
		IPAddress: ipAddress,
		Details: map[string]any{
			"endpoint": endpoint,
		},
	})
}

// HashForLogging returns a short SHA-256 prefix of a sensitive value.
func HashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
