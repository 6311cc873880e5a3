// Package instrumentation provides OpenTelemetry instrumentation for mcp-gate.
//
// An Instrumentation holds a meter and tracer provider. When Config.Enabled
// is false both are no-ops; otherwise SDK providers are built and fed to the
// configured MetricReader and SpanProcessor.
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "mcp-gate",
//		ServiceVersion: version,
//		Enabled:        true,
//		MetricReader:   reader,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
// # Available Metrics
//
// HTTP:
//   - oauth.http.requests.total{method, endpoint, status}
//   - oauth.http.request.duration{endpoint}
//
// OAuth flow:
//   - oauth.authorization.started{client_id}
//   - oauth.callback.processed{client_id, success}
//   - oauth.code.exchanged{client_id, success}
//   - oauth.token.refreshed{success}
//   - oauth.client.registered
//
// Security:
//   - oauth.ratelimit.exceeded{limiter_type}
//   - oauth.pkce.validation_failed{method}
//   - oauth.access.denied
//   - oauth.audit.events.total{event_type}
//
// Storage:
//   - oauth.storage.operations.total{operation, result}
//   - oauth.storage.operation.duration{operation}
//   - oauth.storage.records
//
// Provider:
//   - oauth.provider.api.calls.total{provider, operation}
//   - oauth.provider.api.duration{provider, operation}
//   - oauth.provider.api.errors.total{provider, operation}
//
// Spans never carry authorization codes, states, verifiers or tokens.
package instrumentation
