package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func TestSpanHelpers(t *testing.T) {
	inst, _, recorder := newTestInstrumentation(t)
	ctx := context.Background()

	_, failed := inst.Tracer("server").Start(ctx, "failed")
	RecordError(failed, errors.New("boom"))
	failed.End()

	_, ok := inst.Tracer("server").Start(ctx, "ok")
	AddOAuthFlowAttributes(ok, "client-1", "")
	AddProviderAttributes(ok, "google", "exchange_code")
	AddHTTPAttributes(ok, "GET", "/oauth/authorize", 302)
	SetSpanSuccess(ok)
	ok.End()

	_, msg := inst.Tracer("server").Start(ctx, "message")
	SetSpanError(msg, "denied")
	msg.End()

	spans := recorder.Ended()
	if len(spans) != 3 {
		t.Fatalf("ended spans = %d, want 3", len(spans))
	}

	if spans[0].Status().Code != codes.Error || spans[0].Status().Description != "boom" {
		t.Errorf("failed span status = %+v, want Error/boom", spans[0].Status())
	}
	if len(spans[0].Events()) == 0 {
		t.Error("failed span has no recorded error event")
	}

	if spans[1].Status().Code != codes.Ok {
		t.Errorf("ok span status = %v, want Ok", spans[1].Status().Code)
	}
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range spans[1].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs[AttrClientID].AsString() != "client-1" {
		t.Errorf("%s = %q, want client-1", AttrClientID, attrs[AttrClientID].AsString())
	}
	if _, present := attrs[AttrUserID]; present {
		t.Errorf("%s set for empty user", AttrUserID)
	}
	if attrs[AttrHTTPStatusCode].AsInt64() != 302 {
		t.Errorf("%s = %d, want 302", AttrHTTPStatusCode, attrs[AttrHTTPStatusCode].AsInt64())
	}
	if attrs[AttrProviderName].AsString() != "google" {
		t.Errorf("%s = %q, want google", AttrProviderName, attrs[AttrProviderName].AsString())
	}

	if spans[2].Status().Code != codes.Error || spans[2].Status().Description != "denied" {
		t.Errorf("message span status = %+v, want Error/denied", spans[2].Status())
	}
}

func TestSpanHelpers_NilSafe(t *testing.T) {
	RecordError(nil, errors.New("x"))
	SetSpanSuccess(nil)
	SetSpanError(nil, "x")
	SetSpanAttributes(nil, attribute.String("k", "v"))
	AddOAuthFlowAttributes(nil, "c", "u")
}
