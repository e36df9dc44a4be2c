package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/sentinel/pkg/compliance"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "disabled default", mutate: func(*Config) {}},
		{name: "enabled default", mutate: func(c *Config) { c.Enabled = true }},
		{name: "bad exporter", mutate: func(c *Config) { c.Enabled = true; c.Exporter = "zipkin" }, wantErr: true},
		{name: "missing endpoint", mutate: func(c *Config) { c.Enabled = true; c.Endpoint = "" }, wantErr: true},
		{name: "missing service", mutate: func(c *Config) { c.Enabled = true; c.ServiceName = "" }, wantErr: true},
		{name: "ratio out of range", mutate: func(c *Config) { c.Enabled = true; c.SampleRatio = 1.5 }, wantErr: true},
		{name: "unknown sampler", mutate: func(c *Config) { c.Enabled = true; c.Sampler = "sometimes" }, wantErr: true},
		{name: "invalid but disabled", mutate: func(c *Config) { c.Sampler = "sometimes" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_Disabled(t *testing.T) {
	tracer, err := New(context.Background(), DefaultConfig(), "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tracer.Enabled() {
		t.Error("expected disabled tracer")
	}

	_, span := tracer.Tracer().Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("expected noop span")
	}
	span.End()

	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(context.Background(), nil, "test"); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestNewWithExporter_RecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Sampler = SamplerAlways

	tracer, err := NewWithExporter(cfg, "1.0.0", sdktrace.WithSyncer(exporter))
	if err != nil {
		t.Fatalf("NewWithExporter() error = %v", err)
	}
	defer tracer.Shutdown(context.Background())

	action := &compliance.Action{Type: "data_export"}
	_, span := tracer.Tracer().Start(context.Background(), "compliance.check")
	span.SetAttributes(ActionAttributes(action, "t1")...)
	SetResultAttributes(span, &compliance.Result{
		CheckID:      "c1",
		Compliant:    false,
		Blocked:      true,
		Violations:   []*compliance.Violation{{ID: "v1"}},
		Severity:     compliance.SeverityHigh,
		RuleFailures: []compliance.RuleFailure{{RuleID: "r2"}},
	})
	SetError(span, errors.New("boom"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	got := spans[0]
	if got.Name != "compliance.check" {
		t.Errorf("span name = %q", got.Name)
	}
	if got.Status.Code != codes.Error || got.Status.Description != "boom" {
		t.Errorf("status = %+v, want error boom", got.Status)
	}

	want := map[attribute.Key]attribute.Value{
		AttrTenant:      attribute.StringValue("t1"),
		AttrActionType:  attribute.StringValue("data_export"),
		AttrCheckID:     attribute.StringValue("c1"),
		AttrBlocked:     attribute.BoolValue(true),
		AttrViolations:  attribute.IntValue(1),
		AttrSeverity:    attribute.StringValue("high"),
		AttrRuleFailure: attribute.IntValue(1),
	}
	attrs := make(map[attribute.Key]attribute.Value, len(got.Attributes))
	for _, kv := range got.Attributes {
		attrs[kv.Key] = kv.Value
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attribute %s = %v, want %v", k, attrs[k].Emit(), v.Emit())
		}
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.25, false},
		{SamplerRatio, -0.1, true},
		{"bogus", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			sampler, err := createSampler(tt.strategy, tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Fatalf("createSampler() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && sampler == nil {
				t.Error("expected sampler")
			}
		})
	}
}
