package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/sentinel/pkg/compliance"
)

// Attribute keys use the "sentinel." namespace.
const (
	AttrActionType  = "sentinel.action.type"
	AttrTenant      = "sentinel.tenant"
	AttrCheckID     = "sentinel.check.id"
	AttrCompliant   = "sentinel.check.compliant"
	AttrBlocked     = "sentinel.check.blocked"
	AttrViolations  = "sentinel.check.violations"
	AttrSeverity    = "sentinel.check.severity"
	AttrRuleFailure = "sentinel.check.rule_failures"
	AttrReportType  = "sentinel.report.type"
	AttrArchived    = "sentinel.retention.archived"
	AttrDeleted     = "sentinel.retention.deleted"
	AttrPolicyErrs  = "sentinel.retention.errors"
)

// ActionAttributes describes the action under check.
func ActionAttributes(action *compliance.Action, tenantID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(AttrTenant, tenantID)}
	if action != nil {
		attrs = append(attrs, attribute.String(AttrActionType, action.Type))
	}
	return attrs
}

// SetResultAttributes records a check outcome on span.
func SetResultAttributes(span trace.Span, r *compliance.Result) {
	if r == nil {
		return
	}
	span.SetAttributes(
		attribute.String(AttrCheckID, r.CheckID),
		attribute.Bool(AttrCompliant, r.Compliant),
		attribute.Bool(AttrBlocked, r.Blocked),
		attribute.Int(AttrViolations, len(r.Violations)),
		attribute.String(AttrSeverity, string(r.Severity)),
	)
	if len(r.RuleFailures) > 0 {
		span.SetAttributes(attribute.Int(AttrRuleFailure, len(r.RuleFailures)))
	}
}

// SetError marks span as failed. A nil error sets status OK.
func SetError(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
