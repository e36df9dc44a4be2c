package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mercator-hq/sentinel/pkg/compliance"
	"mercator-hq/sentinel/pkg/events"
)

// Executor runs the response actions of a violated rule. Each action is
// isolated: an error or panic in one action is logged and recorded in its
// ActionResult, and the remaining actions still run.
type Executor struct {
	sink   events.Sink
	logger *slog.Logger
}

// NewExecutor creates an executor emitting alert, block and notification
// events to sink. A nil sink discards events.
func NewExecutor(sink events.Sink, logger *slog.Logger) *Executor {
	if sink == nil {
		sink = events.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		sink:   sink,
		logger: logger.With("component", "compliance.executor"),
	}
}

// Execute runs every action for the violation, in order.
func (e *Executor) Execute(ctx context.Context, v *compliance.Violation, actions []compliance.ResponseAction) []*compliance.ActionResult {
	results := make([]*compliance.ActionResult, 0, len(actions))
	for _, action := range actions {
		results = append(results, e.executeAction(ctx, v, action))
	}
	return results
}

func (e *Executor) executeAction(ctx context.Context, v *compliance.Violation, action compliance.ResponseAction) (result *compliance.ActionResult) {
	result = &compliance.ActionResult{
		ViolationID: v.ID,
		RuleID:      v.RuleID,
		ActionType:  action.Type,
	}

	defer func() {
		if r := recover(); r != nil {
			err := &compliance.ExecutionError{
				ViolationID: v.ID,
				ActionType:  action.Type,
				Cause:       fmt.Errorf("panic: %v", r),
			}
			e.logger.ErrorContext(ctx, "compliance action panicked",
				"violation_id", v.ID,
				"action_type", action.Type,
				"error", err,
			)
			result.Success = false
			result.Error = err.Error()
		}
	}()

	var details map[string]any
	var err error

	switch action.Type {
	case compliance.ResponseLog:
		details = e.executeLog(ctx, v)

	case compliance.ResponseAlert:
		details = e.executeAlert(ctx, v, action)

	case compliance.ResponseBlock:
		details = e.executeBlock(ctx, v, action)

	case compliance.ResponseNotify:
		details = e.executeNotify(ctx, v, action)

	case compliance.ResponseEncrypt, compliance.ResponseAnonymize, compliance.ResponseDelete:
		details = e.executeHint(ctx, v, action)

	case compliance.ResponseCustom:
		err = e.executeCustom(ctx, v, action)

	default:
		err = fmt.Errorf("unknown action type %q", action.Type)
	}

	if err != nil {
		execErr := &compliance.ExecutionError{ViolationID: v.ID, ActionType: action.Type, Cause: err}
		e.logger.ErrorContext(ctx, "compliance action failed",
			"violation_id", v.ID,
			"rule_id", v.RuleID,
			"action_type", action.Type,
			"error", execErr,
		)
		result.Error = execErr.Error()
		return result
	}

	result.Success = true
	result.Details = details
	return result
}

func (e *Executor) executeLog(ctx context.Context, v *compliance.Violation) map[string]any {
	e.logger.InfoContext(ctx, "compliance violation",
		"violation_id", v.ID,
		"rule_id", v.RuleID,
		"rule_type", v.Type,
		"severity", v.Severity,
		"description", v.Description,
		"tenant_id", v.Data.TenantID,
	)
	return nil
}

func (e *Executor) executeAlert(ctx context.Context, v *compliance.Violation, action compliance.ResponseAction) map[string]any {
	severity, ok := compliance.ParseSeverity(action.StringParam("severity", ""))
	if !ok {
		severity = compliance.SeverityMedium
	}

	e.sink.Emit(ctx, events.Event{
		Name:       events.ComplianceAlert,
		TenantID:   v.Data.TenantID,
		Violation:  v.Clone(),
		Severity:   severity,
		Parameters: action.Parameters,
	})

	e.logger.WarnContext(ctx, "compliance alert raised",
		"violation_id", v.ID,
		"rule_id", v.RuleID,
		"alert_severity", severity,
	)
	return map[string]any{"severity": string(severity)}
}

func (e *Executor) executeBlock(ctx context.Context, v *compliance.Violation, action compliance.ResponseAction) map[string]any {
	reason := action.StringParam("reason", "Compliance violation: "+v.Description)

	e.sink.Emit(ctx, events.Event{
		Name:       events.ComplianceBlock,
		TenantID:   v.Data.TenantID,
		Violation:  v.Clone(),
		Severity:   v.Severity,
		Reason:     reason,
		Parameters: action.Parameters,
	})

	e.logger.WarnContext(ctx, "action blocked by compliance rule",
		"violation_id", v.ID,
		"rule_id", v.RuleID,
		"reason", reason,
	)
	return map[string]any{"reason": reason}
}

func (e *Executor) executeNotify(ctx context.Context, v *compliance.Violation, action compliance.ResponseAction) map[string]any {
	channel := action.StringParam("channel", "default")

	e.sink.Emit(ctx, events.Event{
		Name:       events.ComplianceNotification,
		TenantID:   v.Data.TenantID,
		Violation:  v.Clone(),
		Severity:   v.Severity,
		Parameters: action.Parameters,
	})

	e.logger.InfoContext(ctx, "compliance notification sent",
		"violation_id", v.ID,
		"channel", channel,
	)
	return map[string]any{"channel": channel}
}

// executeHint records a remediation hint. The engine does not touch data
// itself; encrypt, anonymize and delete are carried out by the caller.
func (e *Executor) executeHint(ctx context.Context, v *compliance.Violation, action compliance.ResponseAction) map[string]any {
	resource := ""
	if v.Data.Action != nil {
		resource = v.Data.Action.Resource
	}
	e.logger.InfoContext(ctx, "remediation hint recorded",
		"violation_id", v.ID,
		"hint", action.Type,
		"resource", resource,
	)
	return map[string]any{"hint": string(action.Type), "resource": resource}
}

func (e *Executor) executeCustom(ctx context.Context, v *compliance.Violation, action compliance.ResponseAction) error {
	if action.Handler == nil {
		return errors.New("custom action has no handler")
	}
	return action.Handler(ctx, v.Clone())
}
