package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"mercator-hq/sentinel/pkg/audit"
	"mercator-hq/sentinel/pkg/compliance"
	"mercator-hq/sentinel/pkg/compliance/violations"
	"mercator-hq/sentinel/pkg/report"
)

// TenantHeader names the tenant when the query has no tenant parameter.
const TenantHeader = "X-Tenant-ID"

type errorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

type resolveRequest struct {
	ResolvedBy string `json:"resolved_by"`
	Notes      string `json:"notes"`
}

type resolveResponse struct {
	ID       string `json:"id"`
	Resolved bool   `json:"resolved"`
}

type apiHandler struct {
	svc     Service
	logger  *slog.Logger
	maxBody int64
}

func (h *apiHandler) check(w http.ResponseWriter, r *http.Request) {
	var action compliance.Action
	if !h.decode(w, r, &action) {
		return
	}

	result, err := h.svc.CheckCompliance(r.Context(), &action, tenant(r))
	if err != nil {
		var verr *compliance.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Error(), Problems: verr.Problems})
			return
		}
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *apiHandler) listRules(w http.ResponseWriter, r *http.Request) {
	rules := h.svc.GetRules()
	if t := r.URL.Query().Get("type"); t != "" {
		filtered := rules[:0]
		for _, rule := range rules {
			if string(rule.Type) == t {
				filtered = append(filtered, rule)
			}
		}
		rules = filtered
	}
	writeJSON(w, http.StatusOK, rules)
}

func (h *apiHandler) getRule(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.svc.GetRule(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, compliance.ErrRuleNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *apiHandler) listViolations(w http.ResponseWriter, r *http.Request) {
	filter, err := violationFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := h.svc.GetViolations(r.Context(), filter)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if list == nil {
		list = []*compliance.Violation{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *apiHandler) resolveViolation(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ResolvedBy == "" {
		writeError(w, http.StatusBadRequest, "resolved_by is required")
		return
	}

	id := r.PathValue("id")
	ok, err := h.svc.ResolveViolation(r.Context(), id, req.ResolvedBy, req.Notes)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, compliance.ErrViolationNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{ID: id, Resolved: true})
}

func (h *apiHandler) auditTrail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &audit.Filter{
		UserID:     q.Get("user"),
		TenantID:   q.Get("tenant"),
		ActionType: q.Get("action_type"),
	}
	var err error
	if filter.StartTime, err = parseTime(q, "since"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.EndTime, err = parseTime(q, "until"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Limit, err = parseInt(q, "limit"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries := h.svc.GetAuditTrail(filter)
	if entries == nil {
		entries = []*audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *apiHandler) report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ruleType := compliance.RuleType(q.Get("type"))
	if ruleType != "" && !ruleType.IsValid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown rule type %q", ruleType))
		return
	}
	period, err := reportPeriod(q, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := h.svc.GenerateComplianceReport(r.Context(), ruleType, period, tenant(r))
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *apiHandler) runRetention(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.EnforceDataRetention(r.Context(), tenant(r)))
}

func (h *apiHandler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.GetMetrics(r.Context()))
}

func (h *apiHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (h *apiHandler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "request failed",
		"path", r.URL.Path,
		"request_id", RequestID(r.Context()),
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func tenant(r *http.Request) string {
	if t := r.URL.Query().Get("tenant"); t != "" {
		return t
	}
	return r.Header.Get(TenantHeader)
}

func violationFilter(q url.Values) (*violations.Filter, error) {
	f := &violations.Filter{
		RuleID:   q.Get("rule_id"),
		Type:     compliance.RuleType(q.Get("type")),
		Severity: compliance.Severity(q.Get("severity")),
		TenantID: q.Get("tenant"),
	}
	if f.Severity != "" && !f.Severity.IsValid() {
		return nil, fmt.Errorf("unknown severity %q", f.Severity)
	}
	if v := q.Get("resolved"); v != "" {
		resolved, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("resolved: %w", err)
		}
		f.Resolved = &resolved
	}
	since, err := parseTime(q, "since")
	if err != nil {
		return nil, err
	}
	if !since.IsZero() {
		f.StartTime = &since
	}
	until, err := parseTime(q, "until")
	if err != nil {
		return nil, err
	}
	if !until.IsZero() {
		f.EndTime = &until
	}
	if f.Offset, err = parseInt(q, "offset"); err != nil {
		return nil, err
	}
	if f.Limit, err = parseInt(q, "limit"); err != nil {
		return nil, err
	}
	return f, nil
}

// reportPeriod reads since/until, falling back to the last "days" days
// (default 30) ending at now.
func reportPeriod(q url.Values, now time.Time) (report.Period, error) {
	days := 30
	if q.Get("days") != "" {
		n, err := parseInt(q, "days")
		if err != nil {
			return report.Period{}, err
		}
		if n <= 0 {
			return report.Period{}, fmt.Errorf("days must be positive")
		}
		days = n
	}
	p := report.LastDays(now, days)

	until, err := parseTime(q, "until")
	if err != nil {
		return p, err
	}
	if !until.IsZero() {
		p = report.LastDays(until, days)
	}
	since, err := parseTime(q, "since")
	if err != nil {
		return p, err
	}
	if !since.IsZero() {
		p.Start = since
	}
	if p.End.Before(p.Start) {
		return p, fmt.Errorf("period end is before start")
	}
	return p, nil
}

func parseTime(q url.Values, key string) (time.Time, error) {
	v := q.Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid time %q", key, v)
	}
	return t, nil
}

func parseInt(q url.Values, key string) (int, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: invalid number %q", key, v)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
