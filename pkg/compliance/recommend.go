package compliance

var typeRecommendations = map[RuleType]string{
	RuleTypeGDPR:     "Review GDPR data protection rules and consent records",
	RuleTypeCCPA:     "Review CCPA consumer privacy rules and opt-out handling",
	RuleTypeHIPAA:    "Review HIPAA safeguards for protected health information",
	RuleTypeSOX:      "Review SOX financial reporting controls",
	RuleTypePCIDSS:   "Review PCI DSS cardholder data controls",
	RuleTypeISO27001: "Review ISO 27001 information security controls",
	RuleTypeCustom:   "Review custom compliance rules",
}

const (
	recommendCritical = "Address critical violations immediately"
	recommendHigh     = "Prioritize remediation of high-severity violations"
)

// Recommendations derives remediation advice from a set of violations. The
// list has no duplicates: severity advice first, then one entry per rule
// type in the order the types first appear.
func Recommendations(violations []*Violation) []string {
	recs := make([]string, 0, 4)
	seen := make(map[string]struct{})
	add := func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		recs = append(recs, s)
	}

	var hasCritical, hasHigh bool
	for _, v := range violations {
		switch v.Severity {
		case SeverityCritical:
			hasCritical = true
		case SeverityHigh:
			hasHigh = true
		}
	}
	if hasCritical {
		add(recommendCritical)
	}
	if hasHigh {
		add(recommendHigh)
	}

	for _, v := range violations {
		if msg, ok := typeRecommendations[v.Type]; ok {
			add(msg)
		} else if v.Type != "" {
			add("Review " + v.Type.DisplayName() + " compliance rules")
		}
	}
	return recs
}
