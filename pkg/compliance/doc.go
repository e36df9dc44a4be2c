// Package compliance defines the data model shared by the Sentinel compliance
// engine: rules, conditions, response actions, violations, the business
// actions being checked, and the result of a compliance check.
//
// # Rules
//
// A Rule carries an ordered list of Conditions and a list of ResponseActions.
// Every condition describes a property the checked Action is expected to hold;
// each condition that does not hold produces a Violation, and the rule's
// response actions run once per violation.
//
//	rule := &compliance.Rule{
//	    ID:       "gdpr-consent",
//	    Name:     "Personal data requires consent",
//	    Type:     compliance.RuleTypeGDPR,
//	    Category: compliance.CategoryDataProtection,
//	    Severity: compliance.SeverityHigh,
//	    Enabled:  true,
//	    Conditions: []compliance.Condition{{
//	        Type:     compliance.ConditionUserConsent,
//	        Field:    "data.consent",
//	        Operator: compliance.OperatorEquals,
//	        Value:    true,
//	    }},
//	    Actions: []compliance.ResponseAction{{Type: compliance.ResponseLog}},
//	}
//
// # Severity
//
// Severities are totally ordered: low < medium < high < critical. The
// severity of a check result is the highest severity among its violations
// and defaults to low when there are none. High and critical results
// require an audit follow-up.
//
// # Validation
//
// ValidateRule, ValidateAction and the Schema registry report structural
// problems as booleans; Problems functions return the detailed list used in
// ValidationError when a rule is rejected on insertion.
package compliance
