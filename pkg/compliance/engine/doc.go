// Package engine evaluates business actions against compliance rules.
//
// # Architecture
//
//  1. Condition Evaluator - resolves a dot-path field on the action and
//     applies the condition operator (or its custom predicate)
//  2. Action Executor - runs the response actions of a violated rule, each
//     one isolated from the failures of the others
//  3. Rule Registry - owns the rules and their evaluation counters
//  4. Engine - iterates enabled rules, records violations in a
//     violations.Store and builds the compliance.Result
//
// # Evaluation Flow
//
//	Action
//	  ↓
//	For each enabled rule (insertion order):
//	  For each condition:
//	    Holds? → continue
//	    Fails? → Violation → store → execute rule actions
//	  Update rule counters
//	  ↓
//	Result (compliant, violations, severity, recommendations, audit flag)
//
// # Field Paths
//
// Paths start with an action attribute and walk into nested data:
//
//	type, user_id, tenant_id, resource
//	data.consent
//	data.subject.country
//	context.ip_address
//
// A path that does not resolve yields an absent value. Absent values still
// take part in the comparison: equals is false, not_equals is true, in is
// false and not_in is true.
package engine
