// Package ruleset loads compliance rules, retention policies and payload
// schemas from YAML files and keeps a manager in sync with them.
//
// A rule file may hold any mix of the three sections:
//
//	rules:
//	  - id: gdpr-consent
//	    name: Consent required for personal data
//	    type: gdpr
//	    category: privacy
//	    severity: high
//	    enabled: true
//	    conditions:
//	      - type: user_consent
//	        field: data.consent
//	        operator: equals
//	        value: true
//	    actions:
//	      - type: block
//
//	retention_policies:
//	  - id: logs
//	    name: Access logs
//	    data_types: [access_log]
//	    retention_period: 365
//	    archive_after: 90
//	    delete_after: 365
//	    enabled: true
//	    exceptions:
//	      - condition: "legal_hold == true"
//	        retention_period: 3650
//
//	schemas:
//	  - action_type: data_export
//	    fields:
//	      - {name: destination, kind: string, required: true}
//
// Load parses and validates a set of files and directories. A Syncer
// applies a loaded Set to a manager, removing rules and policies that an
// earlier Set contributed but the new one no longer contains; entries added
// through the API are left alone. Watcher reloads on file changes.
package ruleset
