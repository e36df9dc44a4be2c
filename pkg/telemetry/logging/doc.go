// Package logging builds the service's log/slog logger.
//
// The logger writes JSON or text records and decorates each one with the
// compliance fields carried in the context (request, tenant, user and
// check ids) plus the OpenTelemetry trace and span ids of the active span.
// With RedactPII set, attribute values are scrubbed before they are written:
//
//	logger, err := logging.New(logging.Config{
//	    Level:     "info",
//	    Format:    "json",
//	    RedactPII: true,
//	})
//
//	ctx = logging.WithTenant(ctx, "tenant-1")
//	logger.InfoContext(ctx, "consent recorded",
//	    "email", "jane@example.com", // written as ***@example.com
//	    "api_key", "abcd1234efgh",   // written as abcd***
//	)
//
// # PII Redaction
//
// Values under keys that look sensitive (password, token, secret, ssn,
// credit_card, ...) are masked entirely. Other string values have the
// following patterns rewritten:
//
//   - Emails: user@example.com → ***@example.com
//   - SSN: 123-45-6789 → ***-**-****
//   - Card numbers: 4111-1111-1111-1111 → ****-****-****-****
//   - IPv4 addresses: 192.168.1.100 → 192.*.*.*
//   - Phone numbers: 555-123-4567 → ***-***-****
//   - Bearer tokens and password=... pairs
package logging
