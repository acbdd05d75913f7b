// Package channel provides concrete notification adapters and a factory that
// builds them from configuration.
//
//   - LogAdapter: delivers by writing a structured log record
//   - WebhookAdapter: POSTs the request as JSON to an HTTP endpoint
//   - Throttle: wraps any adapter with a token-bucket send rate
package channel
