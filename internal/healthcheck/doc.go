// Package healthcheck derives service readiness from circuit breaker state
// and periodically reports channels whose circuits are open.
package healthcheck
