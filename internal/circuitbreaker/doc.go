// Package circuitbreaker implements the circuit breaker pattern for
// notification channels.
//
// A circuit breaker stops calls to a failing channel until it is judged
// healthy again. It has three states:
//
//   - CLOSED: Normal operation, sends pass through
//   - OPEN: Channel failing, sends blocked
//   - HALF-OPEN: One probe send admitted to test recovery
//
// The OPEN to HALF-OPEN move happens lazily inside Allow or State once the
// timeout has elapsed since the last failure. There is no background timer,
// so tests drive the breaker with WithClock.
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(3, 30*time.Second)
//	cb := registry.Get("smtp-primary")
//	if cb.Allow() {
//	    // Send...
//	    if err != nil {
//	        cb.RecordFailure()
//	    } else {
//	        cb.RecordSuccess()
//	    }
//	}
package circuitbreaker
