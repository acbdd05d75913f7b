// Package metrics collects dispatch telemetry for the notification router.
//
// It uses a channel-based event pipeline to asynchronously record:
//   - Dispatch outcomes, including rate-limit rejections
//   - Per-channel delivery and failure counts with send latency percentiles
//   - Channels skipped because their circuit was open
//   - Circuit breaker transitions and the last known breaker state
//
// The collector runs in a dedicated goroutine. Emit never blocks: when the
// buffer is full the event is dropped, so a slow or absent collector never
// affects dispatch.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	registry := circuitbreaker.NewRegistry(3, 30*time.Second,
//		circuitbreaker.WithListener(collector.BreakerListener()))
//
//	snapshot := collector.Snapshot()
package metrics
