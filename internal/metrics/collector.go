package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/angeloszaimis/notify-router/internal/circuitbreaker"
)

type EventType string

const (
	EventDispatchCompleted EventType = "dispatch_completed"
	EventRateLimited       EventType = "rate_limited"
	EventAttemptCompleted  EventType = "attempt_completed"
	EventCircuitSkipped    EventType = "circuit_skipped"
	EventBreakerTransition EventType = "breaker_transition"
)

type MetricEvent struct {
	Type      EventType
	Timestamp time.Time
	Channel   string
	Success   bool
	Duration  time.Duration
	From      string
	To        string
	Failures  int
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit queues an event without blocking; it is dropped when the buffer is full.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
	default:
	}
}

// BreakerListener forwards breaker transitions into the collector.
func (c *Collector) BreakerListener() circuitbreaker.Listener {
	return func(t circuitbreaker.Transition) {
		c.Emit(MetricEvent{
			Type:      EventBreakerTransition,
			Timestamp: t.At,
			Channel:   t.Channel,
			From:      t.From.String(),
			To:        t.To.String(),
			Failures:  t.Failures,
		})
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventDispatchCompleted:
		c.metrics.RecordDispatch(event.Success)

	case EventRateLimited:
		c.metrics.RecordRateLimited()

	case EventAttemptCompleted:
		c.metrics.RecordAttempt(event.Channel, event.Success, event.Duration)

	case EventCircuitSkipped:
		c.metrics.RecordSkip(event.Channel)

	case EventBreakerTransition:
		c.metrics.RecordTransition(event.Channel, event.To)
		c.logger.Debug("Breaker transition recorded",
			slog.String("channel", event.Channel),
			slog.String("from", event.From),
			slog.String("to", event.To),
			slog.Int("failures", event.Failures))
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
