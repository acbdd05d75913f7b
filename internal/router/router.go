package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angeloszaimis/notify-router/internal/circuitbreaker"
	"github.com/angeloszaimis/notify-router/internal/metrics"
	"github.com/angeloszaimis/notify-router/internal/notification"
	"github.com/angeloszaimis/notify-router/internal/ratelimit"
)

var ErrUnknownChannel = errors.New("unknown channel")

type Config struct {
	FailureThreshold int
	Timeout          time.Duration
	MaxPerDay        int
	Location         *time.Location
}

// Channel pairs an adapter with the name its breaker is registered under.
type Channel struct {
	Name    string
	Adapter notification.Adapter
}

type Option func(*Router)

func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithStore replaces the in-memory quota table, e.g. with a RedisStore.
func WithStore(store ratelimit.Store) Option {
	return func(r *Router) {
		if store != nil {
			r.store = store
		}
	}
}

func WithTelemetry(collector *metrics.Collector) Option {
	return func(r *Router) {
		r.telemetry = collector
	}
}

type route struct {
	name    string
	adapter notification.Adapter
	breaker *circuitbreaker.CircuitBreaker
}

// Router dispatches each request to the first healthy channel that supports
// its type, in registration order, within the recipient's daily quota.
type Router struct {
	routes    []route
	breakers  *circuitbreaker.Registry
	store     ratelimit.Store
	loc       *time.Location
	now       func() time.Time
	logger    *slog.Logger
	telemetry *metrics.Collector
}

func New(cfg Config, channels []Channel, opts ...Option) (*Router, error) {
	r := &Router{
		now:    time.Now,
		logger: slog.Default(),
		loc:    cfg.Location,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.loc == nil {
		r.loc = time.UTC
	}
	if r.store == nil {
		r.store = ratelimit.NewMemoryStore(cfg.MaxPerDay)
	}
	r.logger = r.logger.With(slog.String("component", "router"))

	breakerOpts := []circuitbreaker.Option{
		circuitbreaker.WithClock(r.now),
		circuitbreaker.WithListener(r.onTransition),
	}
	r.breakers = circuitbreaker.NewRegistry(cfg.FailureThreshold, cfg.Timeout, breakerOpts...)

	seen := make(map[string]bool, len(channels))
	for _, ch := range channels {
		if ch.Name == "" {
			return nil, fmt.Errorf("channel name is required")
		}
		if ch.Adapter == nil {
			return nil, fmt.Errorf("channel %q has no adapter", ch.Name)
		}
		if seen[ch.Name] {
			return nil, fmt.Errorf("duplicate channel %q", ch.Name)
		}
		seen[ch.Name] = true

		r.routes = append(r.routes, route{
			name:    ch.Name,
			adapter: ch.Adapter,
			breaker: r.breakers.Get(ch.Name),
		})
	}

	return r, nil
}

// Dispatch always returns a well-formed result; adapter errors and panics are
// converted into failures.
func (r *Router) Dispatch(ctx context.Context, req notification.Request) notification.Result {
	log := r.logger.With(
		slog.String("dispatch_id", uuid.NewString()),
		slog.String("recipient", req.Recipient),
		slog.String("type", req.Type.String()))

	day := ratelimit.Day(r.now(), r.loc)
	ok, err := r.store.Reserve(ctx, req.Recipient, day)
	if err != nil {
		log.Error("Quota check failed", slog.Any("err", err))
		r.emit(metrics.MetricEvent{Type: metrics.EventDispatchCompleted})
		return notification.Failed(fmt.Sprintf("quota check failed: %v", err), err)
	}
	if !ok {
		log.Warn("Rate limit exceeded")
		r.emit(metrics.MetricEvent{Type: metrics.EventRateLimited})
		return notification.Failed(
			fmt.Sprintf("rate limit exceeded for recipient %s", req.Recipient),
			notification.ErrRateLimited,
		)
	}

	result := r.deliver(ctx, log, req)
	if !result.Success {
		// Bookkeeping must survive a cancelled caller.
		if err := r.store.Release(context.WithoutCancel(ctx), req.Recipient, day); err != nil {
			log.Error("Failed to release quota slot", slog.Any("err", err))
		}
	}

	r.emit(metrics.MetricEvent{Type: metrics.EventDispatchCompleted, Channel: result.Channel, Success: result.Success})
	return result
}

func (r *Router) deliver(ctx context.Context, log *slog.Logger, req notification.Request) notification.Result {
	candidates := r.candidates(req.Type)
	if len(candidates) == 0 {
		log.Warn("No channel supports request type")
		return notification.Failed(
			fmt.Sprintf("no channel supports type %s", req.Type),
			notification.ErrNoChannel,
		)
	}

	var (
		errs    []string
		skipped []string
	)
	for _, rt := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", rt.name, err))
			break
		}

		if !rt.breaker.Allow() {
			log.Debug("Circuit open, skipping channel", slog.String("channel", rt.name))
			r.emit(metrics.MetricEvent{Type: metrics.EventCircuitSkipped, Channel: rt.name})
			skipped = append(skipped, rt.name)
			continue
		}

		start := r.now()
		res, err := r.send(ctx, rt, req)
		elapsed := r.now().Sub(start)

		if err == nil && res.Success {
			rt.breaker.RecordSuccess()
			r.emit(metrics.MetricEvent{Type: metrics.EventAttemptCompleted, Channel: rt.name, Success: true, Duration: elapsed})
			log.Info("Notification delivered", slog.String("channel", rt.name))
			return res.WithChannel(rt.name)
		}

		rt.breaker.RecordFailure()
		r.emit(metrics.MetricEvent{Type: metrics.EventAttemptCompleted, Channel: rt.name, Duration: elapsed})

		detail := res.Detail
		if err != nil {
			detail = fmt.Sprintf("adapter %s failed: %v", rt.name, err)
		}
		log.Warn("Channel attempt failed",
			slog.String("channel", rt.name),
			slog.String("detail", detail),
			slog.Int("failures", rt.breaker.Failures()))
		errs = append(errs, detail)
	}

	if len(errs) == 0 {
		return notification.Failed(
			fmt.Sprintf("all notification attempts failed: circuit open for %s", strings.Join(skipped, ", ")),
			notification.ErrCircuitOpen,
		)
	}

	return notification.Failed(
		"all notification attempts failed: "+strings.Join(errs, "; "),
		notification.ErrAllFailed,
	)
}

// send calls the adapter, turning a panic into an error.
func (r *Router) send(ctx context.Context, rt route, req notification.Request) (res notification.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = notification.Result{}
			err = fmt.Errorf("%w: panic: %v", notification.ErrTransport, p)
		}
	}()

	res, err = rt.adapter.Send(ctx, req)
	if err == nil && !res.Success && res.Detail == "" {
		res.Detail = fmt.Sprintf("%s reported failure", rt.name)
	}
	return res, err
}

func (r *Router) candidates(t notification.ChannelType) []route {
	out := make([]route, 0, len(r.routes))
	for _, rt := range r.routes {
		if rt.adapter.Supports(t) {
			out = append(out, rt)
		}
	}
	return out
}

// Breaker returns the breaker guarding the named channel.
func (r *Router) Breaker(name string) (*circuitbreaker.CircuitBreaker, bool) {
	return r.breakers.Lookup(name)
}

func (r *Router) Breakers() *circuitbreaker.Registry {
	return r.breakers
}

// ResetBreaker force-closes the named channel's breaker.
func (r *Router) ResetBreaker(name string) error {
	if !r.breakers.Reset(name) {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	r.logger.Info("Circuit breaker reset", slog.String("channel", name))
	return nil
}

// SentToday reports how many deliveries the recipient has used today.
func (r *Router) SentToday(ctx context.Context, recipient string) (int, error) {
	return r.store.Count(ctx, recipient, ratelimit.Day(r.now(), r.loc))
}

// Channels lists channel names in registration order.
func (r *Router) Channels() []string {
	names := make([]string, len(r.routes))
	for i, rt := range r.routes {
		names[i] = rt.name
	}
	return names
}

func (r *Router) onTransition(t circuitbreaker.Transition) {
	r.logger.Info("Circuit breaker transition",
		slog.String("channel", t.Channel),
		slog.String("from", t.From.String()),
		slog.String("to", t.To.String()),
		slog.Int("failures", t.Failures))

	if r.telemetry != nil {
		r.telemetry.BreakerListener()(t)
	}
}

func (r *Router) emit(event metrics.MetricEvent) {
	if r.telemetry == nil {
		return
	}
	r.telemetry.Emit(event)
}
