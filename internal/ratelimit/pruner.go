package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const DefaultPruneSchedule = "@daily"

type Prunable interface {
	Prune(day string) int
}

type PrunerOption func(*Pruner)

func WithPruneClock(now func() time.Time) PrunerOption {
	return func(p *Pruner) {
		if now != nil {
			p.now = now
		}
	}
}

// Pruner periodically drops quota windows from days before today.
type Pruner struct {
	cron   *cron.Cron
	store  Prunable
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

func NewPruner(schedule string, store Prunable, loc *time.Location, logger *slog.Logger, opts ...PrunerOption) (*Pruner, error) {
	if schedule == "" {
		schedule = DefaultPruneSchedule
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pruner{
		cron:   cron.New(cron.WithLocation(loc)),
		store:  store,
		loc:    loc,
		now:    time.Now,
		logger: logger.With(slog.String("component", "quota-pruner")),
	}
	for _, opt := range opts {
		opt(p)
	}

	if _, err := p.cron.AddFunc(schedule, func() { p.Prune() }); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	return p, nil
}

// Prune runs one pass immediately and returns the number of windows dropped.
func (p *Pruner) Prune() int {
	day := Day(p.now(), p.loc)
	dropped := p.store.Prune(day)
	p.logger.Debug("Pruned quota windows",
		slog.String("day", day),
		slog.Int("dropped", dropped))
	return dropped
}

func (p *Pruner) Start() {
	p.cron.Start()
	p.logger.Info("Quota pruner started")
}

// Stop halts the schedule and waits for a running pass, up to ctx.
func (p *Pruner) Stop(ctx context.Context) {
	done := p.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	p.logger.Info("Quota pruner stopped")
}
