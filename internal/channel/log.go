package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/angeloszaimis/notify-router/internal/notification"
)

// LogAdapter "delivers" a notification by logging it. With failEvery > 0
// every failEvery-th send fails, which is handy for exercising fallback.
type LogAdapter struct {
	name      string
	types     map[notification.ChannelType]bool
	logger    *slog.Logger
	failEvery uint64
	sent      atomic.Uint64
}

func NewLogAdapter(name string, logger *slog.Logger, failEvery int, types ...notification.ChannelType) *LogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	set := make(map[notification.ChannelType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}

	a := &LogAdapter{
		name:   name,
		types:  set,
		logger: logger.With(slog.String("channel", name)),
	}
	if failEvery > 0 {
		a.failEvery = uint64(failEvery)
	}
	return a
}

func (a *LogAdapter) Supports(t notification.ChannelType) bool {
	return a.types[t]
}

func (a *LogAdapter) Send(ctx context.Context, req notification.Request) (notification.Result, error) {
	if err := ctx.Err(); err != nil {
		return notification.Result{}, err
	}

	n := a.sent.Add(1)
	if a.failEvery > 0 && n%a.failEvery == 0 {
		a.logger.Warn("Simulated delivery failure",
			slog.String("recipient", req.Recipient),
			slog.String("type", req.Type.String()))
		return notification.Failed(fmt.Sprintf("%s service temporarily unavailable", a.name), notification.ErrTransport), nil
	}

	a.logger.Info("Delivered notification",
		slog.String("recipient", req.Recipient),
		slog.String("type", req.Type.String()),
		slog.String("message", req.Message))

	return notification.Succeeded(a.name, fmt.Sprintf("%s sent successfully", req.Type)), nil
}
