package channel

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/angeloszaimis/notify-router/internal/notification"
)

type throttled struct {
	notification.Adapter
	limiter *rate.Limiter
}

// Throttle caps an adapter at perSecond sends with an equal burst.
// perSecond <= 0 returns the adapter unchanged.
func Throttle(a notification.Adapter, perSecond int) notification.Adapter {
	if perSecond <= 0 {
		return a
	}
	return &throttled{
		Adapter: a,
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

func (t *throttled) Send(ctx context.Context, req notification.Request) (notification.Result, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return notification.Result{}, fmt.Errorf("throttle: %w", err)
	}
	return t.Adapter.Send(ctx, req)
}
