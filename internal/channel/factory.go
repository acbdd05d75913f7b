package channel

import (
	"fmt"
	"log/slog"

	"github.com/angeloszaimis/notify-router/config"
	"github.com/angeloszaimis/notify-router/internal/notification"
)

// FromConfig builds the adapter described by cc, throttled when rate_per_sec
// is set. cc is expected to have passed config validation.
func FromConfig(cc config.ChannelConfig, logger *slog.Logger) (notification.Adapter, error) {
	types := cc.ParsedTypes()
	if len(types) == 0 {
		return nil, fmt.Errorf("channel %q: no valid types", cc.Name)
	}

	var adapter notification.Adapter
	switch cc.Kind {
	case config.KindLog:
		adapter = NewLogAdapter(cc.Name, logger, cc.FailEvery, types...)
	case config.KindWebhook:
		if cc.URL == "" {
			return nil, fmt.Errorf("channel %q: webhook url is required", cc.Name)
		}
		adapter = NewWebhookAdapter(cc.Name, cc.URL, cc.TimeoutDuration(), types...)
	default:
		return nil, fmt.Errorf("channel %q: unknown kind %q", cc.Name, cc.Kind)
	}

	return Throttle(adapter, cc.RatePerSec), nil
}
