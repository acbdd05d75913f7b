package healthcheck

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/angeloszaimis/notify-router/internal/circuitbreaker"
)

// Report summarises breaker health. The service is ready while at least one
// channel can still be attempted.
type Report struct {
	Status string   `json:"status"`
	Open   []string `json:"open,omitempty"`
	Total  int      `json:"total"`
}

func Check(registry *circuitbreaker.Registry) Report {
	stats := registry.Stats()

	open := make([]string, 0, len(stats))
	for name, stat := range stats {
		if stat.State == circuitbreaker.StateOpen {
			open = append(open, name)
		}
	}
	sort.Strings(open)

	status := "ok"
	switch {
	case len(stats) > 0 && len(open) == len(stats):
		status = "unavailable"
	case len(open) > 0:
		status = "degraded"
	}

	return Report{Status: status, Open: open, Total: len(stats)}
}

// Handler answers 503 only when every channel's circuit is open.
func Handler(registry *circuitbreaker.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := Check(registry)

		code := http.StatusOK
		if report.Status == "unavailable" {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	}
}

// Watch logs open circuits every interval until ctx is done.
func Watch(
	ctx context.Context,
	registry *circuitbreaker.Registry,
	interval time.Duration,
	logger *slog.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Health watch stopped")
			return

		case <-ticker.C:
			report := Check(registry)
			if len(report.Open) == 0 {
				continue
			}
			logger.Warn("Channels with open circuits",
				slog.String("status", report.Status),
				slog.Any("open", report.Open),
				slog.Int("total", report.Total))
		}
	}
}
