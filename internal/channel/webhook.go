package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/angeloszaimis/notify-router/internal/notification"
)

const defaultWebhookTimeout = 5 * time.Second

// WebhookAdapter posts each request as JSON. A 2xx response is a delivery;
// any other status is a failed result; a transport error is a fault.
type WebhookAdapter struct {
	name   string
	url    string
	types  map[notification.ChannelType]bool
	client *http.Client
}

func NewWebhookAdapter(name, url string, timeout time.Duration, types ...notification.ChannelType) *WebhookAdapter {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	set := make(map[notification.ChannelType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}

	return &WebhookAdapter{
		name:   name,
		url:    url,
		types:  set,
		client: &http.Client{Timeout: timeout},
	}
}

func (a *WebhookAdapter) Supports(t notification.ChannelType) bool {
	return a.types[t]
}

func (a *WebhookAdapter) Send(ctx context.Context, req notification.Request) (notification.Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return notification.Result{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return notification.Result{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(httpReq)
	if err != nil {
		return notification.Result{}, fmt.Errorf("%w: %v", notification.ErrTransport, err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return notification.Failed(
			fmt.Sprintf("%s responded %d", a.name, res.StatusCode),
			notification.ErrTransport,
		), nil
	}

	return notification.Succeeded(a.name, fmt.Sprintf("%s accepted with %d", a.name, res.StatusCode)), nil
}
