package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type ChannelType int

const (
	ChannelEmail ChannelType = iota + 1
	ChannelSMS
	ChannelPush
	ChannelWebhook
)

var (
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrCircuitOpen = errors.New("circuit open")
	ErrTransport   = errors.New("transport failure")
	ErrAllFailed   = errors.New("all notification attempts failed")
	ErrNoChannel   = errors.New("no channel supports type")
)

func (t ChannelType) String() string {
	switch t {
	case ChannelEmail:
		return "EMAIL"
	case ChannelSMS:
		return "SMS"
	case ChannelPush:
		return "PUSH"
	case ChannelWebhook:
		return "WEBHOOK"
	default:
		return "UNKNOWN"
	}
}

// ParseChannelType accepts the names returned by String, case-insensitively.
func ParseChannelType(s string) (ChannelType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EMAIL":
		return ChannelEmail, nil
	case "SMS":
		return ChannelSMS, nil
	case "PUSH":
		return ChannelPush, nil
	case "WEBHOOK":
		return ChannelWebhook, nil
	default:
		return 0, fmt.Errorf("unknown channel type %q", s)
	}
}

func (t ChannelType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ChannelType) UnmarshalText(b []byte) error {
	parsed, err := ParseChannelType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Request is a single notification to deliver. Treat it as a value.
type Request struct {
	Recipient string      `json:"recipient"`
	Message   string      `json:"message"`
	Type      ChannelType `json:"type"`
}

func NewRequest(recipient, message string, t ChannelType) (Request, error) {
	req := Request{Recipient: recipient, Message: message, Type: t}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

func (r Request) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Recipient, validation.Required),
		validation.Field(&r.Message, validation.Required),
		validation.Field(&r.Type,
			validation.Required,
			validation.In(ChannelEmail, ChannelSMS, ChannelPush, ChannelWebhook),
		),
	)
}

// Result is the outcome of one send attempt or of a whole dispatch.
// Err is nil on success and one of the package sentinels (possibly wrapped)
// on failure.
type Result struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail"`
	Channel string `json:"channel,omitempty"`
	Err     error  `json:"-"`
}

func Succeeded(channel, detail string) Result {
	return Result{Success: true, Detail: detail, Channel: channel}
}

func Failed(detail string, err error) Result {
	return Result{Success: false, Detail: detail, Err: err}
}

// WithChannel returns a copy of r attributed to the named channel.
func (r Result) WithChannel(channel string) Result {
	r.Channel = channel
	return r
}

type Adapter interface {
	Supports(t ChannelType) bool
	Send(ctx context.Context, req Request) (Result, error)
}
