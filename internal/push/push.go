// Package push delivers Web Push payloads to browser subscriptions.
package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Subscription is the delivery target registered by a browser.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// Payload is the JSON body shown by the service worker.
type Payload struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	URL     string `json:"url,omitempty"`
	Type    string `json:"type,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

// Sender sends one payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub Subscription, payload []byte) error
}

// StatusError is returned when the push service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("push service responded %d: %s", e.StatusCode, e.Body)
}

// IsGone reports whether err means the subscription no longer exists.
func IsGone(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusGone
}

// Disabled drops every payload. It is used when no VAPID keys are configured.
type Disabled struct{}

func (Disabled) Send(context.Context, Subscription, []byte) error {
	return errors.New("push delivery is not configured")
}
