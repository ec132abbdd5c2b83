package entity

import (
	"encoding/json"
	"time"
)

// Lifecycle events that webhooks can subscribe to.
const (
	EventJobStarted        = "job.started"
	EventJobCompleted      = "job.completed"
	EventJobFailed         = "job.failed"
	EventAnalysisCompleted = "analysis.completed"
	EventScheduleTriggered = "schedule.triggered"
	EventScheduleFailed    = "schedule.failed"
	EventTargetAdded       = "target.added"
	EventTargetError       = "target.error"
)

// ValidEvent reports whether the given event name is part of the catalog.
func ValidEvent(event string) bool {
	switch event {
	case EventJobStarted, EventJobCompleted, EventJobFailed,
		EventAnalysisCompleted, EventScheduleTriggered, EventScheduleFailed,
		EventTargetAdded, EventTargetError:
		return true
	}
	return false
}

// WebhookDisableThreshold is the number of consecutive delivery failures
// after which a webhook is automatically disabled.
const WebhookDisableThreshold = 5

// Webhook is a user-configured HTTP endpoint subscribed to lifecycle events.
// A nil ProjectID means the webhook is global to the user.
type Webhook struct {
	ID                  string            `json:"id"`
	UserID              string            `json:"user_id"`
	ProjectID           *string           `json:"project_id,omitempty"`
	URL                 string            `json:"url"`
	Events              []string          `json:"events"`
	Secret              string            `json:"secret,omitempty"`
	Enabled             bool              `json:"enabled"`
	Headers             map[string]string `json:"headers,omitempty"`
	LastTriggered       *time.Time        `json:"last_triggered,omitempty"`
	LastStatus          *int              `json:"last_status,omitempty"`
	ConsecutiveFailures int               `json:"consecutive_failures"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// SubscribedTo reports whether the webhook listens for the given event.
func (w *Webhook) SubscribedTo(event string) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// ApplyDelivery reconciles the webhook's failure state after a delivery
// attempt. A 2xx response resets the counter; anything else increments it,
// and reaching WebhookDisableThreshold disables the webhook.
func (w *Webhook) ApplyDelivery(d *WebhookDelivery) {
	t := d.DeliveredAt
	w.LastTriggered = &t
	w.LastStatus = d.StatusCode

	if d.Success() {
		w.ConsecutiveFailures = 0
		return
	}
	w.ConsecutiveFailures++
	if w.ConsecutiveFailures >= WebhookDisableThreshold {
		w.Enabled = false
	}
}

// WebhookEnvelope is the JSON body POSTed to webhook endpoints. The HMAC
// signature, when a secret is configured, is computed over the exact
// serialized bytes of this envelope.
type WebhookEnvelope struct {
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// WebhookDelivery is an append-only record of one delivery attempt.
type WebhookDelivery struct {
	ID           string          `json:"id"`
	WebhookID    string          `json:"webhook_id"`
	Event        string          `json:"event"`
	Payload      json.RawMessage `json:"payload"`
	StatusCode   *int            `json:"status_code,omitempty"`
	ResponseBody string          `json:"response_body,omitempty"`
	Error        string          `json:"error,omitempty"`
	DeliveredAt  time.Time       `json:"delivered_at"`
	DurationMs   float64         `json:"duration_ms"`
}

// Success reports whether the delivery got a 2xx response.
func (d *WebhookDelivery) Success() bool {
	return d.StatusCode != nil && *d.StatusCode >= 200 && *d.StatusCode < 300
}

// WebhookTestResult is the outcome of a synthetic test delivery.
type WebhookTestResult struct {
	Success        bool    `json:"success"`
	StatusCode     *int    `json:"status_code,omitempty"`
	ResponseTimeMs float64 `json:"response_time_ms"`
	Error          string  `json:"error,omitempty"`
}
