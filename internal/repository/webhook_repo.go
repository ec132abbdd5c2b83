package repository

import (
	"context"

	"github.com/user/scrapestudio/internal/entity"
)

// WebhookRepository defines the contract for webhook persistence.
//
// RecordDelivery both appends the delivery record and reconciles the
// webhook's failure counters: a 2xx delivery resets consecutiveFailures, any
// other outcome increments it, and reaching entity.WebhookDisableThreshold
// disables the webhook.
type WebhookRepository interface {
	// GetWebhooksForEvent returns the enabled webhooks of a user subscribed
	// to event. A non-empty projectID matches project-scoped webhooks for
	// that project plus global ones; an empty projectID matches only global
	// webhooks.
	GetWebhooksForEvent(ctx context.Context, userID, event, projectID string) ([]*entity.Webhook, error)
	// GetWebhook retrieves a webhook by id.
	GetWebhook(ctx context.Context, webhookID, userID string) (*entity.Webhook, error)
	// RecordDelivery appends a delivery record (response body truncated to
	// 1000 characters) and reconciles the webhook's failure state.
	RecordDelivery(ctx context.Context, d *entity.WebhookDelivery) error
	// RecentDeliveries lists the newest delivery records for a webhook.
	RecentDeliveries(ctx context.Context, webhookID string, limit int) ([]*entity.WebhookDelivery, error)
}
