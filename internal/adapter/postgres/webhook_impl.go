package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/scrapestudio/internal/entity"
	"github.com/user/scrapestudio/internal/repository"
)

// WebhookRepoImpl provides a concrete implementation for the WebhookRepository interface using PostgreSQL.
type WebhookRepoImpl struct {
	db *pgxpool.Pool
}

// NewWebhookRepo creates a new instance of WebhookRepoImpl.
func NewWebhookRepo(db *pgxpool.Pool) *WebhookRepoImpl {
	return &WebhookRepoImpl{db: db}
}

const webhookColumns = `
	id, user_id, project_id, url, events, secret, enabled, headers,
	last_triggered, last_status, consecutive_failures, created_at, updated_at`

func scanWebhook(row pgx.Row) (*entity.Webhook, error) {
	var w entity.Webhook
	var headersJSON []byte
	err := row.Scan(
		&w.ID, &w.UserID, &w.ProjectID, &w.URL, &w.Events, &w.Secret, &w.Enabled, &headersJSON,
		&w.LastTriggered, &w.LastStatus, &w.ConsecutiveFailures, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(headersJSON) > 0 {
		if err := json.Unmarshal(headersJSON, &w.Headers); err != nil {
			return nil, fmt.Errorf("failed to decode webhook headers: %w", err)
		}
	}
	return &w, nil
}

// GetWebhooksForEvent returns the enabled webhooks of a user subscribed to
// the event. Project-scoped webhooks match only when projectID is non-empty
// and equal; global webhooks always match.
func (r *WebhookRepoImpl) GetWebhooksForEvent(ctx context.Context, userID, event, projectID string) ([]*entity.Webhook, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+webhookColumns+`
		FROM webhooks
		WHERE user_id = $1
		  AND enabled
		  AND $2 = ANY(events)
		  AND (project_id IS NULL OR ($3 <> '' AND project_id = $3));
	`, userID, event, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// GetWebhook retrieves a webhook by id.
func (r *WebhookRepoImpl) GetWebhook(ctx context.Context, webhookID, userID string) (*entity.Webhook, error) {
	row := r.db.QueryRow(ctx, `
		SELECT`+webhookColumns+`
		FROM webhooks
		WHERE id = $1 AND user_id = $2;
	`, webhookID, userID)
	w, err := scanWebhook(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrWebhookNotFound
	}
	return w, err
}

// RecordDelivery appends the delivery record and reconciles the webhook's
// failure counters in one statement per side: success resets the counter,
// failure increments it, and the disable threshold flips enabled off.
func (r *WebhookRepoImpl) RecordDelivery(ctx context.Context, d *entity.WebhookDelivery) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO webhook_deliveries (id, webhook_id, event, payload, status_code, response_body, error, delivered_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`, d.ID, d.WebhookID, d.Event, []byte(d.Payload), d.StatusCode, d.ResponseBody, d.Error, d.DeliveredAt, d.DurationMs)
	if err != nil {
		return fmt.Errorf("failed to insert delivery: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE webhooks SET
			last_triggered = $2,
			last_status = $3,
			consecutive_failures = CASE WHEN $4 THEN 0 ELSE consecutive_failures + 1 END,
			enabled = CASE WHEN NOT $4 AND consecutive_failures + 1 >= $5 THEN false ELSE enabled END,
			updated_at = now()
		WHERE id = $1;
	`, d.WebhookID, d.DeliveredAt, d.StatusCode, d.Success(), entity.WebhookDisableThreshold)
	if err != nil {
		return fmt.Errorf("failed to reconcile webhook: %w", err)
	}

	return tx.Commit(ctx)
}

// RecentDeliveries lists the newest delivery records for a webhook.
func (r *WebhookRepoImpl) RecentDeliveries(ctx context.Context, webhookID string, limit int) ([]*entity.WebhookDelivery, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, webhook_id, event, payload, status_code, response_body, error, delivered_at, duration_ms
		FROM webhook_deliveries
		WHERE webhook_id = $1
		ORDER BY delivered_at DESC
		LIMIT $2;
	`, webhookID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.WebhookDelivery
	for rows.Next() {
		var d entity.WebhookDelivery
		var payload []byte
		if err := rows.Scan(&d.ID, &d.WebhookID, &d.Event, &payload, &d.StatusCode,
			&d.ResponseBody, &d.Error, &d.DeliveredAt, &d.DurationMs); err != nil {
			return nil, err
		}
		d.Payload = payload
		out = append(out, &d)
	}
	return out, rows.Err()
}
