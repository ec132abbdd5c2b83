package usecase

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/scrapestudio/internal/entity"
	"github.com/user/scrapestudio/internal/repository"
	"github.com/user/scrapestudio/pkg/metrics"
	"go.uber.org/zap"
)

const (
	webhookUserAgent       = "ScrapeStudio/1.0"
	defaultDeliveryTimeout = 30 * time.Second
	testDeliveryTimeout    = 10 * time.Second
	maxResponseBodyBytes   = 1000
)

// WebhookService fans lifecycle events out to subscribed endpoints. Every
// matching webhook is delivered concurrently; a slow or broken endpoint never
// delays the others, and delivery failures never propagate to the caller.
type WebhookService struct {
	webhookRepo repository.WebhookRepository
	client      *http.Client
	timeout     time.Duration
	log         *zap.Logger
}

func NewWebhookService(webhookRepo repository.WebhookRepository, timeout time.Duration, log *zap.Logger) *WebhookService {
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	return &WebhookService{
		webhookRepo: webhookRepo,
		client:      &http.Client{},
		timeout:     timeout,
		log:         log,
	}
}

// TriggerEvent delivers the event to every enabled webhook of the user that
// subscribes to it, scoped to projectID (empty means global-only). It returns
// the number of webhooks attempted; individual outcomes are recorded in the
// delivery log, not returned.
func (s *WebhookService) TriggerEvent(ctx context.Context, userID, event string, payload map[string]any, projectID string) int {
	hooks, err := s.webhookRepo.GetWebhooksForEvent(ctx, userID, event, projectID)
	if err != nil {
		s.log.Error("failed to look up webhooks for event",
			zap.String("event", event), zap.String("user_id", userID), zap.Error(err))
		return 0
	}
	if len(hooks) == 0 {
		return 0
	}

	var wg sync.WaitGroup
	for _, hook := range hooks {
		wg.Add(1)
		go func(w *entity.Webhook) {
			defer wg.Done()
			s.deliver(ctx, w, event, payload)
		}(hook)
	}
	wg.Wait()

	return len(hooks)
}

// deliver POSTs one signed envelope and records the outcome unconditionally,
// network failures included.
func (s *WebhookService) deliver(ctx context.Context, w *entity.Webhook, event string, payload map[string]any) bool {
	body, err := json.Marshal(entity.WebhookEnvelope{
		Event:     event,
		Timestamp: time.Now().UTC(),
		Data:      payload,
	})
	if err != nil {
		s.log.Error("failed to serialize webhook payload", zap.String("event", event), zap.Error(err))
		return false
	}

	start := time.Now()
	statusCode, responseBody, deliveryErr := s.post(ctx, w, event, body, s.timeout)
	duration := time.Since(start)
	metrics.WebhookDuration.Observe(duration.Seconds())

	delivery := &entity.WebhookDelivery{
		ID:          uuid.NewString(),
		WebhookID:   w.ID,
		Event:       event,
		Payload:     body,
		StatusCode:  statusCode,
		DeliveredAt: time.Now().UTC(),
		DurationMs:  float64(duration.Milliseconds()),
	}
	delivery.ResponseBody = truncate(responseBody, maxResponseBodyBytes)
	if deliveryErr != "" {
		delivery.Error = deliveryErr
	}

	if err := s.webhookRepo.RecordDelivery(ctx, delivery); err != nil {
		s.log.Error("failed to record webhook delivery", zap.String("webhook_id", w.ID), zap.Error(err))
	}

	if delivery.Success() {
		metrics.WebhooksTotal.WithLabelValues(event, "success").Inc()
		s.log.Info("webhook delivered", zap.String("url", w.URL), zap.Intp("status", statusCode))
		return true
	}
	metrics.WebhooksTotal.WithLabelValues(event, "failure").Inc()
	s.log.Warn("webhook delivery failed",
		zap.String("url", w.URL), zap.Intp("status", statusCode), zap.String("error", deliveryErr))
	return false
}

// TestWebhook sends a synthetic payload to the endpoint, bypassing the
// subscription filter and using a shorter timeout. The attempt is not added
// to the delivery log and does not count toward auto-disable.
func (s *WebhookService) TestWebhook(ctx context.Context, w *entity.Webhook) *entity.WebhookTestResult {
	body, err := json.Marshal(entity.WebhookEnvelope{
		Event:     "test",
		Timestamp: time.Now().UTC(),
		Data: map[string]any{
			"test":    true,
			"message": "This is a test webhook delivery from ScrapeStudio",
		},
	})
	if err != nil {
		return &entity.WebhookTestResult{Error: err.Error()}
	}

	start := time.Now()
	statusCode, _, deliveryErr := s.post(ctx, w, "test", body, testDeliveryTimeout)
	elapsed := float64(time.Since(start).Milliseconds())

	result := &entity.WebhookTestResult{
		StatusCode:     statusCode,
		ResponseTimeMs: elapsed,
		Error:          deliveryErr,
	}
	result.Success = statusCode != nil && *statusCode >= 200 && *statusCode < 300
	return result
}

// post performs the signed POST. It returns the status code when a response
// arrived, the response body, and a non-empty error string on transport
// failure.
func (s *WebhookService) post(ctx context.Context, w *entity.Webhook, event string, body []byte, timeout time.Duration) (*int, string, string) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return nil, "", err.Error()
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)
	req.Header.Set("X-Webhook-Event", event)
	for k, v := range w.Headers {
		req.Header.Set(k, v)
	}
	if w.Secret != "" {
		req.Header.Set("X-Webhook-Signature", "sha256="+SignPayload(body, w.Secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, "", "request timed out"
		}
		return nil, "", err.Error()
	}
	defer resp.Body.Close()

	responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes+1))
	status := resp.StatusCode
	return &status, string(responseBody), ""
}

// SignPayload computes the hex HMAC-SHA256 of the payload bytes under the
// webhook secret. Receivers verify by recomputing it over the body they got.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature against the payload bytes.
func VerifySignature(payload []byte, secret, signature string) bool {
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Lifecycle event helpers used by the executor and scheduler.

func (s *WebhookService) notifyJobStarted(ctx context.Context, job *entity.ScrapeJob) {
	s.TriggerEvent(ctx, job.UserID, entity.EventJobStarted, map[string]any{
		"job_id":        job.ID,
		"project_id":    job.ProjectID,
		"targets_count": len(job.Targets),
	}, job.ProjectID)
}

func (s *WebhookService) notifyJobCompleted(ctx context.Context, job *entity.ScrapeJob, resultsCount int, duration time.Duration) {
	s.TriggerEvent(ctx, job.UserID, entity.EventJobCompleted, map[string]any{
		"job_id":           job.ID,
		"project_id":       job.ProjectID,
		"results_count":    resultsCount,
		"duration_seconds": duration.Seconds(),
	}, job.ProjectID)
}

func (s *WebhookService) notifyJobFailed(ctx context.Context, job *entity.ScrapeJob, jobErr error) {
	s.TriggerEvent(ctx, job.UserID, entity.EventJobFailed, map[string]any{
		"job_id":     job.ID,
		"project_id": job.ProjectID,
		"error":      fmt.Sprint(jobErr),
	}, job.ProjectID)
}

func (s *WebhookService) notifyScheduleTriggered(ctx context.Context, sched *entity.Schedule, jobID string) {
	s.TriggerEvent(ctx, sched.UserID, entity.EventScheduleTriggered, map[string]any{
		"schedule_id": sched.ID,
		"project_id":  sched.ProjectID,
		"job_id":      jobID,
	}, sched.ProjectID)
}

func (s *WebhookService) notifyScheduleFailed(ctx context.Context, sched *entity.Schedule, schedErr error) {
	s.TriggerEvent(ctx, sched.UserID, entity.EventScheduleFailed, map[string]any{
		"schedule_id": sched.ID,
		"project_id":  sched.ProjectID,
		"error":       fmt.Sprint(schedErr),
	}, sched.ProjectID)
}
