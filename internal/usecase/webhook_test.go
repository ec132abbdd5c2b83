package usecase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/scrapestudio/internal/entity"
	"go.uber.org/zap"
)

func newTestWebhook(url string, events ...string) *entity.Webhook {
	return &entity.Webhook{
		ID:      "wh-1",
		UserID:  "user-1",
		URL:     url,
		Events:  events,
		Secret:  "s3cret",
		Enabled: true,
	}
}

func TestTriggerEventDeliversSignedEnvelope(t *testing.T) {
	var gotBody []byte
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hook := newTestWebhook(srv.URL, entity.EventJobCompleted)
	hook.Headers = map[string]string{"X-Custom": "yes"}
	repo := newFakeWebhookRepo(hook)
	svc := NewWebhookService(repo, time.Second, zap.NewNop())

	count := svc.TriggerEvent(context.Background(), "user-1", entity.EventJobCompleted,
		map[string]any{"job_id": "job-1"}, "")
	require.Equal(t, 1, count)

	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "ScrapeStudio/1.0", gotHeaders.Get("User-Agent"))
	assert.Equal(t, entity.EventJobCompleted, gotHeaders.Get("X-Webhook-Event"))
	assert.Equal(t, "yes", gotHeaders.Get("X-Custom"))

	var envelope entity.WebhookEnvelope
	require.NoError(t, json.Unmarshal(gotBody, &envelope))
	assert.Equal(t, entity.EventJobCompleted, envelope.Event)
	assert.Equal(t, "job-1", envelope.Data["job_id"])

	// Signature must verify against the exact bytes received.
	sig := gotHeaders.Get("X-Webhook-Signature")
	require.True(t, strings.HasPrefix(sig, "sha256="))
	assert.True(t, VerifySignature(gotBody, "s3cret", strings.TrimPrefix(sig, "sha256=")))

	deliveries := repo.recorded()
	require.Len(t, deliveries, 1)
	assert.True(t, deliveries[0].Success())
	assert.Equal(t, 0, hook.ConsecutiveFailures)
}

func TestTriggerEventFiltersBySubscriptionAndScope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	projectID := "proj-1"
	subscribed := newTestWebhook(srv.URL, entity.EventJobCompleted)
	otherEvent := &entity.Webhook{ID: "wh-2", UserID: "user-1", URL: srv.URL, Events: []string{entity.EventJobFailed}, Enabled: true}
	disabled := &entity.Webhook{ID: "wh-3", UserID: "user-1", URL: srv.URL, Events: []string{entity.EventJobCompleted}, Enabled: false}
	otherProject := &entity.Webhook{ID: "wh-4", UserID: "user-1", URL: srv.URL, Events: []string{entity.EventJobCompleted}, Enabled: true, ProjectID: ptr("proj-2")}
	repo := newFakeWebhookRepo(subscribed, otherEvent, disabled, otherProject)
	svc := NewWebhookService(repo, time.Second, zap.NewNop())

	count := svc.TriggerEvent(context.Background(), "user-1", entity.EventJobCompleted, nil, projectID)
	assert.Equal(t, 1, count)
}

func TestTriggerEventRecordsFailuresAndDisablesWebhook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	hook := newTestWebhook(srv.URL, entity.EventJobFailed)
	repo := newFakeWebhookRepo(hook)
	svc := NewWebhookService(repo, time.Second, zap.NewNop())

	for i := 1; i < entity.WebhookDisableThreshold; i++ {
		svc.TriggerEvent(context.Background(), "user-1", entity.EventJobFailed, nil, "")
		assert.Equal(t, i, hook.ConsecutiveFailures)
		assert.True(t, hook.Enabled)
	}
	svc.TriggerEvent(context.Background(), "user-1", entity.EventJobFailed, nil, "")
	assert.Equal(t, entity.WebhookDisableThreshold, hook.ConsecutiveFailures)
	assert.False(t, hook.Enabled)

	// Disabled webhooks no longer match.
	count := svc.TriggerEvent(context.Background(), "user-1", entity.EventJobFailed, nil, "")
	assert.Equal(t, 0, count)

	deliveries := repo.recorded()
	require.Len(t, deliveries, entity.WebhookDisableThreshold)
	for _, d := range deliveries {
		assert.False(t, d.Success())
		assert.Equal(t, "boom\n", d.ResponseBody)
	}
}

func TestTriggerEventSuccessResetsFailureCounter(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook := newTestWebhook(srv.URL, entity.EventJobStarted)
	repo := newFakeWebhookRepo(hook)
	svc := NewWebhookService(repo, time.Second, zap.NewNop())

	fail.Store(true)
	svc.TriggerEvent(context.Background(), "user-1", entity.EventJobStarted, nil, "")
	svc.TriggerEvent(context.Background(), "user-1", entity.EventJobStarted, nil, "")
	require.Equal(t, 2, hook.ConsecutiveFailures)

	fail.Store(false)
	svc.TriggerEvent(context.Background(), "user-1", entity.EventJobStarted, nil, "")
	assert.Equal(t, 0, hook.ConsecutiveFailures)
	assert.True(t, hook.Enabled)
}

func TestTriggerEventRecordsConnectionErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // nothing is listening anymore

	hook := newTestWebhook(url, entity.EventJobCompleted)
	repo := newFakeWebhookRepo(hook)
	svc := NewWebhookService(repo, time.Second, zap.NewNop())

	count := svc.TriggerEvent(context.Background(), "user-1", entity.EventJobCompleted, nil, "")
	assert.Equal(t, 1, count)

	deliveries := repo.recorded()
	require.Len(t, deliveries, 1)
	assert.Nil(t, deliveries[0].StatusCode)
	assert.NotEmpty(t, deliveries[0].Error)
	assert.Equal(t, 1, hook.ConsecutiveFailures)
}

func TestTriggerEventTruncatesResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 5000)))
	}))
	defer srv.Close()

	hook := newTestWebhook(srv.URL, entity.EventJobCompleted)
	repo := newFakeWebhookRepo(hook)
	svc := NewWebhookService(repo, time.Second, zap.NewNop())

	svc.TriggerEvent(context.Background(), "user-1", entity.EventJobCompleted, nil, "")
	deliveries := repo.recorded()
	require.Len(t, deliveries, 1)
	assert.Len(t, deliveries[0].ResponseBody, maxResponseBodyBytes)
}

func TestTestWebhookDoesNotRecordDelivery(t *testing.T) {
	var gotEvent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEvent = r.Header.Get("X-Webhook-Event")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// Not subscribed to anything: test deliveries bypass the filter.
	hook := newTestWebhook(srv.URL)
	repo := newFakeWebhookRepo(hook)
	svc := NewWebhookService(repo, time.Second, zap.NewNop())

	result := svc.TestWebhook(context.Background(), hook)
	require.True(t, result.Success)
	require.NotNil(t, result.StatusCode)
	assert.Equal(t, http.StatusOK, *result.StatusCode)
	assert.Equal(t, "test", gotEvent)

	assert.Empty(t, repo.recorded())
	assert.Equal(t, 0, hook.ConsecutiveFailures)
}

func TestSignPayloadRoundTrip(t *testing.T) {
	payload := []byte(`{"event":"job.completed","data":{"job_id":"j1"}}`)
	sig := SignPayload(payload, "secret")
	assert.True(t, VerifySignature(payload, "secret", sig))
	assert.False(t, VerifySignature(payload, "other", sig))
	assert.False(t, VerifySignature([]byte(`{}`), "secret", sig))
}

func ptr[T any](v T) *T { return &v }
