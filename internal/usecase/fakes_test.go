package usecase

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/scrapestudio/internal/entity"
	"github.com/user/scrapestudio/internal/repository"
)

// In-memory repository fakes shared by the usecase tests. They mirror the
// reconciliation behavior of the real adapters by delegating to the entity
// helpers.

type fakeJobRepo struct {
	mu            sync.Mutex
	jobs          map[string]*entity.ScrapeJob
	activeTargets map[string][]string // projectID -> target ids
	progressLog   map[string][]int
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{
		jobs:          make(map[string]*entity.ScrapeJob),
		activeTargets: make(map[string][]string),
		progressLog:   make(map[string][]int),
	}
}

func (f *fakeJobRepo) CreateJob(_ context.Context, projectID, userID string, targetIDs []string, opts entity.JobOptions, trigger entity.JobTrigger, triggeredBy string) (*entity.ScrapeJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(targetIDs) == 0 {
		targetIDs = f.activeTargets[projectID]
	}
	if len(targetIDs) == 0 {
		return nil, repository.ErrNoActiveTargets
	}

	now := time.Now().UTC()
	job := &entity.ScrapeJob{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		UserID:      userID,
		Status:      entity.JobStatusQueued,
		Options:     opts,
		Trigger:     trigger,
		TriggeredBy: triggeredBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, id := range targetIDs {
		job.Targets = append(job.Targets, entity.TargetStatus{TargetID: id, Status: entity.TargetPending})
	}
	job.Stats.TargetsTotal = len(job.Targets)

	f.jobs[job.ID] = job
	return f.cloneLocked(job.ID), nil
}

func (f *fakeJobRepo) GetJob(_ context.Context, jobID string) (*entity.ScrapeJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[jobID]; !ok {
		return nil, repository.ErrJobNotFound
	}
	return f.cloneLocked(jobID), nil
}

func (f *fakeJobRepo) UpdateJobStatus(_ context.Context, jobID string, status entity.JobStatus, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return repository.ErrJobNotFound
	}
	now := time.Now().UTC()
	job.Status = status
	job.ErrorMessage = errorMessage
	if status == entity.JobStatusRunning && job.StartedAt == nil {
		job.StartedAt = &now
	}
	if status.Terminal() {
		job.CompletedAt = &now
	}
	job.UpdatedAt = now
	return nil
}

func (f *fakeJobRepo) UpdateJobProgress(_ context.Context, jobID string, progress int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return repository.ErrJobNotFound
	}
	job.Progress = progress
	f.progressLog[jobID] = append(f.progressLog[jobID], progress)
	return nil
}

func (f *fakeJobRepo) UpdateTargetStatus(_ context.Context, jobID, targetID string, status entity.TargetRunStatus, progress, resultsCount int, targetErr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return repository.ErrJobNotFound
	}
	for i := range job.Targets {
		if job.Targets[i].TargetID == targetID {
			job.Targets[i].Status = status
			job.Targets[i].Progress = progress
			job.Targets[i].ResultsCount = resultsCount
			job.Targets[i].Error = targetErr
			return nil
		}
	}
	return repository.ErrTargetNotFound
}

func (f *fakeJobRepo) IncrementStats(_ context.Context, jobID string, field repository.StatField, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return repository.ErrJobNotFound
	}
	switch field {
	case repository.StatTargetsCompleted:
		job.Stats.TargetsCompleted += delta
	case repository.StatResultsTotal:
		job.Stats.ResultsTotal += delta
	case repository.StatRequestsMade:
		job.Stats.RequestsMade += delta
	case repository.StatErrorsCount:
		job.Stats.ErrorsCount += delta
	}
	return nil
}

func (f *fakeJobRepo) cloneLocked(jobID string) *entity.ScrapeJob {
	c := *f.jobs[jobID]
	c.Targets = slices.Clone(c.Targets)
	return &c
}

type fakeTargetRepo struct {
	mu      sync.Mutex
	targets map[string]*entity.Target
}

func newFakeTargetRepo(targets ...*entity.Target) *fakeTargetRepo {
	f := &fakeTargetRepo{targets: make(map[string]*entity.Target)}
	for _, t := range targets {
		f.targets[t.ID] = t
	}
	return f
}

func (f *fakeTargetRepo) GetTarget(_ context.Context, targetID string) (*entity.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.targets[targetID]
	if !ok {
		return nil, repository.ErrTargetNotFound
	}
	return t, nil
}

type fakeProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*entity.Project
}

func newFakeProjectRepo(projects ...*entity.Project) *fakeProjectRepo {
	f := &fakeProjectRepo{projects: make(map[string]*entity.Project)}
	for _, p := range projects {
		f.projects[p.ID] = p
	}
	return f
}

func (f *fakeProjectRepo) GetProject(_ context.Context, projectID, _ string) (*entity.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[projectID]
	if !ok {
		return nil, repository.ErrProjectNotFound
	}
	return p, nil
}

type fakeResultRepo struct {
	mu      sync.Mutex
	results []*entity.Result
}

func (f *fakeResultRepo) Store(_ context.Context, result *entity.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
	return nil
}

func (f *fakeResultRepo) stored() []*entity.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.results)
}

type fakeQueueRepo struct {
	mu      sync.Mutex
	pending map[string]bool
	ch      chan string
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{pending: make(map[string]bool), ch: make(chan string, 256)}
}

func (f *fakeQueueRepo) Push(_ context.Context, jobID string) error {
	f.mu.Lock()
	if f.pending[jobID] {
		f.mu.Unlock()
		return repository.ErrAlreadyQueued
	}
	f.pending[jobID] = true
	f.mu.Unlock()
	f.ch <- jobID
	return nil
}

func (f *fakeQueueRepo) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	select {
	case jobID := <-f.ch:
		f.mu.Lock()
		delete(f.pending, jobID)
		f.mu.Unlock()
		return jobID, nil
	case <-time.After(timeout):
		return "", repository.ErrQueueEmpty
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeQueueRepo) Size(_ context.Context) (int64, error) {
	return int64(len(f.ch)), nil
}

type fakeScheduleRepo struct {
	mu         sync.Mutex
	schedules  map[string]*entity.Schedule // keyed by schedule id
	executions []*entity.ScheduleExecution
}

func newFakeScheduleRepo(schedules ...*entity.Schedule) *fakeScheduleRepo {
	f := &fakeScheduleRepo{schedules: make(map[string]*entity.Schedule)}
	for _, s := range schedules {
		f.schedules[s.ID] = s
	}
	return f
}

func (f *fakeScheduleRepo) CreateSchedule(_ context.Context, s *entity.Schedule) (*entity.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.schedules {
		if existing.ProjectID == s.ProjectID {
			return nil, repository.ErrScheduleExists
		}
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	f.schedules[s.ID] = s
	return s, nil
}

func (f *fakeScheduleRepo) GetSchedule(_ context.Context, projectID, _ string) (*entity.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.schedules {
		if s.ProjectID == projectID {
			return s, nil
		}
	}
	return nil, repository.ErrScheduleNotFound
}

func (f *fakeScheduleRepo) UpdateSchedule(_ context.Context, s *entity.Schedule) (*entity.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedules[s.ID] = s
	return s, nil
}

func (f *fakeScheduleRepo) GetDueSchedules(_ context.Context, limit int) ([]*entity.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	var due []*entity.Schedule
	for _, s := range f.schedules {
		if s.Enabled && s.NextRun != nil && !s.NextRun.After(now) {
			due = append(due, s)
			if len(due) == limit {
				break
			}
		}
	}
	return due, nil
}

func (f *fakeScheduleRepo) RecordExecution(_ context.Context, scheduleID, jobID string, status entity.ExecutionStatus, resultsCount int, execErr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().UTC()
	updated := false
	if jobID != "" {
		for _, e := range f.executions {
			if e.ScheduleID == scheduleID && e.JobID == jobID {
				e.Status = status
				e.ResultsCount = resultsCount
				e.Error = execErr
				if status == entity.ExecutionCompleted || status == entity.ExecutionFailed {
					e.CompletedAt = &now
				}
				updated = true
				break
			}
		}
	}
	if !updated {
		f.executions = append(f.executions, &entity.ScheduleExecution{
			ID:           uuid.NewString(),
			ScheduleID:   scheduleID,
			JobID:        jobID,
			Status:       status,
			StartedAt:    now,
			ResultsCount: resultsCount,
			Error:        execErr,
		})
	}

	s, ok := f.schedules[scheduleID]
	if !ok {
		return repository.ErrScheduleNotFound
	}
	return s.ApplyExecution(status, now)
}

func (f *fakeScheduleRepo) RecentExecutions(_ context.Context, scheduleID string, limit int) ([]*entity.ScheduleExecution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.ScheduleExecution
	for i := len(f.executions) - 1; i >= 0 && len(out) < limit; i-- {
		if f.executions[i].ScheduleID == scheduleID {
			out = append(out, f.executions[i])
		}
	}
	return out, nil
}

type fakeWebhookRepo struct {
	mu         sync.Mutex
	webhooks   map[string]*entity.Webhook
	deliveries []*entity.WebhookDelivery
}

func newFakeWebhookRepo(webhooks ...*entity.Webhook) *fakeWebhookRepo {
	f := &fakeWebhookRepo{webhooks: make(map[string]*entity.Webhook)}
	for _, w := range webhooks {
		f.webhooks[w.ID] = w
	}
	return f
}

func (f *fakeWebhookRepo) GetWebhooksForEvent(_ context.Context, userID, event, projectID string) ([]*entity.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Webhook
	for _, w := range f.webhooks {
		if w.UserID != userID || !w.Enabled || !w.SubscribedTo(event) {
			continue
		}
		if w.ProjectID != nil && (projectID == "" || *w.ProjectID != projectID) {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func (f *fakeWebhookRepo) GetWebhook(_ context.Context, webhookID, userID string) (*entity.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.webhooks[webhookID]
	if !ok || w.UserID != userID {
		return nil, repository.ErrWebhookNotFound
	}
	return w, nil
}

func (f *fakeWebhookRepo) RecordDelivery(_ context.Context, d *entity.WebhookDelivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, d)
	if w, ok := f.webhooks[d.WebhookID]; ok {
		w.ApplyDelivery(d)
	}
	return nil
}

func (f *fakeWebhookRepo) RecentDeliveries(_ context.Context, webhookID string, limit int) ([]*entity.WebhookDelivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.WebhookDelivery
	for i := len(f.deliveries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.deliveries[i].WebhookID == webhookID {
			out = append(out, f.deliveries[i])
		}
	}
	return out, nil
}

func (f *fakeWebhookRepo) recorded() []*entity.WebhookDelivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.deliveries)
}

type fakeScraper struct {
	mu    sync.Mutex
	items map[string][]entity.RawItem // keyed by url
	errs  map[string]error
	calls []string
}

func newFakeScraper() *fakeScraper {
	return &fakeScraper{items: make(map[string][]entity.RawItem), errs: make(map[string]error)}
}

func (f *fakeScraper) Scrape(_ context.Context, url, _ string, maxResults int, _ entity.JobOptions) ([]entity.RawItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	items := f.items[url]
	if maxResults > 0 && len(items) > maxResults {
		items = items[:maxResults]
	}
	return items, nil
}

type fakeAnalyzer struct {
	mu      sync.Mutex
	err     error
	batches [][]string
}

func (f *fakeAnalyzer) AnalyzeBatch(_ context.Context, texts []string) ([]entity.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, slices.Clone(texts))
	if f.err != nil {
		return nil, f.err
	}
	out := make([]entity.AnalysisResult, len(texts))
	for i := range out {
		out[i] = entity.AnalysisResult{
			Sentiment: &entity.SentimentAnalysis{Label: "positive", Score: 0.8, Confidence: 0.9},
		}
	}
	return out, nil
}

func (f *fakeAnalyzer) Close() error { return nil }

type fakeAnalyzerFactory struct {
	analyzer *fakeAnalyzer
	openErr  error
}

func (f *fakeAnalyzerFactory) Open(_ context.Context, _ *entity.Project) (repository.Analyzer, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	if f.analyzer == nil {
		f.analyzer = &fakeAnalyzer{}
	}
	return f.analyzer, nil
}
