package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/scrapestudio/internal/entity"
	"github.com/user/scrapestudio/internal/repository"
	"go.uber.org/zap"
)

// HTTPAnalyzerFactory builds per-job analyzer clients for the sentiment and
// emotion analysis sidecar.
type HTTPAnalyzerFactory struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

// NewHTTPAnalyzerFactory creates a factory pointing at the analysis service.
func NewHTTPAnalyzerFactory(baseURL string, timeout time.Duration, log *zap.Logger) *HTTPAnalyzerFactory {
	return &HTTPAnalyzerFactory{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Open builds an analyzer configured from the project's LLM and analysis
// settings. A missing service URL is a setup failure.
func (f *HTTPAnalyzerFactory) Open(_ context.Context, project *entity.Project) (repository.Analyzer, error) {
	if f.baseURL == "" {
		return nil, errors.New("analyzer service URL is not configured")
	}
	return &HTTPAnalyzer{
		url:      f.baseURL + "/v1/analyze/batch",
		client:   f.client,
		llm:      project.Config.LLM,
		analysis: project.Config.Analysis,
		log:      f.log.With(zap.String("project_id", project.ID)),
	}, nil
}

// HTTPAnalyzer posts text batches to the analysis service.
type HTTPAnalyzer struct {
	url      string
	client   *http.Client
	llm      entity.LLMConfig
	analysis entity.AnalysisConfig
	log      *zap.Logger
}

type batchRequest struct {
	Texts    []string              `json:"texts"`
	LLM      entity.LLMConfig      `json:"llm"`
	Analysis entity.AnalysisConfig `json:"analysis"`
}

type batchResponse struct {
	Results []entity.AnalysisResult `json:"results"`
}

// AnalyzeBatch analyzes one batch of texts, returning one result per input
// text in order.
func (a *HTTPAnalyzer) AnalyzeBatch(ctx context.Context, texts []string) ([]entity.AnalysisResult, error) {
	body, err := json.Marshal(batchRequest{Texts: texts, LLM: a.llm, Analysis: a.analysis})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize batch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("analysis service returned %d: %s", resp.StatusCode, snippet)
	}

	var out batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode analysis response: %w", err)
	}
	if len(out.Results) != len(texts) {
		return nil, fmt.Errorf("analysis service returned %d results for %d texts", len(out.Results), len(texts))
	}

	a.log.Debug("batch analyzed",
		zap.Int("texts", len(texts)),
		zap.Duration("duration", time.Since(start)))
	return out.Results, nil
}

// Close releases nothing today; the http client is shared by the factory.
func (a *HTTPAnalyzer) Close() error { return nil }
