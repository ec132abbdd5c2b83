package repository

import (
	"context"

	"github.com/user/scrapestudio/internal/entity"
)

// Scraper defines the contract for the platform scraping collaborator. The
// executor only supplies url, platform and limit; platform-specific
// extraction is entirely the scraper's concern.
type Scraper interface {
	Scrape(ctx context.Context, url, platform string, maxResults int, opts entity.JobOptions) ([]entity.RawItem, error)
}

// Analyzer runs text analysis for one job. Instances are scoped to a job run
// and configured from the project's LLM settings.
type Analyzer interface {
	// AnalyzeBatch analyzes one batch of texts, returning one result per
	// input text in order.
	AnalyzeBatch(ctx context.Context, texts []string) ([]entity.AnalysisResult, error)
	Close() error
}

// AnalyzerFactory builds a per-job Analyzer from the project configuration.
// A construction failure fails the whole job before any target runs.
type AnalyzerFactory interface {
	Open(ctx context.Context, project *entity.Project) (Analyzer, error)
}
