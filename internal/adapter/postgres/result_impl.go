package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/scrapestudio/internal/entity"
)

// ResultRepoImpl provides a concrete implementation for the ResultRepository interface using PostgreSQL.
type ResultRepoImpl struct {
	db *pgxpool.Pool
}

// NewResultRepo creates a new instance of ResultRepoImpl.
func NewResultRepo(db *pgxpool.Pool) *ResultRepoImpl {
	return &ResultRepoImpl{db: db}
}

// Store persists one scraped-and-analyzed result.
func (r *ResultRepoImpl) Store(ctx context.Context, result *entity.Result) error {
	contentJSON, err := json.Marshal(result.Content)
	if err != nil {
		return fmt.Errorf("failed to serialize result content: %w", err)
	}
	analysisJSON, err := json.Marshal(result.Analysis)
	if err != nil {
		return fmt.Errorf("failed to serialize result analysis: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO results (id, project_id, target_id, user_id, scrape_job_id, content, analysis, platform, language, word_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`, result.ID, result.ProjectID, result.TargetID, result.UserID, result.ScrapeJobID,
		contentJSON, analysisJSON, result.Platform, result.Language, result.WordCount, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	return nil
}
