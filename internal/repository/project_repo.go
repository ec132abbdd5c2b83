package repository

import (
	"context"

	"github.com/user/scrapestudio/internal/entity"
)

// ProjectRepository defines the read contract for project records. Project
// CRUD itself lives in the API layer; the orchestration core only resolves
// projects to obtain their configuration.
type ProjectRepository interface {
	GetProject(ctx context.Context, projectID, userID string) (*entity.Project, error)
}

// TargetRepository defines the read contract for scrape targets.
type TargetRepository interface {
	// GetTarget retrieves a single target by id.
	GetTarget(ctx context.Context, targetID string) (*entity.Target, error)
}

// ResultRepository stores scraped-and-analyzed results.
type ResultRepository interface {
	Store(ctx context.Context, result *entity.Result) error
}
