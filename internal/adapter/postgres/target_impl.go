package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/scrapestudio/internal/entity"
	"github.com/user/scrapestudio/internal/repository"
)

// TargetRepoImpl provides a concrete implementation for the TargetRepository interface using PostgreSQL.
type TargetRepoImpl struct {
	db *pgxpool.Pool
}

// NewTargetRepo creates a new instance of TargetRepoImpl.
func NewTargetRepo(db *pgxpool.Pool) *TargetRepoImpl {
	return &TargetRepoImpl{db: db}
}

// GetTarget retrieves a single target by id.
func (r *TargetRepoImpl) GetTarget(ctx context.Context, targetID string) (*entity.Target, error) {
	var t entity.Target
	err := r.db.QueryRow(ctx, `
		SELECT id, project_id, user_id, url, platform, name, status, created_at
		FROM targets
		WHERE id = $1;
	`, targetID).Scan(&t.ID, &t.ProjectID, &t.UserID, &t.URL, &t.Platform, &t.Name, &t.Status, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrTargetNotFound
		}
		return nil, err
	}
	return &t, nil
}
