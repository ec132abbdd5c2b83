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

// ProjectRepoImpl provides a concrete implementation for the ProjectRepository interface using PostgreSQL.
type ProjectRepoImpl struct {
	db *pgxpool.Pool
}

// NewProjectRepo creates a new instance of ProjectRepoImpl.
func NewProjectRepo(db *pgxpool.Pool) *ProjectRepoImpl {
	return &ProjectRepoImpl{db: db}
}

// GetProject retrieves a project with its configuration. Projects without an
// explicit configuration get the defaults.
func (r *ProjectRepoImpl) GetProject(ctx context.Context, projectID, userID string) (*entity.Project, error) {
	var p entity.Project
	var configJSON []byte
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, name, status, config, created_at, updated_at
		FROM projects
		WHERE id = $1 AND user_id = $2;
	`, projectID, userID).Scan(&p.ID, &p.UserID, &p.Name, &p.Status, &configJSON, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrProjectNotFound
		}
		return nil, err
	}

	p.Config = entity.DefaultProjectConfig()
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &p.Config); err != nil {
			return nil, fmt.Errorf("failed to decode project config: %w", err)
		}
	}
	return &p, nil
}
