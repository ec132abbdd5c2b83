package request

import "github.com/user/scrapestudio/internal/entity"

type CreateJobRequest struct {
	ProjectID string            `json:"project_id"`
	UserID    string            `json:"user_id"`
	TargetIDs []string          `json:"target_ids,omitempty"`
	Options   entity.JobOptions `json:"options"`
}

type RunScheduleRequest struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
}
