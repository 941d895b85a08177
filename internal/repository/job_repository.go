package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openlearnhq/report-engine/internal/models"
)

// JobRepository persists scheduled compile runs.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository constructs the repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new compile job row with generated defaults.
func (r *JobRepository) Create(ctx context.Context, job *models.CompileJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.JobStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO compile_jobs (id, report_id, params, status, result_path, created_at, finished_at, error_message)
VALUES (:id, :report_id, :params, :status, :result_path, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create compile job: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.CompileJob, error) {
	const query = `SELECT id, report_id, params, status, result_path, created_at, finished_at, error_message
FROM compile_jobs WHERE id = $1`
	var job models.CompileJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, fmt.Errorf("get compile job: %w", err)
	}
	return &job, nil
}

// UpdateJobParams defines the mutable fields.
type UpdateJobParams struct {
	Status       *models.JobStatus
	ResultPath   *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Update persists the provided changes for a job row.
func (r *JobRepository) Update(ctx context.Context, id string, params UpdateJobParams) error {
	set := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)
	argPos := 1

	if params.Status != nil {
		set = append(set, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *params.Status)
		argPos++
	}
	if params.ResultPath != nil {
		set = append(set, fmt.Sprintf("result_path = $%d", argPos))
		args = append(args, *params.ResultPath)
		argPos++
	}
	if params.ErrorMessage != nil {
		set = append(set, fmt.Sprintf("error_message = $%d", argPos))
		args = append(args, *params.ErrorMessage)
		argPos++
	}
	if params.FinishedAt != nil {
		set = append(set, fmt.Sprintf("finished_at = $%d", argPos))
		args = append(args, *params.FinishedAt)
		argPos++
	}

	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE compile_jobs SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update compile job: %w", err)
	}
	return nil
}

// ListQueued fetches queued jobs (used for cold start recovery).
func (r *JobRepository) ListQueued(ctx context.Context, limit int) ([]models.CompileJob, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, report_id, params, status, result_path, created_at, finished_at, error_message
FROM compile_jobs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1`
	var jobs []models.CompileJob
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("list queued compile jobs: %w", err)
	}
	return jobs, nil
}
