package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/openlearnhq/report-engine/internal/models"
	"github.com/openlearnhq/report-engine/internal/repository"
	appErrors "github.com/openlearnhq/report-engine/pkg/errors"
	"github.com/openlearnhq/report-engine/pkg/jobs"
	"github.com/openlearnhq/report-engine/pkg/storage"
)

type scheduledReportSource interface {
	GetByID(ctx context.Context, id string) (*models.ReportDefinition, error)
	ListScheduled(ctx context.Context) ([]models.ReportDefinition, error)
	MarkCompiled(ctx context.Context, id, sqlText string, at time.Time) error
}

type compileJobStore interface {
	Create(ctx context.Context, job *models.CompileJob) error
	GetByID(ctx context.Context, id string) (*models.CompileJob, error)
	Update(ctx context.Context, id string, params repository.UpdateJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.CompileJob, error)
}

type scheduleCompiler interface {
	CompileForSchedule(ctx context.Context, def *models.ReportDefinition, dialectName string, limit int) (string, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// ScheduleServiceConfig governs the recurring compile loop.
type ScheduleServiceConfig struct {
	CronSpec   string
	Dialect    string
	RowLimit   int
	MaxRetries int
	ResultTTL  time.Duration
}

// ScheduleService runs the recurring export loop: on every cron tick it
// scans planning-active reports, records a compile job per report and
// hands it to the worker queue. Workers compile the SQL artifact and
// store it for signed-URL download.
type ScheduleService struct {
	reports  scheduledReportSource
	jobStore compileJobStore
	queue    jobDispatcher
	cron     *cron.Cron
	signer   *storage.SignedURLSigner
	store    *storage.LocalStorage
	logger   *zap.Logger
	cfg      ScheduleServiceConfig
}

// ScheduledArtifact aggregates resolved download data.
type ScheduledArtifact struct {
	File      *os.File
	Filename  string
	ExpiresAt time.Time
}

// NewScheduleService constructs the scheduler.
func NewScheduleService(reports scheduledReportSource, jobStore compileJobStore, queue jobDispatcher, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger, cfg ScheduleServiceConfig) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CronSpec == "" {
		cfg.CronSpec = "0 * * * *"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 7 * 24 * time.Hour
	}
	return &ScheduleService{
		reports:  reports,
		jobStore: jobStore,
		queue:    queue,
		signer:   signer,
		store:    store,
		logger:   logger,
		cfg:      cfg,
	}
}

// Start registers the cron entry and begins ticking. The first scan also
// requeues jobs left QUEUED by a previous process.
func (s *ScheduleService) Start(ctx context.Context) error {
	s.recoverPending(ctx)
	c := cron.New()
	if _, err := c.AddFunc(s.cfg.CronSpec, func() { s.scan(context.Background()) }); err != nil {
		return fmt.Errorf("register schedule cron: %w", err)
	}
	c.Start()
	s.cron = c
	s.logger.Sugar().Infow("report scheduler started", "spec", s.cfg.CronSpec)
	return nil
}

// Stop halts the cron loop. Queued jobs already dispatched keep running.
func (s *ScheduleService) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// EnqueueReport records and dispatches one compile job for a report,
// outside the cron cadence. Used for on-demand scheduled runs.
func (s *ScheduleService) EnqueueReport(ctx context.Context, reportID string) (*models.CompileJob, error) {
	def, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	return s.dispatch(ctx, def)
}

// Job loads one compile job row.
func (s *ScheduleService) Job(ctx context.Context, id string) (*models.CompileJob, error) {
	job, err := s.jobStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load compile job")
	}
	return job, nil
}

// ResolveDownload validates a signed token and opens the stored artifact.
func (s *ScheduleService) ResolveDownload(ctx context.Context, token string) (*ScheduledArtifact, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.jobStore.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load compile job")
	}
	if job.Status != models.JobStatusFinished || job.ResultPath == nil || *job.ResultPath != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "artifact not available")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open artifact")
	}
	return &ScheduledArtifact{File: file, Filename: filepath.Base(relPath), ExpiresAt: expiresAt}, nil
}

// SignedURLFor builds a download token for a finished job.
func (s *ScheduleService) SignedURLFor(job *models.CompileJob) (string, time.Time, error) {
	if job.Status != models.JobStatusFinished || job.ResultPath == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrPreconditionFailed, "job has no artifact yet")
	}
	return s.signer.Generate(job.ID, *job.ResultPath)
}

// Cleanup removes artifacts older than the configured TTL.
func (s *ScheduleService) Cleanup() {
	removed, err := s.store.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Sugar().Warnw("artifact cleanup failed", "error", err)
		return
	}
	if len(removed) > 0 {
		s.logger.Sugar().Infow("expired artifacts removed", "count", len(removed))
	}
}

func (s *ScheduleService) scan(ctx context.Context) {
	defs, err := s.reports.ListScheduled(ctx)
	if err != nil {
		s.logger.Sugar().Warnw("scheduled report scan failed", "error", err)
		return
	}
	for i := range defs {
		if _, err := s.dispatch(ctx, &defs[i]); err != nil {
			s.logger.Sugar().Warnw("failed to dispatch scheduled report", "report_id", defs[i].ID, "error", err)
		}
	}
	s.Cleanup()
}

func (s *ScheduleService) dispatch(ctx context.Context, def *models.ReportDefinition) (*models.CompileJob, error) {
	job := &models.CompileJob{
		ReportID: def.ID,
		Params: models.CompileJobParams{
			Dialect:  s.cfg.Dialect,
			Limit:    s.cfg.RowLimit,
			Platform: def.Platform,
		},
		Status: models.JobStatusQueued,
	}
	if err := s.jobStore.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record compile job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "compile_report"}); err != nil {
		s.markFailed(ctx, job.ID, "failed to enqueue compile job")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue compile job")
	}
	return job, nil
}

func (s *ScheduleService) recoverPending(ctx context.Context) {
	pending, err := s.jobStore.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued compile jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "compile_report"}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue compile job", "job_id", job.ID, "error", err)
		}
	}
}

func (s *ScheduleService) markFailed(ctx context.Context, jobID, msg string) {
	failed := models.JobStatusFailed
	now := time.Now().UTC()
	if err := s.jobStore.Update(ctx, jobID, repository.UpdateJobParams{
		Status:       &failed,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Sugar().Warnw("failed to mark compile job failed", "job_id", jobID, "error", err)
	}
}

// CompileWorker bridges queue jobs to the compiler and artifact storage.
type CompileWorker struct {
	reports    scheduledReportSource
	jobStore   compileJobStore
	compiler   scheduleCompiler
	store      *storage.LocalStorage
	logger     *zap.Logger
	maxRetries int
}

// NewCompileWorker constructs a worker.
func NewCompileWorker(reports scheduledReportSource, jobStore compileJobStore, compiler scheduleCompiler, store *storage.LocalStorage, maxRetries int, logger *zap.Logger) *CompileWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &CompileWorker{
		reports:    reports,
		jobStore:   jobStore,
		compiler:   compiler,
		store:      store,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes one queue job: compile the report and store the SQL
// artifact. Scheduled runs skip visibility filtering.
func (w *CompileWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.jobStore.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.JobStatusProcessing
	if err := w.jobStore.Update(ctx, job.ID, repository.UpdateJobParams{Status: &processing}); err != nil {
		return err
	}

	relPath, sqlText, err := w.generate(ctx, record)
	if err != nil {
		msg := err.Error()
		if job.Attempt >= w.maxRetries {
			failed := models.JobStatusFailed
			now := time.Now().UTC()
			if updateErr := w.jobStore.Update(ctx, job.ID, repository.UpdateJobParams{
				Status:       &failed,
				ErrorMessage: &msg,
				FinishedAt:   &now,
			}); updateErr != nil {
				w.logger.Sugar().Warnw("failed to mark compile job failed", "job_id", job.ID, "error", updateErr)
			}
		} else {
			queued := models.JobStatusQueued
			if updateErr := w.jobStore.Update(ctx, job.ID, repository.UpdateJobParams{
				Status:       &queued,
				ErrorMessage: &msg,
			}); updateErr != nil {
				w.logger.Sugar().Warnw("failed to mark compile job queued", "job_id", job.ID, "error", updateErr)
			}
		}
		return err
	}

	finished := models.JobStatusFinished
	now := time.Now().UTC()
	clear := ""
	if err := w.jobStore.Update(ctx, job.ID, repository.UpdateJobParams{
		Status:       &finished,
		ResultPath:   &relPath,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark compile job finished", "job_id", job.ID, "error", err)
		return err
	}
	if err := w.reports.MarkCompiled(ctx, record.ReportID, sqlText, now); err != nil {
		w.logger.Sugar().Warnw("failed to record last compilation on report", "report_id", record.ReportID, "error", err)
	}
	return nil
}

func (w *CompileWorker) generate(ctx context.Context, record *models.CompileJob) (string, string, error) {
	def, err := w.reports.GetByID(ctx, record.ReportID)
	if err != nil {
		return "", "", fmt.Errorf("load report %s: %w", record.ReportID, err)
	}
	sqlText, err := w.compiler.CompileForSchedule(ctx, def, record.Params.Dialect, record.Params.Limit)
	if err != nil {
		return "", "", err
	}
	name := artifactName(def.ID, record.ID, record.Params.Dialect)
	relPath, err := w.store.Save(name, []byte(sqlText))
	if err != nil {
		return "", "", fmt.Errorf("store artifact: %w", err)
	}
	return relPath, sqlText, nil
}

func artifactName(reportID, jobID, dialectName string) string {
	reportID = strings.ReplaceAll(reportID, string(filepath.Separator), "_")
	return fmt.Sprintf("%s_%s_%s.sql", reportID, jobID, dialectName)
}
