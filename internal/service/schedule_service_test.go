package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearnhq/report-engine/internal/models"
	"github.com/openlearnhq/report-engine/internal/repository"
	appErrors "github.com/openlearnhq/report-engine/pkg/errors"
	"github.com/openlearnhq/report-engine/pkg/jobs"
	"github.com/openlearnhq/report-engine/pkg/storage"
)

type compiledMark struct {
	reportID string
	sqlText  string
	at       time.Time
}

type mockReportSource struct {
	defs      map[string]*models.ReportDefinition
	scheduled []models.ReportDefinition
	compiled  []compiledMark
}

func (m *mockReportSource) GetByID(_ context.Context, id string) (*models.ReportDefinition, error) {
	if def, ok := m.defs[id]; ok {
		copied := *def
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportSource) ListScheduled(context.Context) ([]models.ReportDefinition, error) {
	return m.scheduled, nil
}

func (m *mockReportSource) MarkCompiled(_ context.Context, id, sqlText string, at time.Time) error {
	m.compiled = append(m.compiled, compiledMark{reportID: id, sqlText: sqlText, at: at})
	return nil
}

type mockJobStore struct {
	jobs    map[string]*models.CompileJob
	updates []repository.UpdateJobParams
	queued  []models.CompileJob
}

func newMockJobStore() *mockJobStore {
	return &mockJobStore{jobs: map[string]*models.CompileJob{}}
}

func (m *mockJobStore) Create(_ context.Context, job *models.CompileJob) error {
	if job.ID == "" {
		job.ID = "job-1"
	}
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *mockJobStore) GetByID(_ context.Context, id string) (*models.CompileJob, error) {
	if job, ok := m.jobs[id]; ok {
		copied := *job
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockJobStore) Update(_ context.Context, id string, params repository.UpdateJobParams) error {
	m.updates = append(m.updates, params)
	job, ok := m.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.ResultPath != nil {
		job.ResultPath = params.ResultPath
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *mockJobStore) ListQueued(context.Context, int) ([]models.CompileJob, error) {
	return m.queued, nil
}

type mockCompiler struct {
	sql   string
	err   error
	calls int
}

func (m *mockCompiler) CompileForSchedule(_ context.Context, _ *models.ReportDefinition, _ string, _ int) (string, error) {
	m.calls++
	return m.sql, m.err
}

type mockDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (m *mockDispatcher) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

func newTestStorage(t *testing.T) *storage.LocalStorage {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return store
}

func scheduledDefinition(id string) *models.ReportDefinition {
	return &models.ReportDefinition{
		ID:       id,
		Type:     models.ReportTypeUsersCourses,
		Title:    "Scheduled",
		Author:   7,
		Platform: "acme.example.com",
		Planning: models.Planning{Active: true},
	}
}

func TestScheduleServiceEnqueueReport(t *testing.T) {
	reports := &mockReportSource{defs: map[string]*models.ReportDefinition{"r-1": scheduledDefinition("r-1")}}
	jobStore := newMockJobStore()
	dispatcher := &mockDispatcher{}
	svc := NewScheduleService(reports, jobStore, dispatcher, newTestStorage(t), storage.NewSignedURLSigner("secret", time.Hour), nil, ScheduleServiceConfig{Dialect: "athena", RowLimit: 500})

	job, err := svc.EnqueueReport(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, "r-1", job.ReportID)
	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Equal(t, "athena", job.Params.Dialect)
	assert.Equal(t, 500, job.Params.Limit)
	assert.Equal(t, "acme.example.com", job.Params.Platform)

	require.Len(t, dispatcher.enqueued, 1)
	assert.Equal(t, job.ID, dispatcher.enqueued[0].ID)
	assert.Equal(t, "compile_report", dispatcher.enqueued[0].Type)
}

func TestScheduleServiceEnqueueReportNotFound(t *testing.T) {
	svc := NewScheduleService(&mockReportSource{}, newMockJobStore(), &mockDispatcher{}, newTestStorage(t), storage.NewSignedURLSigner("secret", time.Hour), nil, ScheduleServiceConfig{})

	_, err := svc.EnqueueReport(context.Background(), "missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestScheduleServiceEnqueueFailureMarksJobFailed(t *testing.T) {
	reports := &mockReportSource{defs: map[string]*models.ReportDefinition{"r-1": scheduledDefinition("r-1")}}
	jobStore := newMockJobStore()
	dispatcher := &mockDispatcher{err: errors.New("queue full")}
	svc := NewScheduleService(reports, jobStore, dispatcher, newTestStorage(t), storage.NewSignedURLSigner("secret", time.Hour), nil, ScheduleServiceConfig{Dialect: "athena"})

	_, err := svc.EnqueueReport(context.Background(), "r-1")
	require.Error(t, err)
	stored := jobStore.jobs["job-1"]
	require.NotNil(t, stored)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
}

func TestScheduleServiceSignedURLRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	relPath, err := store.Save("r-1_job-1_athena.sql", []byte("SELECT 1"))
	require.NoError(t, err)

	jobStore := newMockJobStore()
	finished := models.JobStatusFinished
	jobStore.jobs["job-1"] = &models.CompileJob{ID: "job-1", ReportID: "r-1", Status: finished, ResultPath: &relPath}

	svc := NewScheduleService(&mockReportSource{}, jobStore, &mockDispatcher{}, store, storage.NewSignedURLSigner("secret", time.Hour), nil, ScheduleServiceConfig{})

	token, expiresAt, err := svc.SignedURLFor(jobStore.jobs["job-1"])
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	artifact, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer artifact.File.Close()
	assert.Equal(t, "r-1_job-1_athena.sql", artifact.Filename)
	data, err := io.ReadAll(artifact.File)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", string(data))
}

func TestScheduleServiceSignedURLForUnfinishedJob(t *testing.T) {
	svc := NewScheduleService(&mockReportSource{}, newMockJobStore(), &mockDispatcher{}, newTestStorage(t), storage.NewSignedURLSigner("secret", time.Hour), nil, ScheduleServiceConfig{})

	_, _, err := svc.SignedURLFor(&models.CompileJob{ID: "job-1", Status: models.JobStatusQueued})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestScheduleServiceResolveDownloadBadToken(t *testing.T) {
	svc := NewScheduleService(&mockReportSource{}, newMockJobStore(), &mockDispatcher{}, newTestStorage(t), storage.NewSignedURLSigner("secret", time.Hour), nil, ScheduleServiceConfig{})

	_, err := svc.ResolveDownload(context.Background(), "not-a-token")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestCompileWorkerHandleSuccess(t *testing.T) {
	store := newTestStorage(t)
	reports := &mockReportSource{defs: map[string]*models.ReportDefinition{"r-1": scheduledDefinition("r-1")}}
	jobStore := newMockJobStore()
	jobStore.jobs["job-1"] = &models.CompileJob{
		ID:       "job-1",
		ReportID: "r-1",
		Params:   models.CompileJobParams{Dialect: "athena", Limit: 100},
		Status:   models.JobStatusQueued,
	}
	comp := &mockCompiler{sql: "SELECT 1"}
	worker := NewCompileWorker(reports, jobStore, comp, store, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Type: "compile_report"})
	require.NoError(t, err)
	require.Equal(t, 1, comp.calls)

	final := jobStore.jobs["job-1"]
	assert.Equal(t, models.JobStatusFinished, final.Status)
	require.NotNil(t, final.ResultPath)
	assert.Equal(t, "r-1_job-1_athena.sql", *final.ResultPath)
	require.NotNil(t, final.FinishedAt)

	file, err := store.Open(*final.ResultPath)
	require.NoError(t, err)
	defer file.Close()
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", string(data))

	require.Len(t, reports.compiled, 1)
	assert.Equal(t, "r-1", reports.compiled[0].reportID)
	assert.Equal(t, "SELECT 1", reports.compiled[0].sqlText)
	assert.False(t, reports.compiled[0].at.IsZero())
}

func TestCompileWorkerHandleRequeuesOnFailure(t *testing.T) {
	reports := &mockReportSource{defs: map[string]*models.ReportDefinition{"r-1": scheduledDefinition("r-1")}}
	jobStore := newMockJobStore()
	jobStore.jobs["job-1"] = &models.CompileJob{ID: "job-1", ReportID: "r-1", Status: models.JobStatusQueued}
	comp := &mockCompiler{err: errors.New("hydra unavailable")}
	worker := NewCompileWorker(reports, jobStore, comp, newTestStorage(t), 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.Error(t, err)

	final := jobStore.jobs["job-1"]
	assert.Equal(t, models.JobStatusQueued, final.Status)
	require.NotNil(t, final.ErrorMessage)
	assert.Nil(t, final.FinishedAt)
}

func TestCompileWorkerHandleFailsAfterMaxRetries(t *testing.T) {
	reports := &mockReportSource{defs: map[string]*models.ReportDefinition{"r-1": scheduledDefinition("r-1")}}
	jobStore := newMockJobStore()
	jobStore.jobs["job-1"] = &models.CompileJob{ID: "job-1", ReportID: "r-1", Status: models.JobStatusQueued}
	comp := &mockCompiler{err: errors.New("hydra unavailable")}
	worker := NewCompileWorker(reports, jobStore, comp, newTestStorage(t), 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 3})
	require.Error(t, err)

	final := jobStore.jobs["job-1"]
	assert.Equal(t, models.JobStatusFailed, final.Status)
	require.NotNil(t, final.ErrorMessage)
	require.NotNil(t, final.FinishedAt)
}

func TestCompileWorkerHandleMissingJob(t *testing.T) {
	worker := NewCompileWorker(&mockReportSource{}, newMockJobStore(), &mockCompiler{}, newTestStorage(t), 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "ghost"})
	require.Error(t, err)
}
