package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/openlearnhq/report-engine/internal/catalog"
	"github.com/openlearnhq/report-engine/internal/compiler"
	"github.com/openlearnhq/report-engine/internal/dialect"
	"github.com/openlearnhq/report-engine/internal/dto"
	"github.com/openlearnhq/report-engine/internal/extrafield"
	"github.com/openlearnhq/report-engine/internal/legacy"
	"github.com/openlearnhq/report-engine/internal/models"
	"github.com/openlearnhq/report-engine/internal/repository"
	appErrors "github.com/openlearnhq/report-engine/pkg/errors"
)

type reportStore interface {
	Create(ctx context.Context, def *models.ReportDefinition) error
	GetByID(ctx context.Context, id string) (*models.ReportDefinition, error)
	List(ctx context.Context, filter repository.ReportFilter) ([]models.ReportDefinition, int, error)
	Update(ctx context.Context, def *models.ReportDefinition) error
	Delete(ctx context.Context, id string) error
}

type compilationObserver interface {
	ObserveCompilation(reportType models.ReportType, dialectName, status string, duration time.Duration)
}

// ReportService owns report definition lifecycle and compilation entry
// points.
type ReportService struct {
	repo      reportStore
	deps      compiler.Deps
	metrics   compilationObserver
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	rowLimit  int
}

// NewReportService constructs the report service. rowLimit caps exports
// when a compile request does not carry its own. cache may be nil.
func NewReportService(repo reportStore, deps compiler.Deps, metrics compilationObserver, cache *CacheService, rowLimit int, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repo:      repo,
		deps:      deps,
		metrics:   metrics,
		cache:     cache,
		validator: validator.New(),
		logger:    logger,
		rowLimit:  rowLimit,
	}
}

// Create builds the default structure for the requested type and persists
// it with the caller as author.
func (s *ReportService) Create(ctx context.Context, req dto.CreateReportRequest, session *models.SessionContext) (*models.ReportDefinition, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}
	c, err := compiler.New(models.ReportType(req.Type), s.deps)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnknownReportType, "unsupported report type: "+req.Type)
	}
	def := c.Default(session)
	def.Title = req.Title
	def.Description = req.Description
	def.Platform = req.Platform
	if err := s.repo.Create(ctx, def); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report")
	}
	return def, nil
}

// Get loads one definition, enforcing author ownership for power users.
func (s *ReportService) Get(ctx context.Context, id string, session *models.SessionContext) (*models.ReportDefinition, error) {
	def, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(def, session); err != nil {
		return nil, err
	}
	return def, nil
}

// List pages definitions for the caller's platform. Power users only see
// their own reports.
func (s *ReportService) List(ctx context.Context, filter repository.ReportFilter, session *models.SessionContext) ([]models.ReportDefinition, *models.Pagination, error) {
	if !session.IsAdmin() {
		filter.Author = session.UserID
	}
	defs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return defs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Delete removes a definition after an ownership check.
func (s *ReportService) Delete(ctx context.Context, id string, session *models.SessionContext) error {
	def, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(def, session); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete report")
	}
	s.invalidateCompiled(ctx, id)
	return nil
}

// UpdateFields replaces the field selection. Unknown fields are rejected
// up front and mandatory fields are re-asserted, never dropped.
func (s *ReportService) UpdateFields(ctx context.Context, id string, fields []string, session *models.SessionContext) (*models.ReportDefinition, error) {
	def, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(def, session); err != nil {
		return nil, err
	}
	for _, f := range fields {
		if catalog.Contains(def.Type, f) {
			continue
		}
		if _, _, ok := extrafield.ParseRef(f); ok {
			continue
		}
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown field: "+f)
	}
	def.Fields = catalog.EnsureMandatory(def.Type, fields)
	def.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, def); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update report fields")
	}
	s.invalidateCompiled(ctx, id)
	return def, nil
}

// UpdateSorting replaces the sorting descriptor. A custom sort must point
// at a selected field.
func (s *ReportService) UpdateSorting(ctx context.Context, id string, req dto.UpdateSortingRequest, session *models.SessionContext) (*models.ReportDefinition, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sorting payload")
	}
	def, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(def, session); err != nil {
		return nil, err
	}
	if req.Selector == models.SortSelectorCustom {
		if !containsField(def.Fields, req.Field) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "sort field is not part of the report selection")
		}
		if req.Direction == "" {
			req.Direction = models.SortAsc
		}
	}
	def.Sorting = models.Sorting{Selector: req.Selector, Field: req.Field, Direction: req.Direction}
	def.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, def); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update report sorting")
	}
	s.invalidateCompiled(ctx, id)
	return def, nil
}

// Compile renders the report into the requested dialect. Interactive
// compilations always apply visibility filtering.
func (s *ReportService) Compile(ctx context.Context, id string, req dto.CompileRequest, session *models.SessionContext) (*dto.CompileResponse, error) {
	def, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(def, session); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.rowLimit
	}
	creq := compiler.Request{
		Definition:      def,
		Session:         session,
		Limit:           limit,
		Preview:         req.Preview,
		CheckVisibility: true,
	}
	// Compiled text depends on the caller too: visibility predicates
	// differ per user, so the user id is part of the cache key.
	cacheKey := fmt.Sprintf("compile:%s:%s:%d:%t:%d:%d", def.ID, req.Dialect, limit, req.Preview, session.UserID, def.UpdatedAt.Unix())
	var cached string
	if s.cache.Enabled() {
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &dto.CompileResponse{ReportID: def.ID, Dialect: req.Dialect, SQL: cached}, nil
		}
	}
	start := time.Now()
	sqlText, err := s.compile(ctx, def, req.Dialect, creq)
	s.observe(def.Type, req.Dialect, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, cacheKey, sqlText, 0)
	}
	return &dto.CompileResponse{ReportID: def.ID, Dialect: req.Dialect, SQL: sqlText}, nil
}

// CompileForSchedule renders a scheduled export without visibility
// filtering. Scheduled runs execute with the author's full dataset.
func (s *ReportService) CompileForSchedule(ctx context.Context, def *models.ReportDefinition, dialectName string, limit int) (string, error) {
	if limit <= 0 {
		limit = s.rowLimit
	}
	creq := compiler.Request{
		Definition:      def,
		Session:         &models.SessionContext{UserID: def.Author, Level: models.LevelAdmin},
		Limit:           limit,
		CheckVisibility: false,
		FromSchedule:    true,
	}
	start := time.Now()
	sqlText, err := s.compile(ctx, def, dialectName, creq)
	s.observe(def.Type, dialectName, err, time.Since(start))
	return sqlText, err
}

// ImportLegacy converts a legacy filter document into a native definition
// and persists it.
func (s *ReportService) ImportLegacy(ctx context.Context, req dto.LegacyImportRequest, session *models.SessionContext) (*models.ReportDefinition, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import payload")
	}
	def, err := legacy.Parse(req.Payload, req.Platform, req.Visibility)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to parse legacy report")
	}
	if def.Author == 0 {
		def.Author = session.UserID
	}
	if err := s.repo.Create(ctx, def); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store imported report")
	}
	return def, nil
}

func (s *ReportService) compile(ctx context.Context, def *models.ReportDefinition, dialectName string, creq compiler.Request) (string, error) {
	c, err := compiler.New(def.Type, s.deps)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrUnknownReportType, "no compiler for type "+string(def.Type))
	}
	var sqlText string
	switch dialectName {
	case dialect.Athena:
		sqlText, err = c.Athena(ctx, creq)
	case dialect.Snowflake:
		sqlText, err = c.Snowflake(ctx, creq)
	default:
		return "", appErrors.Clone(appErrors.ErrUnsupportedDialect, "unsupported dialect: "+dialectName)
	}
	if err != nil {
		if errors.Is(err, compiler.ErrUnsupportedDialect) {
			return "", appErrors.Clone(appErrors.ErrUnsupportedDialect, string(def.Type)+" is not available on "+dialectName)
		}
		if errors.Is(err, compiler.ErrNoOutputColumns) {
			return "", appErrors.Clone(appErrors.ErrCompilationFailed, "field selection produced no output columns")
		}
		return "", appErrors.Wrap(err, appErrors.ErrCompilationFailed.Code, appErrors.ErrCompilationFailed.Status, "report compilation failed")
	}
	return sqlText, nil
}

func (s *ReportService) observe(typ models.ReportType, dialectName string, err error, d time.Duration) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.ObserveCompilation(typ, dialectName, status, d)
}

func (s *ReportService) invalidateCompiled(ctx context.Context, id string) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, "compile:"+id+":*"); err != nil {
		s.logger.Sugar().Warnw("failed to invalidate compiled cache", "report_id", id, "error", err)
	}
}

func (s *ReportService) load(ctx context.Context, id string) (*models.ReportDefinition, error) {
	def, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	return def, nil
}

func (s *ReportService) authorize(def *models.ReportDefinition, session *models.SessionContext) error {
	if session.IsAdmin() {
		return nil
	}
	if def.Author != session.UserID {
		return appErrors.ErrForbidden
	}
	return nil
}

func containsField(fields []string, f string) bool {
	for _, v := range fields {
		if v == f {
			return true
		}
	}
	return false
}
