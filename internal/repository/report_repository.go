package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openlearnhq/report-engine/internal/models"
)

// definitionDoc stores the full ReportDefinition as a JSONB document.
type definitionDoc struct {
	models.ReportDefinition
}

func (d definitionDoc) Value() (driver.Value, error) {
	data, err := json.Marshal(d.ReportDefinition)
	if err != nil {
		return nil, fmt.Errorf("marshal report definition: %w", err)
	}
	return data, nil
}

func (d *definitionDoc) Scan(value interface{}) error {
	if value == nil {
		d.ReportDefinition = models.ReportDefinition{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for report definition", value)
	}
	if err := json.Unmarshal(data, &d.ReportDefinition); err != nil {
		return fmt.Errorf("unmarshal report definition: %w", err)
	}
	return nil
}

type reportRow struct {
	ID             string        `db:"id"`
	Platform       string        `db:"platform"`
	Type           string        `db:"type"`
	Title          string        `db:"title"`
	Author         int64         `db:"author"`
	Definition     definitionDoc `db:"definition"`
	PlanningActive bool          `db:"planning_active"`
	CreatedAt      time.Time     `db:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at"`
	LastCompiledAt *time.Time    `db:"last_compiled_at"`
}

// ReportFilter narrows List results.
type ReportFilter struct {
	Platform string
	Type     models.ReportType
	Author   int64
	Page     int
	PageSize int
}

// ReportRepository persists report definitions as JSONB documents with a
// few promoted columns for filtering.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = "id, platform, type, title, author, definition, planning_active, created_at, updated_at, last_compiled_at"

// Create inserts a definition, generating its id and timestamps.
func (r *ReportRepository) Create(ctx context.Context, def *models.ReportDefinition) error {
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now

	row := toRow(def)
	const query = `INSERT INTO report_definitions (id, platform, type, title, author, definition, planning_active, created_at, updated_at)
VALUES (:id, :platform, :type, :title, :author, :definition, :planning_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("create report definition: %w", err)
	}
	return nil
}

// GetByID loads one definition.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.ReportDefinition, error) {
	const query = `SELECT ` + reportColumns + ` FROM report_definitions WHERE id = $1`
	var row reportRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, fmt.Errorf("get report definition: %w", err)
	}
	return fromRow(&row), nil
}

// List returns a filtered page of definitions plus the total count.
func (r *ReportRepository) List(ctx context.Context, filter ReportFilter) ([]models.ReportDefinition, int, error) {
	builder := sq.Select(reportColumns).
		From("report_definitions").
		PlaceholderFormat(sq.Dollar).
		OrderBy("created_at DESC")
	countBuilder := sq.Select("COUNT(*)").
		From("report_definitions").
		PlaceholderFormat(sq.Dollar)

	if filter.Platform != "" {
		builder = builder.Where(sq.Eq{"platform": filter.Platform})
		countBuilder = countBuilder.Where(sq.Eq{"platform": filter.Platform})
	}
	if filter.Type != "" {
		builder = builder.Where(sq.Eq{"type": string(filter.Type)})
		countBuilder = countBuilder.Where(sq.Eq{"type": string(filter.Type)})
	}
	if filter.Author > 0 {
		builder = builder.Where(sq.Eq{"author": filter.Author})
		countBuilder = countBuilder.Where(sq.Eq{"author": filter.Author})
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	builder = builder.Limit(uint64(size)).Offset(uint64((page - 1) * size))

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build report list query: %w", err)
	}
	var rows []reportRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list report definitions: %w", err)
	}

	countQuery, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build report count query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count report definitions: %w", err)
	}

	out := make([]models.ReportDefinition, 0, len(rows))
	for i := range rows {
		out = append(out, *fromRow(&rows[i]))
	}
	return out, total, nil
}

// Update rewrites the stored document and the promoted columns.
func (r *ReportRepository) Update(ctx context.Context, def *models.ReportDefinition) error {
	def.UpdatedAt = time.Now().UTC()
	row := toRow(def)
	const query = `UPDATE report_definitions
SET title = :title, definition = :definition, planning_active = :planning_active, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("update report definition: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update report definition %s: no such row", def.ID)
	}
	return nil
}

// Delete removes a definition.
func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM report_definitions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete report definition: %w", err)
	}
	return nil
}

// MarkCompiled records the SQL and timestamp of the latest scheduled
// compilation on the definition row.
func (r *ReportRepository) MarkCompiled(ctx context.Context, id, sqlText string, at time.Time) error {
	const query = `UPDATE report_definitions SET last_compiled_sql = $1, last_compiled_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, sqlText, at, id); err != nil {
		return fmt.Errorf("mark report definition compiled: %w", err)
	}
	return nil
}

// ListScheduled returns definitions with an active planning block, scanned
// by the scheduler loop.
func (r *ReportRepository) ListScheduled(ctx context.Context) ([]models.ReportDefinition, error) {
	const query = `SELECT ` + reportColumns + ` FROM report_definitions WHERE planning_active = TRUE ORDER BY created_at ASC`
	var rows []reportRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list scheduled report definitions: %w", err)
	}
	out := make([]models.ReportDefinition, 0, len(rows))
	for i := range rows {
		out = append(out, *fromRow(&rows[i]))
	}
	return out, nil
}

func toRow(def *models.ReportDefinition) *reportRow {
	return &reportRow{
		ID:             def.ID,
		Platform:       def.Platform,
		Type:           string(def.Type),
		Title:          def.Title,
		Author:         def.Author,
		Definition:     definitionDoc{ReportDefinition: *def},
		PlanningActive: def.Planning.Active,
		CreatedAt:      def.CreatedAt,
		UpdatedAt:      def.UpdatedAt,
		LastCompiledAt: def.LastCompiledAt,
	}
}

func fromRow(row *reportRow) *models.ReportDefinition {
	def := row.Definition.ReportDefinition
	def.ID = row.ID
	def.Platform = row.Platform
	def.Title = row.Title
	def.Author = row.Author
	def.CreatedAt = row.CreatedAt
	def.UpdatedAt = row.UpdatedAt
	def.LastCompiledAt = row.LastCompiledAt
	return &def
}
