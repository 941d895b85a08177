package dto

import (
	"encoding/json"

	"github.com/openlearnhq/report-engine/internal/models"
)

// CreateReportRequest captures POST /reports payload.
type CreateReportRequest struct {
	Type        string `json:"type" validate:"required"`
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description,omitempty"`
	Platform    string `json:"platform" validate:"required"`
}

// UpdateFieldsRequest replaces the field selection of a report.
type UpdateFieldsRequest struct {
	Fields []string `json:"fields" validate:"required,min=1"`
}

// UpdateSortingRequest replaces the sorting descriptor of a report.
type UpdateSortingRequest struct {
	Selector  string `json:"selector" validate:"required,oneof=default custom"`
	Field     string `json:"field,omitempty"`
	Direction string `json:"direction,omitempty" validate:"omitempty,oneof=asc desc"`
}

// CompileRequest captures POST /reports/:id/query payload.
type CompileRequest struct {
	Dialect string `json:"dialect" validate:"required,oneof=athena snowflake"`
	Limit   int    `json:"limit,omitempty" validate:"omitempty,min=1"`
	Preview bool   `json:"preview,omitempty"`
}

// CompileResponse carries the compiled statement back to the caller.
type CompileResponse struct {
	ReportID string `json:"reportId"`
	Dialect  string `json:"dialect"`
	SQL      string `json:"sql"`
}

// LegacyImportRequest captures POST /reports/legacy-import payload. The
// legacy body stays raw; the importer owns its loose schema.
type LegacyImportRequest struct {
	Platform   string            `json:"platform" validate:"required"`
	Visibility models.Visibility `json:"visibility"`
	Payload    json.RawMessage   `json:"payload" validate:"required"`
}

// ReportResponse is the externally visible definition envelope.
type ReportResponse struct {
	Report *models.ReportDefinition `json:"report"`
}

// ReportListResponse pages definitions.
type ReportListResponse struct {
	Reports    []models.ReportDefinition `json:"reports"`
	Pagination *models.Pagination        `json:"pagination,omitempty"`
}
