package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus captures the lifecycle of one scheduled compile run.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "QUEUED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusFinished   JobStatus = "FINISHED"
	JobStatusFailed     JobStatus = "FAILED"
)

// CompileJob is one persisted scheduled compilation of a report definition.
// The compiled SQL artifact is written to storage; the row keeps its path.
type CompileJob struct {
	ID           string           `db:"id" json:"id"`
	ReportID     string           `db:"report_id" json:"reportId"`
	Params       CompileJobParams `db:"params" json:"params"`
	Status       JobStatus        `db:"status" json:"status"`
	ResultPath   *string          `db:"result_path" json:"resultPath,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"createdAt"`
	FinishedAt   *time.Time       `db:"finished_at" json:"finishedAt,omitempty"`
	ErrorMessage *string          `db:"error_message" json:"error,omitempty"`
}

// CompileJobParams stores per-run options persisted as JSONB.
type CompileJobParams struct {
	Dialect  string `json:"dialect"`
	Limit    int    `json:"limit,omitempty"`
	Platform string `json:"platform"`
}

// Value marshals params to JSON for persistence.
func (p CompileJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal compile job params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *CompileJobParams) Scan(value interface{}) error {
	if value == nil {
		*p = CompileJobParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for CompileJobParams", value)
	}
	if len(data) == 0 {
		*p = CompileJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal compile job params: %w", err)
	}
	return nil
}
