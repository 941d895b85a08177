package dialect

import (
	"fmt"
	"strings"
)

// AthenaRenderer renders the Presto-derived syntax of the row-columnar
// analytic engine.
type AthenaRenderer struct{}

// Name returns the dialect identifier.
func (AthenaRenderer) Name() string { return Athena }

// QuoteAlias wraps an alias in double quotes, doubling embedded quotes.
func (AthenaRenderer) QuoteAlias(alias string) string {
	return `"` + strings.ReplaceAll(alias, `"`, `""`) + `"`
}

// CaseValue single-quotes a literal, doubling embedded single quotes.
func (AthenaRenderer) CaseValue(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ArraySort joins a sorted array into a comma-separated string.
func (AthenaRenderer) ArraySort(expr string) string {
	return fmt.Sprintf("array_join(array_sort(%s), ', ')", expr)
}

// JSONField extracts a scalar from a JSON payload column.
func (AthenaRenderer) JSONField(col, path string) string {
	return fmt.Sprintf("json_extract_scalar(%s, '$.%s')", col, path)
}

// DateAdd shifts a date expression by days.
func (AthenaRenderer) DateAdd(days int, expr string) string {
	return fmt.Sprintf("date_add('day', %d, %s)", days, expr)
}

// DateDiffDays counts whole days between two date expressions.
func (AthenaRenderer) DateDiffDays(from, to string) string {
	return fmt.Sprintf("date_diff('day', %s, %s)", from, to)
}

// FormatTimestamp renders a timestamp as "YYYY-MM-DD HH:MM:SS".
func (AthenaRenderer) FormatTimestamp(expr string) string {
	return fmt.Sprintf("date_format(%s, '%%Y-%%m-%%d %%H:%%i:%%s')", expr)
}
