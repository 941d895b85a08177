package dialect

import (
	"fmt"
	"strings"
)

// SnowflakeRenderer renders warehouse-engine syntax.
type SnowflakeRenderer struct{}

// Name returns the dialect identifier.
func (SnowflakeRenderer) Name() string { return Snowflake }

// QuoteAlias wraps an alias in double quotes, doubling embedded quotes.
func (SnowflakeRenderer) QuoteAlias(alias string) string {
	return `"` + strings.ReplaceAll(alias, `"`, `""`) + `"`
}

// CaseValue single-quotes a literal. Snowflake treats backslash as an escape
// inside string literals, so both it and the quote need escaping.
func (SnowflakeRenderer) CaseValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", `\'`)
	return "'" + s + "'"
}

// ArraySort joins a sorted array into a comma-separated string.
func (SnowflakeRenderer) ArraySort(expr string) string {
	return fmt.Sprintf("array_to_string(array_sort(%s), ', ')", expr)
}

// JSONField extracts a scalar from a JSON payload column.
func (SnowflakeRenderer) JSONField(col, path string) string {
	return fmt.Sprintf("json_extract_path_text(%s, '%s')", col, path)
}

// DateAdd shifts a date expression by days.
func (SnowflakeRenderer) DateAdd(days int, expr string) string {
	return fmt.Sprintf("dateadd(day, %d, %s)", days, expr)
}

// DateDiffDays counts whole days between two date expressions.
func (SnowflakeRenderer) DateDiffDays(from, to string) string {
	return fmt.Sprintf("datediff(day, %s, %s)", from, to)
}

// FormatTimestamp renders a timestamp as "YYYY-MM-DD HH:MM:SS".
func (SnowflakeRenderer) FormatTimestamp(expr string) string {
	return fmt.Sprintf("to_varchar(%s, 'YYYY-MM-DD HH24:MI:SS')", expr)
}
