// Package dialect isolates the syntax differences between the two supported
// analytic engines. Everything outside these primitives is plain string
// concatenation in the compilers.
package dialect

// Dialect names accepted at the API boundary.
const (
	Athena    = "athena"
	Snowflake = "snowflake"
)

// Renderer exposes the primitive text-rendering operations that differ
// between engines.
type Renderer interface {
	// Name returns the dialect identifier.
	Name() string
	// QuoteAlias quotes a string for use as a SELECT column alias.
	QuoteAlias(alias string) string
	// CaseValue quotes a string literal for use inside a CASE branch.
	CaseValue(s string) string
	// ArraySort renders an aggregated array expression sorted and joined
	// into a single comma-separated column.
	ArraySort(expr string) string
	// JSONField extracts a scalar string from a JSON document column.
	JSONField(col, path string) string
	// DateAdd shifts a date expression by a signed number of days.
	DateAdd(days int, expr string) string
	// DateDiffDays renders the whole-day difference between two date
	// expressions, positive when "to" is later than "from".
	DateDiffDays(from, to string) string
	// FormatTimestamp renders a timestamp expression as a stable
	// "YYYY-MM-DD HH:MM:SS" string.
	FormatTimestamp(expr string) string
}

// ForName returns the renderer for a dialect name, nil when unknown.
func ForName(name string) Renderer {
	switch name {
	case Athena:
		return AthenaRenderer{}
	case Snowflake:
		return SnowflakeRenderer{}
	}
	return nil
}
