package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForName(t *testing.T) {
	require.IsType(t, AthenaRenderer{}, ForName(Athena))
	require.IsType(t, SnowflakeRenderer{}, ForName(Snowflake))
	require.Nil(t, ForName("bigquery"))
	require.Nil(t, ForName(""))
}

func TestAthenaRenderer(t *testing.T) {
	r := AthenaRenderer{}

	assert.Equal(t, Athena, r.Name())
	assert.Equal(t, `"Course Name"`, r.QuoteAlias("Course Name"))
	assert.Equal(t, `"Say ""hi"""`, r.QuoteAlias(`Say "hi"`))
	assert.Equal(t, "'elearning'", r.CaseValue("elearning"))
	assert.Equal(t, "'it''s'", r.CaseValue("it's"))
	assert.Equal(t, "array_join(array_sort(arr), ', ')", r.ArraySort("arr"))
	assert.Equal(t, "json_extract_scalar(e.payload, '$.status')", r.JSONField("e.payload", "status"))
	assert.Equal(t, "date_add('day', 7, e.date_expire)", r.DateAdd(7, "e.date_expire"))
	assert.Equal(t, "date_add('day', -30, CURRENT_DATE)", r.DateAdd(-30, "CURRENT_DATE"))
	assert.Equal(t, "date_diff('day', a, b)", r.DateDiffDays("a", "b"))
	assert.Equal(t, "date_format(e.ts, '%Y-%m-%d %H:%i:%s')", r.FormatTimestamp("e.ts"))
}

func TestSnowflakeRenderer(t *testing.T) {
	r := SnowflakeRenderer{}

	assert.Equal(t, Snowflake, r.Name())
	assert.Equal(t, `"Course Name"`, r.QuoteAlias("Course Name"))
	assert.Equal(t, "'elearning'", r.CaseValue("elearning"))
	assert.Equal(t, `'it\'s'`, r.CaseValue("it's"))
	assert.Equal(t, `'a\\b'`, r.CaseValue(`a\b`))
	assert.Equal(t, "array_to_string(array_sort(arr), ', ')", r.ArraySort("arr"))
	assert.Equal(t, "json_extract_path_text(e.payload, 'status')", r.JSONField("e.payload", "status"))
	assert.Equal(t, "dateadd(day, 7, e.date_expire)", r.DateAdd(7, "e.date_expire"))
	assert.Equal(t, "datediff(day, a, b)", r.DateDiffDays("a", "b"))
	assert.Equal(t, "to_varchar(e.ts, 'YYYY-MM-DD HH24:MI:SS')", r.FormatTimestamp("e.ts"))
}

// The two renderers must quote aliases identically: a union of per-dialect
// statements relies on matching column headers.
func TestAliasQuotingMatchesAcrossDialects(t *testing.T) {
	a, s := AthenaRenderer{}, SnowflakeRenderer{}
	for _, alias := range []string{"User ID", `quoted "alias"`, "Città"} {
		assert.Equal(t, a.QuoteAlias(alias), s.QuoteAlias(alias))
	}
}
