package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragmentSetSQLAssembly(t *testing.T) {
	f := NewFragmentSet()
	f.Select("cu.user_id", `"User unique ID"`, "User unique ID")
	f.Select("c.name", `"Course Name"`, "Course Name")
	f.GroupBy("cu.user_id")
	f.GroupBy("c.name")
	f.Where("e.user_id IN (1,2)")
	f.Where("cu.deactivated = 0")
	f.EnsureJoin("course", func() string {
		return "INNER JOIN learning_course c ON c.course_id = e.course_id"
	})

	got := f.SQL("learning_enrollment e", `"User unique ID" asc`, 100)
	want := `SELECT cu.user_id AS "User unique ID", c.name AS "Course Name"` +
		" FROM learning_enrollment e" +
		" INNER JOIN learning_course c ON c.course_id = e.course_id" +
		" WHERE e.user_id IN (1,2) AND cu.deactivated = 0" +
		" GROUP BY cu.user_id, c.name" +
		` ORDER BY "User unique ID" asc LIMIT 100`
	assert.Equal(t, want, got)
}

func TestFragmentSetSQLWithoutOrderAndLimit(t *testing.T) {
	f := NewFragmentSet()
	f.Select("e.user_id", `"User unique ID"`, "User unique ID")

	got := f.SQL("learning_enrollment e", "", 0)
	assert.Equal(t, `SELECT e.user_id AS "User unique ID" FROM learning_enrollment e`, got)
}

func TestFragmentSetCTEs(t *testing.T) {
	f := NewFragmentSet()
	f.CTE("session_time", "SELECT id_session, SUM(minutes) m FROM session_attendance GROUP BY id_session")
	f.CTE("session_time", "SELECT 1")
	f.CTE("event_count", "SELECT id_session, COUNT(*) n FROM session_event GROUP BY id_session")
	f.Select("st.m", `"Time in session"`, "Time in session")

	got := f.SQL("session_time st", "", 0)
	require.Contains(t, got, "WITH session_time AS (SELECT id_session, SUM(minutes) m FROM session_attendance GROUP BY id_session), event_count AS (")
	// the duplicate registration must not win
	assert.NotContains(t, got, "SELECT 1")
}

func TestFragmentSetEnsureJoinIsIdempotent(t *testing.T) {
	f := NewFragmentSet()
	builds := 0
	add := func() {
		f.EnsureJoin("user", func() string {
			builds++
			return "INNER JOIN core_user cu ON cu.user_id = e.user_id"
		})
	}
	add()
	add()
	add()

	require.Equal(t, 1, builds)
	require.True(t, f.HasJoin("user"))
	require.False(t, f.HasJoin("course"))

	f.Select("cu.email", `"Email"`, "Email")
	got := f.SQL("learning_enrollment e", "", 0)
	assert.Equal(t, 1, strings.Count(got, "INNER JOIN core_user"))
}

func TestFragmentSetGroupByDeduped(t *testing.T) {
	f := NewFragmentSet()
	f.Select("cu.user_id", `"User unique ID"`, "User unique ID")
	f.GroupBy("cu.user_id")
	f.GroupBy("cu.user_id")
	f.GroupBy("c.name")

	got := f.SQL("learning_enrollment e", "", 0)
	assert.Contains(t, got, "GROUP BY cu.user_id, c.name")
	assert.Equal(t, 1, strings.Count(got, "GROUP BY"))
}

func TestFragmentSetWhereSkipsEmptyPredicates(t *testing.T) {
	f := NewFragmentSet()
	f.Select("e.user_id", `"User unique ID"`, "User unique ID")
	f.Where("")
	got := f.SQL("learning_enrollment e", "", 0)
	assert.NotContains(t, got, "WHERE")

	f.Where("")
	f.Where("e.course_id IN (7)")
	got = f.SQL("learning_enrollment e", "", 0)
	assert.Contains(t, got, " WHERE e.course_id IN (7)")
}

func TestFragmentSetAliasesAndEmpty(t *testing.T) {
	f := NewFragmentSet()
	require.True(t, f.Empty())
	require.Empty(t, f.Aliases())

	f.Select("a", `"A"`, "A")
	f.Select("b", `"B"`, "B")
	require.False(t, f.Empty())
	require.Equal(t, []string{"A", "B"}, f.Aliases())

	// the returned slice is a copy
	f.Aliases()[0] = "mutated"
	require.Equal(t, []string{"A", "B"}, f.Aliases())
}
