package compiler

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearnhq/report-engine/internal/extrafield"
	"github.com/openlearnhq/report-engine/internal/hydra"
)

// stubInspector answers column-existence checks from a fixed set keyed
// "table.column".
type stubInspector struct {
	columns map[string]bool
}

func (s *stubInspector) HasColumn(_ context.Context, table, column string) (bool, error) {
	return s.columns[table+"."+column], nil
}

var aliasPattern = regexp.MustCompile(`AS "((?:[^"]|"")*)"`)

// quotedAliases extracts the ordered output column headers of a statement.
func quotedAliases(sql string) []string {
	var out []string
	for _, m := range aliasPattern.FindAllStringSubmatch(sql, -1) {
		out = append(out, m[1])
	}
	return out
}

func collidingExtrasDeps(materialized bool) Deps {
	client := &stubHydra{
		userExtras:   []hydra.ExtraField{{ID: 1, Type: extrafield.TypeText, Name: "Department"}},
		courseExtras: []hydra.ExtraField{{ID: 2, Type: extrafield.TypeText, Name: "Department"}},
	}
	inspector := &stubInspector{columns: map[string]bool{}}
	if materialized {
		inspector.columns["user_field_value.field_1"] = true
		inspector.columns["course_field_value.field_2"] = true
	}
	return Deps{Hydra: client, Extras: extrafield.NewResolver(client, inspector)}
}

func TestExtraFieldTitleCollisionIsDeterministic(t *testing.T) {
	c := NewUsersCourses(collidingExtrasDeps(true))
	def := c.Default(adminSession())
	def.Fields = append(def.Fields, "user_extrafield_1", "course_extrafield_2")

	first, err := c.Athena(context.Background(), usersCoursesRequest(def, adminSession()))
	require.NoError(t, err)
	assert.Contains(t, first, `ufv.field_1 AS "Department"`)
	assert.Contains(t, first, `cfv.field_2 AS "Department (course)"`)

	for i := 0; i < 40; i++ {
		sql, err := c.Athena(context.Background(), usersCoursesRequest(def, adminSession()))
		require.NoError(t, err)
		require.Equal(t, first, sql, "compilation %d differs", i)
	}
}

func TestCompileAliasParityAcrossDialects(t *testing.T) {
	c := NewUsersCourses(collidingExtrasDeps(true))
	def := c.Default(adminSession())
	def.Fields = append(def.Fields, "user_extrafield_1", "course_extrafield_2")

	athena, err := c.Athena(context.Background(), usersCoursesRequest(def, adminSession()))
	require.NoError(t, err)
	snowflake, err := c.Snowflake(context.Background(), usersCoursesRequest(def, adminSession()))
	require.NoError(t, err)

	aliases := quotedAliases(athena)
	require.NotEmpty(t, aliases)
	assert.Equal(t, aliases, quotedAliases(snowflake))
}

func TestNonMaterializedExtraFieldCompilesToEmptyLiteral(t *testing.T) {
	c := NewUsersCourses(collidingExtrasDeps(false))
	def := c.Default(adminSession())
	def.Fields = append(def.Fields, "user_extrafield_1")

	sql, err := c.Athena(context.Background(), usersCoursesRequest(def, adminSession()))
	require.NoError(t, err)
	assert.Contains(t, sql, `'' AS "Department"`)
	assert.NotContains(t, sql, "user_field_value")
}
