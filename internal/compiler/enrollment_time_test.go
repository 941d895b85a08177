package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearnhq/report-engine/internal/catalog"
)

func TestEnrollmentTimeCompilesDefault(t *testing.T) {
	c := NewEnrollmentTime(Deps{Hydra: &stubHydra{}})
	def := c.Default(adminSession())

	sql, err := c.Athena(context.Background(), usersCoursesRequest(def, adminSession()))
	require.NoError(t, err)

	// the report only makes sense for enrollments that can expire
	assert.Contains(t, sql, "e.expiration_date IS NOT NULL")
	assert.Contains(t, sql, "date_diff('day', current_date, e.expiration_date)")
	assert.Contains(t, sql, `ORDER BY "ENROLLMENT_DAYS_LEFT" ASC`)
}

func TestEnrollmentTimeSnowflake(t *testing.T) {
	c := NewEnrollmentTime(Deps{Hydra: &stubHydra{}})
	def := c.Default(adminSession())

	sql, err := c.Snowflake(context.Background(), usersCoursesRequest(def, adminSession()))
	require.NoError(t, err)
	assert.Contains(t, sql, "datediff(day, current_date, e.expiration_date)")
}

func TestAssetViewsSnowflakeUnsupported(t *testing.T) {
	c := NewAssetViews(Deps{Hydra: &stubHydra{}})
	def := c.Default(adminSession())

	_, err := c.Snowflake(context.Background(), usersCoursesRequest(def, adminSession()))
	require.ErrorIs(t, err, ErrUnsupportedDialect)
}

func TestAssetViewsAthenaAggregates(t *testing.T) {
	c := NewAssetViews(Deps{Hydra: &stubHydra{}})
	def := c.Default(adminSession())

	sql, err := c.Athena(context.Background(), usersCoursesRequest(def, adminSession()))
	require.NoError(t, err)
	assert.Contains(t, sql, "JOIN asset a ON a.asset_id = av.asset_id")
	assert.Contains(t, sql, "GROUP BY")
}

func TestAssetViewsPublisherUsesCoreUserColumns(t *testing.T) {
	c := NewAssetViews(Deps{Hydra: &stubHydra{}})
	def := c.Default(adminSession())
	def.Fields = append(def.Fields, catalog.FieldAssetPublishedBy)

	sql, err := c.Athena(context.Background(), usersCoursesRequest(def, adminSession()))
	require.NoError(t, err)
	assert.Contains(t, sql, "concat(pub.firstname, ' ', pub.lastname)")
	assert.NotContains(t, sql, "first_name")
	assert.NotContains(t, sql, "last_name")
}

func TestUsersSessionsInstructorUsesCoreUserColumns(t *testing.T) {
	c := NewUsersSessions(Deps{Hydra: &stubHydra{}})
	def := c.Default(adminSession())
	def.Fields = append(def.Fields, catalog.FieldSessionInstructor)

	sql, err := c.Athena(context.Background(), usersCoursesRequest(def, adminSession()))
	require.NoError(t, err)
	assert.Contains(t, sql, "concat(ins.firstname, ' ', ins.lastname)")
	assert.NotContains(t, sql, "first_name")
	assert.NotContains(t, sql, "last_name")
}

func TestUsersSessionsEventCountCTE(t *testing.T) {
	c := NewUsersSessions(Deps{Hydra: &stubHydra{}})
	def := c.Default(adminSession())
	def.Fields = append(def.Fields, catalog.FieldSessionEventCount)

	sql, err := c.Athena(context.Background(), usersCoursesRequest(def, adminSession()))
	require.NoError(t, err)
	assert.Contains(t, sql, "WITH ")
	assert.Contains(t, sql, "session_events AS (SELECT session_id, COUNT(*) AS event_count FROM lt_session_event GROUP BY session_id)")

	mode := ResolveBranchMode(def)
	assert.Equal(t, BranchLive, mode)
}
