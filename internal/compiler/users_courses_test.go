package compiler

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearnhq/report-engine/internal/catalog"
	"github.com/openlearnhq/report-engine/internal/hydra"
	"github.com/openlearnhq/report-engine/internal/models"
)

// stubHydra serves canned metadata. Translations echo their key so header
// assertions can target field names directly.
type stubHydra struct {
	powerUserUsers   []int64
	powerUserCourses []int64
	groupMembers     map[int64][]int64
	branchChildren   map[int64][]int64
	userExtras       []hydra.ExtraField
	courseExtras     []hydra.ExtraField
}

func (s *stubHydra) Translations(_ context.Context, keys []string, _ string) (map[string]string, error) {
	return map[string]string{}, nil
}

func (s *stubHydra) UserExtraFields(context.Context) ([]hydra.ExtraField, error) {
	return s.userExtras, nil
}

func (s *stubHydra) CourseExtraFields(context.Context) ([]hydra.ExtraField, error) {
	return s.courseExtras, nil
}

func (s *stubHydra) EnrollmentExtraFields(context.Context) ([]hydra.ExtraField, error) {
	return nil, nil
}

func (s *stubHydra) BranchDescendants(_ context.Context, branchID int64) ([]int64, error) {
	return s.branchChildren[branchID], nil
}

func (s *stubHydra) GroupMembers(_ context.Context, groupID int64) ([]int64, error) {
	return s.groupMembers[groupID], nil
}

func (s *stubHydra) PowerUserUsers(context.Context, int64) ([]int64, error) {
	return s.powerUserUsers, nil
}

func (s *stubHydra) PowerUserCourses(context.Context, int64) ([]int64, error) {
	return s.powerUserCourses, nil
}

func (s *stubHydra) UserIDsByManager(context.Context, int64, int) ([]int64, error) {
	return nil, nil
}

type recordingObserver struct {
	fields []string
}

func (r *recordingObserver) ObserveUnmappedField(_ models.ReportType, field string) {
	r.fields = append(r.fields, field)
}

func adminSession() *models.SessionContext {
	return &models.SessionContext{UserID: 42, Level: models.LevelAdmin, Lang: "english"}
}

func usersCoursesRequest(def *models.ReportDefinition, session *models.SessionContext) Request {
	return Request{Definition: def, Session: session, CheckVisibility: true}
}

func TestNewReturnsCompilerPerKnownType(t *testing.T) {
	for _, typ := range models.KnownReportTypes {
		c, err := New(typ, Deps{Hydra: &stubHydra{}})
		require.NoError(t, err)
		require.Equal(t, typ, c.Type())
	}
	_, err := New("users_badges", Deps{})
	require.ErrorIs(t, err, ErrUnknownReportType)
}

func TestUsersCoursesDefaultStructure(t *testing.T) {
	c := NewUsersCourses(Deps{Hydra: &stubHydra{}})
	def := c.Default(adminSession())

	assert.Equal(t, models.ReportTypeUsersCourses, def.Type)
	assert.Equal(t, int64(42), def.Author)
	assert.Equal(t, models.VisibilityAllAdmins, def.Visibility.Type)
	assert.Contains(t, def.Fields, catalog.FieldUserID)
	assert.Equal(t, models.SortSelectorDefault, def.Sorting.Selector)
	assert.Equal(t, models.EnrollmentActive, def.Enrollment.Types)
	assert.True(t, def.Users.All)
	assert.True(t, def.Courses.All)
	assert.True(t, def.Enrollment.EnrollmentDate.Any)
}

func TestUsersCoursesCompilesDefault(t *testing.T) {
	c := NewUsersCourses(Deps{Hydra: &stubHydra{}})
	def := c.Default(adminSession())

	sql, err := c.Athena(context.Background(), usersCoursesRequest(def, adminSession()))
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM learning_enrollment e")
	assert.NotContains(t, sql, "learning_enrollment_archive")
	assert.NotContains(t, sql, " UNION ")
	assert.Contains(t, sql, `cu.user_id AS "USER_USERID"`)
	assert.Contains(t, sql, `ORDER BY "USER_USERID" ASC`)
	assert.Contains(t, sql, "LIMIT 100000")
	assert.Equal(t, 1, strings.Count(sql, "JOIN core_user cu"))
}

func TestUsersCoursesArchiveOnly(t *testing.T) {
	c := NewUsersCourses(Deps{Hydra: &stubHydra{}})
	def := c.Default(adminSession())
	def.Enrollment.Types = models.EnrollmentArchived

	sql, err := c.Athena(context.Background(), usersCoursesRequest(def, adminSession()))
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM learning_enrollment_archive e")
	assert.NotContains(t, sql, " UNION ")
	// course fields come from the denormalized payload, not the live join
	assert.Contains(t, sql, "json_extract_scalar(e.payload, '$.course_name')")
	assert.NotContains(t, sql, "JOIN learning_course")
}

func TestUsersCoursesUnionBranchesMatch(t *testing.T) {
	c := NewUsersCourses(Deps{Hydra: &stubHydra{}})
	def := c.Default(adminSession())
	def.Enrollment.Types = models.EnrollmentActiveAndArchived

	sql, err := c.Athena(context.Background(), usersCoursesRequest(def, adminSession()))
	require.NoError(t, err)

	require.Equal(t, 1, strings.Count(sql, " UNION "))
	live, archive, _ := strings.Cut(sql, " UNION ")
	assert.Contains(t, live, "FROM learning_enrollment e")
	assert.Contains(t, archive, "FROM learning_enrollment_archive e")

	// both sides must emit the same alias list in the same order
	for _, field := range def.Fields {
		assert.Contains(t, live, ` AS "`+field+`"`)
		assert.Contains(t, archive, ` AS "`+field+`"`)
	}

	// ordering and limit only close the outermost statement
	assert.Equal(t, 1, strings.Count(sql, " ORDER BY "))
	assert.Equal(t, 1, strings.Count(sql, " LIMIT "))
	assert.True(t, strings.Index(sql, " ORDER BY ") > strings.Index(sql, " UNION "))
}

func TestUsersCoursesFailClosedOnEmptyFilter(t *testing.T) {
	c := NewUsersCourses(Deps{Hydra: &stubHydra{}})
	def := c.Default(adminSession())
	def.Users = &models.UsersFilter{All: false}

	sql, err := c.Athena(context.Background(), usersCoursesRequest(def, adminSession()))
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE FALSE")
}

func TestUsersCoursesPowerUserVisibility(t *testing.T) {
	client := &stubHydra{powerUserUsers: []int64{5, 6}, powerUserCourses: []int64{9}}
	c := NewUsersCourses(Deps{Hydra: client})
	session := &models.SessionContext{UserID: 7, Level: models.LevelPowerUser}
	def := c.Default(session)

	sql, err := c.Athena(context.Background(), usersCoursesRequest(def, session))
	require.NoError(t, err)
	assert.Contains(t, sql, "e.user_id IN (5,6)")
	assert.Contains(t, sql, "e.course_id IN (9)")

	// trusted scheduled runs skip the intersection
	req := usersCoursesRequest(def, session)
	req.CheckVisibility = false
	req.FromSchedule = true
	sql, err = c.Athena(context.Background(), req)
	require.NoError(t, err)
	assert.NotContains(t, sql, "e.user_id IN")
	assert.NotContains(t, sql, "e.course_id IN")
}

func TestUsersCoursesSkipsUnmappedFields(t *testing.T) {
	obs := &recordingObserver{}
	c := NewUsersCourses(Deps{Hydra: &stubHydra{}, Unmapped: obs})
	def := c.Default(adminSession())
	def.Fields = append(def.Fields, catalog.FieldSessionName)

	sql, err := c.Athena(context.Background(), usersCoursesRequest(def, adminSession()))
	require.NoError(t, err)
	assert.NotContains(t, sql, catalog.FieldSessionName)
	require.Equal(t, []string{catalog.FieldSessionName}, obs.fields)
}

func TestUsersCoursesNoOutputColumns(t *testing.T) {
	c := NewUsersCourses(Deps{Hydra: &stubHydra{}})
	def := c.Default(adminSession())
	def.Fields = []string{catalog.FieldSessionName}

	_, err := c.Athena(context.Background(), usersCoursesRequest(def, adminSession()))
	require.ErrorIs(t, err, ErrNoOutputColumns)
}

func TestUsersCoursesPreview(t *testing.T) {
	c := NewUsersCourses(Deps{Hydra: &stubHydra{}})
	def := c.Default(adminSession())

	req := usersCoursesRequest(def, adminSession())
	req.Preview = true
	sql, err := c.Athena(context.Background(), req)
	require.NoError(t, err)
	assert.NotContains(t, sql, "ORDER BY")
	assert.Contains(t, sql, "LIMIT 10")
}

func TestUsersCoursesCustomSortFallsBack(t *testing.T) {
	c := NewUsersCourses(Deps{Hydra: &stubHydra{}})
	def := c.Default(adminSession())
	def.Sorting = models.Sorting{
		Selector:  models.SortSelectorCustom,
		Field:     catalog.FieldSessionName,
		Direction: models.SortDesc,
	}

	sql, err := c.Athena(context.Background(), usersCoursesRequest(def, adminSession()))
	require.NoError(t, err)
	assert.Contains(t, sql, `ORDER BY "USER_USERID" DESC`)
}

func TestUsersCoursesStatusFilter(t *testing.T) {
	c := NewUsersCourses(Deps{Hydra: &stubHydra{}})
	def := c.Default(adminSession())
	def.Enrollment.Statuses = []string{models.EnrollStatusCompleted, models.EnrollStatusInProgress}
	def.Enrollment.Types = models.EnrollmentActiveAndArchived

	sql, err := c.Athena(context.Background(), usersCoursesRequest(def, adminSession()))
	require.NoError(t, err)
	// live rows match on numeric codes, archived payloads on symbolic names
	assert.Contains(t, sql, "e.status IN (2,1)")
	assert.Contains(t, sql, "json_extract_scalar(e.payload, '$.status') IN ('completed','in_progress')")
}

func TestUsersCoursesSnowflakeUsesWarehouseSyntax(t *testing.T) {
	c := NewUsersCourses(Deps{Hydra: &stubHydra{}})
	def := c.Default(adminSession())
	def.Enrollment.Types = models.EnrollmentArchived

	sql, err := c.Snowflake(context.Background(), usersCoursesRequest(def, adminSession()))
	require.NoError(t, err)
	assert.Contains(t, sql, "json_extract_path_text(e.payload, 'course_name')")
	assert.NotContains(t, sql, "json_extract_scalar")
}

func TestUsersCoursesRowLimitHonorsPlatformCap(t *testing.T) {
	c := NewUsersCourses(Deps{Hydra: &stubHydra{}})
	session := adminSession()
	session.Platform.ExportRowLimit = 500
	def := c.Default(session)

	req := usersCoursesRequest(def, session)
	req.Limit = 10000
	sql, err := c.Athena(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, sql, "LIMIT 500")

	req.Limit = 50
	sql, err = c.Athena(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, sql, "LIMIT 50")
}
