package legacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearnhq/report-engine/internal/catalog"
	"github.com/openlearnhq/report-engine/internal/models"
	apperrors "github.com/openlearnhq/report-engine/pkg/errors"
)

var allAdmins = models.Visibility{Type: models.VisibilityAllAdmins}

func TestParseUsersCoursesPayload(t *testing.T) {
	raw := []byte(`{
		"report_type_id": 1,
		"title": "Completions Q1",
		"description": "quarterly completions",
		"author": "77",
		"filters": {
			"all_users": "0",
			"users": [3, "4"],
			"groups": ["12"],
			"branches": [{"id": "9", "descendants": 1}],
			"hide_deactivated_users": 1,
			"all_courses": 0,
			"courses": [100],
			"enrollment_status": [2],
			"consider_archived_enrollments": "1",
			"condition": "OR",
			"enrollment_date_from": "2025-01-01",
			"enrollment_date_to": "2025-03-31"
		},
		"fields": [
			{"field": "user.userid", "order_by": ""},
			{"field": "course.name", "order_by": ""},
			{"field": "enrollment.completion_date", "order_by": "desc"}
		]
	}`)

	def, err := Parse(raw, "acme.example.com", allAdmins)
	require.NoError(t, err)

	assert.Equal(t, models.ReportTypeUsersCourses, def.Type)
	assert.Equal(t, "Completions Q1", def.Title)
	assert.Equal(t, int64(77), def.Author)
	assert.Equal(t, "acme.example.com", def.Platform)
	assert.Equal(t, allAdmins, def.Visibility)

	require.NotNil(t, def.Users)
	assert.False(t, def.Users.All)
	assert.Equal(t, []int64{3, 4}, def.Users.Users)
	assert.Equal(t, []int64{12}, def.Users.Groups)
	assert.Equal(t, []models.BranchSelection{{ID: 9, Descendants: true}}, def.Users.Branches)
	assert.True(t, def.Users.HideDeactivated)

	require.NotNil(t, def.Courses)
	assert.False(t, def.Courses.All)
	assert.Equal(t, []int64{100}, def.Courses.Courses)

	assert.Equal(t, []string{models.EnrollStatusCompleted}, def.Enrollment.Statuses)
	assert.Equal(t, models.EnrollmentActiveAndArchived, def.Enrollment.Types)
	assert.Equal(t, models.AtLeastOneCondition, def.Conditions)
	assert.Equal(t, models.DateFilterRange, def.Enrollment.EnrollmentDate.Kind)
	assert.Equal(t, "2025-01-01", def.Enrollment.EnrollmentDate.From)

	assert.Equal(t, []string{
		catalog.FieldUserID,
		catalog.FieldCourseName,
		catalog.FieldEnrollmentCompletionDate,
	}, def.Fields)
	assert.Equal(t, models.Sorting{
		Selector:  models.SortSelectorCustom,
		Field:     catalog.FieldEnrollmentCompletionDate,
		Direction: models.SortDesc,
	}, def.Sorting)
}

func TestParseCoursesExpiringIn(t *testing.T) {
	raw := []byte(`{
		"report_type_id": 1,
		"title": "Expiring",
		"filters": {"all_users": 1, "all_courses": 1, "courses_expiring_in": "30"},
		"fields": [{"field": "user.userid"}, {"field": "course.name"}]
	}`)

	def, err := Parse(raw, "acme.example.com", allAdmins)
	require.NoError(t, err)
	require.NotNil(t, def.Courses)
	assert.Equal(t, models.DateOption{
		Kind:     models.DateFilterRelative,
		Days:     30,
		Operator: models.DateOpExpiringIn,
	}, def.Courses.ExpirationDate)
	assert.True(t, def.Courses.ExpirationDate.Active())
}

func TestParseMissingFilters(t *testing.T) {
	raw := []byte(`{"report_type_id": 1, "title": "No filters"}`)
	_, err := Parse(raw, "acme.example.com", allAdmins)
	require.ErrorIs(t, err, apperrors.ErrLegacyFiltersMissing)
}

func TestParseUnknownType(t *testing.T) {
	raw := []byte(`{"report_type_id": 99, "filters": {}}`)
	_, err := Parse(raw, "acme.example.com", allAdmins)
	require.ErrorIs(t, err, apperrors.ErrUnknownReportType)
}

func TestParseMalformedPayload(t *testing.T) {
	_, err := Parse([]byte(`{"report_type_id": `), "acme.example.com", allAdmins)
	require.Error(t, err)
	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrValidation.Code, appErr.Code)
}

func TestParseEmptySelectionsMeanAll(t *testing.T) {
	raw := []byte(`{
		"report_type_id": 1,
		"filters": {"all_users": 0, "all_courses": 0},
		"fields": [{"field": "user.userid"}]
	}`)

	def, err := Parse(raw, "acme.example.com", allAdmins)
	require.NoError(t, err)
	// a restricted flag with nothing selected reads as "no restriction",
	// matching how the legacy product treated these payloads
	assert.True(t, def.Users.All)
	assert.True(t, def.Courses.All)
}

func TestParseDropsUnknownFieldsKeepsExtraRefs(t *testing.T) {
	raw := []byte(`{
		"report_type_id": 1,
		"filters": {"all_users": 1, "all_courses": 1},
		"fields": [
			{"field": "user.userid"},
			{"field": "user.shoe_size"},
			{"field": "course.name"},
			{"field": "user.userid"},
			{"field": "user_extrafield_12"}
		]
	}`)

	def, err := Parse(raw, "acme.example.com", allAdmins)
	require.NoError(t, err)
	assert.Equal(t, []string{
		catalog.FieldUserID,
		catalog.FieldCourseName,
		"user_extrafield_12",
	}, def.Fields)
}

func TestParseLastOrderWins(t *testing.T) {
	raw := []byte(`{
		"report_type_id": 1,
		"filters": {"all_users": 1, "all_courses": 1},
		"fields": [
			{"field": "user.userid", "order_by": "asc"},
			{"field": "course.name", "order_by": "DESC"}
		]
	}`)

	def, err := Parse(raw, "acme.example.com", allAdmins)
	require.NoError(t, err)
	assert.Equal(t, models.Sorting{
		Selector:  models.SortSelectorCustom,
		Field:     catalog.FieldCourseName,
		Direction: models.SortDesc,
	}, def.Sorting)
}

func TestParseOnlyArchived(t *testing.T) {
	raw := []byte(`{
		"report_type_id": 1,
		"filters": {"all_users": 1, "all_courses": 1, "only_archived_enrollments": true, "consider_archived_enrollments": true},
		"fields": [{"field": "user.userid"}]
	}`)

	def, err := Parse(raw, "acme.example.com", allAdmins)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentArchived, def.Enrollment.Types)
}

func TestParseNoFieldsKeepsDefaults(t *testing.T) {
	raw := []byte(`{
		"report_type_id": 1,
		"filters": {"all_users": 1, "all_courses": 1}
	}`)

	def, err := Parse(raw, "acme.example.com", allAdmins)
	require.NoError(t, err)
	assert.NotEmpty(t, def.Fields)
	assert.Contains(t, def.Fields, catalog.FieldUserID)
	assert.Equal(t, models.SortSelectorDefault, def.Sorting.Selector)
}
