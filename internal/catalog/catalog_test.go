package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearnhq/report-engine/internal/models"
)

func TestForCoversEveryKnownType(t *testing.T) {
	for _, typ := range models.KnownReportTypes {
		entries := For(typ)
		require.NotEmpty(t, entries, string(typ))
		require.NotEmpty(t, MandatoryFor(typ), string(typ))

		seen := map[string]struct{}{}
		for _, e := range entries {
			_, dup := seen[e.Field]
			assert.False(t, dup, "duplicate field %s in %s", e.Field, typ)
			seen[e.Field] = struct{}{}
			assert.NotEmpty(t, e.TranslationKey, e.Field)
		}
	}
	assert.Nil(t, For("users_badges"))
}

func TestContains(t *testing.T) {
	assert.True(t, Contains(models.ReportTypeUsersCourses, FieldUserID))
	assert.True(t, Contains(models.ReportTypeUsersCourses, FieldEnrollmentStatus))
	assert.False(t, Contains(models.ReportTypeUsersCourses, FieldSessionName))
	assert.True(t, Contains(models.ReportTypeUsersSessions, FieldSessionName))
	assert.False(t, Contains(models.ReportTypeUsersCourses, "user_extrafield_12"))
}

func TestTranslationKeyFor(t *testing.T) {
	assert.Equal(t, "report.field.user.userid", TranslationKeyFor(models.ReportTypeUsersCourses, FieldUserID))
	// unknown fields fall back to their own identifier
	assert.Equal(t, "MYSTERY", TranslationKeyFor(models.ReportTypeUsersCourses, "MYSTERY"))
}

func TestEnsureMandatory(t *testing.T) {
	fields := EnsureMandatory(models.ReportTypeUsersCourses, []string{FieldUserEmail})
	assert.Equal(t, []string{FieldUserID, FieldCourseName, FieldUserEmail}, fields)

	// already complete selections come back untouched
	same := []string{FieldCourseName, FieldUserID, FieldUserEmail}
	assert.Equal(t, same, EnsureMandatory(models.ReportTypeUsersCourses, same))
}

func TestEnrollmentTimeMandatorySet(t *testing.T) {
	mandatory := MandatoryFor(models.ReportTypeEnrollmentTime)
	assert.Contains(t, mandatory, FieldEnrollmentExpirationDate)
	assert.Contains(t, mandatory, FieldEnrollmentDaysLeft)
	assert.Contains(t, mandatory, FieldUserID)
	assert.Contains(t, mandatory, FieldCourseName)
}
