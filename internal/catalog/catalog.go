// Package catalog holds the static, per-report-type sets of selectable
// output fields. Pure data: compilers decide how each field renders.
package catalog

import "github.com/openlearnhq/report-engine/internal/models"

// Entry describes one selectable output field.
type Entry struct {
	Field          string
	TranslationKey string
	Mandatory      bool
	Additional     bool
}

// User fields shared by every user-joined report type.
const (
	FieldUserID            = "USER_USERID"
	FieldUserUsername      = "USER_USERNAME"
	FieldUserFullname      = "USER_FULLNAME"
	FieldUserFirstname     = "USER_FIRSTNAME"
	FieldUserLastname      = "USER_LASTNAME"
	FieldUserEmail         = "USER_EMAIL"
	FieldUserLevel         = "USER_LEVEL"
	FieldUserDeactivated   = "USER_DEACTIVATED"
	FieldUserRegisterDate  = "USER_REGISTER_DATE"
	FieldUserLastAccess    = "USER_LAST_ACCESS"
	FieldUserBranchName    = "USER_BRANCH_NAME"
	FieldUserBranchPath    = "USER_BRANCH_PATH"
	FieldUserTimezone      = "USER_TIMEZONE"
	FieldUserDirectManager = "USER_DIRECT_MANAGER"
)

// Course fields.
const (
	FieldCourseID             = "COURSE_ID"
	FieldCourseCode           = "COURSE_CODE"
	FieldCourseName           = "COURSE_NAME"
	FieldCourseCategory       = "COURSE_CATEGORY"
	FieldCourseType           = "COURSE_TYPE"
	FieldCourseStatus         = "COURSE_STATUS"
	FieldCourseCreditsCEU     = "COURSE_CREDITS_CEU"
	FieldCourseDuration       = "COURSE_DURATION"
	FieldCourseCreationDate   = "COURSE_CREATION_DATE"
	FieldCourseExpirationDate = "COURSE_EXPIRATION_DATE"
	FieldCourseLanguage       = "COURSE_LANGUAGE"
	FieldCourseSkills         = "COURSE_SKILLS"
	FieldCoursePrice          = "COURSE_PRICE"
)

// Enrollment fields (users_courses, users_enrollment_time).
const (
	FieldEnrollmentDate           = "ENROLLMENT_DATE"
	FieldEnrollmentStatus         = "ENROLLMENT_STATUS"
	FieldEnrollmentCompletionDate = "ENROLLMENT_COMPLETION_DATE"
	FieldEnrollmentScore          = "ENROLLMENT_SCORE"
	FieldEnrollmentCredits        = "ENROLLMENT_CREDITS"
	FieldEnrollmentTimeInCourse   = "ENROLLMENT_TIME_IN_COURSE"
	FieldEnrollmentArchivingDate  = "ENROLLMENT_ARCHIVING_DATE"
	FieldEnrollmentArchived       = "ENROLLMENT_ARCHIVED"
	FieldEnrollmentEsignStatus    = "ENROLLMENT_ESIGNATURE_STATUS"
	FieldEnrollmentDaysLeft       = "ENROLLMENT_DAYS_LEFT"
	FieldEnrollmentExpirationDate = "ENROLLMENT_EXPIRATION_DATE"
)

// Classroom-session fields.
const (
	FieldSessionName          = "SESSION_NAME"
	FieldSessionCode          = "SESSION_CODE"
	FieldSessionStartDate     = "SESSION_START_DATE"
	FieldSessionEndDate       = "SESSION_END_DATE"
	FieldSessionTimeInSession = "SESSION_TIME_IN_SESSION"
	FieldSessionAttendance    = "SESSION_ATTENDANCE"
	FieldSessionInstructor    = "SESSION_INSTRUCTOR"
	FieldSessionEventCount    = "SESSION_EVENT_COUNT"
	FieldSessionLocation      = "SESSION_LOCATION"
)

// Survey fields.
const (
	FieldSurveyTitle          = "SURVEY_TITLE"
	FieldSurveyID             = "SURVEY_ID"
	FieldSurveyCompletionDate = "SURVEY_COMPLETION_DATE"
	FieldSurveyQuestion       = "SURVEY_QUESTION"
	FieldSurveyQuestionType   = "SURVEY_QUESTION_TYPE"
	FieldSurveyAnswer         = "SURVEY_ANSWER"
)

// Asset-view fields.
const (
	FieldAssetName          = "ASSET_NAME"
	FieldAssetChannels      = "ASSET_CHANNELS"
	FieldAssetPublishedBy   = "ASSET_PUBLISHED_BY"
	FieldAssetPublishedOn   = "ASSET_PUBLISHED_ON"
	FieldAssetType          = "ASSET_TYPE"
	FieldAssetLastAccess    = "ASSET_LAST_ACCESS"
	FieldAssetFirstAccess   = "ASSET_FIRST_ACCESS"
	FieldAssetNumberViews   = "ASSET_NUMBER_VIEWS"
	FieldAssetAverageRating = "ASSET_AVERAGE_RATING"
)

// Learning-plan fields.
const (
	FieldLPName              = "LP_NAME"
	FieldLPCode              = "LP_CODE"
	FieldLPCredits           = "LP_CREDITS"
	FieldLPEnrollmentDate    = "LP_ENROLLMENT_DATE"
	FieldLPCompletionDate    = "LP_COMPLETION_DATE"
	FieldLPStatus            = "LP_STATUS"
	FieldLPCoursesTotal      = "LP_COURSES_TOTAL"
	FieldLPCoursesCompleted  = "LP_COURSES_COMPLETED"
	FieldLPCompletionPercent = "LP_COMPLETION_PERCENT"
)

var userEntries = []Entry{
	{Field: FieldUserID, TranslationKey: "report.field.user.userid", Mandatory: true},
	{Field: FieldUserUsername, TranslationKey: "report.field.user.username"},
	{Field: FieldUserFullname, TranslationKey: "report.field.user.fullname"},
	{Field: FieldUserFirstname, TranslationKey: "report.field.user.firstname", Additional: true},
	{Field: FieldUserLastname, TranslationKey: "report.field.user.lastname", Additional: true},
	{Field: FieldUserEmail, TranslationKey: "report.field.user.email"},
	{Field: FieldUserLevel, TranslationKey: "report.field.user.level", Additional: true},
	{Field: FieldUserDeactivated, TranslationKey: "report.field.user.deactivated", Additional: true},
	{Field: FieldUserRegisterDate, TranslationKey: "report.field.user.register_date", Additional: true},
	{Field: FieldUserLastAccess, TranslationKey: "report.field.user.last_access", Additional: true},
	{Field: FieldUserBranchName, TranslationKey: "report.field.user.branch_name", Additional: true},
	{Field: FieldUserBranchPath, TranslationKey: "report.field.user.branch_path", Additional: true},
	{Field: FieldUserTimezone, TranslationKey: "report.field.user.timezone", Additional: true},
	{Field: FieldUserDirectManager, TranslationKey: "report.field.user.direct_manager", Additional: true},
}

var courseEntries = []Entry{
	{Field: FieldCourseName, TranslationKey: "report.field.course.name", Mandatory: true},
	{Field: FieldCourseID, TranslationKey: "report.field.course.id", Additional: true},
	{Field: FieldCourseCode, TranslationKey: "report.field.course.code"},
	{Field: FieldCourseCategory, TranslationKey: "report.field.course.category", Additional: true},
	{Field: FieldCourseType, TranslationKey: "report.field.course.type", Additional: true},
	{Field: FieldCourseStatus, TranslationKey: "report.field.course.status", Additional: true},
	{Field: FieldCourseCreditsCEU, TranslationKey: "report.field.course.credits", Additional: true},
	{Field: FieldCourseDuration, TranslationKey: "report.field.course.duration", Additional: true},
	{Field: FieldCourseCreationDate, TranslationKey: "report.field.course.creation_date", Additional: true},
	{Field: FieldCourseExpirationDate, TranslationKey: "report.field.course.expiration_date", Additional: true},
	{Field: FieldCourseLanguage, TranslationKey: "report.field.course.language", Additional: true},
	{Field: FieldCourseSkills, TranslationKey: "report.field.course.skills", Additional: true},
	{Field: FieldCoursePrice, TranslationKey: "report.field.course.price", Additional: true},
}

var enrollmentEntries = []Entry{
	{Field: FieldEnrollmentDate, TranslationKey: "report.field.enrollment.date"},
	{Field: FieldEnrollmentStatus, TranslationKey: "report.field.enrollment.status"},
	{Field: FieldEnrollmentCompletionDate, TranslationKey: "report.field.enrollment.completion_date"},
	{Field: FieldEnrollmentScore, TranslationKey: "report.field.enrollment.score", Additional: true},
	{Field: FieldEnrollmentCredits, TranslationKey: "report.field.enrollment.credits", Additional: true},
	{Field: FieldEnrollmentTimeInCourse, TranslationKey: "report.field.enrollment.time_in_course", Additional: true},
	{Field: FieldEnrollmentArchivingDate, TranslationKey: "report.field.enrollment.archiving_date", Additional: true},
	{Field: FieldEnrollmentArchived, TranslationKey: "report.field.enrollment.archived", Additional: true},
	{Field: FieldEnrollmentEsignStatus, TranslationKey: "report.field.enrollment.esignature_status", Additional: true},
}

var catalogs = map[models.ReportType][]Entry{
	models.ReportTypeUsersCourses: join(
		userEntries,
		courseEntries,
		enrollmentEntries,
	),
	models.ReportTypeUsersSessions: join(
		userEntries,
		[]Entry{
			{Field: FieldCourseName, TranslationKey: "report.field.course.name", Mandatory: true},
			{Field: FieldCourseCode, TranslationKey: "report.field.course.code"},
			{Field: FieldCourseType, TranslationKey: "report.field.course.type", Additional: true},
			{Field: FieldSessionName, TranslationKey: "report.field.session.name", Mandatory: true},
			{Field: FieldSessionCode, TranslationKey: "report.field.session.code"},
			{Field: FieldSessionStartDate, TranslationKey: "report.field.session.start_date"},
			{Field: FieldSessionEndDate, TranslationKey: "report.field.session.end_date"},
			{Field: FieldSessionTimeInSession, TranslationKey: "report.field.session.time_in_session", Additional: true},
			{Field: FieldSessionAttendance, TranslationKey: "report.field.session.attendance", Additional: true},
			{Field: FieldSessionInstructor, TranslationKey: "report.field.session.instructor", Additional: true},
			{Field: FieldSessionEventCount, TranslationKey: "report.field.session.event_count", Additional: true},
			{Field: FieldSessionLocation, TranslationKey: "report.field.session.location", Additional: true},
			{Field: FieldEnrollmentStatus, TranslationKey: "report.field.enrollment.status"},
			{Field: FieldEnrollmentDate, TranslationKey: "report.field.enrollment.date"},
		},
	),
	models.ReportTypeSurveyAnswers: join(
		userEntries,
		[]Entry{
			{Field: FieldCourseName, TranslationKey: "report.field.course.name"},
			{Field: FieldSurveyID, TranslationKey: "report.field.survey.id"},
			{Field: FieldSurveyTitle, TranslationKey: "report.field.survey.title", Mandatory: true},
			{Field: FieldSurveyCompletionDate, TranslationKey: "report.field.survey.completion_date"},
			{Field: FieldSurveyQuestion, TranslationKey: "report.field.survey.question", Mandatory: true},
			{Field: FieldSurveyQuestionType, TranslationKey: "report.field.survey.question_type", Additional: true},
			{Field: FieldSurveyAnswer, TranslationKey: "report.field.survey.answer", Mandatory: true},
		},
	),
	models.ReportTypeAssetViews: join(
		userEntries,
		[]Entry{
			{Field: FieldAssetName, TranslationKey: "report.field.asset.name", Mandatory: true},
			{Field: FieldAssetChannels, TranslationKey: "report.field.asset.channels", Additional: true},
			{Field: FieldAssetPublishedBy, TranslationKey: "report.field.asset.published_by", Additional: true},
			{Field: FieldAssetPublishedOn, TranslationKey: "report.field.asset.published_on", Additional: true},
			{Field: FieldAssetType, TranslationKey: "report.field.asset.type", Additional: true},
			{Field: FieldAssetFirstAccess, TranslationKey: "report.field.asset.first_access", Additional: true},
			{Field: FieldAssetLastAccess, TranslationKey: "report.field.asset.last_access", Additional: true},
			{Field: FieldAssetNumberViews, TranslationKey: "report.field.asset.number_views"},
			{Field: FieldAssetAverageRating, TranslationKey: "report.field.asset.average_rating", Additional: true},
		},
	),
	models.ReportTypeUsersLearningPlans: join(
		userEntries,
		[]Entry{
			{Field: FieldLPName, TranslationKey: "report.field.lp.name", Mandatory: true},
			{Field: FieldLPCode, TranslationKey: "report.field.lp.code"},
			{Field: FieldLPCredits, TranslationKey: "report.field.lp.credits", Additional: true},
			{Field: FieldLPEnrollmentDate, TranslationKey: "report.field.lp.enrollment_date"},
			{Field: FieldLPCompletionDate, TranslationKey: "report.field.lp.completion_date"},
			{Field: FieldLPStatus, TranslationKey: "report.field.lp.status"},
			{Field: FieldLPCoursesTotal, TranslationKey: "report.field.lp.courses_total", Additional: true},
			{Field: FieldLPCoursesCompleted, TranslationKey: "report.field.lp.courses_completed", Additional: true},
			{Field: FieldLPCompletionPercent, TranslationKey: "report.field.lp.completion_percent", Additional: true},
		},
	),
	models.ReportTypeEnrollmentTime: join(
		userEntries,
		[]Entry{
			{Field: FieldCourseName, TranslationKey: "report.field.course.name", Mandatory: true},
			{Field: FieldCourseCode, TranslationKey: "report.field.course.code"},
			{Field: FieldEnrollmentDate, TranslationKey: "report.field.enrollment.date"},
			{Field: FieldEnrollmentStatus, TranslationKey: "report.field.enrollment.status"},
			{Field: FieldEnrollmentExpirationDate, TranslationKey: "report.field.enrollment.expiration_date", Mandatory: true},
			{Field: FieldEnrollmentDaysLeft, TranslationKey: "report.field.enrollment.days_left", Mandatory: true},
		},
	),
}

func join(groups ...[]Entry) []Entry {
	var out []Entry
	seen := map[string]struct{}{}
	for _, g := range groups {
		for _, e := range g {
			if _, dup := seen[e.Field]; dup {
				continue
			}
			seen[e.Field] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

// For returns the catalog entries for a report type, nil when unknown.
func For(t models.ReportType) []Entry {
	return catalogs[t]
}

// MandatoryFor returns the mandatory field identifiers for a report type.
func MandatoryFor(t models.ReportType) []string {
	var out []string
	for _, e := range catalogs[t] {
		if e.Mandatory {
			out = append(out, e.Field)
		}
	}
	return out
}

// Contains reports whether a field belongs to the report type's catalog.
func Contains(t models.ReportType, field string) bool {
	for _, e := range catalogs[t] {
		if e.Field == field {
			return true
		}
	}
	return false
}

// TranslationKeyFor returns the translation key of a catalog field, or the
// field identifier itself when the field is not in the catalog.
func TranslationKeyFor(t models.ReportType, field string) string {
	for _, e := range catalogs[t] {
		if e.Field == field {
			return e.TranslationKey
		}
	}
	return field
}

// EnsureMandatory prepends any missing mandatory fields, preserving the
// caller's ordering for the rest of the selection.
func EnsureMandatory(t models.ReportType, fields []string) []string {
	have := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		have[f] = struct{}{}
	}
	var missing []string
	for _, m := range MandatoryFor(t) {
		if _, ok := have[m]; !ok {
			missing = append(missing, m)
		}
	}
	if len(missing) == 0 {
		return fields
	}
	out := make([]string, 0, len(missing)+len(fields))
	out = append(out, missing...)
	out = append(out, fields...)
	return out
}
