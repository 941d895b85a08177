// Package legacy converts the old loosely-typed filter-JSON report format
// into the structured report model. One-way: there is no exporter.
package legacy

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/openlearnhq/report-engine/internal/catalog"
	"github.com/openlearnhq/report-engine/internal/compiler"
	"github.com/openlearnhq/report-engine/internal/extrafield"
	"github.com/openlearnhq/report-engine/internal/models"
	apperrors "github.com/openlearnhq/report-engine/pkg/errors"
)

// Legacy numeric report type ids.
var legacyTypes = map[int64]models.ReportType{
	1: models.ReportTypeUsersCourses,
	2: models.ReportTypeUsersSessions,
	3: models.ReportTypeSurveyAnswers,
	4: models.ReportTypeAssetViews,
	5: models.ReportTypeUsersLearningPlans,
	6: models.ReportTypeEnrollmentTime,
}

// Legacy numeric enrollment status codes.
var legacyStatuses = map[int64]string{
	-2: models.EnrollStatusWaiting,
	-1: models.EnrollStatusOverbooked,
	0:  models.EnrollStatusSubscribed,
	1:  models.EnrollStatusInProgress,
	2:  models.EnrollStatusCompleted,
	3:  models.EnrollStatusSuspended,
}

// legacyFields maps old dotted field keys to catalog identifiers. Extra
// field references pass through unchanged; anything else unknown is dropped.
var legacyFields = map[string]string{
	"user.idUser":           catalog.FieldUserID,
	"user.userid":           catalog.FieldUserID,
	"user.username":         catalog.FieldUserUsername,
	"user.fullname":         catalog.FieldUserFullname,
	"user.firstname":        catalog.FieldUserFirstname,
	"user.lastname":         catalog.FieldUserLastname,
	"user.email":            catalog.FieldUserEmail,
	"user.level":            catalog.FieldUserLevel,
	"user.suspended":        catalog.FieldUserDeactivated,
	"user.register_date":    catalog.FieldUserRegisterDate,
	"user.last_access_date": catalog.FieldUserLastAccess,
	"user.branch_name":      catalog.FieldUserBranchName,
	"user.branch_path":      catalog.FieldUserBranchPath,
	"user.timezone":         catalog.FieldUserTimezone,
	"user.direct_manager":   catalog.FieldUserDirectManager,

	"course.id":              catalog.FieldCourseID,
	"course.code":            catalog.FieldCourseCode,
	"course.name":            catalog.FieldCourseName,
	"course.category":        catalog.FieldCourseCategory,
	"course.type":            catalog.FieldCourseType,
	"course.status":          catalog.FieldCourseStatus,
	"course.credits":         catalog.FieldCourseCreditsCEU,
	"course.duration":        catalog.FieldCourseDuration,
	"course.creation_date":   catalog.FieldCourseCreationDate,
	"course.expiration_date": catalog.FieldCourseExpirationDate,
	"course.lang":            catalog.FieldCourseLanguage,
	"course.skills":          catalog.FieldCourseSkills,
	"course.price":           catalog.FieldCoursePrice,

	"enrollment.date":              catalog.FieldEnrollmentDate,
	"enrollment.status":            catalog.FieldEnrollmentStatus,
	"enrollment.completion_date":   catalog.FieldEnrollmentCompletionDate,
	"enrollment.score":             catalog.FieldEnrollmentScore,
	"enrollment.credits":           catalog.FieldEnrollmentCredits,
	"enrollment.time_in_course":    catalog.FieldEnrollmentTimeInCourse,
	"enrollment.archiving_date":    catalog.FieldEnrollmentArchivingDate,
	"enrollment.archived":          catalog.FieldEnrollmentArchived,
	"enrollment.esignature_status": catalog.FieldEnrollmentEsignStatus,
	"enrollment.expiration_date":   catalog.FieldEnrollmentExpirationDate,
	"enrollment.days_left":         catalog.FieldEnrollmentDaysLeft,

	"session.name":            catalog.FieldSessionName,
	"session.code":            catalog.FieldSessionCode,
	"session.start_date":      catalog.FieldSessionStartDate,
	"session.end_date":        catalog.FieldSessionEndDate,
	"session.time_in_session": catalog.FieldSessionTimeInSession,
	"session.attendance":      catalog.FieldSessionAttendance,
	"session.instructor":      catalog.FieldSessionInstructor,
	"session.event_count":     catalog.FieldSessionEventCount,
	"session.location":        catalog.FieldSessionLocation,

	"survey.id":              catalog.FieldSurveyID,
	"survey.title":           catalog.FieldSurveyTitle,
	"survey.completion_date": catalog.FieldSurveyCompletionDate,
	"survey.question":        catalog.FieldSurveyQuestion,
	"survey.question_type":   catalog.FieldSurveyQuestionType,
	"survey.answer":          catalog.FieldSurveyAnswer,

	"asset.name":           catalog.FieldAssetName,
	"asset.channels":       catalog.FieldAssetChannels,
	"asset.published_by":   catalog.FieldAssetPublishedBy,
	"asset.published_on":   catalog.FieldAssetPublishedOn,
	"asset.type":           catalog.FieldAssetType,
	"asset.first_access":   catalog.FieldAssetFirstAccess,
	"asset.last_access":    catalog.FieldAssetLastAccess,
	"asset.number_views":   catalog.FieldAssetNumberViews,
	"asset.average_rating": catalog.FieldAssetAverageRating,

	"learningplan.name":               catalog.FieldLPName,
	"learningplan.code":               catalog.FieldLPCode,
	"learningplan.credits":            catalog.FieldLPCredits,
	"learningplan.enrollment_date":    catalog.FieldLPEnrollmentDate,
	"learningplan.completion_date":    catalog.FieldLPCompletionDate,
	"learningplan.status":             catalog.FieldLPStatus,
	"learningplan.courses_total":      catalog.FieldLPCoursesTotal,
	"learningplan.courses_completed":  catalog.FieldLPCoursesCompleted,
	"learningplan.completion_percent": catalog.FieldLPCompletionPercent,
}

// flexID tolerates legacy payloads that serialize ids as either JSON
// numbers or numeric strings.
type flexID int64

func (f *flexID) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexID(v)
	return nil
}

// flexBool tolerates true/false, 0/1 and "0"/"1".
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.Trim(data, `"`)) {
	case "1", "true":
		*f = true
	default:
		*f = false
	}
	return nil
}

type legacyBranch struct {
	ID          flexID   `json:"id"`
	Descendants flexBool `json:"descendants"`
}

type legacyFilters struct {
	AllUsers        flexBool       `json:"all_users"`
	Users           []flexID       `json:"users"`
	Groups          []flexID       `json:"groups"`
	Branches        []legacyBranch `json:"branches"`
	HideDeactivated flexBool       `json:"hide_deactivated_users"`
	OnlyLearners    flexBool       `json:"show_only_learners"`

	AllCourses flexBool `json:"all_courses"`
	Courses    []flexID `json:"courses"`
	Categories []flexID `json:"course_categories"`
	CourseType string   `json:"course_type"`

	Sessions      []flexID `json:"sessions"`
	Surveys       []flexID `json:"surveys"`
	LearningPlans []flexID `json:"learning_plans"`
	Assets        []flexID `json:"assets"`

	EnrollmentStatus  []flexID `json:"enrollment_status"`
	ConsiderArchived  flexBool `json:"consider_archived_enrollments"`
	OnlyArchived      flexBool `json:"only_archived_enrollments"`
	Condition         string   `json:"condition"`
	CoursesExpiringIn flexID   `json:"courses_expiring_in"`

	EnrollmentDateFrom string `json:"enrollment_date_from"`
	EnrollmentDateTo   string `json:"enrollment_date_to"`
	CompletionDateFrom string `json:"completion_date_from"`
	CompletionDateTo   string `json:"completion_date_to"`
	ArchivingDateFrom  string `json:"archiving_date_from"`
	ArchivingDateTo    string `json:"archiving_date_to"`
}

type legacyFieldRow struct {
	Field   string `json:"field"`
	OrderBy string `json:"order_by"`
}

type legacyPayload struct {
	TypeID      flexID           `json:"report_type_id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Author      flexID           `json:"author"`
	Filters     *legacyFilters   `json:"filters"`
	Fields      []legacyFieldRow `json:"fields"`
}

// Parse converts one legacy payload into a ReportDefinition. The filters
// section is required; its absence fails the import.
func Parse(raw []byte, platform string, vis models.Visibility) (*models.ReportDefinition, error) {
	var p legacyPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "malformed legacy payload")
	}
	if p.Filters == nil {
		return nil, apperrors.ErrLegacyFiltersMissing
	}
	typ, ok := legacyTypes[int64(p.TypeID)]
	if !ok {
		return nil, apperrors.ErrUnknownReportType
	}

	c, err := compiler.New(typ, compiler.Deps{})
	if err != nil {
		return nil, apperrors.ErrUnknownReportType
	}
	def := c.Default(&models.SessionContext{UserID: int64(p.Author)})
	def.Title = p.Title
	def.Description = p.Description
	def.Platform = platform
	def.Visibility = vis

	importFilters(def, p.Filters)
	importFields(def, typ, p.Fields)
	return def, nil
}

func importFilters(def *models.ReportDefinition, f *legacyFilters) {
	if def.Users != nil {
		def.Users.Users = ids(f.Users)
		def.Users.Groups = ids(f.Groups)
		def.Users.Branches = branches(f.Branches)
		def.Users.All = bool(f.AllUsers) ||
			(len(def.Users.Users) == 0 && len(def.Users.Groups) == 0 && len(def.Users.Branches) == 0)
		def.Users.HideDeactivated = bool(f.HideDeactivated)
		def.Users.ShowOnlyLearners = bool(f.OnlyLearners)
	}
	if def.Courses != nil {
		def.Courses.Courses = ids(f.Courses)
		def.Courses.Categories = ids(f.Categories)
		def.Courses.CourseType = f.CourseType
		def.Courses.All = bool(f.AllCourses) ||
			(len(def.Courses.Courses) == 0 && len(def.Courses.Categories) == 0)
		if days := int64(f.CoursesExpiringIn); days > 0 {
			def.Courses.ExpirationDate = models.DateOption{
				Kind:     models.DateFilterRelative,
				Days:     int(days),
				Operator: models.DateOpExpiringIn,
			}
		}
	}
	if def.Sessions != nil && len(f.Sessions) > 0 {
		def.Sessions.All = false
		def.Sessions.Sessions = ids(f.Sessions)
	}
	if def.Surveys != nil && len(f.Surveys) > 0 {
		def.Surveys.All = false
		def.Surveys.Surveys = ids(f.Surveys)
	}
	if def.LearningPlans != nil && len(f.LearningPlans) > 0 {
		def.LearningPlans.All = false
		def.LearningPlans.Plans = ids(f.LearningPlans)
	}
	if def.Assets != nil && len(f.Assets) > 0 {
		def.Assets.All = false
		def.Assets.Assets = ids(f.Assets)
	}

	for _, code := range f.EnrollmentStatus {
		if status, ok := legacyStatuses[int64(code)]; ok {
			def.Enrollment.Statuses = append(def.Enrollment.Statuses, status)
		}
	}
	switch {
	case bool(f.OnlyArchived):
		def.Enrollment.Types = models.EnrollmentArchived
	case bool(f.ConsiderArchived):
		def.Enrollment.Types = models.EnrollmentActiveAndArchived
	default:
		def.Enrollment.Types = models.EnrollmentActive
	}
	if strings.EqualFold(f.Condition, "or") {
		def.Conditions = models.AtLeastOneCondition
	} else {
		def.Conditions = models.AllConditions
	}
	if opt, ok := rangeOption(f.EnrollmentDateFrom, f.EnrollmentDateTo); ok {
		def.Enrollment.EnrollmentDate = opt
	}
	if opt, ok := rangeOption(f.CompletionDateFrom, f.CompletionDateTo); ok {
		def.Enrollment.CompletionDate = opt
	}
	if opt, ok := rangeOption(f.ArchivingDateFrom, f.ArchivingDateTo); ok {
		def.Enrollment.ArchivingDate = opt
	}
}

// importFields walks the legacy fields+order rows. The selection keeps the
// legacy ordering; the last row carrying an order-by key decides the single
// Sorting descriptor.
func importFields(def *models.ReportDefinition, typ models.ReportType, rows []legacyFieldRow) {
	var fields []string
	sorting := models.Sorting{Selector: models.SortSelectorDefault, Direction: models.SortAsc}

	for _, row := range rows {
		mapped, ok := legacyFields[row.Field]
		if !ok {
			if _, _, isExtra := extrafield.ParseRef(row.Field); isExtra {
				mapped = row.Field
			} else {
				continue
			}
		}
		if mapped != "" && !contains(fields, mapped) {
			fields = append(fields, mapped)
		}
		if dir := strings.ToLower(row.OrderBy); dir == models.SortAsc || dir == models.SortDesc {
			sorting = models.Sorting{Selector: models.SortSelectorCustom, Field: mapped, Direction: dir}
		}
	}

	if len(fields) > 0 {
		def.Fields = catalog.EnsureMandatory(typ, fields)
	}
	def.Sorting = sorting
}

func rangeOption(from, to string) (models.DateOption, bool) {
	if from == "" && to == "" {
		return models.DateOption{}, false
	}
	return models.DateOption{Kind: models.DateFilterRange, From: from, To: to}, true
}

func ids(in []flexID) []int64 {
	if len(in) == 0 {
		return nil
	}
	out := make([]int64, 0, len(in))
	for _, id := range in {
		out = append(out, int64(id))
	}
	return out
}

func branches(in []legacyBranch) []models.BranchSelection {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.BranchSelection, 0, len(in))
	for _, b := range in {
		out = append(out, models.BranchSelection{ID: int64(b.ID), Descendants: bool(b.Descendants)})
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
