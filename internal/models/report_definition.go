package models

import (
	"time"
)

// ReportType enumerates the supported report shapes. Each type pairs a fact
// table with its own field catalog and compiler.
type ReportType string

const (
	ReportTypeUsersCourses       ReportType = "users_courses"
	ReportTypeUsersSessions      ReportType = "users_classroom_sessions"
	ReportTypeSurveyAnswers      ReportType = "surveys_individual_answers"
	ReportTypeAssetViews         ReportType = "assets_user_views"
	ReportTypeUsersLearningPlans ReportType = "users_learningplans"
	ReportTypeEnrollmentTime     ReportType = "users_enrollment_time"
)

// KnownReportTypes lists every type a compiler exists for.
var KnownReportTypes = []ReportType{
	ReportTypeUsersCourses,
	ReportTypeUsersSessions,
	ReportTypeSurveyAnswers,
	ReportTypeAssetViews,
	ReportTypeUsersLearningPlans,
	ReportTypeEnrollmentTime,
}

// VisibilityType controls which admins can see a report definition.
type VisibilityType int

const (
	VisibilityAllAdmins VisibilityType = 1
	VisibilityGroups    VisibilityType = 2
	VisibilityUsers     VisibilityType = 3
)

// BranchSelection selects a branch, optionally with its whole subtree.
type BranchSelection struct {
	ID          int64 `json:"id"`
	Descendants bool  `json:"descendants"`
}

// Visibility describes who a report definition is visible to.
type Visibility struct {
	Type     VisibilityType    `json:"type"`
	Users    []int64           `json:"users,omitempty"`
	Groups   []int64           `json:"groups,omitempty"`
	Branches []BranchSelection `json:"branches,omitempty"`
}

// DateFilterKind discriminates the DateOption union.
type DateFilterKind string

const (
	DateFilterRelative DateFilterKind = "relative"
	DateFilterRange    DateFilterKind = "range"
)

// Relative date operators.
const (
	DateOpExpiringIn = "expiringIn"
	DateOpIsBefore   = "isBefore"
	DateOpIsAfter    = "isAfter"
)

// DateOption is the tri-state date filter attached to enrollment, completion,
// expiration, publish and session dates: any, relative to today, or an
// explicit range.
type DateOption struct {
	Any      bool           `json:"any"`
	Kind     DateFilterKind `json:"type,omitempty"`
	Days     int            `json:"days,omitempty"`
	Operator string         `json:"operator,omitempty"`
	From     string         `json:"from,omitempty"`
	To       string         `json:"to,omitempty"`
}

// Active reports whether the option actually restricts anything.
func (d DateOption) Active() bool {
	if d.Any {
		return false
	}
	switch d.Kind {
	case DateFilterRelative:
		return d.Days > 0
	case DateFilterRange:
		return d.From != "" || d.To != ""
	}
	return false
}

// Conditions governs how multiple date predicates combine.
type Conditions string

const (
	AllConditions       Conditions = "allConditions"
	AtLeastOneCondition Conditions = "atLeastOneCondition"
)

// EnrollmentType selects live, archived or both enrollment populations.
type EnrollmentType int

const (
	EnrollmentActive EnrollmentType = iota + 1
	EnrollmentArchived
	EnrollmentActiveAndArchived
)

// Enrollment status values used by status filters and computed columns.
const (
	EnrollStatusWaiting    = "waiting_users"
	EnrollStatusSubscribed = "subscribed"
	EnrollStatusInProgress = "in_progress"
	EnrollStatusCompleted  = "completed"
	EnrollStatusSuspended  = "suspended"
	EnrollStatusOverbooked = "overbooking"
)

// ManagerSelection scopes users to the direct reports of one manager.
type ManagerSelection struct {
	ID   int64 `json:"id"`
	Type int   `json:"type"`
}

// UsersFilter scopes a report to users.
type UsersFilter struct {
	All              bool               `json:"all"`
	Users            []int64            `json:"users,omitempty"`
	Groups           []int64            `json:"groups,omitempty"`
	Branches         []BranchSelection  `json:"branches,omitempty"`
	Managers         []ManagerSelection `json:"managers,omitempty"`
	HideDeactivated  bool               `json:"hideDeactivated"`
	ShowOnlyLearners bool               `json:"showOnlyLearners"`
}

// CoursesFilter scopes a report to courses.
type CoursesFilter struct {
	All            bool       `json:"all"`
	Courses        []int64    `json:"courses,omitempty"`
	Categories     []int64    `json:"categories,omitempty"`
	CourseType     string     `json:"courseType,omitempty"`
	ExpirationDate DateOption `json:"courseExpirationDate"`
	PublishDate    DateOption `json:"publishDate"`
}

// SessionsFilter scopes a classroom-session report.
type SessionsFilter struct {
	All       bool       `json:"all"`
	Sessions  []int64    `json:"sessions,omitempty"`
	StartDate DateOption `json:"startDate"`
	EndDate   DateOption `json:"endDate"`
}

// SurveysFilter scopes a survey report.
type SurveysFilter struct {
	All     bool    `json:"all"`
	Surveys []int64 `json:"surveys,omitempty"`
}

// LearningPlansFilter scopes a learning-plan report.
type LearningPlansFilter struct {
	All   bool    `json:"all"`
	Plans []int64 `json:"learningPlans,omitempty"`
}

// AssetsFilter scopes an asset-views report.
type AssetsFilter struct {
	All    bool    `json:"all"`
	Assets []int64 `json:"assets,omitempty"`
}

// EnrollmentFilter carries enrollment population, status and date options.
type EnrollmentFilter struct {
	Types          EnrollmentType `json:"enrollmentTypes"`
	Statuses       []string       `json:"enrollmentStatuses,omitempty"`
	EnrollmentDate DateOption     `json:"enrollmentDate"`
	CompletionDate DateOption     `json:"completionDate"`
	ArchivingDate  DateOption     `json:"archivingDate"`
}

// Sorting selectors and directions.
const (
	SortSelectorDefault = "default"
	SortSelectorCustom  = "custom"

	SortAsc  = "asc"
	SortDesc = "desc"
)

// Sorting picks the output ordering of a compiled report.
type Sorting struct {
	Selector  string `json:"selector"`
	Field     string `json:"field,omitempty"`
	Direction string `json:"direction,omitempty"`
}

// PlanningOption configures a recurring scheduled export.
type PlanningOption struct {
	Recurrence string   `json:"recurrence,omitempty"` // day, week, month
	Every      int      `json:"every,omitempty"`
	Recipients []string `json:"recipients,omitempty"`
	StartHour  string   `json:"hour,omitempty"`
	Timezone   string   `json:"timezone,omitempty"`
	From       string   `json:"scheduleFrom,omitempty"`
}

// Planning holds the schedule attached to a report definition.
type Planning struct {
	Active bool           `json:"active"`
	Option PlanningOption `json:"option"`
}

// ReportDefinition is the declarative report model every compiler consumes.
// It is never mutated during compilation; setters return copies.
type ReportDefinition struct {
	ID          string     `json:"idReport"`
	Type        ReportType `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Standard    bool       `json:"standard"`
	Author      int64      `json:"author"`
	Platform    string     `json:"platform"`
	CreatedAt   time.Time  `json:"creationDate"`
	UpdatedAt   time.Time  `json:"lastEditDate"`

	LastCompiledAt *time.Time `json:"lastCompiledDate,omitempty"`

	Visibility Visibility `json:"visibility"`
	Fields     []string   `json:"fields"`
	Sorting    Sorting    `json:"sortingOptions"`
	Planning   Planning   `json:"planning"`
	Conditions Conditions `json:"conditions"`

	Users         *UsersFilter         `json:"users,omitempty"`
	Courses       *CoursesFilter       `json:"courses,omitempty"`
	Sessions      *SessionsFilter      `json:"sessions,omitempty"`
	Surveys       *SurveysFilter       `json:"surveys,omitempty"`
	LearningPlans *LearningPlansFilter `json:"learningPlans,omitempty"`
	Assets        *AssetsFilter        `json:"assets,omitempty"`
	Enrollment    EnrollmentFilter     `json:"enrollment"`
}

// WithSorting returns a copy with the given sorting applied. Unknown
// selectors fall back to the default selector.
func (r ReportDefinition) WithSorting(s Sorting) ReportDefinition {
	switch s.Selector {
	case SortSelectorCustom, SortSelectorDefault:
	default:
		s = Sorting{Selector: SortSelectorDefault}
	}
	if s.Direction != SortAsc && s.Direction != SortDesc {
		s.Direction = SortAsc
	}
	r.Sorting = s
	return r
}

// WithFields returns a copy with the field selection replaced. Mandatory
// fields for the report type must be re-asserted by the caller (the service
// layer does this through the catalog).
func (r ReportDefinition) WithFields(fields []string) ReportDefinition {
	out := make([]string, len(fields))
	copy(out, fields)
	r.Fields = out
	return r
}

// HasField reports whether the selection contains the given field.
func (r ReportDefinition) HasField(field string) bool {
	for _, f := range r.Fields {
		if f == field {
			return true
		}
	}
	return false
}
