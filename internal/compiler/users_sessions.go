package compiler

import (
	"context"

	"github.com/openlearnhq/report-engine/internal/catalog"
	"github.com/openlearnhq/report-engine/internal/dialect"
	"github.com/openlearnhq/report-engine/internal/models"
	"github.com/openlearnhq/report-engine/internal/visibility"
)

const (
	joinSessionCourse      JoinKey = "session_course"
	joinSessionEnrollment  JoinKey = "session_enrollment"
	joinSessionInstructors JoinKey = "session_instructors"
	joinSessionEvents      JoinKey = "session_events"
)

var usersSessionsLabelKeys = []string{
	"report.label.yes", "report.label.no",
	"report.label.level.superadmin", "report.label.level.poweruser", "report.label.level.user",
	"report.label.enrollment.status.waiting", "report.label.enrollment.status.overbooking",
	"report.label.enrollment.status.subscribed", "report.label.enrollment.status.in_progress",
	"report.label.enrollment.status.completed", "report.label.enrollment.status.suspended",
	"report.label.course.type.elearning", "report.label.course.type.classroom", "report.label.course.type.webinar",
	"report.label.attendance.present", "report.label.attendance.absent",
}

// usersSessionsCompiler produces the users×classroom-sessions report. Rows
// come from the session attendance table, one per user per session.
type usersSessionsCompiler struct {
	base
}

// NewUsersSessions builds the users×classroom-sessions compiler.
func NewUsersSessions(deps Deps) Compiler {
	return &usersSessionsCompiler{base: newBase(models.ReportTypeUsersSessions, deps)}
}

func (c *usersSessionsCompiler) Type() models.ReportType { return c.typ }

func (c *usersSessionsCompiler) Default(session *models.SessionContext) *models.ReportDefinition {
	return &models.ReportDefinition{
		Type:       c.typ,
		Author:     session.UserID,
		Visibility: models.Visibility{Type: models.VisibilityAllAdmins},
		Fields: catalog.EnsureMandatory(c.typ, []string{
			catalog.FieldUserID,
			catalog.FieldUserFullname,
			catalog.FieldCourseName,
			catalog.FieldSessionName,
			catalog.FieldSessionStartDate,
			catalog.FieldSessionEndDate,
			catalog.FieldSessionAttendance,
		}),
		Sorting:    models.Sorting{Selector: models.SortSelectorDefault, Direction: models.SortAsc},
		Conditions: models.AllConditions,
		Users:      &models.UsersFilter{All: true},
		Courses: &models.CoursesFilter{
			All:            true,
			ExpirationDate: models.DateOption{Any: true},
			PublishDate:    models.DateOption{Any: true},
		},
		Sessions: &models.SessionsFilter{
			All:       true,
			StartDate: models.DateOption{Any: true},
			EndDate:   models.DateOption{Any: true},
		},
		Enrollment: models.EnrollmentFilter{
			Types:          models.EnrollmentActive,
			EnrollmentDate: models.DateOption{Any: true},
			CompletionDate: models.DateOption{Any: true},
			ArchivingDate:  models.DateOption{Any: true},
		},
	}
}

func (c *usersSessionsCompiler) Athena(ctx context.Context, req Request) (string, error) {
	return c.build(ctx, req, dialect.AthenaRenderer{})
}

func (c *usersSessionsCompiler) Snowflake(ctx context.Context, req Request) (string, error) {
	return c.build(ctx, req, dialect.SnowflakeRenderer{})
}

func (c *usersSessionsCompiler) build(ctx context.Context, req Request, r dialect.Renderer) (string, error) {
	def := req.Definition
	calcs := visibility.New(def, req.Session, c.deps.Hydra)

	users, err := calcs.Users(ctx, req.CheckVisibility)
	if err != nil {
		return "", err
	}
	branches, err := calcs.Branches(ctx)
	if err != nil {
		return "", err
	}
	courses, err := calcs.Courses(ctx, req.CheckVisibility)
	if err != nil {
		return "", err
	}
	sessions, err := calcs.Sessions(ctx)
	if err != nil {
		return "", err
	}

	trans, err := c.loadTranslations(ctx, req, usersSessionsLabelKeys)
	if err != nil {
		return "", err
	}
	extras, err := c.resolveExtras(ctx, def)
	if err != nil {
		return "", err
	}

	bc := newBuildContext(ctx, req, r, c.typ, &c.deps, trans, extras)
	bc.userID = "su.user_id"
	bc.courseID = "s.course_id"

	// The session dimension is always present: every selectable field and
	// filter hangs off it.
	bc.frag.EnsureJoin(joinSessionCourse, func() string {
		return "JOIN lt_session s ON s.session_id = su.session_id"
	})

	bc.frag.Where(idPredicate("su.user_id", users))
	bc.frag.Where(idPredicate("s.course_id", courses))
	bc.frag.Where(idPredicate("su.session_id", sessions))
	if !branches.Unrestricted() {
		ensureUserBranchJoin(bc)
		bc.frag.Where(idPredicate("ub.branch_id", branches))
	}
	if def.Users != nil && def.Users.HideDeactivated {
		ensureUserJoin(bc)
		bc.frag.Where("cu.deactivated = 0")
	}
	if def.Users != nil && def.Users.ShowOnlyLearners {
		ensureUserJoin(bc)
		bc.frag.Where("cu.level = 'user'")
	}

	var datePreds []string
	if def.Sessions != nil {
		datePreds = append(datePreds, datePredicate(r, "s.date_begin", def.Sessions.StartDate))
		datePreds = append(datePreds, datePredicate(r, "s.date_end", def.Sessions.EndDate))
	}
	bc.frag.Where(combineDatePredicates(datePreds, def.Conditions))

	table := merge(userFieldHandlers(), sessionFieldHandlers())
	if err := c.runFieldLoop(bc, table); err != nil {
		return "", err
	}
	return bc.frag.SQL("lt_session_user su", c.orderBy(bc, catalog.FieldUserID), c.rowLimit(req)), nil
}

func ensureSessionEnrollmentJoin(b *buildContext) {
	b.frag.EnsureJoin(joinSessionEnrollment, func() string {
		return "LEFT JOIN learning_enrollment e ON e.user_id = su.user_id AND e.course_id = s.course_id"
	})
}

func sessionFieldHandlers() handlerTable {
	return handlerTable{
		catalog.FieldCourseName: func(b *buildContext) error {
			ensureCourseJoin(b)
			b.sel(catalog.FieldCourseName, "c.name")
			return nil
		},
		catalog.FieldCourseCode: func(b *buildContext) error {
			ensureCourseJoin(b)
			b.sel(catalog.FieldCourseCode, "c.code")
			return nil
		},
		catalog.FieldCourseType: func(b *buildContext) error {
			ensureCourseJoin(b)
			b.sel(catalog.FieldCourseType,
				"CASE c.course_type"+
					" WHEN 'elearning' THEN "+b.caseLabel("report.label.course.type.elearning", "E-Learning")+
					" WHEN 'classroom' THEN "+b.caseLabel("report.label.course.type.classroom", "Classroom")+
					" WHEN 'webinar' THEN "+b.caseLabel("report.label.course.type.webinar", "Webinar")+
					" ELSE c.course_type END")
			return nil
		},
		catalog.FieldSessionName: func(b *buildContext) error {
			b.sel(catalog.FieldSessionName, "s.name")
			return nil
		},
		catalog.FieldSessionCode: func(b *buildContext) error {
			b.sel(catalog.FieldSessionCode, "s.code")
			return nil
		},
		catalog.FieldSessionStartDate: func(b *buildContext) error {
			b.sel(catalog.FieldSessionStartDate, b.r.FormatTimestamp("s.date_begin"))
			return nil
		},
		catalog.FieldSessionEndDate: func(b *buildContext) error {
			b.sel(catalog.FieldSessionEndDate, b.r.FormatTimestamp("s.date_end"))
			return nil
		},
		catalog.FieldSessionLocation: func(b *buildContext) error {
			b.sel(catalog.FieldSessionLocation, "s.location")
			return nil
		},
		catalog.FieldSessionTimeInSession: func(b *buildContext) error {
			b.sel(catalog.FieldSessionTimeInSession, "CAST(su.total_time AS VARCHAR)")
			return nil
		},
		catalog.FieldSessionAttendance: func(b *buildContext) error {
			b.sel(catalog.FieldSessionAttendance,
				"CASE su.attendance"+
					" WHEN 1 THEN "+b.caseLabel("report.label.attendance.present", "Present")+
					" WHEN 0 THEN "+b.caseLabel("report.label.attendance.absent", "Absent")+
					" ELSE CAST(su.attendance AS VARCHAR) END")
			return nil
		},
		catalog.FieldSessionInstructor: func(b *buildContext) error {
			b.frag.EnsureJoin(joinSessionInstructors, func() string {
				return "LEFT JOIN lt_session_instructor si ON si.session_id = s.session_id" +
					" LEFT JOIN core_user ins ON ins.user_id = si.user_id"
			})
			b.selAgg(catalog.FieldSessionInstructor,
				b.r.ArraySort("array_agg(DISTINCT concat(ins.firstname, ' ', ins.lastname))"))
			return nil
		},
		catalog.FieldSessionEventCount: func(b *buildContext) error {
			b.frag.CTE("session_events",
				"SELECT session_id, COUNT(*) AS event_count FROM lt_session_event GROUP BY session_id")
			b.frag.EnsureJoin(joinSessionEvents, func() string {
				return "LEFT JOIN session_events ev ON ev.session_id = s.session_id"
			})
			b.sel(catalog.FieldSessionEventCount, "COALESCE(CAST(ev.event_count AS VARCHAR), '0')")
			return nil
		},
		catalog.FieldEnrollmentDate: func(b *buildContext) error {
			ensureSessionEnrollmentJoin(b)
			b.sel(catalog.FieldEnrollmentDate, b.r.FormatTimestamp("e.enrollment_date"))
			return nil
		},
		catalog.FieldEnrollmentStatus: func(b *buildContext) error {
			ensureSessionEnrollmentJoin(b)
			b.sel(catalog.FieldEnrollmentStatus, enrollmentStatusCase(b))
			return nil
		},
	}
}
