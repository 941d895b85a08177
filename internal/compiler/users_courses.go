package compiler

import (
	"context"
	"strconv"
	"strings"

	"github.com/openlearnhq/report-engine/internal/catalog"
	"github.com/openlearnhq/report-engine/internal/dialect"
	"github.com/openlearnhq/report-engine/internal/models"
	"github.com/openlearnhq/report-engine/internal/visibility"
)

// Join keys owned by the course dimension.
const (
	joinCourse         JoinKey = "course"
	joinCourseCategory JoinKey = "course_category"
	joinCourseSkills   JoinKey = "course_skills"
)

// Live enrollment status codes. Archived rows carry the symbolic status
// string inside the JSON payload instead.
var enrollmentStatusCodes = map[string]int{
	models.EnrollStatusWaiting:    -2,
	models.EnrollStatusOverbooked: -1,
	models.EnrollStatusSubscribed: 0,
	models.EnrollStatusInProgress: 1,
	models.EnrollStatusCompleted:  2,
	models.EnrollStatusSuspended:  3,
}

var usersCoursesLabelKeys = []string{
	"report.label.yes", "report.label.no",
	"report.label.level.superadmin", "report.label.level.poweruser", "report.label.level.user",
	"report.label.enrollment.status.waiting", "report.label.enrollment.status.overbooking",
	"report.label.enrollment.status.subscribed", "report.label.enrollment.status.in_progress",
	"report.label.enrollment.status.completed", "report.label.enrollment.status.suspended",
	"report.label.course.type.elearning", "report.label.course.type.classroom", "report.label.course.type.webinar",
	"report.label.course.status.preparation", "report.label.course.status.available", "report.label.course.status.retired",
	"report.label.esign.pending", "report.label.esign.signed",
}

// usersCoursesCompiler produces the users×courses enrollment report. It is
// the only compiler with a structurally parallel archive branch.
type usersCoursesCompiler struct {
	base
}

// NewUsersCourses builds the users×courses compiler.
func NewUsersCourses(deps Deps) Compiler {
	return &usersCoursesCompiler{base: newBase(models.ReportTypeUsersCourses, deps)}
}

func (c *usersCoursesCompiler) Type() models.ReportType { return c.typ }

// Default is the default-structure factory invoked at report creation.
func (c *usersCoursesCompiler) Default(session *models.SessionContext) *models.ReportDefinition {
	return &models.ReportDefinition{
		Type:       c.typ,
		Author:     session.UserID,
		Visibility: models.Visibility{Type: models.VisibilityAllAdmins},
		Fields: catalog.EnsureMandatory(c.typ, []string{
			catalog.FieldUserID,
			catalog.FieldUserFullname,
			catalog.FieldUserEmail,
			catalog.FieldCourseName,
			catalog.FieldCourseCode,
			catalog.FieldEnrollmentDate,
			catalog.FieldEnrollmentStatus,
			catalog.FieldEnrollmentCompletionDate,
		}),
		Sorting:    models.Sorting{Selector: models.SortSelectorDefault, Direction: models.SortAsc},
		Conditions: models.AllConditions,
		Users:      &models.UsersFilter{All: true},
		Courses: &models.CoursesFilter{
			All:            true,
			ExpirationDate: models.DateOption{Any: true},
			PublishDate:    models.DateOption{Any: true},
		},
		Enrollment: models.EnrollmentFilter{
			Types:          models.EnrollmentActive,
			EnrollmentDate: models.DateOption{Any: true},
			CompletionDate: models.DateOption{Any: true},
			ArchivingDate:  models.DateOption{Any: true},
		},
	}
}

// Athena compiles for the row-columnar engine.
func (c *usersCoursesCompiler) Athena(ctx context.Context, req Request) (string, error) {
	return c.build(ctx, req, dialect.AthenaRenderer{})
}

// Snowflake compiles for the warehouse engine.
func (c *usersCoursesCompiler) Snowflake(ctx context.Context, req Request) (string, error) {
	return c.build(ctx, req, dialect.SnowflakeRenderer{})
}

func (c *usersCoursesCompiler) build(ctx context.Context, req Request, r dialect.Renderer) (string, error) {
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

	trans, err := c.loadTranslations(ctx, req, usersCoursesLabelKeys)
	if err != nil {
		return "", err
	}
	extras, err := c.resolveExtras(ctx, def)
	if err != nil {
		return "", err
	}

	table := merge(userFieldHandlers(), usersCoursesCourseHandlers(), usersCoursesEnrollmentHandlers())

	branch := func(archived bool) (*buildContext, string, error) {
		bc := newBuildContext(ctx, req, r, c.typ, &c.deps, trans, extras)
		bc.archived = archived
		bc.userID = "e.user_id"
		bc.courseID = "e.course_id"

		from := "learning_enrollment e"
		if archived {
			from = "learning_enrollment_archive e"
		}

		bc.frag.Where(idPredicate("e.user_id", users))
		bc.frag.Where(idPredicate("e.course_id", courses))
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
		if pred := enrollmentStatusPredicate(bc, def.Enrollment.Statuses); pred != "" {
			bc.frag.Where(pred)
		}
		if def.Courses != nil && def.Courses.CourseType != "" {
			bc.frag.Where(courseTypeExpr(bc) + " = " + r.CaseValue(def.Courses.CourseType))
		}
		if def.Courses != nil && len(def.Courses.Categories) > 0 {
			bc.frag.Where(courseCategoryIDExpr(bc) + " IN (" + joinInt64(def.Courses.Categories) + ")")
		}

		var datePreds []string
		datePreds = append(datePreds, datePredicate(r, enrollmentDateExpr(bc), def.Enrollment.EnrollmentDate))
		datePreds = append(datePreds, datePredicate(r, completionDateExpr(bc), def.Enrollment.CompletionDate))
		if def.Courses != nil {
			datePreds = append(datePreds, datePredicate(r, courseExpirationExpr(bc), def.Courses.ExpirationDate))
		}
		if archived {
			datePreds = append(datePreds, datePredicate(r, "e.archive_date", def.Enrollment.ArchivingDate))
		}
		bc.frag.Where(combineDatePredicates(datePreds, def.Conditions))

		if err := c.runFieldLoop(bc, table); err != nil {
			return nil, "", err
		}
		return bc, from, nil
	}

	mode := ResolveBranchMode(def)
	switch mode {
	case BranchLive, BranchArchive:
		bc, from, err := branch(mode == BranchArchive)
		if err != nil {
			return "", err
		}
		return bc.frag.SQL(from, c.orderBy(bc, catalog.FieldUserID), c.rowLimit(req)), nil
	default:
		liveBC, liveFrom, err := branch(false)
		if err != nil {
			return "", err
		}
		archBC, archFrom, err := branch(true)
		if err != nil {
			return "", err
		}
		var b strings.Builder
		b.WriteString(liveBC.frag.SQL(liveFrom, "", 0))
		b.WriteString(" UNION ")
		b.WriteString(archBC.frag.SQL(archFrom, "", 0))
		if order := c.orderBy(liveBC, catalog.FieldUserID); order != "" {
			b.WriteString(" ORDER BY ")
			b.WriteString(order)
		}
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(c.rowLimit(req)))
		return b.String(), nil
	}
}

func ensureCourseJoin(b *buildContext) {
	b.frag.EnsureJoin(joinCourse, func() string {
		return "JOIN learning_course c ON c.course_id = " + b.courseID
	})
}

// Expression helpers that differ between the live and archive branches.

func enrollmentDateExpr(b *buildContext) string {
	if b.archived {
		return "CAST(" + b.r.JSONField("e.payload", "enrollment_date") + " AS TIMESTAMP)"
	}
	return "e.enrollment_date"
}

func completionDateExpr(b *buildContext) string {
	if b.archived {
		return "CAST(" + b.r.JSONField("e.payload", "completion_date") + " AS TIMESTAMP)"
	}
	return "e.completion_date"
}

func courseExpirationExpr(b *buildContext) string {
	if b.archived {
		return "CAST(" + b.r.JSONField("e.payload", "course_expiration_date") + " AS TIMESTAMP)"
	}
	ensureCourseJoin(b)
	return "c.expiration_date"
}

func courseTypeExpr(b *buildContext) string {
	if b.archived {
		return b.r.JSONField("e.payload", "course_type")
	}
	ensureCourseJoin(b)
	return "c.course_type"
}

func courseCategoryIDExpr(b *buildContext) string {
	if b.archived {
		return "CAST(" + b.r.JSONField("e.payload", "course_category_id") + " AS INTEGER)"
	}
	ensureCourseJoin(b)
	return "c.category_id"
}

// enrollmentStatusPredicate restricts by status. Live rows store numeric
// codes, archived payloads the symbolic strings; unknown status names are
// ignored rather than matching nothing.
func enrollmentStatusPredicate(b *buildContext, statuses []string) string {
	if len(statuses) == 0 {
		return ""
	}
	if b.archived {
		quoted := make([]string, 0, len(statuses))
		for _, s := range statuses {
			quoted = append(quoted, b.r.CaseValue(s))
		}
		return b.r.JSONField("e.payload", "status") + " IN (" + strings.Join(quoted, ",") + ")"
	}
	codes := make([]string, 0, len(statuses))
	for _, s := range statuses {
		if code, ok := enrollmentStatusCodes[s]; ok {
			codes = append(codes, strconv.Itoa(code))
		}
	}
	if len(codes) == 0 {
		return ""
	}
	return "e.status IN (" + strings.Join(codes, ",") + ")"
}

func enrollmentStatusCase(b *buildContext) string {
	if b.archived {
		raw := b.r.JSONField("e.payload", "status")
		return "CASE " + raw +
			" WHEN 'waiting_users' THEN " + b.caseLabel("report.label.enrollment.status.waiting", "Waiting users") +
			" WHEN 'overbooking' THEN " + b.caseLabel("report.label.enrollment.status.overbooking", "Overbooking") +
			" WHEN 'subscribed' THEN " + b.caseLabel("report.label.enrollment.status.subscribed", "Enrolled") +
			" WHEN 'in_progress' THEN " + b.caseLabel("report.label.enrollment.status.in_progress", "In Progress") +
			" WHEN 'completed' THEN " + b.caseLabel("report.label.enrollment.status.completed", "Completed") +
			" WHEN 'suspended' THEN " + b.caseLabel("report.label.enrollment.status.suspended", "Suspended") +
			" ELSE " + raw + " END"
	}
	return "CASE e.status" +
		" WHEN -2 THEN " + b.caseLabel("report.label.enrollment.status.waiting", "Waiting users") +
		" WHEN -1 THEN " + b.caseLabel("report.label.enrollment.status.overbooking", "Overbooking") +
		" WHEN 0 THEN " + b.caseLabel("report.label.enrollment.status.subscribed", "Enrolled") +
		" WHEN 1 THEN " + b.caseLabel("report.label.enrollment.status.in_progress", "In Progress") +
		" WHEN 2 THEN " + b.caseLabel("report.label.enrollment.status.completed", "Completed") +
		" WHEN 3 THEN " + b.caseLabel("report.label.enrollment.status.suspended", "Suspended") +
		" ELSE CAST(e.status AS VARCHAR) END"
}

// usersCoursesCourseHandlers emits the COURSE_* family. The live branch
// joins the course dimension; the archive branch reads the denormalized
// payload and blanks what the payload does not carry.
func usersCoursesCourseHandlers() handlerTable {
	return handlerTable{
		catalog.FieldCourseID: func(b *buildContext) error {
			b.sel(catalog.FieldCourseID, "e.course_id")
			return nil
		},
		catalog.FieldCourseName: func(b *buildContext) error {
			if b.archived {
				b.sel(catalog.FieldCourseName, b.r.JSONField("e.payload", "course_name"))
				return nil
			}
			ensureCourseJoin(b)
			b.sel(catalog.FieldCourseName, "c.name")
			return nil
		},
		catalog.FieldCourseCode: func(b *buildContext) error {
			if b.archived {
				b.sel(catalog.FieldCourseCode, b.r.JSONField("e.payload", "course_code"))
				return nil
			}
			ensureCourseJoin(b)
			b.sel(catalog.FieldCourseCode, "c.code")
			return nil
		},
		catalog.FieldCourseCategory: func(b *buildContext) error {
			if b.archived {
				b.sel(catalog.FieldCourseCategory, b.r.JSONField("e.payload", "course_category"))
				return nil
			}
			ensureCourseJoin(b)
			b.frag.EnsureJoin(joinCourseCategory, func() string {
				return "LEFT JOIN learning_category cat ON cat.category_id = c.category_id"
			})
			b.sel(catalog.FieldCourseCategory, "cat.name")
			return nil
		},
		catalog.FieldCourseType: func(b *buildContext) error {
			raw := courseTypeExpr(b)
			b.sel(catalog.FieldCourseType,
				"CASE "+raw+
					" WHEN 'elearning' THEN "+b.caseLabel("report.label.course.type.elearning", "E-Learning")+
					" WHEN 'classroom' THEN "+b.caseLabel("report.label.course.type.classroom", "Classroom")+
					" WHEN 'webinar' THEN "+b.caseLabel("report.label.course.type.webinar", "Webinar")+
					" ELSE "+raw+" END")
			return nil
		},
		catalog.FieldCourseStatus: func(b *buildContext) error {
			if b.archived {
				b.selConst(catalog.FieldCourseStatus, "''")
				return nil
			}
			ensureCourseJoin(b)
			b.sel(catalog.FieldCourseStatus,
				"CASE c.status"+
					" WHEN 0 THEN "+b.caseLabel("report.label.course.status.preparation", "In preparation")+
					" WHEN 1 THEN "+b.caseLabel("report.label.course.status.available", "Available")+
					" WHEN 2 THEN "+b.caseLabel("report.label.course.status.retired", "Retired")+
					" ELSE CAST(c.status AS VARCHAR) END")
			return nil
		},
		catalog.FieldCourseCreditsCEU: func(b *buildContext) error {
			if b.archived {
				b.selConst(catalog.FieldCourseCreditsCEU, "''")
				return nil
			}
			ensureCourseJoin(b)
			b.sel(catalog.FieldCourseCreditsCEU, "CAST(c.credits AS VARCHAR)")
			return nil
		},
		catalog.FieldCourseDuration: func(b *buildContext) error {
			if b.archived {
				b.selConst(catalog.FieldCourseDuration, "''")
				return nil
			}
			ensureCourseJoin(b)
			b.sel(catalog.FieldCourseDuration, "CAST(c.duration AS VARCHAR)")
			return nil
		},
		catalog.FieldCourseCreationDate: func(b *buildContext) error {
			if b.archived {
				b.selConst(catalog.FieldCourseCreationDate, "''")
				return nil
			}
			ensureCourseJoin(b)
			b.sel(catalog.FieldCourseCreationDate, b.r.FormatTimestamp("c.creation_date"))
			return nil
		},
		catalog.FieldCourseExpirationDate: func(b *buildContext) error {
			if b.archived {
				b.sel(catalog.FieldCourseExpirationDate, b.r.JSONField("e.payload", "course_expiration_date"))
				return nil
			}
			ensureCourseJoin(b)
			b.sel(catalog.FieldCourseExpirationDate, b.r.FormatTimestamp("c.expiration_date"))
			return nil
		},
		catalog.FieldCourseLanguage: func(b *buildContext) error {
			if b.archived {
				b.selConst(catalog.FieldCourseLanguage, "''")
				return nil
			}
			ensureCourseJoin(b)
			b.sel(catalog.FieldCourseLanguage, "c.lang_code")
			return nil
		},
		catalog.FieldCourseSkills: func(b *buildContext) error {
			if !b.req.Session.Platform.Toggles.SkillsEnabled {
				return nil
			}
			if b.archived {
				b.selConst(catalog.FieldCourseSkills, "''")
				return nil
			}
			ensureCourseJoin(b)
			b.frag.EnsureJoin(joinCourseSkills, func() string {
				return "LEFT JOIN course_skill cs ON cs.course_id = c.course_id"
			})
			b.selAgg(catalog.FieldCourseSkills, b.r.ArraySort("array_agg(DISTINCT cs.skill_name)"))
			return nil
		},
		catalog.FieldCoursePrice: func(b *buildContext) error {
			if !b.req.Session.Platform.Plugins.Ecommerce {
				return nil
			}
			if b.archived {
				b.selConst(catalog.FieldCoursePrice, "''")
				return nil
			}
			ensureCourseJoin(b)
			b.sel(catalog.FieldCoursePrice, "CAST(c.price AS VARCHAR)")
			return nil
		},
	}
}

// usersCoursesEnrollmentHandlers emits the ENROLLMENT_* family.
func usersCoursesEnrollmentHandlers() handlerTable {
	return handlerTable{
		catalog.FieldEnrollmentDate: func(b *buildContext) error {
			if b.archived {
				b.sel(catalog.FieldEnrollmentDate, b.r.JSONField("e.payload", "enrollment_date"))
				return nil
			}
			b.sel(catalog.FieldEnrollmentDate, b.r.FormatTimestamp("e.enrollment_date"))
			return nil
		},
		catalog.FieldEnrollmentCompletionDate: func(b *buildContext) error {
			if b.archived {
				b.sel(catalog.FieldEnrollmentCompletionDate, b.r.JSONField("e.payload", "completion_date"))
				return nil
			}
			b.sel(catalog.FieldEnrollmentCompletionDate, b.r.FormatTimestamp("e.completion_date"))
			return nil
		},
		catalog.FieldEnrollmentStatus: func(b *buildContext) error {
			b.sel(catalog.FieldEnrollmentStatus, enrollmentStatusCase(b))
			return nil
		},
		catalog.FieldEnrollmentScore: func(b *buildContext) error {
			if b.archived {
				b.sel(catalog.FieldEnrollmentScore, b.r.JSONField("e.payload", "score"))
				return nil
			}
			b.sel(catalog.FieldEnrollmentScore, "CAST(e.score AS VARCHAR)")
			return nil
		},
		catalog.FieldEnrollmentCredits: func(b *buildContext) error {
			if b.archived {
				b.sel(catalog.FieldEnrollmentCredits, b.r.JSONField("e.payload", "credits"))
				return nil
			}
			b.sel(catalog.FieldEnrollmentCredits, "CAST(e.credits AS VARCHAR)")
			return nil
		},
		catalog.FieldEnrollmentTimeInCourse: func(b *buildContext) error {
			if b.archived {
				b.sel(catalog.FieldEnrollmentTimeInCourse, b.r.JSONField("e.payload", "time_in_course"))
				return nil
			}
			b.sel(catalog.FieldEnrollmentTimeInCourse, "CAST(e.total_time AS VARCHAR)")
			return nil
		},
		catalog.FieldEnrollmentArchivingDate: func(b *buildContext) error {
			if b.archived {
				b.sel(catalog.FieldEnrollmentArchivingDate, b.r.FormatTimestamp("e.archive_date"))
				return nil
			}
			b.selConst(catalog.FieldEnrollmentArchivingDate, "''")
			return nil
		},
		catalog.FieldEnrollmentArchived: func(b *buildContext) error {
			if b.archived {
				b.selConst(catalog.FieldEnrollmentArchived, b.caseLabel("report.label.yes", "Yes"))
				return nil
			}
			b.selConst(catalog.FieldEnrollmentArchived, b.caseLabel("report.label.no", "No"))
			return nil
		},
		catalog.FieldEnrollmentEsignStatus: func(b *buildContext) error {
			if !b.req.Session.Platform.Plugins.Esignature {
				return nil
			}
			if b.archived {
				b.selConst(catalog.FieldEnrollmentEsignStatus, "''")
				return nil
			}
			b.sel(catalog.FieldEnrollmentEsignStatus,
				"CASE e.esign_status"+
					" WHEN 0 THEN "+b.caseLabel("report.label.esign.pending", "Pending")+
					" WHEN 1 THEN "+b.caseLabel("report.label.esign.signed", "Signed")+
					" ELSE CAST(e.esign_status AS VARCHAR) END")
			return nil
		},
	}
}

func joinInt64(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}
