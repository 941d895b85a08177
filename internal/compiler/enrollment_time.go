package compiler

import (
	"context"

	"github.com/openlearnhq/report-engine/internal/catalog"
	"github.com/openlearnhq/report-engine/internal/dialect"
	"github.com/openlearnhq/report-engine/internal/models"
	"github.com/openlearnhq/report-engine/internal/visibility"
)

var enrollmentTimeLabelKeys = []string{
	"report.label.yes", "report.label.no",
	"report.label.level.superadmin", "report.label.level.poweruser", "report.label.level.user",
	"report.label.enrollment.status.waiting", "report.label.enrollment.status.overbooking",
	"report.label.enrollment.status.subscribed", "report.label.enrollment.status.in_progress",
	"report.label.enrollment.status.completed", "report.label.enrollment.status.suspended",
}

// enrollmentTimeCompiler produces the enrollment validity report, centred on
// the per-enrollment expiration date and the days remaining until it.
// Archived enrollments have no validity window, so only live rows appear.
type enrollmentTimeCompiler struct {
	base
}

// NewEnrollmentTime builds the enrollment validity compiler.
func NewEnrollmentTime(deps Deps) Compiler {
	return &enrollmentTimeCompiler{base: newBase(models.ReportTypeEnrollmentTime, deps)}
}

func (c *enrollmentTimeCompiler) Type() models.ReportType { return c.typ }

func (c *enrollmentTimeCompiler) Default(session *models.SessionContext) *models.ReportDefinition {
	return &models.ReportDefinition{
		Type:       c.typ,
		Author:     session.UserID,
		Visibility: models.Visibility{Type: models.VisibilityAllAdmins},
		Fields: catalog.EnsureMandatory(c.typ, []string{
			catalog.FieldUserID,
			catalog.FieldUserFullname,
			catalog.FieldCourseName,
			catalog.FieldEnrollmentDate,
			catalog.FieldEnrollmentExpirationDate,
			catalog.FieldEnrollmentDaysLeft,
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

func (c *enrollmentTimeCompiler) Athena(ctx context.Context, req Request) (string, error) {
	return c.build(ctx, req, dialect.AthenaRenderer{})
}

func (c *enrollmentTimeCompiler) Snowflake(ctx context.Context, req Request) (string, error) {
	return c.build(ctx, req, dialect.SnowflakeRenderer{})
}

func (c *enrollmentTimeCompiler) build(ctx context.Context, req Request, r dialect.Renderer) (string, error) {
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

	trans, err := c.loadTranslations(ctx, req, enrollmentTimeLabelKeys)
	if err != nil {
		return "", err
	}
	extras, err := c.resolveExtras(ctx, def)
	if err != nil {
		return "", err
	}

	bc := newBuildContext(ctx, req, r, c.typ, &c.deps, trans, extras)
	bc.userID = "e.user_id"
	bc.courseID = "e.course_id"

	bc.frag.Where(idPredicate("e.user_id", users))
	bc.frag.Where(idPredicate("e.course_id", courses))
	bc.frag.Where("e.expiration_date IS NOT NULL")
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

	var datePreds []string
	datePreds = append(datePreds, datePredicate(r, "e.enrollment_date", def.Enrollment.EnrollmentDate))
	if def.Courses != nil {
		datePreds = append(datePreds, datePredicate(r, "e.expiration_date", def.Courses.ExpirationDate))
	}
	bc.frag.Where(combineDatePredicates(datePreds, def.Conditions))

	table := merge(userFieldHandlers(), enrollmentTimeFieldHandlers())
	if err := c.runFieldLoop(bc, table); err != nil {
		return "", err
	}
	return bc.frag.SQL("learning_enrollment e", c.orderBy(bc, catalog.FieldEnrollmentDaysLeft), c.rowLimit(req)), nil
}

func enrollmentTimeFieldHandlers() handlerTable {
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
		catalog.FieldEnrollmentDate: func(b *buildContext) error {
			b.sel(catalog.FieldEnrollmentDate, b.r.FormatTimestamp("e.enrollment_date"))
			return nil
		},
		catalog.FieldEnrollmentStatus: func(b *buildContext) error {
			b.sel(catalog.FieldEnrollmentStatus, enrollmentStatusCase(b))
			return nil
		},
		catalog.FieldEnrollmentExpirationDate: func(b *buildContext) error {
			b.sel(catalog.FieldEnrollmentExpirationDate, b.r.FormatTimestamp("e.expiration_date"))
			return nil
		},
		catalog.FieldEnrollmentDaysLeft: func(b *buildContext) error {
			b.sel(catalog.FieldEnrollmentDaysLeft,
				"CAST("+b.r.DateDiffDays("current_date", "e.expiration_date")+" AS VARCHAR)")
			return nil
		},
	}
}
