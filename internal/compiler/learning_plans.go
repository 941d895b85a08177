package compiler

import (
	"context"

	"github.com/openlearnhq/report-engine/internal/catalog"
	"github.com/openlearnhq/report-engine/internal/dialect"
	"github.com/openlearnhq/report-engine/internal/models"
	"github.com/openlearnhq/report-engine/internal/visibility"
)

const (
	joinPlan          JoinKey = "plan"
	joinPlanStats     JoinKey = "plan_stats"
	joinPlanCompleted JoinKey = "plan_completed"
)

var learningPlansLabelKeys = []string{
	"report.label.yes", "report.label.no",
	"report.label.level.superadmin", "report.label.level.poweruser", "report.label.level.user",
	"report.label.enrollment.status.subscribed", "report.label.enrollment.status.in_progress",
	"report.label.enrollment.status.completed",
}

// learningPlansCompiler produces the users×learning-plans report with the
// per-plan completion statistics.
type learningPlansCompiler struct {
	base
}

// NewLearningPlans builds the users×learning-plans compiler.
func NewLearningPlans(deps Deps) Compiler {
	return &learningPlansCompiler{base: newBase(models.ReportTypeUsersLearningPlans, deps)}
}

func (c *learningPlansCompiler) Type() models.ReportType { return c.typ }

func (c *learningPlansCompiler) Default(session *models.SessionContext) *models.ReportDefinition {
	return &models.ReportDefinition{
		Type:       c.typ,
		Author:     session.UserID,
		Visibility: models.Visibility{Type: models.VisibilityAllAdmins},
		Fields: catalog.EnsureMandatory(c.typ, []string{
			catalog.FieldUserID,
			catalog.FieldUserFullname,
			catalog.FieldLPName,
			catalog.FieldLPEnrollmentDate,
			catalog.FieldLPStatus,
			catalog.FieldLPCompletionPercent,
		}),
		Sorting:       models.Sorting{Selector: models.SortSelectorDefault, Direction: models.SortAsc},
		Conditions:    models.AllConditions,
		Users:         &models.UsersFilter{All: true},
		LearningPlans: &models.LearningPlansFilter{All: true},
		Enrollment: models.EnrollmentFilter{
			EnrollmentDate: models.DateOption{Any: true},
			CompletionDate: models.DateOption{Any: true},
			ArchivingDate:  models.DateOption{Any: true},
		},
	}
}

func (c *learningPlansCompiler) Athena(ctx context.Context, req Request) (string, error) {
	return c.build(ctx, req, dialect.AthenaRenderer{})
}

func (c *learningPlansCompiler) Snowflake(ctx context.Context, req Request) (string, error) {
	return c.build(ctx, req, dialect.SnowflakeRenderer{})
}

func (c *learningPlansCompiler) build(ctx context.Context, req Request, r dialect.Renderer) (string, error) {
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
	plans, err := calcs.LearningPlans(ctx)
	if err != nil {
		return "", err
	}

	trans, err := c.loadTranslations(ctx, req, learningPlansLabelKeys)
	if err != nil {
		return "", err
	}
	extras, err := c.resolveExtras(ctx, def)
	if err != nil {
		return "", err
	}

	bc := newBuildContext(ctx, req, r, c.typ, &c.deps, trans, extras)
	bc.userID = "pe.user_id"

	bc.frag.EnsureJoin(joinPlan, func() string {
		return "JOIN learning_plan lp ON lp.plan_id = pe.plan_id"
	})

	bc.frag.Where(idPredicate("pe.user_id", users))
	bc.frag.Where(idPredicate("pe.plan_id", plans))
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

	table := merge(userFieldHandlers(), planFieldHandlers())
	if err := c.runFieldLoop(bc, table); err != nil {
		return "", err
	}
	return bc.frag.SQL("learning_plan_enrollment pe", c.orderBy(bc, catalog.FieldUserID), c.rowLimit(req)), nil
}

// ensurePlanStatsJoins wires the two completion CTEs: plan_stats counts the
// courses each plan contains, plan_completed counts the ones a given user
// has finished.
func ensurePlanStatsJoins(b *buildContext) {
	b.frag.CTE("plan_stats",
		"SELECT plan_id, COUNT(*) AS courses_total FROM learning_plan_course GROUP BY plan_id")
	b.frag.EnsureJoin(joinPlanStats, func() string {
		return "LEFT JOIN plan_stats st ON st.plan_id = pe.plan_id"
	})
	b.frag.CTE("plan_completed",
		"SELECT pc.plan_id, e.user_id, COUNT(*) AS courses_completed"+
			" FROM learning_plan_course pc"+
			" JOIN learning_enrollment e ON e.course_id = pc.course_id AND e.status = 2"+
			" GROUP BY pc.plan_id, e.user_id")
	b.frag.EnsureJoin(joinPlanCompleted, func() string {
		return "LEFT JOIN plan_completed pu ON pu.plan_id = pe.plan_id AND pu.user_id = pe.user_id"
	})
}

func planFieldHandlers() handlerTable {
	return handlerTable{
		catalog.FieldLPName: func(b *buildContext) error {
			b.sel(catalog.FieldLPName, "lp.name")
			return nil
		},
		catalog.FieldLPCode: func(b *buildContext) error {
			b.sel(catalog.FieldLPCode, "lp.code")
			return nil
		},
		catalog.FieldLPCredits: func(b *buildContext) error {
			b.sel(catalog.FieldLPCredits, "CAST(lp.credits AS VARCHAR)")
			return nil
		},
		catalog.FieldLPEnrollmentDate: func(b *buildContext) error {
			b.sel(catalog.FieldLPEnrollmentDate, b.r.FormatTimestamp("pe.enrollment_date"))
			return nil
		},
		catalog.FieldLPCompletionDate: func(b *buildContext) error {
			b.sel(catalog.FieldLPCompletionDate, b.r.FormatTimestamp("pe.completion_date"))
			return nil
		},
		catalog.FieldLPStatus: func(b *buildContext) error {
			b.sel(catalog.FieldLPStatus,
				"CASE pe.status"+
					" WHEN 0 THEN "+b.caseLabel("report.label.enrollment.status.subscribed", "Enrolled")+
					" WHEN 1 THEN "+b.caseLabel("report.label.enrollment.status.in_progress", "In Progress")+
					" WHEN 2 THEN "+b.caseLabel("report.label.enrollment.status.completed", "Completed")+
					" ELSE CAST(pe.status AS VARCHAR) END")
			return nil
		},
		catalog.FieldLPCoursesTotal: func(b *buildContext) error {
			ensurePlanStatsJoins(b)
			b.sel(catalog.FieldLPCoursesTotal, "COALESCE(CAST(st.courses_total AS VARCHAR), '0')")
			return nil
		},
		catalog.FieldLPCoursesCompleted: func(b *buildContext) error {
			ensurePlanStatsJoins(b)
			b.sel(catalog.FieldLPCoursesCompleted, "COALESCE(CAST(pu.courses_completed AS VARCHAR), '0')")
			return nil
		},
		catalog.FieldLPCompletionPercent: func(b *buildContext) error {
			ensurePlanStatsJoins(b)
			b.sel(catalog.FieldLPCompletionPercent,
				"CAST(ROUND(100.0 * COALESCE(pu.courses_completed, 0) / NULLIF(st.courses_total, 0), 1) AS VARCHAR)")
			return nil
		},
	}
}
