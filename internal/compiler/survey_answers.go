package compiler

import (
	"context"

	"github.com/openlearnhq/report-engine/internal/catalog"
	"github.com/openlearnhq/report-engine/internal/dialect"
	"github.com/openlearnhq/report-engine/internal/models"
	"github.com/openlearnhq/report-engine/internal/visibility"
)

const (
	joinSurvey         JoinKey = "survey"
	joinSurveyQuestion JoinKey = "survey_question"
)

var surveyAnswersLabelKeys = []string{
	"report.label.yes", "report.label.no",
	"report.label.level.superadmin", "report.label.level.poweruser", "report.label.level.user",
	"report.label.survey.question.choice", "report.label.survey.question.multichoice",
	"report.label.survey.question.open", "report.label.survey.question.likert",
}

// surveyAnswersCompiler produces the individual survey answers report, one
// row per answered question.
type surveyAnswersCompiler struct {
	base
}

// NewSurveyAnswers builds the survey answers compiler.
func NewSurveyAnswers(deps Deps) Compiler {
	return &surveyAnswersCompiler{base: newBase(models.ReportTypeSurveyAnswers, deps)}
}

func (c *surveyAnswersCompiler) Type() models.ReportType { return c.typ }

func (c *surveyAnswersCompiler) Default(session *models.SessionContext) *models.ReportDefinition {
	return &models.ReportDefinition{
		Type:       c.typ,
		Author:     session.UserID,
		Visibility: models.Visibility{Type: models.VisibilityAllAdmins},
		Fields: catalog.EnsureMandatory(c.typ, []string{
			catalog.FieldUserID,
			catalog.FieldUserFullname,
			catalog.FieldCourseName,
			catalog.FieldSurveyTitle,
			catalog.FieldSurveyQuestion,
			catalog.FieldSurveyAnswer,
			catalog.FieldSurveyCompletionDate,
		}),
		Sorting:    models.Sorting{Selector: models.SortSelectorDefault, Direction: models.SortAsc},
		Conditions: models.AllConditions,
		Users:      &models.UsersFilter{All: true},
		Surveys:    &models.SurveysFilter{All: true},
		Enrollment: models.EnrollmentFilter{
			EnrollmentDate: models.DateOption{Any: true},
			CompletionDate: models.DateOption{Any: true},
			ArchivingDate:  models.DateOption{Any: true},
		},
	}
}

func (c *surveyAnswersCompiler) Athena(ctx context.Context, req Request) (string, error) {
	return c.build(ctx, req, dialect.AthenaRenderer{})
}

func (c *surveyAnswersCompiler) Snowflake(ctx context.Context, req Request) (string, error) {
	return c.build(ctx, req, dialect.SnowflakeRenderer{})
}

func (c *surveyAnswersCompiler) build(ctx context.Context, req Request, r dialect.Renderer) (string, error) {
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
	surveys, err := calcs.Surveys(ctx)
	if err != nil {
		return "", err
	}

	trans, err := c.loadTranslations(ctx, req, surveyAnswersLabelKeys)
	if err != nil {
		return "", err
	}
	extras, err := c.resolveExtras(ctx, def)
	if err != nil {
		return "", err
	}

	bc := newBuildContext(ctx, req, r, c.typ, &c.deps, trans, extras)
	bc.userID = "sa.user_id"
	bc.courseID = "s.course_id"

	bc.frag.EnsureJoin(joinSurvey, func() string {
		return "JOIN survey s ON s.survey_id = sa.survey_id"
	})

	bc.frag.Where(idPredicate("sa.user_id", users))
	bc.frag.Where(idPredicate("sa.survey_id", surveys))
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

	table := merge(userFieldHandlers(), surveyFieldHandlers())
	if err := c.runFieldLoop(bc, table); err != nil {
		return "", err
	}
	return bc.frag.SQL("survey_answer sa", c.orderBy(bc, catalog.FieldUserID), c.rowLimit(req)), nil
}

func ensureSurveyQuestionJoin(b *buildContext) {
	b.frag.EnsureJoin(joinSurveyQuestion, func() string {
		return "JOIN survey_question q ON q.question_id = sa.question_id"
	})
}

func surveyFieldHandlers() handlerTable {
	return handlerTable{
		catalog.FieldCourseName: func(b *buildContext) error {
			ensureCourseJoin(b)
			b.sel(catalog.FieldCourseName, "c.name")
			return nil
		},
		catalog.FieldSurveyID: func(b *buildContext) error {
			b.sel(catalog.FieldSurveyID, "sa.survey_id")
			return nil
		},
		catalog.FieldSurveyTitle: func(b *buildContext) error {
			b.sel(catalog.FieldSurveyTitle, "s.title")
			return nil
		},
		catalog.FieldSurveyCompletionDate: func(b *buildContext) error {
			b.sel(catalog.FieldSurveyCompletionDate, b.r.FormatTimestamp("sa.completion_date"))
			return nil
		},
		catalog.FieldSurveyQuestion: func(b *buildContext) error {
			ensureSurveyQuestionJoin(b)
			b.sel(catalog.FieldSurveyQuestion, "q.title")
			return nil
		},
		catalog.FieldSurveyQuestionType: func(b *buildContext) error {
			ensureSurveyQuestionJoin(b)
			b.sel(catalog.FieldSurveyQuestionType,
				"CASE q.question_type"+
					" WHEN 'choice' THEN "+b.caseLabel("report.label.survey.question.choice", "Single choice")+
					" WHEN 'multichoice' THEN "+b.caseLabel("report.label.survey.question.multichoice", "Multiple choice")+
					" WHEN 'open' THEN "+b.caseLabel("report.label.survey.question.open", "Open answer")+
					" WHEN 'likert' THEN "+b.caseLabel("report.label.survey.question.likert", "Likert scale")+
					" ELSE q.question_type END")
			return nil
		},
		catalog.FieldSurveyAnswer: func(b *buildContext) error {
			b.sel(catalog.FieldSurveyAnswer, "sa.answer")
			return nil
		},
	}
}
