package compiler

import "github.com/openlearnhq/report-engine/internal/models"

// New returns the compiler for a report type. The set of types is fixed at
// build time; an unknown type is a caller error.
func New(t models.ReportType, deps Deps) (Compiler, error) {
	switch t {
	case models.ReportTypeUsersCourses:
		return NewUsersCourses(deps), nil
	case models.ReportTypeUsersSessions:
		return NewUsersSessions(deps), nil
	case models.ReportTypeSurveyAnswers:
		return NewSurveyAnswers(deps), nil
	case models.ReportTypeAssetViews:
		return NewAssetViews(deps), nil
	case models.ReportTypeUsersLearningPlans:
		return NewLearningPlans(deps), nil
	case models.ReportTypeEnrollmentTime:
		return NewEnrollmentTime(deps), nil
	}
	return nil, ErrUnknownReportType
}
