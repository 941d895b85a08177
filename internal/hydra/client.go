// Package hydra talks to the internal metadata/identity service. The
// compiler only issues read calls; mutating endpoints (which additionally
// require a cookie/CSRF pair) are not used here.
package hydra

import "context"

// ExtraField is a platform-admin-defined custom field on an entity.
type ExtraField struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// Client is the read surface the report engine consumes.
type Client interface {
	// Translations resolves translation keys for a language.
	Translations(ctx context.Context, keys []string, lang string) (map[string]string, error)

	// Extra-field listings per entity kind.
	UserExtraFields(ctx context.Context) ([]ExtraField, error)
	CourseExtraFields(ctx context.Context) ([]ExtraField, error)
	EnrollmentExtraFields(ctx context.Context) ([]ExtraField, error)

	// BranchDescendants expands a branch id to the transitive closure of
	// its child branch ids (the root id included).
	BranchDescendants(ctx context.Context, branchID int64) ([]int64, error)

	// GroupMembers lists the user ids belonging to a group.
	GroupMembers(ctx context.Context, groupID int64) ([]int64, error)

	// Power-user administrative associations.
	PowerUserUsers(ctx context.Context, userID int64) ([]int64, error)
	PowerUserCourses(ctx context.Context, userID int64) ([]int64, error)

	// UserIDsByManager lists the users reporting to a manager.
	UserIDsByManager(ctx context.Context, managerID int64, managerType int) ([]int64, error)
}
