package compiler

import "github.com/openlearnhq/report-engine/internal/catalog"

// Join keys for the user dimension, shared by every report type.
const (
	joinUser        JoinKey = "user"
	joinUserBranch  JoinKey = "user_branch"
	joinUserManager JoinKey = "user_manager"
)

func ensureUserJoin(b *buildContext) {
	b.frag.EnsureJoin(joinUser, func() string {
		return "JOIN core_user cu ON cu.user_id = " + b.userID
	})
}

func ensureUserBranchJoin(b *buildContext) {
	ensureUserJoin(b)
	b.frag.EnsureJoin(joinUserBranch, func() string {
		return "LEFT JOIN core_user_branch ub ON ub.user_id = cu.user_id" +
			" LEFT JOIN core_branch br ON br.branch_id = ub.branch_id"
	})
}

// userFieldHandlers emits the USER_* family. The user dimension stays live
// even in archive branches (users are never archived with enrollments).
func userFieldHandlers() handlerTable {
	return handlerTable{
		catalog.FieldUserID: func(b *buildContext) error {
			ensureUserJoin(b)
			b.sel(catalog.FieldUserID, "cu.user_id")
			return nil
		},
		catalog.FieldUserUsername: func(b *buildContext) error {
			ensureUserJoin(b)
			b.sel(catalog.FieldUserUsername, "cu.username")
			return nil
		},
		catalog.FieldUserFirstname: func(b *buildContext) error {
			ensureUserJoin(b)
			b.sel(catalog.FieldUserFirstname, "cu.firstname")
			return nil
		},
		catalog.FieldUserLastname: func(b *buildContext) error {
			ensureUserJoin(b)
			b.sel(catalog.FieldUserLastname, "cu.lastname")
			return nil
		},
		catalog.FieldUserFullname: func(b *buildContext) error {
			ensureUserJoin(b)
			b.sel(catalog.FieldUserFullname, "concat(cu.firstname, ' ', cu.lastname)")
			return nil
		},
		catalog.FieldUserEmail: func(b *buildContext) error {
			ensureUserJoin(b)
			b.sel(catalog.FieldUserEmail, "cu.email")
			return nil
		},
		catalog.FieldUserLevel: func(b *buildContext) error {
			ensureUserJoin(b)
			b.sel(catalog.FieldUserLevel,
				"CASE cu.level"+
					" WHEN 'super_admin' THEN "+b.caseLabel("report.label.level.superadmin", "Superadmin")+
					" WHEN 'power_user' THEN "+b.caseLabel("report.label.level.poweruser", "Power User")+
					" WHEN 'user' THEN "+b.caseLabel("report.label.level.user", "User")+
					" ELSE CAST(cu.level AS VARCHAR) END")
			return nil
		},
		catalog.FieldUserDeactivated: func(b *buildContext) error {
			ensureUserJoin(b)
			b.sel(catalog.FieldUserDeactivated,
				"CASE cu.deactivated WHEN 1 THEN "+b.caseLabel("report.label.yes", "Yes")+
					" ELSE "+b.caseLabel("report.label.no", "No")+" END")
			return nil
		},
		catalog.FieldUserRegisterDate: func(b *buildContext) error {
			ensureUserJoin(b)
			b.sel(catalog.FieldUserRegisterDate, b.r.FormatTimestamp("cu.register_date"))
			return nil
		},
		catalog.FieldUserLastAccess: func(b *buildContext) error {
			ensureUserJoin(b)
			b.sel(catalog.FieldUserLastAccess, b.r.FormatTimestamp("cu.last_access_date"))
			return nil
		},
		catalog.FieldUserBranchName: func(b *buildContext) error {
			ensureUserBranchJoin(b)
			b.selAgg(catalog.FieldUserBranchName, b.r.ArraySort("array_agg(DISTINCT br.name)"))
			return nil
		},
		catalog.FieldUserBranchPath: func(b *buildContext) error {
			ensureUserBranchJoin(b)
			b.selAgg(catalog.FieldUserBranchPath, b.r.ArraySort("array_agg(DISTINCT br.path)"))
			return nil
		},
		catalog.FieldUserTimezone: func(b *buildContext) error {
			if !b.req.Session.Platform.Toggles.UserTimezone {
				return nil // toggle off: column dropped, not nulled
			}
			ensureUserJoin(b)
			b.sel(catalog.FieldUserTimezone, "cu.timezone")
			return nil
		},
		catalog.FieldUserDirectManager: func(b *buildContext) error {
			ensureUserJoin(b)
			b.frag.EnsureJoin(joinUserManager, func() string {
				return "LEFT JOIN core_user_manager um ON um.user_id = cu.user_id AND um.manager_type = 1" +
					" LEFT JOIN core_user mgr ON mgr.user_id = um.manager_id"
			})
			b.sel(catalog.FieldUserDirectManager, "concat(mgr.firstname, ' ', mgr.lastname)")
			return nil
		},
	}
}
