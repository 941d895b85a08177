// Package visibility turns a report definition's entity filters plus the
// caller's permission level into id lists embeddable in IN (...) clauses.
//
// The contract is fail-closed: an explicit filter that resolves to an empty
// set yields Nothing=true and the compiler emits an always-false predicate.
// An empty CSV with Nothing=false means "no restriction".
package visibility

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/openlearnhq/report-engine/internal/hydra"
	"github.com/openlearnhq/report-engine/internal/models"
)

// IDList is the result of one calculator.
type IDList struct {
	CSV     string
	Nothing bool
}

// Unrestricted reports whether no predicate should be emitted at all.
func (l IDList) Unrestricted() bool {
	return l.CSV == "" && !l.Nothing
}

func fromSet(ids []int64) IDList {
	if len(ids) == 0 {
		return IDList{Nothing: true}
	}
	return IDList{CSV: joinIDs(ids)}
}

func joinIDs(ids []int64) string {
	seen := make(map[int64]struct{}, len(ids))
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}

func intersect(a, b []int64) []int64 {
	set := make(map[int64]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}
	var out []int64
	for _, id := range a {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Calculators resolves every entity filter of one report definition for one
// session. Instances are cheap and request-scoped.
type Calculators struct {
	def     *models.ReportDefinition
	session *models.SessionContext
	hydra   hydra.Client
}

// New builds the calculators for a compilation.
func New(def *models.ReportDefinition, session *models.SessionContext, client hydra.Client) *Calculators {
	return &Calculators{def: def, session: session, hydra: client}
}

// Users resolves the user filter. Power-user sessions always intersect with
// their administratively assigned users, even when the filter says "all",
// unless checkVisibility is false (trusted scheduled run).
func (c *Calculators) Users(ctx context.Context, checkVisibility bool) (IDList, error) {
	filter := c.def.Users

	var static []int64
	restricted := false
	if filter != nil && !filter.All {
		restricted = true
		static = append(static, filter.Users...)
		for _, groupID := range filter.Groups {
			members, err := c.hydra.GroupMembers(ctx, groupID)
			if err != nil {
				return IDList{}, fmt.Errorf("resolve group %d members: %w", groupID, err)
			}
			static = append(static, members...)
		}
		for _, mgr := range filter.Managers {
			reports, err := c.hydra.UserIDsByManager(ctx, mgr.ID, mgr.Type)
			if err != nil {
				return IDList{}, fmt.Errorf("resolve manager %d team: %w", mgr.ID, err)
			}
			static = append(static, reports...)
		}
	}

	if c.session.IsPowerUser() && checkVisibility {
		visible, err := c.hydra.PowerUserUsers(ctx, c.session.UserID)
		if err != nil {
			return IDList{}, fmt.Errorf("resolve power-user visible users: %w", err)
		}
		if restricted {
			return fromSet(intersect(static, visible)), nil
		}
		return fromSet(visible), nil
	}

	if !restricted {
		return IDList{}, nil
	}
	return fromSet(static), nil
}

// Branches resolves the branch selections into branch ids, expanding
// subtrees where the selection asks for descendants.
func (c *Calculators) Branches(ctx context.Context) (IDList, error) {
	filter := c.def.Users
	if filter == nil || filter.All || len(filter.Branches) == 0 {
		return IDList{}, nil
	}

	var ids []int64
	for _, sel := range filter.Branches {
		if !sel.Descendants {
			ids = append(ids, sel.ID)
			continue
		}
		expanded, err := c.hydra.BranchDescendants(ctx, sel.ID)
		if err != nil {
			return IDList{}, fmt.Errorf("expand branch %d: %w", sel.ID, err)
		}
		ids = append(ids, sel.ID)
		ids = append(ids, expanded...)
	}
	return fromSet(ids), nil
}

// Courses resolves the course filter with power-user intersection.
func (c *Calculators) Courses(ctx context.Context, checkVisibility bool) (IDList, error) {
	filter := c.def.Courses

	var static []int64
	restricted := false
	if filter != nil && !filter.All {
		restricted = true
		static = filter.Courses
	}

	if c.session.IsPowerUser() && checkVisibility {
		visible, err := c.hydra.PowerUserCourses(ctx, c.session.UserID)
		if err != nil {
			return IDList{}, fmt.Errorf("resolve power-user visible courses: %w", err)
		}
		if restricted {
			return fromSet(intersect(static, visible)), nil
		}
		return fromSet(visible), nil
	}

	if !restricted {
		return IDList{}, nil
	}
	return fromSet(static), nil
}

// Sessions resolves the classroom-session filter.
func (c *Calculators) Sessions(ctx context.Context) (IDList, error) {
	filter := c.def.Sessions
	if filter == nil || filter.All {
		return IDList{}, nil
	}
	return fromSet(filter.Sessions), nil
}

// Surveys resolves the survey filter.
func (c *Calculators) Surveys(ctx context.Context) (IDList, error) {
	filter := c.def.Surveys
	if filter == nil || filter.All {
		return IDList{}, nil
	}
	return fromSet(filter.Surveys), nil
}

// LearningPlans resolves the learning-plan filter.
func (c *Calculators) LearningPlans(ctx context.Context) (IDList, error) {
	filter := c.def.LearningPlans
	if filter == nil || filter.All {
		return IDList{}, nil
	}
	return fromSet(filter.Plans), nil
}

// Assets resolves the asset filter.
func (c *Calculators) Assets(ctx context.Context) (IDList, error) {
	filter := c.def.Assets
	if filter == nil || filter.All {
		return IDList{}, nil
	}
	return fromSet(filter.Assets), nil
}
