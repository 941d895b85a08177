package compiler

import (
	"strings"

	"github.com/openlearnhq/report-engine/internal/dialect"
	"github.com/openlearnhq/report-engine/internal/models"
)

// datePredicate renders one date option against a column expression.
// Returns "" when the option does not restrict anything.
func datePredicate(r dialect.Renderer, col string, opt models.DateOption) string {
	if !opt.Active() {
		return ""
	}
	switch opt.Kind {
	case models.DateFilterRelative:
		switch opt.Operator {
		case models.DateOpExpiringIn:
			return "(" + col + " >= current_date AND " + col + " <= " + r.DateAdd(opt.Days, "current_date") + ")"
		case models.DateOpIsBefore:
			return col + " < " + r.DateAdd(-opt.Days, "current_date")
		case models.DateOpIsAfter:
			return col + " >= " + r.DateAdd(-opt.Days, "current_date")
		}
	case models.DateFilterRange:
		var parts []string
		if opt.From != "" {
			parts = append(parts, col+" >= DATE '"+opt.From+"'")
		}
		if opt.To != "" {
			parts = append(parts, col+" <= DATE '"+opt.To+"'")
		}
		if len(parts) == 0 {
			return ""
		}
		if len(parts) == 1 {
			return parts[0]
		}
		return "(" + strings.Join(parts, " AND ") + ")"
	}
	return ""
}

// combineDatePredicates folds the non-empty predicates with the report's
// conditions policy. allConditions ANDs, atLeastOneCondition ORs.
func combineDatePredicates(preds []string, c models.Conditions) string {
	var active []string
	for _, p := range preds {
		if p != "" {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return ""
	}
	if len(active) == 1 {
		return active[0]
	}
	if c == models.AtLeastOneCondition {
		return "(" + strings.Join(active, " OR ") + ")"
	}
	return "(" + strings.Join(active, " AND ") + ")"
}
