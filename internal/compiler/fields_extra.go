package compiler

import (
	"fmt"

	"github.com/openlearnhq/report-engine/internal/extrafield"
)

// handleExtraField compiles one "<entity>_extrafield_<id>" reference.
// Returns false when the field is not an extra-field reference or no longer
// exists on the platform (the caller then treats it as unmapped).
//
// A field the warehouse does not materialize compiles to a literal empty
// string so column count and order stay stable across environments.
func handleExtraField(b *buildContext, field string) (bool, error) {
	kind, id, ok := extrafield.ParseRef(field)
	if !ok {
		return false, nil
	}
	meta, exists := b.extras.fields[field]
	if !exists {
		return false, nil
	}

	if !b.extras.materialized[field] {
		b.selConst(field, "''")
		return true, nil
	}

	// Archived enrollments lose access to the course dimension entirely;
	// enrollment extra values travel inside the archive payload.
	if b.archived {
		switch kind {
		case extrafield.KindCourse:
			b.selConst(field, "''")
			return true, nil
		case extrafield.KindEnrollment:
			b.sel(field, b.r.JSONField("e.payload", fmt.Sprintf("extrafield_%d", id)))
			return true, nil
		}
	}

	column, err := extraValueColumn(b, kind, id)
	if err != nil {
		return false, err
	}

	switch meta.Type {
	case extrafield.TypeDate:
		b.sel(field, b.r.FormatTimestamp(column))
	case extrafield.TypeYesNo:
		b.sel(field, "CASE "+column+" WHEN 1 THEN "+b.caseLabel("report.label.yes", "Yes")+
			" ELSE "+b.caseLabel("report.label.no", "No")+" END")
	case extrafield.TypeDropdown:
		alias := fmt.Sprintf("fdt_%s_%d", kind, id)
		b.frag.EnsureJoin(JoinKey("extra_dropdown_"+alias), func() string {
			return fmt.Sprintf(
				"LEFT JOIN field_dropdown_translation %s ON %s.field_id = %d AND %s.option_id = %s AND %s.lang = %s",
				alias, alias, id, alias, column, alias, b.r.CaseValue(b.req.Session.Language()))
		})
		b.sel(field, alias+".translation")
	case extrafield.TypeCountry:
		alias := fmt.Sprintf("country_%s_%d", kind, id)
		b.frag.EnsureJoin(JoinKey("extra_country_"+alias), func() string {
			return fmt.Sprintf("LEFT JOIN core_country %s ON %s.country_id = %s", alias, alias, column)
		})
		b.sel(field, alias+".name")
	default: // free text
		b.sel(field, column)
	}
	return true, nil
}

// extraValueColumn ensures the join to the materialized value table of the
// entity kind and returns the field's column expression.
func extraValueColumn(b *buildContext, kind extrafield.Kind, id int64) (string, error) {
	table := extrafield.ValueTable(kind)
	switch kind {
	case extrafield.KindUser:
		ensureUserJoin(b)
		b.frag.EnsureJoin(JoinKey("extra_user_values"), func() string {
			return "LEFT JOIN " + table + " ufv ON ufv.user_id = cu.user_id"
		})
		return "ufv." + extrafield.ValueColumn(id), nil
	case extrafield.KindCourse:
		if b.courseID == "" {
			return "", fmt.Errorf("report type %s has no course scope for extra field %d", b.typ, id)
		}
		b.frag.EnsureJoin(JoinKey("extra_course_values"), func() string {
			return "LEFT JOIN " + table + " cfv ON cfv.course_id = " + b.courseID
		})
		return "cfv." + extrafield.ValueColumn(id), nil
	case extrafield.KindEnrollment:
		if b.courseID == "" {
			return "", fmt.Errorf("report type %s has no enrollment scope for extra field %d", b.typ, id)
		}
		b.frag.EnsureJoin(JoinKey("extra_enrollment_values"), func() string {
			return "LEFT JOIN " + table + " efv ON efv.user_id = " + b.userID + " AND efv.course_id = " + b.courseID
		})
		return "efv." + extrafield.ValueColumn(id), nil
	}
	return "", fmt.Errorf("unknown extra-field kind %q", kind)
}
