// Package extrafield resolves platform-admin-defined custom fields at
// compile time: which exist, what type they are, how their display names
// disambiguate across entity kinds, and whether the warehouse actually
// materializes them.
package extrafield

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/openlearnhq/report-engine/internal/hydra"
	"github.com/openlearnhq/report-engine/internal/warehouse"
)

// Kind is the entity an extra field belongs to.
type Kind string

const (
	KindUser       Kind = "user"
	KindCourse     Kind = "course"
	KindEnrollment Kind = "enrollment"
)

// Extra-field value types as reported by the metadata service.
const (
	TypeText     = "text"
	TypeDate     = "date"
	TypeDropdown = "dropdown"
	TypeYesNo    = "yesno"
	TypeCountry  = "country"
)

const refInfix = "_extrafield_"

// Field is a resolved extra field.
type Field struct {
	ID    int64
	Kind  Kind
	Type  string
	Title string
}

// Ref returns the field-selection encoding, e.g. "user_extrafield_12".
func (f Field) Ref() string {
	return Ref(f.Kind, f.ID)
}

// Ref encodes an extra-field reference.
func Ref(kind Kind, id int64) string {
	return string(kind) + refInfix + strconv.FormatInt(id, 10)
}

// ParseRef decodes "<entity>_extrafield_<id>". The third return is false for
// anything that is not an extra-field reference.
func ParseRef(field string) (Kind, int64, bool) {
	idx := strings.Index(field, refInfix)
	if idx <= 0 {
		return "", 0, false
	}
	kind := Kind(field[:idx])
	switch kind {
	case KindUser, KindCourse, KindEnrollment:
	default:
		return "", 0, false
	}
	id, err := strconv.ParseInt(field[idx+len(refInfix):], 10, 64)
	if err != nil || id <= 0 {
		return "", 0, false
	}
	return kind, id, true
}

// ValueTable returns the warehouse table holding materialized values for a
// kind, and the column name for a field id.
func ValueTable(kind Kind) string {
	return string(kind) + "_field_value"
}

// ValueColumn is the materialized column name for a field id.
func ValueColumn(id int64) string {
	return "field_" + strconv.FormatInt(id, 10)
}

// Resolver fetches extra-field metadata and checks materialization.
type Resolver struct {
	hydra     hydra.Client
	inspector warehouse.Inspector
}

// NewResolver builds a resolver.
func NewResolver(client hydra.Client, inspector warehouse.Inspector) *Resolver {
	return &Resolver{hydra: client, inspector: inspector}
}

// Available lists the extra fields defined for an entity kind.
func (r *Resolver) Available(ctx context.Context, kind Kind) ([]Field, error) {
	var (
		raw []hydra.ExtraField
		err error
	)
	switch kind {
	case KindUser:
		raw, err = r.hydra.UserExtraFields(ctx)
	case KindCourse:
		raw, err = r.hydra.CourseExtraFields(ctx)
	case KindEnrollment:
		raw, err = r.hydra.EnrollmentExtraFields(ctx)
	default:
		return nil, fmt.Errorf("unknown extra-field kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("list %s extra fields: %w", kind, err)
	}

	fields := make([]Field, 0, len(raw))
	for _, f := range raw {
		fields = append(fields, Field{ID: f.ID, Kind: kind, Type: f.Type, Title: f.Name})
	}
	return fields, nil
}

// Lookup finds one extra field by kind and id. The second return is false
// when the field no longer exists on the platform.
func (r *Resolver) Lookup(ctx context.Context, kind Kind, id int64) (Field, bool, error) {
	fields, err := r.Available(ctx, kind)
	if err != nil {
		return Field{}, false, err
	}
	for _, f := range fields {
		if f.ID == id {
			return f, true, nil
		}
	}
	return Field{}, false, nil
}

// IsMaterialized reports whether the warehouse carries a physical column for
// the field. Non-materialized fields compile to a literal empty string.
func (r *Resolver) IsMaterialized(ctx context.Context, kind Kind, id int64) (bool, error) {
	ok, err := r.inspector.HasColumn(ctx, ValueTable(kind), ValueColumn(id))
	if err != nil {
		return false, fmt.Errorf("check materialization of %s: %w", Ref(kind, id), err)
	}
	return ok, nil
}

// DisambiguateTitles merges the display names of fields into translations
// (keyed by field ref). Two entity kinds may define a custom field with the
// same display name; collisions are tagged with the kind so the compiled
// column headers stay unique. Must run before any compiler field loop that
// can reference extra fields of more than one kind.
func (r *Resolver) DisambiguateTitles(fields []Field, translations map[string]string) map[string]string {
	if translations == nil {
		translations = map[string]string{}
	}
	used := make(map[string]string, len(translations))
	for ref, title := range translations {
		used[strings.ToLower(title)] = ref
	}
	for _, f := range fields {
		title := f.Title
		if owner, clash := used[strings.ToLower(title)]; clash && owner != f.Ref() {
			title = fmt.Sprintf("%s (%s)", f.Title, f.Kind)
		}
		used[strings.ToLower(title)] = f.Ref()
		translations[f.Ref()] = title
	}
	return translations
}
