// Package compiler turns report definitions into dialect-specific analytic
// SQL text. One compiler per report type; all of them share the contract,
// the fragment accumulator and the field-dispatch machinery in this file.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/openlearnhq/report-engine/internal/catalog"
	"github.com/openlearnhq/report-engine/internal/dialect"
	"github.com/openlearnhq/report-engine/internal/extrafield"
	"github.com/openlearnhq/report-engine/internal/hydra"
	"github.com/openlearnhq/report-engine/internal/models"
	"github.com/openlearnhq/report-engine/internal/visibility"
)

// Compilation failures that callers branch on.
var (
	ErrUnsupportedDialect = errors.New("dialect not implemented for this report type")
	ErrUnknownReportType  = errors.New("unknown report type")
	ErrNoOutputColumns    = errors.New("field selection produced no output columns")
)

// Default row caps applied when the platform does not configure its own.
const (
	defaultExportLimit  = 100000
	defaultPreviewLimit = 10
)

// Request carries everything one compilation needs. The compiler is a pure
// function of this value; nothing in it is mutated.
type Request struct {
	Definition      *models.ReportDefinition
	Session         *models.SessionContext
	Limit           int
	Preview         bool
	CheckVisibility bool
	FromSchedule    bool
}

// UnmappedFieldObserver counts selected fields no handler exists for.
// Unmapped fields are skipped on purpose (platform permutations may request
// fields the current platform does not support) but never silently:
// the observer makes the skip visible.
type UnmappedFieldObserver interface {
	ObserveUnmappedField(reportType models.ReportType, field string)
}

// Deps are the external collaborators shared by all compilers.
type Deps struct {
	Hydra    hydra.Client
	Extras   *extrafield.Resolver
	Logger   *zap.Logger
	Unmapped UnmappedFieldObserver
}

// Compiler is the per-report-type contract: a default-structure factory and
// one compile entry point per target dialect.
type Compiler interface {
	Type() models.ReportType
	Default(session *models.SessionContext) *models.ReportDefinition
	Athena(ctx context.Context, req Request) (string, error)
	Snowflake(ctx context.Context, req Request) (string, error)
}

type base struct {
	typ  models.ReportType
	deps Deps
}

func newBase(typ models.ReportType, deps Deps) base {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return base{typ: typ, deps: deps}
}

func (b *base) observeUnmapped(field string) {
	b.deps.Logger.Sugar().Debugw("skipping unmapped report field", "report_type", b.typ, "field", field)
	if b.deps.Unmapped != nil {
		b.deps.Unmapped.ObserveUnmappedField(b.typ, field)
	}
}

// rowLimit derives the LIMIT value from the request and the platform caps.
// A zero request limit means "use the platform default".
func (b *base) rowLimit(req Request) int {
	if req.Preview {
		if cap := req.Session.Platform.PreviewRowLimit; cap > 0 {
			return cap
		}
		return defaultPreviewLimit
	}
	max := req.Session.Platform.ExportRowLimit
	if max <= 0 {
		max = defaultExportLimit
	}
	if req.Limit > 0 && req.Limit < max {
		return req.Limit
	}
	return max
}

// loadTranslations resolves the column-header keys of the selected catalog
// fields plus the enum-label keys a compiler needs for its CASE expressions.
// A metadata-service failure fails the compilation; there are no retries
// here.
func (b *base) loadTranslations(ctx context.Context, req Request, labelKeys []string) (map[string]string, error) {
	keySet := map[string]struct{}{}
	for _, field := range req.Definition.Fields {
		if _, _, isExtra := extrafield.ParseRef(field); isExtra {
			continue
		}
		if catalog.Contains(b.typ, field) {
			keySet[catalog.TranslationKeyFor(b.typ, field)] = struct{}{}
		}
	}
	for _, k := range labelKeys {
		keySet[k] = struct{}{}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return map[string]string{}, nil
	}
	trans, err := b.deps.Hydra.Translations(ctx, keys, req.Session.Language())
	if err != nil {
		return nil, fmt.Errorf("load report translations: %w", err)
	}
	return trans, nil
}

// resolvedExtras carries the extra-field metadata referenced by a field
// selection, resolved once per compilation and shared by every branch.
type resolvedExtras struct {
	fields       map[string]extrafield.Field
	materialized map[string]bool
	titles       map[string]string
}

// resolveExtras looks up every extra-field reference in the selection,
// disambiguating display names across entity kinds before any field loop
// runs. References to fields that no longer exist stay absent and are later
// treated as unmapped.
func (b *base) resolveExtras(ctx context.Context, def *models.ReportDefinition) (*resolvedExtras, error) {
	out := &resolvedExtras{
		fields:       map[string]extrafield.Field{},
		materialized: map[string]bool{},
		titles:       map[string]string{},
	}

	// Resolution follows selection order; title disambiguation depends on
	// which field claims a colliding display name first.
	available := map[extrafield.Kind]map[int64]extrafield.Field{}
	seen := map[string]struct{}{}
	var referenced []extrafield.Field
	for _, field := range def.Fields {
		kind, id, ok := extrafield.ParseRef(field)
		if !ok {
			continue
		}
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}

		byID, ok := available[kind]
		if !ok {
			fields, err := b.deps.Extras.Available(ctx, kind)
			if err != nil {
				return nil, err
			}
			byID = make(map[int64]extrafield.Field, len(fields))
			for _, f := range fields {
				byID[f.ID] = f
			}
			available[kind] = byID
		}

		f, ok := byID[id]
		if !ok {
			continue
		}
		out.fields[f.Ref()] = f
		referenced = append(referenced, f)
		materialized, err := b.deps.Extras.IsMaterialized(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		out.materialized[f.Ref()] = materialized
	}
	if len(referenced) == 0 {
		return out, nil
	}
	out.titles = b.deps.Extras.DisambiguateTitles(referenced, out.titles)
	return out, nil
}

// fieldHandler emits the SELECT/JOIN/GROUP BY fragments for one field.
type fieldHandler func(b *buildContext) error

// handlerTable maps field identifiers to their handlers for one report type.
type handlerTable map[string]fieldHandler

// merge overlays tables left to right; later tables win.
func merge(tables ...handlerTable) handlerTable {
	out := handlerTable{}
	for _, t := range tables {
		for k, v := range t {
			out[k] = v
		}
	}
	return out
}

// buildContext is the per-branch state handed to field handlers.
type buildContext struct {
	ctx  context.Context
	req  Request
	r    dialect.Renderer
	frag *FragmentSet
	typ  models.ReportType
	deps *Deps

	trans  map[string]string // translation key -> text
	extras *resolvedExtras

	fieldAlias map[string]string // field id -> raw alias used
	usedAlias  map[string]int

	archived bool   // building the archive branch
	userID   string // fact-side user id expression
	courseID string // fact-side course id expression
}

func newBuildContext(ctx context.Context, req Request, r dialect.Renderer, typ models.ReportType, deps *Deps, trans map[string]string, extras *resolvedExtras) *buildContext {
	return &buildContext{
		ctx:        ctx,
		req:        req,
		r:          r,
		frag:       NewFragmentSet(),
		typ:        typ,
		deps:       deps,
		trans:      trans,
		extras:     extras,
		fieldAlias: map[string]string{},
		usedAlias:  map[string]int{},
	}
}

// header returns the display text for a selected field.
func (b *buildContext) header(field string) string {
	if b.extras != nil {
		if title, ok := b.extras.titles[field]; ok {
			return title
		}
	}
	key := catalog.TranslationKeyFor(b.typ, field)
	if text, ok := b.trans[key]; ok && text != "" {
		return text
	}
	return field
}

// alias reserves a unique output alias for a field.
func (b *buildContext) alias(field string) string {
	raw := b.header(field)
	if n := b.usedAlias[raw]; n > 0 {
		b.usedAlias[raw] = n + 1
		raw = raw + " (" + strconv.Itoa(n+1) + ")"
	} else {
		b.usedAlias[raw] = 1
	}
	b.fieldAlias[field] = raw
	return raw
}

// label translates an enum label key, falling back to the given text.
func (b *buildContext) label(key, fallback string) string {
	if text, ok := b.trans[key]; ok && text != "" {
		return text
	}
	return fallback
}

// caseLabel renders a translated label as a CASE branch literal.
func (b *buildContext) caseLabel(key, fallback string) string {
	return b.r.CaseValue(b.label(key, fallback))
}

// sel emits a dimension expression: selected and grouped.
func (b *buildContext) sel(field, expr string) {
	raw := b.alias(field)
	b.frag.Select(expr, b.r.QuoteAlias(raw), raw)
	b.frag.GroupBy(expr)
}

// selAgg emits an aggregate expression: selected, never grouped.
func (b *buildContext) selAgg(field, expr string) {
	raw := b.alias(field)
	b.frag.Select(expr, b.r.QuoteAlias(raw), raw)
}

// selConst emits a constant literal column, keeping column order stable.
func (b *buildContext) selConst(field, literal string) {
	raw := b.alias(field)
	b.frag.Select(literal, b.r.QuoteAlias(raw), raw)
}

// runFieldLoop visits the selection in order, dispatching each field on the
// handler table, then on the extra-field machinery; anything left is
// observed as unmapped and skipped.
func (b *base) runFieldLoop(bc *buildContext, table handlerTable) error {
	for _, field := range bc.req.Definition.Fields {
		if h, ok := table[field]; ok {
			if err := h(bc); err != nil {
				return fmt.Errorf("field %s: %w", field, err)
			}
			continue
		}
		if handled, err := handleExtraField(bc, field); err != nil {
			return fmt.Errorf("field %s: %w", field, err)
		} else if handled {
			continue
		}
		b.observeUnmapped(field)
	}
	if bc.frag.Empty() {
		return ErrNoOutputColumns
	}
	return nil
}

// orderBy maps the configured sorting back to a built alias. Custom sorts on
// fields that did not produce a column fall back to the report type default;
// previews skip sorting entirely.
func (b *base) orderBy(bc *buildContext, defaultField string) string {
	if bc.req.Preview {
		return ""
	}
	sorting := bc.req.Definition.Sorting
	field := defaultField
	direction := "ASC"
	if sorting.Selector == models.SortSelectorCustom && sorting.Field != "" {
		if _, built := bc.fieldAlias[sorting.Field]; built {
			field = sorting.Field
		}
	}
	if sorting.Direction == models.SortDesc {
		direction = "DESC"
	}
	raw, ok := bc.fieldAlias[field]
	if !ok {
		// Default sort field not selected either; leave output unsorted.
		return ""
	}
	return bc.r.QuoteAlias(raw) + " " + direction
}

// idPredicate renders an id-list restriction honoring the fail-closed
// contract: an explicit filter that resolved to an empty set becomes an
// always-false predicate, never an unrestricted one.
func idPredicate(col string, list visibility.IDList) string {
	if list.Unrestricted() {
		return ""
	}
	if list.Nothing {
		return "FALSE"
	}
	return col + " IN (" + list.CSV + ")"
}
