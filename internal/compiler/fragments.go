package compiler

import (
	"strconv"
	"strings"
)

// JoinKey identifies a dimension join within one compilation.
type JoinKey string

// FragmentSet accumulates the pieces of one SELECT statement while the
// field loop runs. It is written incrementally and only read once every
// selected field has been visited.
type FragmentSet struct {
	selects []string
	aliases []string
	joins   []string
	joined  map[JoinKey]struct{}
	where    []string
	groupBy  []string
	ctes     []string
	cteNames map[string]struct{}
}

// NewFragmentSet returns an empty accumulator.
func NewFragmentSet() *FragmentSet {
	return &FragmentSet{
		joined:   map[JoinKey]struct{}{},
		cteNames: map[string]struct{}{},
	}
}

// Select appends one output expression with its already-quoted alias.
// rawAlias is the unquoted header text, kept for ordering and sorting.
func (f *FragmentSet) Select(expr, quotedAlias, rawAlias string) {
	f.selects = append(f.selects, expr+" AS "+quotedAlias)
	f.aliases = append(f.aliases, rawAlias)
}

// GroupBy appends a grouping expression.
func (f *FragmentSet) GroupBy(expr string) {
	f.groupBy = append(f.groupBy, expr)
}

// Where appends a predicate; predicates combine with AND.
func (f *FragmentSet) Where(pred string) {
	if pred == "" {
		return
	}
	f.where = append(f.where, pred)
}

// EnsureJoin adds a join clause at most once per compilation. Duplicate
// joins corrupt aggregation cardinality, so every dimension join goes
// through here.
func (f *FragmentSet) EnsureJoin(key JoinKey, build func() string) {
	if _, ok := f.joined[key]; ok {
		return
	}
	f.joined[key] = struct{}{}
	f.joins = append(f.joins, build())
}

// HasJoin reports whether a join was already added.
func (f *FragmentSet) HasJoin(key JoinKey) bool {
	_, ok := f.joined[key]
	return ok
}

// CTE registers a named common-table-expression body, at most once per name.
func (f *FragmentSet) CTE(name, body string) {
	if _, ok := f.cteNames[name]; ok {
		return
	}
	f.cteNames[name] = struct{}{}
	f.ctes = append(f.ctes, name+" AS ("+body+")")
}

// Aliases returns the ordered, unquoted output column aliases.
func (f *FragmentSet) Aliases() []string {
	out := make([]string, len(f.aliases))
	copy(out, f.aliases)
	return out
}

// Empty reports whether no output column was produced.
func (f *FragmentSet) Empty() bool {
	return len(f.selects) == 0
}

// SQL assembles the statement. orderBy and limit may be zero values; the
// caller appends them only on the outermost statement of a union.
func (f *FragmentSet) SQL(from, orderBy string, limit int) string {
	var b strings.Builder
	if len(f.ctes) > 0 {
		b.WriteString("WITH ")
		b.WriteString(strings.Join(f.ctes, ", "))
		b.WriteString(" ")
	}
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(f.selects, ", "))
	b.WriteString(" FROM ")
	b.WriteString(from)
	for _, j := range f.joins {
		b.WriteString(" ")
		b.WriteString(j)
	}
	if len(f.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(f.where, " AND "))
	}
	if len(f.groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(dedupe(f.groupBy), ", "))
	}
	if orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(orderBy)
	}
	if limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(limit))
	}
	return b.String()
}

func dedupe(exprs []string) []string {
	seen := make(map[string]struct{}, len(exprs))
	out := make([]string, 0, len(exprs))
	for _, e := range exprs {
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
