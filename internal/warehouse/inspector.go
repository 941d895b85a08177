// Package warehouse answers schema questions about the analytic warehouse.
// The compiler uses it to decide whether an extra field is physically
// materialized; when it is not, the compiler emits a literal empty string
// instead of a join so column count and order stay stable.
package warehouse

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// Inspector reports whether a column exists in the warehouse.
type Inspector interface {
	HasColumn(ctx context.Context, table, column string) (bool, error)
}

// SchemaInspector reads information_schema through the warehouse metadata
// connection and keeps a per-table column set in memory for a TTL.
type SchemaInspector struct {
	db     *sqlx.DB
	schema string
	ttl    time.Duration

	mu     sync.Mutex
	tables map[string]cachedColumns
}

type cachedColumns struct {
	columns map[string]struct{}
	fetched time.Time
}

// NewSchemaInspector builds an inspector over the given schema.
func NewSchemaInspector(db *sqlx.DB, schema string, ttl time.Duration) *SchemaInspector {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SchemaInspector{
		db:     db,
		schema: schema,
		ttl:    ttl,
		tables: map[string]cachedColumns{},
	}
}

// HasColumn reports whether table.column exists.
func (i *SchemaInspector) HasColumn(ctx context.Context, table, column string) (bool, error) {
	cols, err := i.columns(ctx, table)
	if err != nil {
		return false, err
	}
	_, ok := cols[strings.ToLower(column)]
	return ok, nil
}

func (i *SchemaInspector) columns(ctx context.Context, table string) (map[string]struct{}, error) {
	i.mu.Lock()
	cached, ok := i.tables[table]
	i.mu.Unlock()
	if ok && time.Since(cached.fetched) < i.ttl {
		return cached.columns, nil
	}

	var names []string
	query := `SELECT column_name FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2`
	if err := i.db.SelectContext(ctx, &names, query, i.schema, table); err != nil {
		return nil, fmt.Errorf("inspect columns of %s.%s: %w", i.schema, table, err)
	}

	cols := make(map[string]struct{}, len(names))
	for _, n := range names {
		cols[strings.ToLower(n)] = struct{}{}
	}

	i.mu.Lock()
	i.tables[table] = cachedColumns{columns: cols, fetched: time.Now()}
	i.mu.Unlock()
	return cols, nil
}
