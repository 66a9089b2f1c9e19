package registry

import (
	"context"
	"database/sql"
	"fmt"

	"crudd/internal/orm"
	"crudd/internal/orm/memory"
	"crudd/internal/orm/sqlite"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Tables is the set of tables built for the loaded resources.
type Tables struct {
	Locator *orm.Locator
	db      *sql.DB
}

// Close releases the database handle, if any.
func (t *Tables) Close() error {
	if t.db == nil {
		return nil
	}
	return t.db.Close()
}

// OpenTables builds one table per resource on driver and seeds empty
// tables with the resource rows.
func OpenTables(ctx context.Context, resources []*Resource, driver, dsn string) (*Tables, error) {
	out := &Tables{Locator: orm.NewLocator()}
	switch driver {
	case "", DriverMemory:
		for _, r := range resources {
			if _, err := memory.New(&r.Schema, memory.WithLocator(out.Locator), memory.WithRows(r.Rows...)); err != nil {
				return nil, fmt.Errorf("resource %s: %w", r.Name, err)
			}
		}
		return out, nil
	case DriverSQLite:
		db, err := sqlite.Open(dsn)
		if err != nil {
			return nil, err
		}
		out.db = db
		for _, r := range resources {
			t, err := sqlite.New(ctx, db, &r.Schema, out.Locator)
			if err != nil {
				out.Close()
				return nil, fmt.Errorf("resource %s: %w", r.Name, err)
			}
			if err := seed(ctx, t, r.Rows); err != nil {
				out.Close()
				return nil, fmt.Errorf("resource %s: %w", r.Name, err)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

func seed(ctx context.Context, t orm.Table, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	first, err := t.First(ctx, orm.NewQuery("all"))
	if err != nil {
		return err
	}
	if first != nil {
		return nil
	}
	for i, row := range rows {
		if _, err := t.Save(ctx, t.NewEntity(row), orm.SaveOptions{SkipValidation: true}); err != nil {
			return fmt.Errorf("seed row %d: %w", i, err)
		}
	}
	return nil
}
