package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/JonMunkholm/gridsource/internal/core"
)

// ErrSourceNotFound is returned when a catalog has no entry for a key.
var ErrSourceNotFound = errors.New("source not found")

// Backend names the database a catalog entry is queried from.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendSQL      Backend = "sql"
)

// Definition is one named source: a query plus the explicit column ids
// that should precede any guessed columns.
type Definition struct {
	Key        string   `json:"key"`
	Label      string   `json:"label"`
	Backend    Backend  `json:"backend"`
	Query      string   `json:"query"`
	Columns    []string `json:"columns,omitempty"`
	SampleSize int      `json:"sampleSize,omitempty"`
}

// ExplicitColumns returns the definition's column ids as opaque columns.
func (d Definition) ExplicitColumns() []core.Column {
	cols := make([]core.Column, len(d.Columns))
	for i, id := range d.Columns {
		cols[i] = core.StaticColumn(id)
	}
	return cols
}

// Catalog is an immutable, ordered set of source definitions.
type Catalog struct {
	defs  []Definition
	byKey map[string]int
}

// LoadCatalog reads a JSON array of definitions from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// ParseCatalog decodes and validates a JSON array of definitions.
// All validation failures are reported together.
func ParseCatalog(data []byte) (*Catalog, error) {
	var defs []Definition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return NewCatalog(defs)
}

// NewCatalog validates defs and indexes them by key.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs:  make([]Definition, len(defs)),
		byKey: make(map[string]int, len(defs)),
	}
	copy(c.defs, defs)

	var errs []error
	for i, d := range c.defs {
		if d.Key == "" {
			errs = append(errs, fmt.Errorf("entry %d: key is required", i))
			continue
		}
		if _, dup := c.byKey[d.Key]; dup {
			errs = append(errs, fmt.Errorf("entry %d: duplicate key %q", i, d.Key))
			continue
		}
		switch d.Backend {
		case BackendPostgres, BackendSQL:
		default:
			errs = append(errs, fmt.Errorf("entry %q: backend must be %q or %q, got %q",
				d.Key, BackendPostgres, BackendSQL, d.Backend))
		}
		if d.Query == "" {
			errs = append(errs, fmt.Errorf("entry %q: query is required", d.Key))
		}
		if d.Label == "" {
			c.defs[i].Label = d.Key
		}
		c.byKey[d.Key] = i
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

// Get returns the definition for key, or ErrSourceNotFound.
func (c *Catalog) Get(key string) (Definition, error) {
	if c == nil {
		return Definition{}, fmt.Errorf("%w: %q", ErrSourceNotFound, key)
	}
	i, ok := c.byKey[key]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrSourceNotFound, key)
	}
	return c.defs[i], nil
}

// List returns all definitions in file order.
func (c *Catalog) List() []Definition {
	if c == nil {
		return nil
	}
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.defs)
}

// Runner executes catalog definitions against the configured databases.
// Either handle may be nil when that backend is not configured.
type Runner struct {
	Postgres DBTX
	SQL      Querier
}

// Load runs d's query on its backend.
func (r Runner) Load(ctx context.Context, d Definition) ([]core.Row, error) {
	switch d.Backend {
	case BackendPostgres:
		if r.Postgres == nil {
			return nil, fmt.Errorf("source query %s: postgres backend not configured", d.Key)
		}
		return QueryPostgres(ctx, r.Postgres, d.Query)
	case BackendSQL:
		if r.SQL == nil {
			return nil, fmt.Errorf("source query %s: sql backend not configured", d.Key)
		}
		return QuerySQL(ctx, r.SQL, d.Query)
	default:
		return nil, fmt.Errorf("source query %s: unknown backend %q", d.Key, d.Backend)
	}
}
