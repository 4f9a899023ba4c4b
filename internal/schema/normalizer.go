// Package schema canonicalizes column names and join-key types.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raaihank/yt-etl/internal/table"
)

// CategoryID is the join key used for enrichment.
const CategoryID = "category_id"

// ErrSchemaConflict is returned when two raw columns normalize to one name.
var ErrSchemaConflict = errors.New("schema conflict")

// ConflictError names the colliding columns.
type ConflictError struct {
	Name    string
	Columns []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("columns %q all normalize to %q", e.Columns, e.Name)
}

func (e *ConflictError) Unwrap() error { return ErrSchemaConflict }

// NormalizeName trims, replaces spaces with underscores and lower-cases.
func NormalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}

// Normalize returns a table with canonical column names and a text-typed
// category_id. The input table must not be used afterwards.
func Normalize(in *table.Table) (*table.Table, error) {
	owners := make(map[string][]string, in.NumColumns())
	for _, c := range in.Columns() {
		n := NormalizeName(c.Name)
		owners[n] = append(owners[n], c.Name)
	}

	out := table.New(in.NumRows())
	for _, c := range in.Columns() {
		name := NormalizeName(c.Name)
		if raw := owners[name]; len(raw) > 1 {
			return nil, &ConflictError{Name: name, Columns: raw}
		}
		col := table.NewColumn(name, c.Kind, c.Values)
		if name == CategoryID {
			col = stringify(col)
		}
		if err := out.AddColumn(col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// stringify retypes a column as text, keeping each value's exact source
// digits. Missing values stay missing.
func stringify(c *table.Column) *table.Column {
	values := make([]table.Value, len(c.Values))
	for i, v := range c.Values {
		if v.Missing {
			values[i] = table.Missing()
			continue
		}
		values[i] = table.TextValue(strings.TrimSpace(v.Raw))
	}
	return table.NewColumn(c.Name, table.Text, values)
}
