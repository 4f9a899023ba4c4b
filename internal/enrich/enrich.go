// Package enrich joins decoded tables with category reference data.
package enrich

import (
	"github.com/raaihank/yt-etl/internal/reference"
	"github.com/raaihank/yt-etl/internal/schema"
	"github.com/raaihank/yt-etl/internal/table"
)

const (
	// CategoryName is the column added by Enrich.
	CategoryName = "category_name"
	// Unknown is the title used when an id has no mapping.
	Unknown = "Unknown"
)

// Enrich sets the category_name column from m, replacing any existing one.
// Rows with a missing or unmapped category id, and tables with no
// category_id column, get Unknown. It returns the number of rows matched.
func Enrich(t *table.Table, m reference.Map) (int, error) {
	values := make([]table.Value, t.NumRows())
	matched := 0

	ids, ok := t.Column(schema.CategoryID)
	for i := range values {
		name := Unknown
		if ok && !ids.Values[i].Missing {
			if title, found := m[ids.Values[i].Raw]; found {
				name = title
				matched++
			}
		}
		values[i] = table.TextValue(name)
	}

	return matched, t.SetColumn(table.NewColumn(CategoryName, table.Text, values))
}
