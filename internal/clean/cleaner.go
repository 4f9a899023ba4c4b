// Package clean removes duplicate and incomplete rows and fills gaps in the
// well-known numeric and text columns.
package clean

import (
	"math"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/raaihank/yt-etl/internal/table"
)

// Config lists the columns each cleaning step applies to. Columns absent
// from a table are ignored.
type Config struct {
	Required        []string `yaml:"required" mapstructure:"required"`
	Numeric         []string `yaml:"numeric" mapstructure:"numeric"`
	Text            []string `yaml:"text" mapstructure:"text"`
	CategoryColumn  string   `yaml:"category_column" mapstructure:"category_column"`
	CategoryDefault string   `yaml:"category_default" mapstructure:"category_default"`
}

// DefaultConfig returns the column sets of the trending-video exports.
func DefaultConfig() Config {
	return Config{
		Required:        []string{"video_id", "title", "channel_title"},
		Numeric:         []string{"views", "likes", "dislikes", "comment_count"},
		Text:            []string{"description", "tags"},
		CategoryColumn:  "category_id",
		CategoryDefault: "unknown",
	}
}

// Stats counts what a Clean call changed.
type Stats struct {
	Duplicates int `json:"duplicates"`
	Dropped    int `json:"dropped"`
	Zeroed     int `json:"zeroed"`
	Filled     int `json:"filled"`
}

// Cleaner applies the cleaning steps in a fixed order: deduplicate, drop
// incomplete rows, zero numerics, fill text, default the category.
type Cleaner struct {
	config Config
	logger *zap.Logger
}

// New creates a cleaner.
func New(config Config, logger *zap.Logger) *Cleaner {
	return &Cleaner{config: config, logger: logger}
}

// Clean mutates t in place and reports what changed.
func (c *Cleaner) Clean(t *table.Table) Stats {
	var stats Stats
	stats.Duplicates = Dedup(t)
	stats.Dropped = DropMissing(t, c.config.Required)
	for _, name := range c.config.Numeric {
		if col, ok := t.Column(name); ok {
			stats.Zeroed += ZeroNumeric(col)
		}
	}
	for _, name := range c.config.Text {
		if col, ok := t.Column(name); ok {
			stats.Filled += FillText(col, "")
		}
	}
	if col, ok := t.Column(c.config.CategoryColumn); ok {
		stats.Filled += FillText(col, c.config.CategoryDefault)
	}

	c.logger.Debug("Table cleaned",
		zap.Int("rows", t.NumRows()),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("dropped", stats.Dropped),
		zap.Int("zeroed", stats.Zeroed),
		zap.Int("filled", stats.Filled))
	return stats
}

// Dedup removes rows equal to an earlier row across all columns and returns
// the number removed. The first occurrence is kept.
func Dedup(t *table.Table) int {
	cols := t.Columns()
	buckets := make(map[uint64][]int, t.NumRows())
	return t.Filter(func(row int) bool {
		h := rowHash(cols, row)
		for _, prev := range buckets[h] {
			if rowsEqual(cols, prev, row) {
				return false
			}
		}
		buckets[h] = append(buckets[h], row)
		return true
	})
}

func rowHash(cols []*table.Column, row int) uint64 {
	h := xxh3.New()
	for _, c := range cols {
		v := c.Values[row]
		if v.Missing {
			h.Write([]byte{0x00})
			continue
		}
		h.Write([]byte{0x01})
		h.WriteString(canonical(c.Kind, v))
		h.Write([]byte{0x1f})
	}
	return h.Sum64()
}

func rowsEqual(cols []*table.Column, a, b int) bool {
	for _, c := range cols {
		va, vb := c.Values[a], c.Values[b]
		if va.Missing != vb.Missing {
			return false
		}
		if !va.Missing && canonical(c.Kind, va) != canonical(c.Kind, vb) {
			return false
		}
	}
	return true
}

// canonical compares numbers by value, text by exact content.
func canonical(kind table.Kind, v table.Value) string {
	switch kind {
	case table.Int:
		return strconv.FormatInt(v.Int, 10)
	case table.Float:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	default:
		return v.Raw
	}
}

// DropMissing removes rows with a missing value in any of the named columns
// that the table has.
func DropMissing(t *table.Table, names []string) int {
	var cols []*table.Column
	for _, name := range names {
		if c, ok := t.Column(name); ok {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return 0
	}
	return t.Filter(func(row int) bool {
		for _, c := range cols {
			if c.Values[row].Missing {
				return false
			}
		}
		return true
	})
}

// ZeroNumeric coerces the column to numbers: values that do not parse become
// missing, and missing becomes zero. It returns how many values were zeroed.
func ZeroNumeric(c *table.Column) int {
	zeroed := 0
	integral := true
	for i, v := range c.Values {
		if !v.Missing && c.Kind == table.Text {
			v = parseNumber(v.Raw)
		}
		if v.Missing {
			v = table.IntValue(0)
			zeroed++
		}
		// Fractions and magnitudes beyond int64 keep the column floating.
		if c.Kind == table.Float || float64(v.Int) != v.Float {
			integral = false
		}
		c.Values[i] = v
	}
	c.Kind = table.Float
	if integral {
		c.Kind = table.Int
	}
	return zeroed
}

// maxInt64Float is 2^63, the first float64 that does not fit an int64.
const maxInt64Float = 1 << 63

func parseNumber(raw string) table.Value {
	s := strings.TrimSpace(raw)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return table.Value{Raw: raw, Int: i, Float: float64(i)}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return table.Missing()
	}
	v := table.Value{Raw: raw, Float: f}
	if math.Abs(f) < maxInt64Float {
		v.Int = int64(f)
	}
	return v
}

// FillText retypes the column as text and replaces missing values with fill.
func FillText(c *table.Column, fill string) int {
	filled := 0
	for i, v := range c.Values {
		if v.Missing {
			c.Values[i] = table.TextValue(fill)
			filled++
		}
	}
	c.Kind = table.Text
	return filled
}
