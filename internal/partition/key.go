// Package partition writes cleaned tables into the hive-partitioned output
// dataset.
package partition

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Key identifies one output partition.
type Key struct {
	Country string
	Year    int
	Month   int
}

// KeyFor derives the partition of a file processed at now. Dates inside the
// data never influence it.
func KeyFor(country string, now time.Time) Key {
	now = now.UTC()
	return Key{
		Country: strings.ToUpper(country),
		Year:    now.Year(),
		Month:   int(now.Month()),
	}
}

// Prefix returns the partition directory under processedPrefix, with a
// trailing slash.
func (k Key) Prefix(processedPrefix string) string {
	dir := fmt.Sprintf("country=%s/year=%d/month=%d", k.Country, k.Year, k.Month)
	return path.Join(processedPrefix, dir) + "/"
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d-%02d", k.Country, k.Year, k.Month)
}
