package decode

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/raaihank/yt-etl/internal/table"
)

const utf8BOM = "\uFEFF"

// naTokens are the cell values read as missing, matching the defaults of
// the dataframe readers these exports are usually produced and consumed by.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsMissingToken reports whether s is read as a missing value.
func IsMissingToken(s string) bool {
	_, ok := naTokens[s]
	return ok
}

// parseCSV turns decoded UTF-8 text into a typed table. A malformed quote or
// a row wider than the header fails the parse; short rows are padded with
// missing values.
func parseCSV(text []byte) (*table.Table, error) {
	r := csv.NewReader(bytes.NewReader(text))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return table.New(0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = columnNames(stripHeaderBOM(header))

	cells := make([][]string, len(header))
	rows := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", rows+1, err)
		}
		if len(record) > len(header) {
			return nil, fmt.Errorf("row %d: expected %d fields, saw %d", rows+1, len(header), len(record))
		}
		for i := range header {
			if i < len(record) {
				cells[i] = append(cells[i], record[i])
			} else {
				cells[i] = append(cells[i], "")
			}
		}
		rows++
	}

	t := table.New(rows)
	for i, name := range header {
		if err := t.AddColumn(inferColumn(name, cells[i])); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// stripHeaderBOM removes a UTF-8 BOM from the first header cell if present.
func stripHeaderBOM(header []string) []string {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	return header
}

// columnNames fills blank header cells and mangles exact repeats so that
// every raw column keeps its own name ("a", "a.1", ...).
func columnNames(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, name := range header {
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		candidate := name
		for n := 1; used[candidate]; n++ {
			candidate = fmt.Sprintf("%s.%d", name, n)
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}

// inferColumn picks the narrowest kind that every present value parses as.
func inferColumn(name string, raw []string) *table.Column {
	kind := table.Int
	present := 0
	for _, s := range raw {
		if IsMissingToken(s) {
			continue
		}
		present++
		v := strings.TrimSpace(s)
		if kind == table.Int {
			if _, err := strconv.ParseInt(v, 10, 64); err == nil {
				continue
			}
			kind = table.Float
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			kind = table.Text
			break
		}
	}
	if present == 0 {
		kind = table.Text
	}

	values := make([]table.Value, len(raw))
	for i, s := range raw {
		if IsMissingToken(s) {
			values[i] = table.Missing()
			continue
		}
		v := table.Value{Raw: s}
		switch kind {
		case table.Int:
			v.Int, _ = strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			v.Float = float64(v.Int)
		case table.Float:
			v.Float, _ = strconv.ParseFloat(strings.TrimSpace(s), 64)
		}
		values[i] = v
	}
	return table.NewColumn(name, kind, values)
}
