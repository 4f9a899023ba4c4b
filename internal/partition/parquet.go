package partition

import (
	"bytes"
	"fmt"

	"github.com/segmentio/parquet-go"

	"github.com/raaihank/yt-etl/internal/table"
)

// schemaOf maps table columns to optional parquet leaves.
func schemaOf(t *table.Table) *parquet.Schema {
	group := make(parquet.Group, t.NumColumns())
	for _, c := range t.Columns() {
		var node parquet.Node
		switch c.Kind {
		case table.Int:
			node = parquet.Leaf(parquet.Int64Type)
		case table.Float:
			node = parquet.Leaf(parquet.DoubleType)
		default:
			node = parquet.String()
		}
		group[c.Name] = parquet.Optional(node)
	}
	return parquet.NewSchema("trending", group)
}

// Encode renders t as a snappy compressed parquet file.
func Encode(t *table.Table) ([]byte, error) {
	schema := schemaOf(t)

	// Group fields are ordered by name; leaf column indexes follow that order.
	fields := schema.Fields()
	cols := make([]*table.Column, len(fields))
	for i, f := range fields {
		c, ok := t.Column(f.Name())
		if !ok {
			return nil, fmt.Errorf("column %q missing from table", f.Name())
		}
		cols[i] = c
	}

	rows := make([]parquet.Row, t.NumRows())
	for r := range rows {
		row := make(parquet.Row, len(cols))
		for i, c := range cols {
			row[i] = cellValue(c.Kind, c.Values[r]).Level(0, 1, i)
			if c.Values[r].Missing {
				row[i] = parquet.NullValue().Level(0, 0, i)
			}
		}
		rows[r] = row
	}

	var buf bytes.Buffer
	w := parquet.NewWriter(&buf, schema, parquet.Compression(&parquet.Snappy))
	if _, err := w.WriteRows(rows); err != nil {
		return nil, fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func cellValue(kind table.Kind, v table.Value) parquet.Value {
	switch kind {
	case table.Int:
		return parquet.Int64Value(v.Int)
	case table.Float:
		return parquet.DoubleValue(v.Float)
	default:
		return parquet.ByteArrayValue([]byte(v.Raw))
	}
}
