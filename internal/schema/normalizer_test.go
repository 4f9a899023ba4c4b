package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/yt-etl/internal/table"
)

func buildTable(t *testing.T, rows int, cols ...*table.Column) *table.Table {
	t.Helper()
	tbl := table.New(rows)
	for _, c := range cols {
		require.NoError(t, tbl.AddColumn(c))
	}
	return tbl
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		" Video ID ":    "video_id",
		"Channel Title": "channel_title",
		"views":         "views",
		"Comment Count": "comment_count",
	}
	for in, want := range cases {
		got := NormalizeName(in)
		assert.Equal(t, want, got, in)
		assert.Equal(t, got, NormalizeName(got), "normalizing twice must be stable")
	}
}

func TestNormalize(t *testing.T) {
	t.Run("RenamesColumns", func(t *testing.T) {
		in := buildTable(t, 1,
			table.NewColumn(" Video ID", table.Text, []table.Value{table.TextValue("a")}),
			table.NewColumn("Views", table.Int, []table.Value{table.IntValue(3)}),
		)
		out, err := Normalize(in)
		require.NoError(t, err)
		assert.Equal(t, []string{"video_id", "views"}, out.Names())

		views, _ := out.Column("views")
		assert.Equal(t, table.Int, views.Kind)
	})

	t.Run("Idempotent", func(t *testing.T) {
		in := buildTable(t, 0, table.NewColumn("Channel Title", table.Text, nil))
		once, err := Normalize(in)
		require.NoError(t, err)
		twice, err := Normalize(once)
		require.NoError(t, err)
		assert.Equal(t, once.Names(), twice.Names())
	})

	t.Run("Conflict", func(t *testing.T) {
		in := buildTable(t, 0,
			table.NewColumn("Video ID", table.Text, nil),
			table.NewColumn("video_id", table.Text, nil),
		)
		_, err := Normalize(in)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrSchemaConflict))

		var conflict *ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, "video_id", conflict.Name)
		assert.ElementsMatch(t, []string{"Video ID", "video_id"}, conflict.Columns)
	})

	t.Run("CategoryIDBecomesText", func(t *testing.T) {
		in := buildTable(t, 3, table.NewColumn("Category ID", table.Int, []table.Value{
			{Raw: "010", Int: 10, Float: 10},
			table.IntValue(24),
			table.Missing(),
		}))
		out, err := Normalize(in)
		require.NoError(t, err)

		c, ok := out.Column(CategoryID)
		require.True(t, ok)
		assert.Equal(t, table.Text, c.Kind)
		assert.Equal(t, "010", c.Values[0].Raw)
		assert.Equal(t, "24", c.Values[1].Raw)
		assert.True(t, c.Values[2].Missing)
	})
}
