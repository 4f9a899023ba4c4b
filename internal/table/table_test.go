package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	t.Run("AddColumn", func(t *testing.T) {
		tbl := New(2)
		require.NoError(t, tbl.AddColumn(NewColumn("a", Text, []Value{TextValue("x"), Missing()})))
		assert.Error(t, tbl.AddColumn(NewColumn("a", Text, []Value{TextValue("y"), TextValue("z")})))
		assert.Error(t, tbl.AddColumn(NewColumn("b", Int, []Value{IntValue(1)})))
		assert.Equal(t, []string{"a"}, tbl.Names())
	})

	t.Run("SetColumnReplaces", func(t *testing.T) {
		tbl := New(1)
		require.NoError(t, tbl.AddColumn(NewColumn("a", Text, []Value{TextValue("x")})))
		require.NoError(t, tbl.SetColumn(NewColumn("a", Int, []Value{IntValue(7)})))
		c, ok := tbl.Column("a")
		require.True(t, ok)
		assert.Equal(t, Int, c.Kind)
		assert.Equal(t, 1, tbl.NumColumns())
	})

	t.Run("Filter", func(t *testing.T) {
		tbl := New(3)
		require.NoError(t, tbl.AddColumn(NewColumn("n", Int, []Value{IntValue(1), IntValue(2), IntValue(3)})))
		require.NoError(t, tbl.AddColumn(NewColumn("s", Text, []Value{TextValue("a"), TextValue("b"), TextValue("c")})))

		removed := tbl.Filter(func(row int) bool { return row != 1 })
		assert.Equal(t, 1, removed)
		assert.Equal(t, 2, tbl.NumRows())
		assert.Equal(t, []Value{IntValue(3), TextValue("c")}, tbl.Row(1))
	})

	t.Run("ValueString", func(t *testing.T) {
		assert.Equal(t, "", Missing().String())
		assert.Equal(t, "007", TextValue("007").String())
		assert.Equal(t, "2.5", FloatValue(2.5).String())
		assert.Equal(t, "42", IntValue(42).String())
	})
}
