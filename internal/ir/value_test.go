package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocSortedKeys(t *testing.T) {
	d := Doc{"zebra": 1, "apple": 2, "banana": 3}
	assert.Equal(t, []string{"apple", "banana", "zebra"}, d.SortedKeys())
}

func TestDocSortedKeysRFC8785Order(t *testing.T) {
	// Uppercase sorts before lowercase; shorter prefix first.
	d := Doc{"a": 1, "A": 2, "aa": 3, "$match": 4}
	assert.Equal(t, []string{"$match", "A", "a", "aa"}, d.SortedKeys())
}

func TestDocCloneIsDeep(t *testing.T) {
	orig := Doc{
		"nested": map[string]any{"x": 1},
		"list":   []any{Doc{"y": 2}},
	}
	c := orig.Clone()

	c["nested"].(Doc)["x"] = 99
	c["list"].([]any)[0].(Doc)["y"] = 99

	assert.Equal(t, 1, orig["nested"].(map[string]any)["x"])
	assert.Equal(t, 2, orig["list"].([]any)[0].(Doc)["y"])
}

func TestDeepMerge(t *testing.T) {
	t.Run("b leaves win", func(t *testing.T) {
		got := DeepMerge(Doc{"a": 1, "b": 2}, Doc{"b": 3, "c": 4})
		assert.Equal(t, Doc{"a": 1, "b": 3, "c": 4}, got)
	})

	t.Run("nested documents merge recursively", func(t *testing.T) {
		a := Doc{"total": Doc{"$sum": "$amount"}, "_id": "$status"}
		b := Doc{"total": map[string]any{"$avg": "$amount"}}
		got := DeepMerge(a, b)
		assert.Equal(t, Doc{"$sum": "$amount", "$avg": "$amount"}, got["total"])
		assert.Equal(t, "$status", got["_id"])
	})

	t.Run("document replaced by scalar", func(t *testing.T) {
		got := DeepMerge(Doc{"x": Doc{"y": 1}}, Doc{"x": 0})
		assert.Equal(t, Doc{"x": 0}, got)
	})

	t.Run("inputs untouched", func(t *testing.T) {
		a := Doc{"x": Doc{"y": 1}}
		b := Doc{"x": Doc{"z": 2}}
		_ = DeepMerge(a, b)
		assert.Equal(t, Doc{"x": Doc{"y": 1}}, a)
		assert.Equal(t, Doc{"x": Doc{"z": 2}}, b)
	})

	t.Run("nil sides", func(t *testing.T) {
		assert.Nil(t, DeepMerge(nil, nil))
		assert.Equal(t, Doc{"a": 1}, DeepMerge(nil, Doc{"a": 1}))
		assert.Equal(t, Doc{"a": 1}, DeepMerge(Doc{"a": 1}, nil))
	})
}

func TestDocLookup(t *testing.T) {
	d := Doc{
		"email":    "a@example.com",
		"customer": map[string]any{"address": Doc{"city": "Hanoi"}},
	}

	v, ok := d.Lookup("email")
	require.True(t, ok)
	assert.Equal(t, "a@example.com", v)

	v, ok = d.Lookup("customer.address.city")
	require.True(t, ok)
	assert.Equal(t, "Hanoi", v)

	_, ok = d.Lookup("customer.phone")
	assert.False(t, ok)

	_, ok = d.Lookup("email.domain")
	assert.False(t, ok)
}
