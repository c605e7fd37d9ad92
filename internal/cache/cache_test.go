package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/jsxsite/internal/types"
)

type fakeFingerprints map[string]int64

func (f fakeFingerprints) Fingerprint(path string) int64 { return f[path] }

func constComponent(out string) types.Component {
	return types.ComponentFunc(func(map[string]any) (string, error) { return out, nil })
}

func render(t *testing.T, c types.Component) string {
	t.Helper()
	out, err := c.Render(nil)
	require.NoError(t, err)
	return out
}

func TestGetUsesCurrentFingerprint(t *testing.T) {
	fps := fakeFingerprints{"a.jsx": 10}
	c := New(4, fps)

	c.Put("a.jsx", 10, constComponent("v1"))

	got, ok := c.Get("a.jsx")
	require.True(t, ok)
	assert.Equal(t, "v1", render(t, got))

	fps["a.jsx"] = 11
	_, ok = c.Get("a.jsx")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate(), 0.0001)
}

func TestSamePathDifferentFingerprintsAreDistinct(t *testing.T) {
	c := New(4, fakeFingerprints{})

	c.Put("a.jsx", 1, constComponent("old"))
	c.Put("a.jsx", 2, constComponent("new"))

	assert.Equal(t, 2, c.Len())
	old, ok := c.Lookup(Key{Path: "a.jsx", Fingerprint: 1})
	require.True(t, ok)
	assert.Equal(t, "old", render(t, old))
	cur, ok := c.Lookup(Key{Path: "a.jsx", Fingerprint: 2})
	require.True(t, ok)
	assert.Equal(t, "new", render(t, cur))
}

func TestFIFOEviction(t *testing.T) {
	c := New(3, fakeFingerprints{})

	c.Put("a", 1, constComponent("a"))
	c.Put("b", 1, constComponent("b"))
	c.Put("c", 1, constComponent("c"))

	// lookups never reorder
	_, ok := c.Lookup(Key{"a", 1})
	require.True(t, ok)

	c.Put("d", 1, constComponent("d"))

	_, ok = c.Lookup(Key{"a", 1})
	assert.False(t, ok, "oldest inserted entry is evicted even after a hit")
	assert.Equal(t, []Key{{"b", 1}, {"c", 1}, {"d", 1}}, c.keys())
	assert.Equal(t, int64(1), c.Stats().Evictions)
	assert.Equal(t, 3, c.Len())
}

func TestPutExistingKeyKeepsPosition(t *testing.T) {
	c := New(2, fakeFingerprints{})

	c.Put("a", 1, constComponent("a1"))
	c.Put("b", 1, constComponent("b"))
	c.Put("a", 1, constComponent("a2"))

	assert.Equal(t, []Key{{"a", 1}, {"b", 1}}, c.keys())
	got, ok := c.Lookup(Key{"a", 1})
	require.True(t, ok)
	assert.Equal(t, "a2", render(t, got))

	c.Put("c", 1, constComponent("c"))
	assert.Equal(t, []Key{{"b", 1}, {"c", 1}}, c.keys())
}

func TestCapacityFloor(t *testing.T) {
	c := New(0, fakeFingerprints{})
	assert.Equal(t, 1, c.capacity)

	c.Put("a", 1, constComponent("a"))
	c.Put("b", 1, constComponent("b"))
	assert.Equal(t, []Key{{"b", 1}}, c.keys())
}

func TestInvalidateStale(t *testing.T) {
	fps := fakeFingerprints{"a": 5, "b": 5, "c": 5}
	c := New(10, fps)

	c.Put("a", 3, constComponent("a3"))
	c.Put("a", 5, constComponent("a5"))
	c.Put("b", 4, constComponent("b4"))
	c.Put("c", 5, constComponent("c5"))
	// newer than the current fingerprint: kept
	c.Put("c", 9, constComponent("c9"))

	dropped := c.InvalidateStale()

	assert.Equal(t, 2, dropped)
	assert.Equal(t, []Key{{"a", 5}, {"c", 5}, {"c", 9}}, c.keys())
	assert.Equal(t, int64(2), c.Stats().StaleDrops)
	assert.Equal(t, 0, c.InvalidateStale())
}

func TestRemoveAndClear(t *testing.T) {
	c := New(10, fakeFingerprints{})
	for i := 0; i < 3; i++ {
		c.Put("a", int64(i), constComponent(fmt.Sprint(i)))
	}
	c.Put("b", 1, constComponent("b"))

	assert.Equal(t, 3, c.Remove("a"))
	assert.Equal(t, []Key{{"b", 1}}, c.keys())

	_, _ = c.Lookup(Key{"b", 1})
	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.keys())
	assert.Equal(t, Stats{}, c.Stats())

	c.Put("z", 1, constComponent("z"))
	assert.Equal(t, 1, c.Len())
}
