//go:build property

package cache

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestCacheProperties checks FIFO bookkeeping over random insert sequences.
func TestCacheProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("size never exceeds capacity", prop.ForAll(
		func(capacity int, inserts []int) bool {
			c := New(capacity, fakeFingerprints{})
			for _, i := range inserts {
				c.Put(fmt.Sprintf("p%d", i%7), int64(i), constComponent("x"))
				if c.Len() > capacity {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 20),
		gen.SliceOf(gen.IntRange(0, 50)),
	))

	properties.Property("surviving keys are the newest distinct inserts", prop.ForAll(
		func(capacity int, inserts []int) bool {
			c := New(capacity, fakeFingerprints{})
			var order []Key
			seen := map[Key]bool{}
			for _, i := range inserts {
				k := Key{Path: fmt.Sprintf("p%d", i%5), Fingerprint: int64(i % 3)}
				c.Put(k.Path, k.Fingerprint, constComponent("x"))
				if !seen[k] {
					order = append(order, k)
				}
				seen[k] = true
				// evicted keys can come back as new inserts
				if len(order) > capacity {
					evicted := order[0]
					order = order[1:]
					delete(seen, evicted)
				}
			}
			got := c.keys()
			if len(got) != len(order) {
				return false
			}
			for i := range got {
				if got[i] != order[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 6),
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.Property("lookups never change eviction order", prop.ForAll(
		func(lookups []int) bool {
			c := New(3, fakeFingerprints{})
			c.Put("a", 1, constComponent("a"))
			c.Put("b", 1, constComponent("b"))
			c.Put("c", 1, constComponent("c"))
			names := []string{"a", "b", "c"}
			for _, l := range lookups {
				c.Lookup(Key{Path: names[l%3], Fingerprint: 1})
			}
			c.Put("d", 1, constComponent("d"))
			_, aLeft := c.Lookup(Key{Path: "a", Fingerprint: 1})
			return !aLeft
		},
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.Property("stale sweep keeps only current or newer fingerprints", prop.ForAll(
		func(current int, cached []int) bool {
			fps := fakeFingerprints{"p": int64(current)}
			c := New(len(cached)+1, fps)
			for _, fp := range cached {
				c.Put("p", int64(fp), constComponent("x"))
			}
			c.InvalidateStale()
			for _, k := range c.keys() {
				if k.Fingerprint < int64(current) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 100),
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.TestingRun(t)
}
