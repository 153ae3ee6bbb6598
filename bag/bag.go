// Package bag implements the nested, insertion-ordered key/value store that
// carries hook registrations and free-form options between setup and run
// phases.
//
// A Bag holds three classes of values:
//
//   - nested mappings, always stored as *Bag
//   - ordered sequences, any Go slice except []byte
//   - scalars, everything else (funcs, pointers, structs, strings, numbers)
//
// Merge and Copy never mutate their inputs. Set, Delete and EnsureSub mutate
// the receiver and are not synchronised: populate a bag before sharing it with
// readers, or guard it externally.
package bag

import (
	"iter"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Bag is an insertion-ordered mapping from string keys to values. The zero
// value is an empty bag ready for use.
type Bag struct {
	entries *orderedmap.OrderedMap[string, any]
}

// New returns an empty bag.
func New() *Bag {
	return &Bag{entries: orderedmap.New[string, any]()}
}

// FromMap builds a bag from a plain map. Keys are inserted in sorted order so
// the result is deterministic; nested map[string]any values become nested
// bags.
func FromMap(source map[string]any) *Bag {
	b := New()
	keys := make([]string, 0, len(source))
	for key := range source {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		b.Set(key, source[key])
	}
	return b
}

func (b *Bag) ensure() {
	if b.entries == nil {
		b.entries = orderedmap.New[string, any]()
	}
}

// Len returns the number of top-level keys.
func (b *Bag) Len() int {
	if b == nil || b.entries == nil {
		return 0
	}
	return b.entries.Len()
}

// Get returns the value stored under key.
func (b *Bag) Get(key string) (any, bool) {
	if b == nil || b.entries == nil {
		return nil, false
	}
	return b.entries.Get(key)
}

// Has reports whether key is present.
func (b *Bag) Has(key string) bool {
	_, ok := b.Get(key)
	return ok
}

// Set stores value under key. Existing keys keep their position; new keys are
// appended. map[string]any values are converted into nested bags.
func (b *Bag) Set(key string, value any) {
	if b == nil {
		return
	}
	b.ensure()
	if m, ok := value.(map[string]any); ok {
		value = FromMap(m)
	}
	b.entries.Set(key, value)
}

// Delete removes key and reports whether it was present.
func (b *Bag) Delete(key string) bool {
	if b == nil || b.entries == nil {
		return false
	}
	_, present := b.entries.Delete(key)
	return present
}

// Sub returns the nested bag stored under key, or nil when the key is absent
// or holds a non-mapping value.
func (b *Bag) Sub(key string) *Bag {
	value, ok := b.Get(key)
	if !ok {
		return nil
	}
	sub, _ := value.(*Bag)
	return sub
}

// EnsureSub returns the nested bag under key, creating it when missing. A
// non-mapping value already stored under key is replaced.
func (b *Bag) EnsureSub(key string) *Bag {
	if sub := b.Sub(key); sub != nil {
		return sub
	}
	sub := New()
	b.Set(key, sub)
	return sub
}

// Keys returns the top-level keys in insertion order.
func (b *Bag) Keys() []string {
	if b.Len() == 0 {
		return nil
	}
	keys := make([]string, 0, b.entries.Len())
	for pair := b.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Range calls fn for each entry in insertion order until fn returns false.
func (b *Bag) Range(fn func(key string, value any) bool) {
	if b.Len() == 0 || fn == nil {
		return
	}
	for pair := b.entries.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// All returns an iterator over the entries in insertion order.
func (b *Bag) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		b.Range(yield)
	}
}

// ToMap converts the bag into plain maps. Sequences and scalars are shared
// with the bag; nested bags become nested maps.
func (b *Bag) ToMap() map[string]any {
	out := make(map[string]any, b.Len())
	b.Range(func(key string, value any) bool {
		if sub, ok := value.(*Bag); ok {
			out[key] = sub.ToMap()
			return true
		}
		out[key] = value
		return true
	})
	return out
}
