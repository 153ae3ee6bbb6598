package patcher

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

var catalogIDs atomic.Uint64

// Function is a helper exposed to guard expressions.
type Function func(args ...any) (any, error)

// Catalog maps case-insensitive names to values, typically callables that
// configuration refers to by name. It is safe for concurrent use.
type Catalog[F any] struct {
	mu    sync.RWMutex
	id    uint64
	items map[string]F
}

// NewCatalog constructs an empty catalog.
func NewCatalog[F any]() *Catalog[F] {
	return &Catalog[F]{id: catalogIDs.Add(1), items: make(map[string]F)}
}

// Register stores fn under name, rejecting empty names, nil values and
// duplicates.
func (c *Catalog[F]) Register(name string, fn F) error {
	if name == "" {
		return fmt.Errorf("patcher: catalog name must not be empty")
	}
	if isNil(fn) {
		return fmt.Errorf("%w: %q", ErrNilCallable, name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]F)
	}
	key := strings.ToLower(name)
	if _, exists := c.items[key]; exists {
		return fmt.Errorf("patcher: %q already registered", name)
	}
	c.items[key] = fn
	return nil
}

// Lookup returns the value registered under name.
func (c *Catalog[F]) Lookup(name string) (F, bool) {
	var zero F
	if c == nil {
		return zero, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.items[strings.ToLower(name)]
	if !ok {
		return zero, false
	}
	return fn, true
}

// Names returns registered names sorted alphabetically.
func (c *Catalog[F]) Names() []string {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.items))
	for name := range c.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of entries.
func (c *Catalog[F]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clone returns a shallow copy of the catalog.
func (c *Catalog[F]) Clone() *Catalog[F] {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	clone := &Catalog[F]{id: catalogIDs.Add(1), items: make(map[string]F, len(c.items))}
	for name, fn := range c.items {
		clone.items[name] = fn
	}
	return clone
}

// identity names the catalog and its current contents. Entries are never
// replaced or removed, so the entry count versions a catalog.
func (c *Catalog[F]) identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.id == 0 {
		c.id = catalogIDs.Add(1)
	}
	return fmt.Sprintf("catalog%d.%d", c.id, len(c.items))
}

// CallFunction invokes the guard helper registered under name.
func CallFunction(c *Catalog[Function], name string, args ...any) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("patcher: function catalog is nil")
	}
	fn, ok := c.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("patcher: function %q not registered", name)
	}
	return fn(args...)
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
