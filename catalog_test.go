package patcher

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCatalogRegisterAndLookup(t *testing.T) {
	catalog := NewCatalog[Wrapper]()
	if err := catalog.Register("FreeU", passThrough); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, ok := catalog.Lookup("freeu"); !ok {
		t.Fatalf("lookup must be case-insensitive")
	}
	if err := catalog.Register("freeu", passThrough); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if err := catalog.Register("", passThrough); err == nil {
		t.Fatalf("expected empty name to fail")
	}
	if err := catalog.Register("nil", nil); !errors.Is(err, ErrNilCallable) {
		t.Fatalf("expected ErrNilCallable, got %v", err)
	}
	if catalog.Len() != 1 {
		t.Fatalf("expected one entry, got %d", catalog.Len())
	}
}

func TestCatalogNamesSortedAndCloneDetached(t *testing.T) {
	catalog := NewCatalog[Function]()
	_ = catalog.Register("zeta", func(...any) (any, error) { return nil, nil })
	_ = catalog.Register("alpha", func(...any) (any, error) { return nil, nil })

	clone := catalog.Clone()
	_ = clone.Register("beta", func(...any) (any, error) { return nil, nil })

	if diff := cmp.Diff([]string{"alpha", "zeta"}, catalog.Names()); diff != "" {
		t.Fatalf("unexpected names (-want +got):\n%s", diff)
	}
	if clone.Len() != 3 {
		t.Fatalf("expected clone to hold 3 entries, got %d", clone.Len())
	}
}

func TestCatalogNilReceiver(t *testing.T) {
	var catalog *Catalog[Callback]
	if _, ok := catalog.Lookup("x"); ok {
		t.Fatalf("nil catalog must not resolve names")
	}
	if catalog.Len() != 0 || catalog.Names() != nil || catalog.Clone() != nil {
		t.Fatalf("nil catalog accessors must return zero values")
	}
}

func TestCallFunction(t *testing.T) {
	catalog := NewCatalog[Function]()
	_ = catalog.Register("sum", func(args ...any) (any, error) {
		total := 0
		for _, arg := range args {
			total += arg.(int)
		}
		return total, nil
	})
	out, err := CallFunction(catalog, "SUM", 1, 2, 3)
	if err != nil || out != 6 {
		t.Fatalf("unexpected result %v %v", out, err)
	}
	if _, err := CallFunction(catalog, "missing"); err == nil {
		t.Fatalf("expected error for unknown function")
	}
	if _, err := CallFunction(nil, "sum"); err == nil {
		t.Fatalf("expected error for nil catalog")
	}
}
