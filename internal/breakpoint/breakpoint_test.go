package breakpoint

import (
	"errors"
	"testing"
)

func TestBreakpointAcceptsAddressTypes(t *testing.T) {
	r := NewRegistry()
	if err := r.Breakpoint(uint64(0x401000), func(*Context) {}); err != nil {
		t.Fatalf("uint64 address: %v", err)
	}
	if err := r.Breakpoint(0x402000, func(*Context) {}); err != nil {
		t.Fatalf("int address: %v", err)
	}
	if err := r.Breakpoint("main", func(*Context) {}); err != nil {
		t.Fatalf("symbol name: %v", err)
	}
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
}

func TestBreakpointRejectsUnsupportedType(t *testing.T) {
	r := NewRegistry()
	if err := r.Breakpoint(3.14, func(*Context) {}); err == nil {
		t.Fatal("expected an error for a float address")
	}
}

func TestResolveAddressesPassThroughUnchanged(t *testing.T) {
	r := NewRegistry()
	r.Breakpoint(uint64(0x401000), func(*Context) {})

	installed, err := r.Resolve(func(string) (uint64, error) {
		t.Fatal("resolver should not be called for an already-resolved address")
		return 0, nil
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(installed) != 1 || installed[0].Addr != 0x401000 {
		t.Fatalf("installed = %+v", installed)
	}
}

func TestResolveSymbolUsesResolver(t *testing.T) {
	r := NewRegistry()
	r.Breakpoint("factorial", func(*Context) {})

	installed, err := r.Resolve(func(name string) (uint64, error) {
		if name != "factorial" {
			t.Fatalf("resolver called with %q, want %q", name, "factorial")
		}
		return 0x4010a0, nil
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(installed) != 1 || installed[0].Addr != 0x4010a0 {
		t.Fatalf("installed = %+v", installed)
	}
}

func TestResolveFailsOnUnknownSymbol(t *testing.T) {
	r := NewRegistry()
	r.Breakpoint("missing", func(*Context) {})

	_, err := r.Resolve(func(string) (uint64, error) {
		return 0, errors.New("symbol not found")
	})
	if err == nil {
		t.Fatal("expected Resolve to propagate the resolver's error")
	}
}
