package ordsym

import (
	"testing"

	"hlasm-core/internal/idpool"
)

func TestAddressAddSubIsIdentity(t *testing.T) {
	// §8 invariant 5: (addr + addr2) - addr2 is an identity when the
	// intermediate result owns no freshly-resolved spaces.
	pool := idpool.New()
	csect := pool.AddString("CSECT")
	a := NewAddress(csect, 10)
	b := NewAddress(csect, 5)

	sum := a.Add(b)
	back := sum.Sub(b)

	if back.Offset != a.Offset {
		t.Errorf("offset: got %d want %d", back.Offset, a.Offset)
	}
	if len(back.Bases) != len(a.Bases) {
		t.Fatalf("bases: got %v want %v", back.Bases, a.Bases)
	}
	for i := range back.Bases {
		if back.Bases[i] != a.Bases[i] {
			t.Errorf("base %d: got %v want %v", i, back.Bases[i], a.Bases[i])
		}
	}
}

func TestAddressZeroCoefficientsAreCulled(t *testing.T) {
	pool := idpool.New()
	csect := pool.AddString("CSECT")
	a := NewAddress(csect, 0)
	b := NewAddress(csect, 0)
	diff := a.Sub(b)
	if len(diff.Bases) != 0 {
		t.Errorf("expected zero-coefficient base to be culled, got %v", diff.Bases)
	}
}

func TestSpaceResolvePropagatesToListenersAndStorage(t *testing.T) {
	pool := idpool.New()
	reg := NewSpaceRegistry(pool)
	csect, _ := reg.NewSection(pool.AddString("CSECT"), SectionExecutable)
	lc := reg.NewLocationCounter(csect, pool.AddString("CSECT"))

	space := reg.RegisterSpace(lc)
	addr := NewAddress(idpool.Empty, 0, SpaceTerm{Space: space, Coef: 1})
	aid := reg.StoreAddress(addr)

	sp := reg.Space(space)
	if _, ok := sp.Listeners[aid]; !ok {
		t.Fatal("invariant 1 violated: address referencing the space is not in its listener set")
	}

	before := reg.LocationCounter(lc).Storage()
	reg.Resolve(space, 8)
	after := reg.LocationCounter(lc).Storage()
	if after != before+8 {
		t.Errorf("storage after resolve: got %d want %d", after, before+8)
	}

	got := reg.Address(aid)
	if len(got.Spaces) != 0 {
		t.Errorf("resolved space should be erased from the listener's spaces, got %v", got.Spaces)
	}
	if got.Offset != 8 {
		t.Errorf("offset after resolve: got %d want 8", got.Offset)
	}

	sp = reg.Space(space)
	if len(sp.Listeners) != 0 {
		t.Error("space should have no listeners once resolved")
	}
}

func TestSpaceResolveToZeroLeavesCountersUnchanged(t *testing.T) {
	// §8 invariant 10.
	pool := idpool.New()
	reg := NewSpaceRegistry(pool)
	csect, _ := reg.NewSection(pool.AddString("CSECT"), SectionExecutable)
	lc := reg.NewLocationCounter(csect, pool.AddString("CSECT"))
	space := reg.RegisterSpace(lc)
	addr := NewAddress(idpool.Empty, 3, SpaceTerm{Space: space, Coef: 1})
	aid := reg.StoreAddress(addr)

	before := reg.LocationCounter(lc).Storage()
	reg.Resolve(space, 0)
	after := reg.LocationCounter(lc).Storage()
	if after != before {
		t.Errorf("storage changed on zero-length resolve: %d -> %d", before, after)
	}
	if got := reg.Address(aid); got.Offset != 3 {
		t.Errorf("offset changed on zero-length resolve: got %d want 3", got.Offset)
	}
}

func TestFinishModuleLayoutResolvesInterCounterDistances(t *testing.T) {
	// Mirrors S2: a non-starting location counter's base space becomes the
	// accumulated storage of its predecessors.
	pool := idpool.New()
	reg := NewSpaceRegistry(pool)
	sect, _ := reg.NewSection(pool.AddString("CSECT"), SectionExecutable)
	first := reg.NewLocationCounter(sect, pool.AddString("CSECT"))
	reg.Reserve(first, 12, Boundary(0))

	second := reg.NewLocationCounter(sect, pool.AddString("DATA"))
	addrInSecond := reg.Reserve(second, 4, Boundary(0))
	aid := reg.StoreAddress(addrInSecond)

	reg.FinishModuleLayout()

	got := reg.Address(aid)
	if len(got.Spaces) != 0 {
		t.Fatalf("expected the base space to be resolved after FinishModuleLayout, got %+v", got)
	}
	if got.Offset != 12 {
		t.Errorf("offset: got %d want 12 (12 bytes reserved in the first counter)", got.Offset)
	}
}

func TestReserveAlignsStorage(t *testing.T) {
	pool := idpool.New()
	reg := NewSpaceRegistry(pool)
	sect, _ := reg.NewSection(pool.AddString("CSECT"), SectionExecutable)
	lc := reg.NewLocationCounter(sect, pool.AddString("CSECT"))

	reg.Reserve(lc, 1, Boundary(0)) // storage = 1
	addr := reg.Reserve(lc, 4, Boundary(2)) // align to 4 bytes -> storage jumps to 4
	if addr.Offset != 4 {
		t.Errorf("aligned offset: got %d want 4", addr.Offset)
	}
}
