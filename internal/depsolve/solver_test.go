package depsolve

import (
	"testing"

	"hlasm-core/internal/idpool"
)

// constExpr resolves immediately to a fixed absolute value, used to model
// `A EQU 1`.
type constExpr struct{ v int32 }

func (constExpr) Dependencies() []idpool.ID { return nil }
func (e constExpr) Resolve() (ResolveOutcome, error) {
	return ResolveOutcome{IsAbsolute: true, Abs: e.v}, nil
}

// refPlusOne resolves to ref's value + 1 once ref is defined, modeling
// `B EQU A+1`.
type refPlusOne struct {
	ref    idpool.ID
	lookup func(idpool.ID) (int32, bool)
}

func (e *refPlusOne) Dependencies() []idpool.ID {
	if _, ok := e.lookup(e.ref); ok {
		return nil
	}
	return []idpool.ID{e.ref}
}

func (e *refPlusOne) Resolve() (ResolveOutcome, error) {
	v, _ := e.lookup(e.ref)
	return ResolveOutcome{IsAbsolute: true, Abs: v + 1}, nil
}

func TestSimpleSymbolDefinition(t *testing.T) {
	// S1: A EQU 1 \n B EQU A+1
	pool := idpool.New()
	values := map[idpool.ID]int32{}
	s := New(pool, func(name idpool.ID, v int32) { values[name] = v }, nil)

	a := pool.AddString("A")
	b := pool.AddString("B")

	if err := s.Add(a, constExpr{v: 1}); err != nil {
		t.Fatalf("Add(A): %v", err)
	}
	s.MarkDefined(a)

	lookup := func(id idpool.ID) (int32, bool) { v, ok := values[id]; return v, ok }
	if err := s.Add(b, &refPlusOne{ref: a, lookup: lookup}); err != nil {
		t.Fatalf("Add(B): %v", err)
	}

	if values[a] != 1 {
		t.Errorf("A = %d, want 1", values[a])
	}
	if values[b] != 2 {
		t.Errorf("B = %d, want 2", values[b])
	}
}

// mutualRef always depends on another vertex, modeling `A EQU B` / `B EQU A`.
type mutualRef struct{ ref idpool.ID }

func (m mutualRef) Dependencies() []idpool.ID       { return []idpool.ID{m.ref} }
func (m mutualRef) Resolve() (ResolveOutcome, error) { return ResolveOutcome{}, nil }

func TestCycleRejectedWithoutSideEffects(t *testing.T) {
	// S3: A EQU B \n B EQU A
	pool := idpool.New()
	s := New(pool, nil, nil)
	a := pool.AddString("A")
	b := pool.AddString("B")

	if err := s.Add(a, mutualRef{ref: b}); err != nil {
		t.Fatalf("Add(A): %v", err)
	}
	err := s.Add(b, mutualRef{ref: a})
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	if _, ok := err.(ErrCycle); !ok {
		t.Errorf("expected ErrCycle, got %T", err)
	}
	if s.IsDefined(a) || s.IsDefined(b) {
		t.Error("neither symbol should be defined after a rejected cycle")
	}
}

// postponedProbe records whether Recheck ran.
type postponedProbe struct{ ran bool }

func (p *postponedProbe) Recheck() { p.ran = true }

func TestPostponedStatementWaitsThenRechecksOnPropagation(t *testing.T) {
	pool := idpool.New()
	values := map[idpool.ID]int32{}
	s := New(pool, func(name idpool.ID, v int32) { values[name] = v }, nil)

	a := pool.AddString("A")
	x := pool.AddString("X")

	lookup := func(id idpool.ID) (int32, bool) { v, ok := values[id]; return v, ok }
	if err := s.Add(x, &refPlusOne{ref: a, lookup: lookup}); err != nil {
		t.Fatalf("Add(X): %v", err)
	}
	probe := &postponedProbe{}
	s.SetPostponed(x, probe)

	if got := s.CollectUnresolved(); len(got) != 0 {
		t.Fatalf("expected nothing collectible before A is defined, got %d", len(got))
	}

	if err := s.Add(a, constExpr{v: 41}); err != nil {
		t.Fatalf("Add(A): %v", err)
	}
	s.MarkDefined(a)

	if !probe.ran {
		t.Error("expected postponed statement's Recheck to run once X resolved via propagation")
	}
	if values[x] != 42 {
		t.Errorf("X = %d, want 42", values[x])
	}
}

func TestMarkDefinedLeavesNoVertexWithEmptyDepsUndefined(t *testing.T) {
	// §8 invariant 2.
	pool := idpool.New()
	values := map[idpool.ID]int32{}
	s := New(pool, func(name idpool.ID, v int32) { values[name] = v }, nil)

	a := pool.AddString("A")
	b := pool.AddString("B")
	c := pool.AddString("C")
	lookup := func(id idpool.ID) (int32, bool) { v, ok := values[id]; return v, ok }

	if err := s.Add(b, &refPlusOne{ref: a, lookup: lookup}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(c, &refPlusOne{ref: b, lookup: lookup}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(a, constExpr{v: 0}); err != nil {
		t.Fatal(err)
	}
	s.MarkDefined(a)

	for _, name := range []idpool.ID{a, b, c} {
		if !s.IsDefined(name) {
			t.Errorf("%s should be defined after propagation", pool.Name(name))
		}
	}
}
