// Package ordsym implements the relocatable address algebra and the
// ordinary-symbol/section/location-counter context (§3.3, §3.4, §4.C, §4.E).
package ordsym

import "hlasm-core/internal/idpool"

// BaseTerm is one (section-or-base-symbol, coefficient) pair in an address's
// base sum (§3.3).
type BaseTerm struct {
	Base idpool.ID
	Coef int32
}

// SpaceTerm is one (space, coefficient) pair in an address's space sum.
type SpaceTerm struct {
	Space SpaceID
	Coef  int32
}

// Address is a relocatable value: a sum of bases, a constant offset, and a
// sum of unresolved spaces (§3.3).
//
//	(∑ cᵢ·Baseᵢ, constant_offset, ∑ dⱼ·Spaceⱼ)
type Address struct {
	Bases   []BaseTerm
	Offset  int32
	Spaces  []SpaceTerm
}

// NewAddress builds an Address with a single base at coefficient 1 and the
// given offset, the shape `loctr.reserve` hands back for a freshly allocated
// byte.
func NewAddress(base idpool.ID, offset int32, spaces ...SpaceTerm) Address {
	a := Address{Offset: offset}
	if base != idpool.Empty {
		a.Bases = []BaseTerm{{Base: base, Coef: 1}}
	}
	a.Spaces = append(a.Spaces, spaces...)
	return a.normalize()
}

// IsAbsolute reports whether a resolves to a plain integer: no bases, no
// unresolved spaces.
func (a Address) IsAbsolute() bool { return len(a.Bases) == 0 && len(a.Spaces) == 0 }

// Add returns a+b, merging base and space sums componentwise and culling
// zero-coefficient terms (§4.C).
func (a Address) Add(b Address) Address {
	return Address{
		Bases:  mergeBases(a.Bases, b.Bases, 1),
		Offset: a.Offset + b.Offset,
		Spaces: mergeSpaces(a.Spaces, b.Spaces, 1),
	}.normalize()
}

// Sub returns a-b.
func (a Address) Sub(b Address) Address {
	return Address{
		Bases:  mergeBases(a.Bases, b.Bases, -1),
		Offset: a.Offset - b.Offset,
		Spaces: mergeSpaces(a.Spaces, b.Spaces, -1),
	}.normalize()
}

// Neg returns -a.
func (a Address) Neg() Address {
	return Address{}.Sub(a)
}

// AddConst returns ashifted by a plain integer offset.
func (a Address) AddConst(n int32) Address {
	a.Offset += n
	return a.normalize()
}

// normalize culls zero-coefficient terms, keeping the rest in the order they
// were first seen (deterministic diagnostics per §4.D's tie-break rule).
func (a Address) normalize() Address {
	out := Address{Offset: a.Offset}
	for _, t := range a.Bases {
		if t.Coef != 0 {
			out.Bases = append(out.Bases, t)
		}
	}
	for _, t := range a.Spaces {
		if t.Coef != 0 {
			out.Spaces = append(out.Spaces, t)
		}
	}
	return out
}

func mergeBases(a, b []BaseTerm, bSign int32) []BaseTerm {
	idx := make(map[idpool.ID]int, len(a)+len(b))
	out := make([]BaseTerm, 0, len(a)+len(b))
	add := func(base idpool.ID, coef int32) {
		if i, ok := idx[base]; ok {
			out[i].Coef += coef
			return
		}
		idx[base] = len(out)
		out = append(out, BaseTerm{Base: base, Coef: coef})
	}
	for _, t := range a {
		add(t.Base, t.Coef)
	}
	for _, t := range b {
		add(t.Base, t.Coef*bSign)
	}
	return out
}

func mergeSpaces(a, b []SpaceTerm, bSign int32) []SpaceTerm {
	idx := make(map[SpaceID]int, len(a)+len(b))
	out := make([]SpaceTerm, 0, len(a)+len(b))
	add := func(space SpaceID, coef int32) {
		if i, ok := idx[space]; ok {
			out[i].Coef += coef
			return
		}
		idx[space] = len(out)
		out = append(out, SpaceTerm{Space: space, Coef: coef})
	}
	for _, t := range a {
		add(t.Space, t.Coef)
	}
	for _, t := range b {
		add(t.Space, t.Coef*bSign)
	}
	return out
}
