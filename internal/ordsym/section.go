package ordsym

import "hlasm-core/internal/idpool"

// SectionKind classifies a section (§3.3).
type SectionKind int

const (
	SectionExecutable SectionKind = iota
	SectionReadOnly
	SectionDummy
	SectionCommon
	SectionExternal
)

// SectionID identifies a Section within a SpaceRegistry.
type SectionID uint32

// Section is a named ordered sequence of location counters (§3.3).
type Section struct {
	ID      SectionID
	Name    idpool.ID
	Kind    SectionKind
	LocCtrs []LocCtrID
}

// LocCtrID identifies a LocationCounter within a SpaceRegistry.
type LocCtrID uint32

// Alignment is a power-of-two byte alignment boundary.
type Alignment uint8

// Boundary builds an Alignment for a given power of two (e.g. Boundary(3)
// aligns to 8 bytes), matching §4.C's {byte, boundary} alignment kinds: byte
// alignment is Boundary(0).
func Boundary(pow uint8) Alignment { return Alignment(pow) }

// LocationCounter is a cursor within a section (§3.3): it exposes Storage()
// (bytes reserved so far, including resolved space lengths) and an ordered
// list of spaces it owns.
type LocationCounter struct {
	ID      LocCtrID
	Name    idpool.ID
	Section SectionID
	storage int32
	Spaces  []SpaceID
	// BaseSpace is the unknown distance from the section's origin that every
	// non-starting location counter owns (§3.3); zero-value SpaceID with
	// hasBaseSpace=false for a starting counter.
	BaseSpace    SpaceID
	hasBaseSpace bool
}

// Storage reports the bytes reserved in this location counter so far.
func (lc *LocationCounter) Storage() int32 { return lc.storage }

func (r *SpaceRegistry) locCtr(id LocCtrID) *LocationCounter { return r.locCtrs[id] }

// LocationCounter exposes a LocationCounter for read access.
func (r *SpaceRegistry) LocationCounter(id LocCtrID) *LocationCounter { return r.locCtrs[id] }

// Section exposes a Section for read access.
func (r *SpaceRegistry) Section(id SectionID) *Section { return r.sectionByID[id] }

// NewSection creates (or reuses) a section by name+kind and returns its ID
// plus whether a new section was created (§4.E set_section reuse rule).
func (r *SpaceRegistry) NewSection(name idpool.ID, kind SectionKind) (SectionID, bool) {
	key := sectionKey{Name: name, Kind: kind}
	if s, ok := r.sections[key]; ok {
		return s.ID, false
	}
	id := SectionID(len(r.sectionByID))
	s := &Section{ID: id, Name: name, Kind: kind}
	r.sections[key] = s
	r.sectionByID = append(r.sectionByID, s)
	return id, true
}

// NewLocationCounter appends a fresh location counter to section. The first
// counter added to a section is the "starting" one and owns no base space;
// every subsequent counter owns exactly one base space representing the
// unknown distance from the section's origin (§3.3).
func (r *SpaceRegistry) NewLocationCounter(section SectionID, name idpool.ID) LocCtrID {
	id := LocCtrID(len(r.locCtrs))
	lc := &LocationCounter{ID: id, Name: name, Section: section}
	r.locCtrs = append(r.locCtrs, lc)

	s := r.sectionByID[section]
	if len(s.LocCtrs) > 0 {
		lc.BaseSpace = r.NewSpace(id)
		lc.hasBaseSpace = true
	}
	s.LocCtrs = append(s.LocCtrs, id)
	return id
}

// RegisterSpace appends a fresh space to lc and returns its handle (§4.C
// loctr::register_space).
func (r *SpaceRegistry) RegisterSpace(lc LocCtrID) SpaceID {
	id := r.NewSpace(lc)
	r.locCtr(lc).Spaces = append(r.locCtr(lc).Spaces, id)
	return id
}

// Reserve rounds storage up to align, advances it by length bytes, and
// returns the address of the first reserved byte (§4.C loctr::reserve). The
// returned address carries the location counter's still-pending spaces so
// that later resolution is reflected in it automatically.
func (r *SpaceRegistry) Reserve(lc LocCtrID, length int32, align Alignment) Address {
	c := r.locCtr(lc)
	mask := int32(1)<<align - 1
	c.storage = (c.storage + mask) &^ mask

	addr := r.baseAddress(lc)
	for _, sp := range c.Spaces {
		if !r.space(sp).Resolved {
			addr.Spaces = append(addr.Spaces, SpaceTerm{Space: sp, Coef: 1})
		}
	}
	addr = addr.AddConst(c.storage)
	c.storage += length
	return addr
}

// baseAddress builds the address of location counter lc's current origin in
// terms of its section's symbol plus any unresolved base space.
func (r *SpaceRegistry) baseAddress(lc LocCtrID) Address {
	c := r.locCtr(lc)
	sect := r.sectionByID[c.Section]
	addr := NewAddress(sect.Name, 0)
	if c.hasBaseSpace {
		addr.Spaces = append(addr.Spaces, SpaceTerm{Space: c.BaseSpace, Coef: 1})
	}
	return addr.normalize()
}

// FinishModuleLayout resolves the base space of every non-starting location
// counter to the accumulated storage of its predecessors within the same
// section (§4.E finish_module_layout): this is the point inter-counter
// distances become known.
func (r *SpaceRegistry) FinishModuleLayout() {
	for _, s := range r.sectionByID {
		var accumulated int32
		for i, lcID := range s.LocCtrs {
			lc := r.locCtr(lcID)
			// Read before Resolve, which adds the base space's length to
			// this counter's own storage.
			own := lc.Storage()
			if i > 0 {
				r.Resolve(lc.BaseSpace, accumulated)
			}
			accumulated += own
		}
	}
}
