package ordsym

import "hlasm-core/internal/idpool"

// SpaceID identifies a Space within a SpaceRegistry (§9: an arena of
// addresses/spaces indexed by integer ID, replacing the source's raw
// back-pointers).
type SpaceID uint32

// AddressID identifies an Address stored in the arena so that spaces can
// find and update their listeners without raw pointers.
type AddressID uint32

// Space is an unresolved length contributor (§3.3). Listeners is the
// inverse index: every AddressID whose space-sum currently mentions this
// space with a non-zero coefficient.
type Space struct {
	ID        SpaceID
	Name      idpool.ID
	Owner     LocCtrID
	Resolved  bool
	Length    int32
	Listeners map[AddressID]struct{}
}

// SpaceRegistry owns the arena of Addresses and Spaces for one analysis
// context, and is the sole place that may mutate listener sets (§4.C
// "Listener discipline"). It must not be shared across goroutines (§5, §9).
type SpaceRegistry struct {
	pool *idpool.Pool

	spaces  []*Space
	addrs   map[AddressID]Address
	nextAID AddressID

	locCtrs     []*LocationCounter
	sections    map[sectionKey]*Section
	sectionByID []*Section
}

type sectionKey struct {
	Name idpool.ID
	Kind SectionKind
}

// NewSpaceRegistry creates an empty registry backed by pool for identifier
// handles.
func NewSpaceRegistry(pool *idpool.Pool) *SpaceRegistry {
	return &SpaceRegistry{
		pool:     pool,
		addrs:    make(map[AddressID]Address),
		sections: make(map[sectionKey]*Section),
	}
}

// NewSpace allocates a fresh, unresolved space owned by loctr and returns its
// ID (§4.C loctr::register_space).
func (r *SpaceRegistry) NewSpace(owner LocCtrID) SpaceID {
	id := SpaceID(len(r.spaces))
	r.spaces = append(r.spaces, &Space{
		ID:        id,
		Name:      r.pool.FreshSpaceName(),
		Owner:     owner,
		Listeners: make(map[AddressID]struct{}),
	})
	return id
}

func (r *SpaceRegistry) space(id SpaceID) *Space { return r.spaces[id] }

// Space exposes the Space value for read-only inspection (e.g. reporting).
func (r *SpaceRegistry) Space(id SpaceID) Space { return *r.spaces[id] }

// StoreAddress registers addr in the arena, recording it as a listener of
// every space it references with a non-zero coefficient, and returns its ID.
func (r *SpaceRegistry) StoreAddress(addr Address) AddressID {
	id := r.nextAID
	r.nextAID++
	r.addrs[id] = addr
	r.addListeners(id, addr)
	return id
}

// Address returns the current value of a stored address.
func (r *SpaceRegistry) Address(id AddressID) Address { return r.addrs[id] }

// UpdateAddress replaces the stored value for id, re-pointing listener sets
// atomically (§3.3 "Move and copy of addresses maintain the listener set
// exactly").
func (r *SpaceRegistry) UpdateAddress(id AddressID, addr Address) {
	old := r.addrs[id]
	r.removeListeners(id, old)
	r.addrs[id] = addr
	r.addListeners(id, addr)
}

// RemoveAddress forgets a stored address and un-registers it from every
// space's listener set.
func (r *SpaceRegistry) RemoveAddress(id AddressID) {
	old := r.addrs[id]
	r.removeListeners(id, old)
	delete(r.addrs, id)
}

func (r *SpaceRegistry) addListeners(id AddressID, addr Address) {
	for _, t := range addr.Spaces {
		if t.Coef != 0 {
			r.space(t.Space).Listeners[id] = struct{}{}
		}
	}
}

func (r *SpaceRegistry) removeListeners(id AddressID, addr Address) {
	for _, t := range addr.Spaces {
		delete(r.space(t.Space).Listeners, id)
	}
}

// ResolveResult reports what happened to one listener address when a space
// resolved, so callers (the dependency solver, §4.D) can react per-listener.
type ResolveResult struct {
	Address AddressID
	New     Address
}

// Resolve marks space as resolved at the given length and propagates the
// resolution to every listener: for each, the space term is erased and
// length*coefficient is folded into the listener's constant offset. The
// owning location counter's storage is then advanced by length (§4.C
// space::resolve). length must be >= 0; callers are responsible for the
// diagnostic described in §4.D step 2 when a computed length is negative.
func (r *SpaceRegistry) Resolve(id SpaceID, length int32) []ResolveResult {
	sp := r.space(id)
	sp.Resolved = true
	sp.Length = length

	results := make([]ResolveResult, 0, len(sp.Listeners))
	for aid := range sp.Listeners {
		old := r.addrs[aid]
		updated := foldSpace(old, id, length)
		r.addrs[aid] = updated
		results = append(results, ResolveResult{Address: aid, New: updated})
	}
	// The space is now resolved; no address should list it any more.
	sp.Listeners = make(map[AddressID]struct{})

	lc := r.locCtr(sp.Owner)
	lc.storage += length
	return results
}

// foldSpace removes the given space's term from addr's space sum and adds
// length*coefficient to its offset, without touching the listener registry
// (the caller already owns that bookkeeping during Resolve).
func foldSpace(addr Address, id SpaceID, length int32) Address {
	out := Address{Offset: addr.Offset, Bases: addr.Bases}
	for _, t := range addr.Spaces {
		if t.Space == id {
			out.Offset += t.Coef * length
			continue
		}
		out.Spaces = append(out.Spaces, t)
	}
	return out
}
