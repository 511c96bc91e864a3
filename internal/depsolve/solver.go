// Package depsolve implements the dependency graph and progressive resolver
// of §3.6/§4.D: vertices are identifier handles, an edge u->v means
// "resolving v may allow u to resolve", and propagation runs a topological
// layering so diagnostics stay deterministic.
package depsolve

import "hlasm-core/internal/idpool"

// Resolvable is a pending expression plus whatever it needs to finish
// resolving. Dependencies lists the identifier handles it currently reads;
// Resolve attempts a final evaluation once Dependencies() is empty.
type Resolvable interface {
	Dependencies() []idpool.ID
	Resolve() (ResolveOutcome, error)
}

// ResolveOutcome is the result of a successful Resolvable.Resolve call: an
// absolute value, a relocatable length (for a space), or neither (a plain
// ordinary-symbol address already fully known).
type ResolveOutcome struct {
	IsAbsolute bool
	Abs        int32
	IsLength   bool
	Length     int32
}

// PostponedStatement is a statement whose final check was deferred until its
// dependencies resolve (§3.6, §7 "Errors from dependency failure are
// attached to the postponed statement").
type PostponedStatement interface {
	// Recheck runs the statement's final validation now that its
	// dependencies are satisfied.
	Recheck()
}

type vertex struct {
	name      idpool.ID
	source    Resolvable
	postponed PostponedStatement
	defined   bool

	// dependents are vertices whose source reads this vertex's name.
	dependents map[idpool.ID]bool
}

// Solver is the dependency graph of §4.D. It is single-threaded per analysis
// (§5, §9): callers must not share a Solver across goroutines.
type Solver struct {
	pool     *idpool.Pool
	vertices map[idpool.ID]*vertex
	// insertion order of vertices, used as the layer-internal tie-break
	// (§4.D "Ordering").
	order []idpool.ID

	onAbsolute func(name idpool.ID, value int32)
	onLength   func(name idpool.ID, length int32) error
}

// New creates an empty Solver. onAbsolute is invoked when a vertex resolves
// to a plain integer (to set an ordinary symbol's value); onLength is
// invoked when a vertex that is a space resolves to a byte length, and may
// return an error if the computed length is negative (§4.D step 2).
func New(pool *idpool.Pool, onAbsolute func(idpool.ID, int32), onLength func(idpool.ID, int32) error) *Solver {
	return &Solver{
		pool:       pool,
		vertices:   make(map[idpool.ID]*vertex),
		onAbsolute: onAbsolute,
		onLength:   onLength,
	}
}

func (s *Solver) vertexFor(name idpool.ID) *vertex {
	v, ok := s.vertices[name]
	if !ok {
		v = &vertex{name: name, dependents: make(map[idpool.ID]bool)}
		s.vertices[name] = v
		s.order = append(s.order, name)
	}
	return v
}

// ErrCycle is returned by Add when inserting the edge would make target
// transitively depend on itself.
type ErrCycle struct {
	Target string
}

func (e ErrCycle) Error() string { return "depsolve: cycle detected inserting dependency for " + e.Target }

// Add registers target's resolvable source and, for each handle it currently
// reads, an edge dependency->target. The insertion is rejected without side
// effects if it would create a cycle (§4.D Add, "Cycle detection"). If
// target has no unmet dependency once inserted, it is eagerly resolved
// (§3.6 "newly-added vertices without unmet dependencies are eagerly
// resolved").
func (s *Solver) Add(target idpool.ID, source Resolvable) error {
	deps := source.Dependencies()
	for _, d := range deps {
		if d == target || s.reaches(d, target) {
			return ErrCycle{Target: s.pool.Name(target)}
		}
	}

	v := s.vertexFor(target)
	v.source = source
	for _, d := range deps {
		s.vertexFor(d).dependents[target] = true
	}

	if len(deps) == 0 {
		s.resolveVertex(v)
	}
	return nil
}

// SetPostponed attaches a postponed statement to target, re-checked once
// target's dependencies are all satisfied (§3.6).
func (s *Solver) SetPostponed(target idpool.ID, stmt PostponedStatement) {
	s.vertexFor(target).postponed = stmt
}

// reaches performs the depth-first cycle check (§4.D "Cycle detection"):
// does `from` already (transitively) depend on `to`? We walk forward along
// each vertex's current dependency set (its source's Dependencies()), which
// is exactly the set that adding the new edge would chain onto.
func (s *Solver) reaches(from, to idpool.ID) bool {
	visited := make(map[idpool.ID]bool)
	var walk func(idpool.ID) bool
	walk = func(cur idpool.ID) bool {
		if cur == to {
			return true
		}
		if visited[cur] {
			return false
		}
		visited[cur] = true
		v, ok := s.vertices[cur]
		if !ok || v.source == nil {
			return false
		}
		for _, dep := range v.source.Dependencies() {
			if walk(dep) {
				return true
			}
		}
		return false
	}
	return walk(from)
}

// MarkDefined marks name as defined and propagates (§4.D mark_defined): for
// each dependent, recompute its dependency set; once empty, resolve it, and
// recurse. Propagation proceeds as a topological layering — ties within a
// layer broken by insertion order — by processing a FIFO queue seeded with
// name's direct dependents in insertion order and re-enqueuing newly
// resolved vertices the same way.
func (s *Solver) MarkDefined(name idpool.ID) {
	v := s.vertexFor(name)
	v.defined = true

	queue := s.orderedDependents(v)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		cv := s.vertices[cur]
		if cv.defined || cv.source == nil {
			continue
		}
		if len(cv.source.Dependencies()) > 0 {
			continue
		}
		if s.resolveVertex(cv) {
			queue = append(queue, s.orderedDependents(cv)...)
		}
	}
}

// orderedDependents returns v's dependents in the solver's global insertion
// order, giving deterministic tie-breaks within a propagation layer.
func (s *Solver) orderedDependents(v *vertex) []idpool.ID {
	var out []idpool.ID
	for _, name := range s.order {
		if v.dependents[name] {
			out = append(out, name)
		}
	}
	return out
}

// resolveVertex attempts to finish v via its Resolvable, invoking the
// appropriate callback and marking it defined on success.
func (s *Solver) resolveVertex(v *vertex) bool {
	outcome, err := v.source.Resolve()
	if err != nil {
		// Resolution failed (e.g. a checker error); leave the vertex
		// unresolved so its postponed statement, if any, keeps waiting, but
		// do not loop forever: callers surface the error via diagnostics at
		// the call site that invoked Resolve.
		return false
	}

	switch {
	case outcome.IsAbsolute:
		if s.onAbsolute != nil {
			s.onAbsolute(v.name, outcome.Abs)
		}
	case outcome.IsLength:
		if outcome.Length < 0 {
			if s.onLength != nil {
				_ = s.onLength(v.name, outcome.Length)
			}
			return false
		}
		if s.onLength != nil {
			if err := s.onLength(v.name, outcome.Length); err != nil {
				return false
			}
		}
	}

	v.defined = true
	if v.postponed != nil {
		v.postponed.Recheck()
	}
	return true
}

// CollectUnresolved drains postponed statements whose dependencies are now
// satisfied (empty Dependencies()) for the caller to re-check in insertion
// order (§4.D collect_unresolved). Vertices that still have unmet
// dependencies, or no postponed statement, are left untouched.
func (s *Solver) CollectUnresolved() []PostponedStatement {
	var out []PostponedStatement
	for _, name := range s.order {
		v := s.vertices[name]
		if v.postponed == nil || v.defined {
			continue
		}
		if v.source != nil && len(v.source.Dependencies()) == 0 {
			out = append(out, v.postponed)
			v.postponed = nil
		}
	}
	return out
}

// IsDefined reports whether name's vertex has resolved.
func (s *Solver) IsDefined(name idpool.ID) bool {
	v, ok := s.vertices[name]
	return ok && v.defined
}
