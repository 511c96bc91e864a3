// Package idpool interns case-folded HLASM identifiers into stable handles.
package idpool

import (
	"fmt"
	"strings"
)

// ID is a handle into a Pool. The zero value is the sentinel for the empty
// name; it never aliases a non-empty identifier.
type ID uint32

// Empty is the distinguished handle for the empty (absent) name.
const Empty ID = 0

// Pool interns identifiers after folding them to upper case, the way HLASM
// treats names as case-insensitive. Handles are stable for the lifetime of
// the pool; the pool never forgets or renumbers an entry.
type Pool struct {
	byName  map[string]ID
	names   []string // names[0] is the empty-name sentinel
	spaceCt uint32   // private counter for FreshSpaceName
}

// New returns an empty pool, pre-seeded with the sentinel handle.
func New() *Pool {
	return &Pool{
		byName: make(map[string]ID),
		names:  []string{""},
	}
}

// Add interns bytes, case-folded to upper, and returns its handle. Repeated
// calls with the same folded name return the same handle. Empty input
// returns Empty without allocating a new entry.
func (p *Pool) Add(bytes []byte) ID {
	if len(bytes) == 0 {
		return Empty
	}
	name := foldUpper(bytes)
	if name == "" {
		return Empty
	}
	if id, ok := p.byName[name]; ok {
		return id
	}
	id := ID(len(p.names))
	p.names = append(p.names, name)
	p.byName[name] = id
	return id
}

// AddString is a convenience wrapper around Add for string input.
func (p *Pool) AddString(s string) ID { return p.Add([]byte(s)) }

// Find looks up bytes (case-folded) without inserting. ok is false if the
// name was never interned.
func (p *Pool) Find(bytes []byte) (id ID, ok bool) {
	if len(bytes) == 0 {
		return Empty, true
	}
	name := foldUpper(bytes)
	id, ok = p.byName[name]
	return id, ok
}

// Name returns the folded string for a handle. It panics on an ID the pool
// never issued; that is always a programming error, not a recoverable one.
func (p *Pool) Name(id ID) string {
	if int(id) >= len(p.names) {
		panic(fmt.Sprintf("idpool: unknown id %d", id))
	}
	return p.names[id]
}

// FreshSpaceName mints a synthetic identifier for an anonymous space (the
// unresolved-length placeholders described in the address algebra), guaranteed
// distinct from every name a user program could spell: the embedded blank
// cannot occur in an HLASM name. Mirrors the original id_generator's private
// counter.
func (p *Pool) FreshSpaceName() ID {
	p.spaceCt++
	return p.AddString(fmt.Sprintf("$SPACE %d", p.spaceCt))
}

func foldUpper(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
