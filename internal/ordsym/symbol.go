package ordsym

import (
	"fmt"

	"hlasm-core/internal/idpool"
)

// SymbolType is the HLASM attribute of the same name (instruction-format
// dependent; values beyond the ones checked here are opaque bytes the
// checker layer — out of scope per §1 — interprets).
type SymbolType byte

// AssemblerType is the HLASM ASSEMBLER_TYPE attribute.
type AssemblerType byte

// Value holds an ordinary symbol's value: either undefined, an absolute
// int32, or a relocatable Address (§3.4).
type Value struct {
	Defined  bool
	Absolute bool
	Abs      int32
	Addr     AddressID
}

// Undefined is the zero Value.
var Undefined = Value{}

// AbsoluteValue builds a defined, absolute Value.
func AbsoluteValue(v int32) Value { return Value{Defined: true, Absolute: true, Abs: v} }

// RelocatableValue builds a defined, relocatable Value referencing an
// address already stored in a SpaceRegistry.
func RelocatableValue(addr AddressID) Value { return Value{Defined: true, Addr: addr} }

// Symbol is an ordinary symbol (§3.4): created exactly once, its Value may
// transition undefined -> defined, and redefinition is an error.
type Symbol struct {
	Name          idpool.ID
	Value         Value
	Length        int32
	Type          SymbolType
	ProgramType   byte
	AssemblerType AssemblerType
}

// ErrRedefined is returned by CreateSymbol when name was already created.
type ErrRedefined struct {
	Name string
}

func (e ErrRedefined) Error() string { return fmt.Sprintf("ordsym: symbol %q already defined", e.Name) }

// Context is the ordinary-symbol & section context (§4.E): sections,
// location counters, storage reservation, alignment, and the symbol table
// they populate. One Context belongs to exactly one analysis (§9: no
// process-wide globals).
type Context struct {
	Pool   *idpool.Pool
	Spaces *SpaceRegistry

	symbols map[idpool.ID]*Symbol
	order   []idpool.ID

	curSection SectionID
	curLocCtr  LocCtrID
	hasCurrent bool
}

// NewContext creates an empty ordinary-symbol context sharing pool and a
// fresh SpaceRegistry.
func NewContext(pool *idpool.Pool) *Context {
	return &Context{
		Pool:    pool,
		Spaces:  NewSpaceRegistry(pool),
		symbols: make(map[idpool.ID]*Symbol),
	}
}

// CreateSymbol creates a new ordinary symbol. It is an error to call this
// twice for the same name (§4.E create_symbol).
func (c *Context) CreateSymbol(name idpool.ID, value Value, length int32, typ SymbolType) (*Symbol, error) {
	if _, exists := c.symbols[name]; exists {
		return nil, ErrRedefined{Name: c.Pool.Name(name)}
	}
	sym := &Symbol{Name: name, Value: value, Length: length, Type: typ}
	c.symbols[name] = sym
	c.order = append(c.order, name)
	return sym, nil
}

// Lookup returns the symbol for name, if any.
func (c *Context) Lookup(name idpool.ID) (*Symbol, bool) {
	s, ok := c.symbols[name]
	return s, ok
}

// Symbols returns every created symbol, defined or still undefined, in
// creation order (keeps diagnostics
// deterministic per §4.D's tie-break rule, reused here for reporting).
func (c *Context) Symbols() []*Symbol {
	out := make([]*Symbol, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.symbols[n])
	}
	return out
}

// SetSection reuses an existing section if name+kind match; otherwise it
// creates one and a symbol of the same name whose value is the section's
// origin address (§4.E set_section). It becomes the current section with a
// fresh starting location counter of the same name, also becoming current.
func (c *Context) SetSection(name idpool.ID, kind SectionKind) (SectionID, error) {
	id, created := c.Spaces.NewSection(name, kind)
	if created {
		lc := c.Spaces.NewLocationCounter(id, name)
		addr := c.Spaces.baseAddress(lc)
		aid := c.Spaces.StoreAddress(addr)
		if _, err := c.CreateSymbol(name, RelocatableValue(aid), 1, 0); err != nil {
			return id, err
		}
		c.curLocCtr = lc
	} else {
		sect := c.Spaces.Section(id)
		c.curLocCtr = sect.LocCtrs[0]
	}
	c.curSection = id
	c.hasCurrent = true
	return id, nil
}

// SetLocationCounter switches the current location counter within the
// current section, creating one (with a symbol at its origin address) if
// name hasn't been used yet in this section (§4.E set_location_counter).
func (c *Context) SetLocationCounter(name idpool.ID) (LocCtrID, error) {
	if !c.hasCurrent {
		return 0, fmt.Errorf("ordsym: SetLocationCounter called before SetSection")
	}
	sect := c.Spaces.Section(c.curSection)
	for _, lcID := range sect.LocCtrs {
		if c.Spaces.LocationCounter(lcID).Name == name {
			c.curLocCtr = lcID
			return lcID, nil
		}
	}
	lc := c.Spaces.NewLocationCounter(c.curSection, name)
	addr := c.Spaces.baseAddress(lc)
	aid := c.Spaces.StoreAddress(addr)
	if _, err := c.CreateSymbol(name, RelocatableValue(aid), 1, 0); err != nil {
		return lc, err
	}
	c.curLocCtr = lc
	return lc, nil
}

// CurrentLocCtr returns the active location counter; ok is false before the
// first SetSection call.
func (c *Context) CurrentLocCtr() (LocCtrID, bool) { return c.curLocCtr, c.hasCurrent }

// FinishModuleLayout delegates to the SpaceRegistry (§4.E finish_module_layout).
func (c *Context) FinishModuleLayout() { c.Spaces.FinishModuleLayout() }
