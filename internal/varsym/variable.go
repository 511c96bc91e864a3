// Package varsym implements SET variables and the macro-parameter data tree
// (§3.5, §4.F).
package varsym

import (
	"fmt"

	"hlasm-core/internal/idpool"
)

// Kind distinguishes a SET symbol from a macro parameter (§3.5).
type Kind int

const (
	KindSet Kind = iota
	KindMacroParam
)

// Type is a SET/macro-parameter value type.
type Type int

const (
	TypeUndefined Type = iota
	TypeA             // int32
	TypeB             // bool
	TypeC             // string
)

// Value is a scalar SET/macro-parameter value tagged by Type.
type Value struct {
	Type Type
	A    int32
	B    bool
	C    string
}

// Default returns the zero value HLASM assigns an undeclared element of the
// given type: A=0, B=false, C="" (§3.5, §4.F "returns the default value").
func Default(t Type) Value {
	switch t {
	case TypeA:
		return Value{Type: TypeA}
	case TypeB:
		return Value{Type: TypeB}
	case TypeC:
		return Value{Type: TypeC, C: ""}
	default:
		return Value{Type: TypeUndefined}
	}
}

// Symbol is a SET symbol: scalar or a 1-indexed sparse array (§3.5).
type Symbol struct {
	Name    idpool.ID
	Kind    Kind
	Type    Type
	IsArray bool
	scalar  Value
	array   map[int]Value
}

// ErrTypeMismatch is returned when a SET symbol is redeclared with a
// different type (§4.F "re-declaration with a different type is an error").
type ErrTypeMismatch struct {
	Name string
	Want Type
	Got  Type
}

func (e ErrTypeMismatch) Error() string {
	return fmt.Sprintf("varsym: %s redeclared with type %v, previously %v", e.Name, e.Got, e.Want)
}

// Scope holds the SET symbols visible at one nesting level (opencode or one
// macro-call frame). SET symbol creation is idempotent per scope (§4.F).
type Scope struct {
	pool    *idpool.Pool
	symbols map[idpool.ID]*Symbol
}

// NewScope creates an empty scope.
func NewScope(pool *idpool.Pool) *Scope {
	return &Scope{pool: pool, symbols: make(map[idpool.ID]*Symbol)}
}

// Declare creates name as a SET symbol of the given type/arity if it does
// not exist yet; if it does, the call returns the existing symbol when the
// type matches and an error when it differs. Arity is not compared: a
// re-declaration with matching type but different isArray returns the
// existing symbol unchanged.
func (s *Scope) Declare(name idpool.ID, t Type, isArray bool) (*Symbol, error) {
	if existing, ok := s.symbols[name]; ok {
		if existing.Type != t {
			return nil, ErrTypeMismatch{Name: s.pool.Name(name), Want: existing.Type, Got: t}
		}
		return existing, nil
	}
	sym := &Symbol{Name: name, Kind: KindSet, Type: t, IsArray: isArray, scalar: Default(t)}
	if isArray {
		sym.array = make(map[int]Value)
	}
	s.symbols[name] = sym
	return sym, nil
}

// Lookup returns the SET symbol for name, if declared in this scope.
func (s *Scope) Lookup(name idpool.ID) (*Symbol, bool) {
	sym, ok := s.symbols[name]
	return sym, ok
}

// Get evaluates a subscript against sym per §4.F's rules:
//   - scalar SET: only subscript 0 (meaning "()", no index) is meaningful;
//     any i>0 returns the default value with a warning-level mismatch flag.
//   - array SET: index must be >= 1; i<1 is an error.
func (sym *Symbol) Get(index int) (Value, *SubscriptDiag) {
	if !sym.IsArray {
		if index > 0 {
			return Default(sym.Type), &SubscriptDiag{Warning: true, Message: "subscript on a scalar SET symbol returns the default value"}
		}
		return sym.scalar, nil
	}
	if index < 1 {
		return Default(sym.Type), &SubscriptDiag{Warning: false, Message: "array SET symbol subscript must be >= 1"}
	}
	if v, ok := sym.array[index]; ok {
		return v, nil
	}
	return Default(sym.Type), nil
}

// Set assigns a subscripted element; semantics mirror Get's validity rules.
func (sym *Symbol) Set(index int, v Value) *SubscriptDiag {
	if !sym.IsArray {
		if index > 0 {
			return &SubscriptDiag{Warning: true, Message: "subscript on a scalar SET symbol is ignored"}
		}
		sym.scalar = v
		return nil
	}
	if index < 1 {
		return &SubscriptDiag{Warning: false, Message: "array SET symbol subscript must be >= 1"}
	}
	sym.array[index] = v
	return nil
}

// SubscriptDiag reports an out-of-range subscript; Warning distinguishes the
// "diagnosed as a warning, not fatal" scalar case from the fatal array case
// (§4.F).
type SubscriptDiag struct {
	Warning bool
	Message string
}
