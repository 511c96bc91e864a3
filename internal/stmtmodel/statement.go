// Package stmtmodel implements the statement model and incremental
// collector of §3.7/§4.G.
package stmtmodel

import (
	"hlasm-core/internal/diagnostic"
	"hlasm-core/internal/idpool"
)

// Kind is the downstream-observed statement kind (§3.7).
type Kind int

const (
	KindExecutable Kind = iota
	KindDeferred
	KindError
	KindPreprocessorGenerated
)

// Token is a highlighting token captured while parsing operands (§4.G).
type Token struct {
	Range diagnostic.Range
	Class string
}

// LiteralRef is a literal reference (`=F'0'` etc.) encountered during
// operand parsing, gathered for the end-of-module literal pool (§9 open
// question on literal-pool timing).
type LiteralRef struct {
	Text  string
	Range diagnostic.Range
}

// Operand is a single parsed operand; Raw retains the original text so a
// deferred statement can re-parse it once an opcode-dependent format is
// known (§3.7 "deferred-operand string").
type Operand struct {
	Raw   string
	Range diagnostic.Range
}

// Statement is the fully general statement record (§3.7): label,
// instruction, operand list, remark list, and a deferred-operand string
// retained for macros whose operand syntax depends on the resolved opcode.
type Statement struct {
	Kind Kind

	Label       idpool.ID
	LabelRange  diagnostic.Range
	Instruction idpool.ID
	InstrRange  diagnostic.Range
	Operands    []Operand
	Remarks     []string

	DeferredOperands string

	Diagnostics []diagnostic.Diagnostic
	Tokens      []Token
	Literals    []LiteralRef
}

// IsComment reports whether s is an empty-instruction placeholder, i.e. a
// statement produced from a comment card.
func (s Statement) IsComment() bool { return s.Instruction == idpool.Empty && s.Label == idpool.Empty && s.Kind != KindError }
