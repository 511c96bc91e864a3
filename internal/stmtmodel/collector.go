package stmtmodel

import (
	"fmt"

	"hlasm-core/internal/diagnostic"
	"hlasm-core/internal/idpool"
)

// fieldState tracks whether a field has been set, so a second assignment can
// be treated as the programming error §4.G calls out ("double-assignment is
// a programming error").
type fieldState struct {
	set bool
}

func (f *fieldState) mark(field string) {
	if f.set {
		panic(fmt.Sprintf("stmtmodel: field %s assigned twice", field))
	}
	f.set = true
}

// Collector maintains a partial statement during parsing and extracts a
// finished Statement atomically, along with the highlighting tokens and
// literal references accumulated along the way (§4.G).
type Collector struct {
	stmt Statement

	labelSt fieldState
	instrSt fieldState
	deferSt fieldState
}

// NewCollector starts a fresh, empty collection.
func NewCollector() *Collector { return &Collector{} }

// SetLabel records the label field. Calling this twice on one Collector is a
// programming error.
func (c *Collector) SetLabel(name idpool.ID, rng diagnostic.Range) {
	c.labelSt.mark("label")
	c.stmt.Label = name
	c.stmt.LabelRange = rng
}

// SetInstruction records the instruction field.
func (c *Collector) SetInstruction(name idpool.ID, rng diagnostic.Range) {
	c.instrSt.mark("instruction")
	c.stmt.Instruction = name
	c.stmt.InstrRange = rng
}

// AddOperand appends a parsed operand.
func (c *Collector) AddOperand(op Operand) { c.stmt.Operands = append(c.stmt.Operands, op) }

// AddRemark appends remark text.
func (c *Collector) AddRemark(r string) { c.stmt.Remarks = append(c.stmt.Remarks, r) }

// SetDeferredOperands retains the raw operand text for a statement whose
// format depends on a not-yet-resolved opcode (§3.7).
func (c *Collector) SetDeferredOperands(raw string) {
	c.deferSt.mark("deferred operands")
	c.stmt.DeferredOperands = raw
}

// AddDiagnostic attaches a diagnostic collected during assembly of this
// statement.
func (c *Collector) AddDiagnostic(d diagnostic.Diagnostic) { c.stmt.Diagnostics = append(c.stmt.Diagnostics, d) }

// AddToken records a highlighting token.
func (c *Collector) AddToken(t Token) { c.stmt.Tokens = append(c.stmt.Tokens, t) }

// AddLiteral records a literal reference encountered while parsing operands.
func (c *Collector) AddLiteral(l LiteralRef) { c.stmt.Literals = append(c.stmt.Literals, l) }

// IsEmpty reports whether no label, instruction, operand or remark has been
// collected yet; deferred operands, diagnostics, tokens and literals are not
// considered.
func (c *Collector) IsEmpty() bool {
	return !c.labelSt.set && !c.instrSt.set && len(c.stmt.Operands) == 0 && len(c.stmt.Remarks) == 0
}

// Extract finishes the statement, classifying it as executable, deferred, or
// error (§4.G), and hands off the accumulated tokens/literals atomically by
// returning them embedded in the Statement and resetting the Collector for
// reuse.
func (c *Collector) Extract() Statement {
	s := c.stmt
	switch {
	case len(s.Diagnostics) > 0 && hasErrorSeverity(s.Diagnostics):
		s.Kind = KindError
	case c.deferSt.set:
		s.Kind = KindDeferred
	default:
		s.Kind = KindExecutable
	}
	*c = Collector{}
	return s
}

func hasErrorSeverity(ds []diagnostic.Diagnostic) bool {
	for _, d := range ds {
		if d.Severity >= diagnostic.SeverityError {
			return true
		}
	}
	return false
}
