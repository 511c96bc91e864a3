// Package report renders diagnostics and the ordinary-symbol table as
// plain-text output, the way the teacher renders its disassembly listing: a
// text/template header executed against a small anonymous struct, then a
// hand-formatted body per entry.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"hlasm-core/internal/diagnostic"
	"hlasm-core/internal/idpool"
	"hlasm-core/internal/ordsym"
)

var diagnosticHeader = `* ****************************************************************
* {{ .Count }} diagnostic(s)
* ****************************************************************
`

// WriteDiagnostics renders every diagnostic in bag to w: a templated header
// followed by one line per diagnostic, in accumulation order.
func WriteDiagnostics(w io.Writer, bag *diagnostic.Bag) error {
	t, err := template.New("diagnostics").Parse(diagnosticHeader)
	if err != nil {
		return fmt.Errorf("report: parsing diagnostic header template: %w", err)
	}
	data := struct{ Count int }{bag.Len()}
	if err := t.Execute(w, data); err != nil {
		return fmt.Errorf("report: executing diagnostic header template: %w", err)
	}

	for _, d := range bag.Items() {
		fmt.Fprintf(w, "%s:%d:%d: %s[%s]: %s\n",
			d.Range.URI, d.Range.Begin.Line, d.Range.Begin.Column, d.Severity, d.Code, d.Message)
		for _, r := range d.Related {
			fmt.Fprintf(w, "    related: %s:%d:%d: %s\n", r.Range.URI, r.Range.Begin.Line, r.Range.Begin.Column, r.Message)
		}
	}
	return nil
}

var symbolTableHeader = `* ****************************************************************
* Ordinary symbol table ({{ .Count }} symbol(s))
* ****************************************************************
`

// WriteSymbolTable renders ctx's ordinary symbols to w, in creation order,
// after finish_module_layout has resolved every address (§4.E). Absolute
// symbols print their integer value; relocatable symbols print the decimal
// offset of the address read back via addr, plus how many base and space
// terms it still carries.
func WriteSymbolTable(w io.Writer, pool *idpool.Pool, ctx *ordsym.Context, addr func(ordsym.AddressID) ordsym.Address) error {
	t, err := template.New("symtab").Parse(symbolTableHeader)
	if err != nil {
		return fmt.Errorf("report: parsing symbol table header template: %w", err)
	}
	syms := ctx.Symbols()
	data := struct{ Count int }{len(syms)}
	if err := t.Execute(w, data); err != nil {
		return fmt.Errorf("report: executing symbol table header template: %w", err)
	}

	for _, sym := range syms {
		name := pool.Name(sym.Name)
		if !sym.Value.Defined {
			fmt.Fprintf(w, "%-10s UNDEFINED\n", name)
			continue
		}
		if sym.Value.Absolute {
			fmt.Fprintf(w, "%-10s ABS      VALUE=%d LEN=%d\n", name, sym.Value.Abs, sym.Length)
			continue
		}
		a := addr(sym.Value.Addr)
		fmt.Fprintf(w, "%-10s RELOC    OFFSET=%d LEN=%d BASES=%d SPACES=%d\n",
			name, a.Offset, sym.Length, len(a.Bases), len(a.Spaces))
	}
	return nil
}

// WriteLogicalLine renders a logical line's text and the code span of each
// of its segments for the `parse` CLI subcommand, one line per segment.
func WriteLogicalLine(w io.Writer, text string, segmentTexts []string) {
	var sb strings.Builder
	for i, s := range segmentTexts {
		fmt.Fprintf(&sb, "  segment[%d]: %q\n", i, s)
	}
	fmt.Fprintf(w, "%q\n%s", text, sb.String())
}
