package preproc

import (
	"strings"

	"hlasm-core/internal/diagnostic"
)

// DB2Stage rewrites `EXEC SQL ... END-EXEC` blocks into a DSNHLI call
// skeleton, illustrating the stage contract rather than implementing DB2
// precompilation in full (a single representative transform: one CALL
// statement per block, the block's lines kept as comments so downstream
// code generation is out of scope).
type DB2Stage struct{}

// Name implements Stage.
func (DB2Stage) Name() string { return "DB2" }

// Run implements Stage.
func (DB2Stage) Run(in Document) (Document, []diagnostic.Diagnostic) {
	var out Document
	var diags []diagnostic.Diagnostic
	inBlock := false
	var blockStart int

	for _, l := range in {
		trimmed := strings.TrimSpace(l.Text)
		upper := strings.ToUpper(trimmed)

		switch {
		case !inBlock && strings.HasPrefix(upper, "EXEC SQL"):
			inBlock = true
			blockStart = l.LineNo
			out = append(out, Line{Text: "***$$$ " + l.Text, LineNo: l.LineNo, IsOriginal: false})
		case inBlock && strings.HasPrefix(upper, "END-EXEC"):
			inBlock = false
			out = append(out, Line{Text: "         CALL  DSNHLI", LineNo: l.LineNo, IsOriginal: false})
			out = append(out, l)
		case inBlock:
			out = append(out, Line{Text: "***$$$ " + l.Text, LineNo: l.LineNo, IsOriginal: false})
		default:
			out = append(out, l)
		}
	}

	if inBlock {
		diags = append(diags, diagnostic.New(diagnostic.Range{Begin: diagnostic.Position{Line: blockStart}},
			diagnostic.SeverityError, diagnostic.KindSyntactic, "DB2001", "unterminated EXEC SQL block"))
	}
	return out, diags
}
