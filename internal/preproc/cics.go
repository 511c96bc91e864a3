package preproc

import (
	"strings"

	"hlasm-core/internal/diagnostic"
)

// CICSStage rewrites `EXEC CICS ... END-EXEC` command blocks into a DFHEI1
// call skeleton. Like DB2Stage, this is deliberately a minimal illustrative
// transform rather than a full CICS translator (command option parsing is
// out of scope).
type CICSStage struct{}

// Name implements Stage.
func (CICSStage) Name() string { return "CICS" }

// Run implements Stage.
func (CICSStage) Run(in Document) (Document, []diagnostic.Diagnostic) {
	var out Document
	var diags []diagnostic.Diagnostic
	inBlock := false
	var blockStart int

	for _, l := range in {
		trimmed := strings.TrimSpace(l.Text)
		upper := strings.ToUpper(trimmed)

		switch {
		case !inBlock && strings.HasPrefix(upper, "EXEC CICS"):
			inBlock = true
			blockStart = l.LineNo
			out = append(out, Line{Text: "***$$$ " + l.Text, LineNo: l.LineNo, IsOriginal: false})
		case inBlock && strings.HasPrefix(upper, "END-EXEC"):
			inBlock = false
			out = append(out, Line{Text: "         CALL  DFHEI1", LineNo: l.LineNo, IsOriginal: false})
			out = append(out, l)
		case inBlock:
			out = append(out, Line{Text: "***$$$ " + l.Text, LineNo: l.LineNo, IsOriginal: false})
		default:
			out = append(out, l)
		}
	}

	if inBlock {
		diags = append(diags, diagnostic.New(diagnostic.Range{Begin: diagnostic.Position{Line: blockStart}},
			diagnostic.SeverityError, diagnostic.KindSyntactic, "CICS001", "unterminated EXEC CICS block"))
	}
	return out, diags
}
