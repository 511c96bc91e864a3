// Package preproc implements the logical-line-driven preprocessor stage
// contract of §4.H: a stage is a pull-based iterator over an upstream
// document, rewriting EXEC SQL/CICS blocks into synthesized assembly without
// reordering original lines. COPY/INCLUDE directives are not rewritten by
// any stage here.
package preproc

import "hlasm-core/internal/diagnostic"

// Line is one line of a preprocessor document: either an original source
// line or one generated by a stage. Generated lines carry the original
// line's number for diagnostics (§4.H stage contract).
type Line struct {
	Text       string
	LineNo     int
	IsOriginal bool
}

// Document is the sequence of lines a Stage consumes or produces.
type Document []Line

// Stage is the pull-based iterator contract every preprocessor
// implementation satisfies (§4.H, §9 "model each stage as a pull-based
// iterator over the upstream document"). Run consumes the upstream document
// wholesale and produces the rewritten one, since HLASM preprocessors
// operate over the complete member text rather than truly streaming — the
// "pull-based" framing is honored by Pipeline driving each stage in turn
// rather than by a single stage spanning multiple Document calls.
type Stage interface {
	// Name identifies the stage for diagnostics and tracing.
	Name() string
	// Run rewrites in into an equivalent document, never reordering
	// original lines; it may only replace or insert (§4.H stage contract).
	Run(in Document) (Document, []diagnostic.Diagnostic)
}

// Pipeline composes stages in order, feeding each one's output document into
// the next (§4.H "Stages compose: the opencode provider observes a single
// resulting document").
type Pipeline struct {
	stages []Stage
}

// NewPipeline builds a Pipeline from stages, applied in the given order.
func NewPipeline(stages ...Stage) *Pipeline { return &Pipeline{stages: stages} }

// Run executes every stage in order and returns the final document plus the
// concatenation of every stage's diagnostics, each still carrying its
// original line's source range.
func (p *Pipeline) Run(in Document) (Document, []diagnostic.Diagnostic) {
	doc := in
	var diags []diagnostic.Diagnostic
	for _, s := range p.stages {
		out, ds := s.Run(doc)
		if err := validateNoReorder(doc, out); err != nil {
			diags = append(diags, diagnostic.New(diagnostic.Range{}, diagnostic.SeverityError, diagnostic.KindSemanticImmediate, "PP000", err.Error()))
			continue
		}
		doc = out
		diags = append(diags, ds...)
	}
	return doc, diags
}

// validateNoReorder checks the stage contract's "must not reorder original
// lines" rule: the subsequence of IsOriginal lines in out, by LineNo, must
// be non-decreasing and a superset-preserving reordering is rejected.
func validateNoReorder(in, out Document) error {
	var lastSeen int = -1
	for _, l := range out {
		if !l.IsOriginal {
			continue
		}
		if l.LineNo < lastSeen {
			return errReorder{lineNo: l.LineNo}
		}
		lastSeen = l.LineNo
	}
	return nil
}

type errReorder struct{ lineNo int }

func (e errReorder) Error() string {
	return "preproc: stage reordered original line " + itoa(e.lineNo)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
