// Package opencode implements the statement-source multiplexer of §3.8/§4.I:
// the AINSERT buffer, the COPY stack, and the preprocessed document are
// merged into one ordered stream of raw lines, with a snapshot/rewind
// protocol supporting attribute lookahead.
package opencode

import (
	"strings"

	"hlasm-core/internal/preproc"
	"hlasm-core/internal/vfile"
)

// Source identifies which of the three multiplexed sources produced a line.
type Source int

const (
	SourceAinsert Source = iota
	SourceCopy
	SourceDocument
)

// Mode distinguishes ordinary statement production from attribute lookahead
// (§4.I), which parses minimally and is never allowed to mutate ordinary
// context.
type Mode int

const (
	ModeOrdinary Mode = iota
	ModeLookahead
)

// RawLine is one line drawn from the provider, tagged with its source and,
// for AINSERT/COPY lines, the virtual file it was published under.
type RawLine struct {
	Text   string
	Source Source
	LineNo int
	URI    vfile.URI
}

// ainsertQueue is a FIFO with both ends writable, per §4.I's
// `ainsert(text, BACK|FRONT)`.
type ainsertQueue struct {
	items []string
}

func (q *ainsertQueue) enqueueBack(s string)  { q.items = append(q.items, s) }
func (q *ainsertQueue) enqueueFront(s string) { q.items = append([]string{s}, q.items...) }
func (q *ainsertQueue) empty() bool           { return len(q.items) == 0 }

func (q *ainsertQueue) dequeue() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	s := q.items[0]
	q.items = q.items[1:]
	return s, true
}

// CopyFrame is one entry on the active COPY stack. The triple
// (DefinitionLocation, Current, SuspendedAtLine) is the suspension-safe
// invariant §4.I requires: rewinding never needs to re-tokenize lines
// already read, only reset Current to a prior value.
type CopyFrame struct {
	Name               string
	URI                vfile.URI
	DefinitionLocation int
	Lines              []string
	Current            int
	SuspendedAtLine    int
}

func (f *CopyFrame) done() bool { return f.Current >= len(f.Lines) }

func (f *CopyFrame) next() (string, int) {
	line := f.Lines[f.Current]
	ln := f.Current
	f.Current++
	return line, ln
}

// copySnapshot captures one COPY frame's read position at the moment a
// rewind target was taken.
type copySnapshot struct {
	frame   *CopyFrame
	current int
}

// Position is a rewind target: the document cursor plus every active COPY
// frame's read position at the time it was captured (§4.I "snapshots the
// current input position as a rewind target").
type Position struct {
	Cursor       int
	copySnapshot []copySnapshot
}

// Provider multiplexes AINSERT, COPY, and the preprocessed document into one
// statement-source stream, in that strict priority order (§4.I).
type Provider struct {
	reg *vfile.Registry

	ainsert       ainsertQueue
	ainsertHandle vfile.Handle
	ainsertActive bool

	copyStack []*CopyFrame

	doc    preproc.Document
	cursor int

	ictlDone bool
	mode     Mode
}

// NewProvider wraps doc, the already preprocessor-composed document (§4.H's
// pipeline output), with the AINSERT/COPY multiplexing layer. reg mints
// virtual URIs for synthesized AINSERT batches and COPY members.
func NewProvider(reg *vfile.Registry, doc preproc.Document) *Provider {
	return &Provider{reg: reg, doc: doc}
}

// Ainsert enqueues text per §4.I/§8 invariant 8: front=true enqueues at the
// head, otherwise at the tail. Callers must substitute any SET-symbol
// references into text themselves before calling Ainsert — substitution
// happens at insertion time, not at the eventual parse of the inserted
// line (S6).
func (p *Provider) Ainsert(text string, front bool) {
	if !p.ainsertActive {
		h, _ := p.reg.Mint("AINSERT")
		p.ainsertHandle = h
		p.ainsertActive = true
	}
	if front {
		p.ainsert.enqueueFront(text)
	} else {
		p.ainsert.enqueueBack(text)
	}
	p.reg.Publish(p.ainsertHandle, strings.Join(p.ainsert.items, "\n"))
}

// EnterCopy pushes a new COPY frame, publishing its member text as a virtual
// file so lines drawn from it carry a first-class URI (§4.I "virtual
// files"). definitionLine is the enclosing document line the COPY statement
// appeared on.
func (p *Provider) EnterCopy(name string, lines []string, definitionLine int) *CopyFrame {
	h, u := p.reg.Mint(name)
	p.reg.Publish(h, strings.Join(lines, "\n"))
	f := &CopyFrame{Name: name, URI: u, DefinitionLocation: definitionLine, Lines: lines, SuspendedAtLine: -1}
	p.copyStack = append(p.copyStack, f)
	return f
}

// ActiveCopyDepth reports how many COPY frames are currently on the stack,
// so a caller can notice frames that Next has popped (recursive re-entry is
// checked by name through CopyNames).
func (p *Provider) ActiveCopyDepth() int { return len(p.copyStack) }

// CopyNames returns the member names currently on the stack, innermost
// last, for the copy processor's recursion check.
func (p *Provider) CopyNames() []string {
	names := make([]string, len(p.copyStack))
	for i, f := range p.copyStack {
		names[i] = f.Name
	}
	return names
}

// Mode reports the current production mode.
func (p *Provider) Mode() Mode { return p.mode }

// Next draws the next raw line in priority order: AINSERT, then the
// topmost COPY frame, then the preprocessed document. It reports false once
// every source is exhausted.
func (p *Provider) Next() (RawLine, bool) {
	if p.ainsertActive {
		if text, ok := p.ainsert.dequeue(); ok {
			if p.ainsert.empty() {
				p.ainsertActive = false
			}
			return RawLine{Text: text, Source: SourceAinsert, URI: p.reg.URI(p.ainsertHandle)}, true
		}
		p.ainsertActive = false
	}

	for len(p.copyStack) > 0 {
		top := p.copyStack[len(p.copyStack)-1]
		if top.done() {
			p.copyStack = p.copyStack[:len(p.copyStack)-1]
			continue
		}
		text, ln := top.next()
		return RawLine{Text: text, Source: SourceCopy, LineNo: ln, URI: top.URI}, true
	}

	if p.cursor < len(p.doc) {
		l := p.doc[p.cursor]
		p.cursor++
		return RawLine{Text: l.Text, Source: SourceDocument, LineNo: l.LineNo}, true
	}

	return RawLine{}, false
}

// ConsumeICTLPhase pulls leading document lines while isICTLOrProcess
// accepts them, satisfying §4.I's "ICTL / *PROCESS consumed only once at
// the beginning". It is a no-op on every call after the first (§9 open
// question: preprocessor-generated lines are treated as appearing after all
// *PROCESS consumption, so this only ever looks at the original document's
// leading lines, never at AINSERT/COPY content).
func (p *Provider) ConsumeICTLPhase(isICTLOrProcess func(text string) bool) []RawLine {
	if p.ictlDone {
		return nil
	}
	var out []RawLine
	for p.cursor < len(p.doc) {
		l := p.doc[p.cursor]
		if !isICTLOrProcess(l.Text) {
			break
		}
		out = append(out, RawLine{Text: l.Text, Source: SourceDocument, LineNo: l.LineNo})
		p.cursor++
	}
	p.ictlDone = true
	return out
}

// Snapshot captures a rewind target at the current position (§4.I step 1).
func (p *Provider) Snapshot() Position {
	snap := Position{Cursor: p.cursor}
	for _, f := range p.copyStack {
		snap.copySnapshot = append(snap.copySnapshot, copySnapshot{frame: f, current: f.Current})
	}
	return snap
}

// BeginLookahead snapshots the current position and switches to lookahead
// mode, returning the rewind target for the eventual Rewind call (§4.I step
// 1-2).
func (p *Provider) BeginLookahead() Position {
	target := p.Snapshot()
	p.mode = ModeLookahead
	return target
}

// Rewind restores the cursor and every captured COPY frame to target,
// clears the AINSERT buffer (AGO/rewind semantics), suspends each restored
// COPY frame at the line it resumes from, and returns to ordinary mode
// (§4.I step 5, §4.I rewind protocol). Rewinding to the current position is
// a no-op except for clearing AINSERT (§8 invariant 11): the cursor and
// every frame's Current are reassigned their already-current values.
func (p *Provider) Rewind(target Position) {
	p.ainsert = ainsertQueue{}
	p.ainsertActive = false

	for _, cs := range target.copySnapshot {
		cs.frame.Current = cs.current
		cs.frame.SuspendedAtLine = cs.current
	}
	p.cursor = target.Cursor
	p.mode = ModeOrdinary
}
