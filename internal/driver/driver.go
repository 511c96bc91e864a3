// Package driver implements the §5 scheduling/suspension/cancellation model:
// a single-threaded cooperative loop that pulls statements from the
// opencode provider, routes them through procstmt's processor table, and
// keeps the ordinary-symbol context and dependency solver in sync.
//
// PrepareDocument/NewFromSource wire the full B→H→I pipeline ahead of the
// driver loop: §4.B logical-line extraction, then the §4.H preprocessor
// pipeline, before a preproc.Document ever reaches opencode.NewProvider.
//
// Full machine/CA instruction execution (checkers, the instruction table,
// object code) is out of scope per the non-goals this core inherits; the
// ordinary processor below implements the EQU expression path end to end
// since it is the representative case the dependency solver exists for
// (§8 scenarios S1/S3), alongside COPY member resolution (§4.J "copy
// processor") and macro definition capture/expansion (§4.J "macro-definition
// processor", §8 invariant 7) — every other instruction is accepted as
// inert, advanced enough to exercise the full B→H→I→J wiring without
// reimplementing an assembler.
package driver

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"go.uber.org/atomic"

	"hlasm-core/internal/depsolve"
	"hlasm-core/internal/diagnostic"
	"hlasm-core/internal/idpool"
	"hlasm-core/internal/lline"
	"hlasm-core/internal/opencode"
	"hlasm-core/internal/ordsym"
	"hlasm-core/internal/preproc"
	"hlasm-core/internal/procstmt"
	"hlasm-core/internal/vfile"
)

// CancelToken is the liveness token a queued editor request or batch run
// carries; the driver checks it at every suspension point (§5
// "Cancellation").
type CancelToken struct {
	cancelled atomic.Bool
}

// NewCancelToken returns a live (non-cancelled) token.
func NewCancelToken() *CancelToken { return &CancelToken{} }

// Cancel marks the token cancelled. Safe to call from outside the driver's
// own goroutine, since §5 only requires the *driver* thread to own mutation
// of analysis state -- the token itself is the one object a host is allowed
// to reach into from elsewhere.
func (c *CancelToken) Cancel() { c.cancelled.Store(true) }

// Cancelled reports the token's current state.
func (c *CancelToken) Cancelled() bool { return c.cancelled.Load() }

// ErrCancelled is returned by Run when token was cancelled mid-analysis.
var ErrCancelled = errors.New("driver: analysis cancelled")

// Checkpoint is the partial-analysis state preserved on cancellation, so a
// subsequent Run resumes from the file-change point rather than from
// scratch (§5).
type Checkpoint struct {
	Position            opencode.Position
	StatementsProcessed int
}

// Driver wires the statement pipeline: the opencode provider (§4.I), the
// statement-processor router (§4.J), the ordinary-symbol context (§4.E),
// and the dependency solver (§4.D).
type Driver struct {
	Pool     *idpool.Pool
	Ctx      *ordsym.Context
	Solver   *depsolve.Solver
	Provider *opencode.Provider
	Router   *procstmt.Router
	Limits   *procstmt.Limits
	Diags    *diagnostic.Bag
	Registry *vfile.Registry
	Log      *logrus.Logger

	statementsProcessed int
	lastCopyDepth       int

	fs   afero.Fs
	libs []string

	macros    map[string]*MacroDef
	capturing *MacroDef
	wantProto bool
}

// PrepareDocument turns raw source bytes into a preprocessor-composed
// document: §4.B's logical-line extractor collapses continuation cards
// before the §4.H pipeline (built from stages, e.g. a processor group's
// configured preprocessors) runs over the result. This is the B→H leg of
// §2's data flow, upstream of the opencode provider (leg I).
func PrepareDocument(data []byte, stages []preproc.Stage) (preproc.Document, []diagnostic.Diagnostic) {
	ex := lline.NewExtractor(data, lline.Default())
	var doc preproc.Document
	lineNo := 0
	for {
		ll, ok := ex.Next()
		if !ok {
			break
		}
		lineNo++
		doc = append(doc, preproc.Line{Text: string(ll.Text(data)), LineNo: lineNo, IsOriginal: true})
	}
	return preproc.NewPipeline(stages...).Run(doc)
}

// NewFromSource builds a Driver straight from raw source bytes, running them
// through PrepareDocument first so the driver never sees un-extracted,
// un-preprocessed physical lines.
func NewFromSource(data []byte, stages []preproc.Stage) *Driver {
	pool := idpool.New()
	ctx := ordsym.NewContext(pool)
	reg := vfile.New()
	doc, diags := PrepareDocument(data, stages)
	provider := opencode.NewProvider(reg, doc)
	d := New(pool, ctx, provider, reg)
	for _, diag := range diags {
		d.Diags.Add(diag)
	}
	return d
}

// EnableCopyResolution configures the library roots COPY members are
// searched under and the filesystem they are read from, matching
// internal/config's injectable-filesystem convention (afero.Fs) so tests
// can resolve members from an in-memory FS.
func (d *Driver) EnableCopyResolution(fs afero.Fs, libs []string) {
	d.fs = fs
	d.libs = libs
}

// New wires a Driver around pool/ctx/provider/registry, building a solver
// whose callbacks write resolved values back into ctx, a fresh Router, and
// logrus logging at Debug level (so a default CLI invocation, at the
// default Info level, stays as quiet as the teacher's tool).
func New(pool *idpool.Pool, ctx *ordsym.Context, provider *opencode.Provider, reg *vfile.Registry) *Driver {
	diags := &diagnostic.Bag{}
	d := &Driver{
		Pool:     pool,
		Ctx:      ctx,
		Provider: provider,
		Router:   procstmt.NewRouter(),
		Limits:   procstmt.NewLimits(procstmt.DefaultACTR, 0),
		Diags:    diags,
		Registry: reg,
		Log:      logrus.New(),
		macros:   make(map[string]*MacroDef),
	}
	d.Solver = depsolve.New(pool,
		func(name idpool.ID, value int32) {
			if sym, ok := ctx.Lookup(name); ok {
				sym.Value = ordsym.AbsoluteValue(value)
			}
		},
		func(name idpool.ID, length int32) error {
			if length < 0 {
				return fmt.Errorf("driver: space %s resolved to negative length", pool.Name(name))
			}
			return nil
		},
	)
	return d
}

// Checkpoint captures the driver's current resumable position.
func (d *Driver) Checkpoint() Checkpoint {
	return Checkpoint{Position: d.Provider.Snapshot(), StatementsProcessed: d.statementsProcessed}
}

// Run pulls statements until the provider is exhausted or token is
// cancelled, returning ErrCancelled with a resumable Checkpoint in the
// latter case. Suspension points are traced at Debug level (§5: end of each
// logical line; before entering a COPY member; this loop iteration boundary
// stands in for "before entering a macro call" too, since both the copy and
// macro-definition Kinds drain one statement at a time here).
func (d *Driver) Run(token *CancelToken) (Checkpoint, error) {
	for {
		if token.Cancelled() {
			d.Log.Debug("driver: cancelled, preserving checkpoint")
			return d.Checkpoint(), ErrCancelled
		}

		d.Router.SetLookahead(d.Provider.Mode() == opencode.ModeLookahead)
		line, ok := d.Provider.Next()
		if !ok {
			break
		}

		if err := d.Limits.Tick(); err != nil {
			d.Diags.Add(diagnostic.New(diagnostic.Range{Begin: diagnostic.Position{Line: line.LineNo}},
				diagnostic.SeverityError, diagnostic.KindSemanticImmediate, "D001", err.Error()))
			break
		}

		kind := d.Router.Select()
		d.Log.WithFields(logrus.Fields{"source": line.Source, "kind": kind.String(), "line": line.LineNo}).Debug("driver: dispatch")

		switch kind {
		case procstmt.KindOrdinary, procstmt.KindCopy:
			// A COPY member's statements are assembled exactly like the
			// statements around its COPY instruction (§4.J "replays the
			// member's statements") -- KindCopy only marks their source,
			// it is not a distinct semantic processor from ordinary.
			d.dispatchOrdinary(line)
		case procstmt.KindMacroDefinition:
			d.dispatchMacroDefinition(line)
		case procstmt.KindLookahead:
			// The lookahead processor is invoked explicitly by whatever
			// ordinary-mode statement triggered it (procstmt.ResolveAttributes),
			// not reached through this dispatch loop.
		}

		// The provider pops an exhausted COPY frame lazily, at the start of
		// the Next() call that follows its last line (§4.J "recursion
		// detected via the stack"); mirror every such pop into the router so
		// Select() falls back out of KindCopy once the member is exhausted.
		if depth := d.Provider.ActiveCopyDepth(); depth < d.lastCopyDepth {
			for i := depth; i < d.lastCopyDepth; i++ {
				d.Router.ExitCopy()
			}
		}
		d.lastCopyDepth = d.Provider.ActiveCopyDepth()

		d.statementsProcessed++
		d.Log.Debug("driver: suspension point (end of logical line)")
	}
	return d.Checkpoint(), nil
}

// MacroDef is a captured macro definition: the prototype's name and
// positional parameters, plus the model statements between the prototype
// and MEND (§4.J "builds a macro definition from captured statements").
type MacroDef struct {
	Name   string
	Params []string
	Body   []string
}

// dispatchMacroDefinition implements the macro-definition processor: the
// first statement after MACRO is the prototype (name + parameters), every
// statement after that is captured into the definition's body verbatim, and
// MEND/MEXIT closes the bracket. No ordinary-context side effects occur
// while capturing (§4.J "no side effects on ordinary context").
func (d *Driver) dispatchMacroDefinition(line opencode.RawLine) {
	text := strings.TrimSpace(line.Text)
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return
	}
	instr := strings.ToUpper(fields[0])
	if len(fields) > 1 && !strings.HasPrefix(line.Text, " ") {
		instr = strings.ToUpper(fields[1])
	}
	if procstmt.IsMacroEnd(instr) || procstmt.IsMexit(instr) {
		if procstmt.IsMacroEnd(instr) && d.capturing != nil && d.capturing.Name != "" {
			d.macros[d.capturing.Name] = d.capturing
		}
		if procstmt.IsMacroEnd(instr) {
			d.capturing = nil
			d.wantProto = false
		}
		d.Router.ExitMacroDefinition()
		return
	}

	if d.capturing == nil {
		return
	}
	if d.wantProto {
		d.wantProto = false
		d.capturing.Name, d.capturing.Params = parsePrototype(line.Text)
		return
	}
	d.capturing.Body = append(d.capturing.Body, line.Text)
}

// parsePrototype splits a macro prototype statement (`&LABEL OPNAME
// &P1,&P2,...`, label field optional) into the macro's call name and its
// ordered positional parameter names.
func parsePrototype(text string) (name string, params []string) {
	fields := strings.Fields(text)
	idx := 0
	if !strings.HasPrefix(text, " ") {
		idx = 1 // a leading non-blank field is the optional label parameter
	}
	if idx >= len(fields) {
		return "", nil
	}
	name = strings.ToUpper(fields[idx])
	if idx+1 < len(fields) {
		for _, p := range strings.Split(fields[idx+1], ",") {
			p = strings.TrimPrefix(strings.TrimSpace(p), "&")
			if p != "" {
				params = append(params, strings.ToUpper(p))
			}
		}
	}
	return name, params
}

// substituteParams replaces every `&name` token in text with its bound
// operand value.
func substituteParams(text string, args map[string]string) string {
	for name, val := range args {
		text = strings.ReplaceAll(text, "&"+name, val)
	}
	return text
}

// expandMacro implements macro-call expansion: the body statements captured
// by dispatchMacroDefinition, with positional parameters substituted from
// the call's operand field, are AINSERTed ahead of the current position so
// the driver replays them as if they appeared in line (§4.I's AINSERT
// mechanism is the expansion vehicle, per §9's design notes).
func (d *Driver) expandMacro(def *MacroDef, operand string) {
	callArgs := strings.Split(operand, ",")
	args := make(map[string]string, len(def.Params))
	for i, p := range def.Params {
		if i < len(callArgs) {
			args[p] = strings.TrimSpace(callArgs[i])
		}
	}
	for i := len(def.Body) - 1; i >= 0; i-- {
		d.Provider.Ainsert(substituteParams(def.Body[i], args), true)
	}
}

// dispatchOrdinary implements the representative ordinary-processor path:
// comments are skipped, `MACRO` opens a definition bracket, `<label> EQU
// <expr>` is evaluated through the dependency solver, `COPY <name>` enters
// the copy processor, a call of a captured macro is expanded, and every
// other instruction is accepted as inert (machine/CA instruction checking is
// out of scope).
func (d *Driver) dispatchOrdinary(line opencode.RawLine) {
	text := line.Text
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.HasPrefix(trimmed, "*") || strings.HasPrefix(trimmed, ".*") {
		return
	}

	fields := strings.Fields(text)
	var label, instr, operand string
	if strings.HasPrefix(text, " ") {
		if len(fields) > 0 {
			instr = strings.ToUpper(fields[0])
		}
		if len(fields) > 1 {
			operand = fields[1]
		}
	} else if len(fields) > 0 {
		label = fields[0]
		if len(fields) > 1 {
			instr = strings.ToUpper(fields[1])
		}
		if len(fields) > 2 {
			operand = fields[2]
		}
	}

	if procstmt.IsMacroStart(instr) {
		d.Router.EnterMacroDefinition()
		d.capturing = &MacroDef{}
		d.wantProto = true
		return
	}

	if instr == "EQU" && label != "" {
		d.dispatchEQU(label, operand, line)
		return
	}

	if instr == "COPY" && operand != "" {
		d.dispatchCopy(operand, line)
		return
	}

	if def, ok := d.macros[instr]; ok {
		d.expandMacro(def, operand)
	}
}

// dispatchCopy implements the copy processor: resolves name against the
// configured library roots, rejects re-entry of a member already active on
// the stack (§3.8/§4.J "recursion detected via the stack"), and otherwise
// pushes it onto the opencode provider's COPY stack for replay.
func (d *Driver) dispatchCopy(name string, line opencode.RawLine) {
	for _, active := range d.Provider.CopyNames() {
		if strings.EqualFold(active, name) {
			d.addDiagnostic(line, diagnostic.SeverityError, diagnostic.KindSemanticImmediate, "C010",
				fmt.Sprintf("recursive COPY of %s", name))
			return
		}
	}

	lines, err := d.resolveCopyMember(name)
	if err != nil {
		d.addDiagnostic(line, diagnostic.SeverityError, diagnostic.KindSemanticImmediate, "C011", err.Error())
		return
	}

	d.Provider.EnterCopy(name, lines, line.LineNo)
	d.Router.EnterCopy()
	d.lastCopyDepth = d.Provider.ActiveCopyDepth()
}

// resolveCopyMember searches the configured library roots for name,
// extracting its logical lines the same way the top-level source is
// extracted (§4.B applies uniformly to COPY members).
func (d *Driver) resolveCopyMember(name string) ([]string, error) {
	if d.fs == nil || len(d.libs) == 0 {
		return nil, fmt.Errorf("driver: no COPY library configured for %s", name)
	}
	for _, root := range d.libs {
		path := filepath.Join(root, strings.ToUpper(name)+".hlasm")
		data, err := afero.ReadFile(d.fs, path)
		if err != nil {
			continue
		}
		ex := lline.NewExtractor(data, lline.Default())
		var lines []string
		for {
			ll, ok := ex.Next()
			if !ok {
				break
			}
			lines = append(lines, string(ll.Text(data)))
		}
		return lines, nil
	}
	return nil, fmt.Errorf("driver: COPY member %s not found in configured libraries", name)
}

// equExpr is the small expression grammar `<int> | <symbol> | <symbol>
// (+|-) <int>` the EQU path supports (§3.6's dependency-solver example
// scenarios never exercise anything richer).
type equExpr struct {
	hasSymbol bool
	symbol    idpool.ID
	constant  int32
}

func parseEquExpr(pool *idpool.Pool, operand string) (equExpr, error) {
	operand = strings.TrimSpace(operand)
	if operand == "" {
		return equExpr{}, fmt.Errorf("empty EQU operand")
	}
	if n, err := strconv.Atoi(operand); err == nil {
		return equExpr{constant: int32(n)}, nil
	}

	sign := int32(1)
	splitAt := -1
	for i := 1; i < len(operand); i++ {
		if operand[i] == '+' || operand[i] == '-' {
			splitAt = i
			if operand[i] == '-' {
				sign = -1
			}
			break
		}
	}
	if splitAt < 0 {
		return equExpr{hasSymbol: true, symbol: pool.AddString(operand)}, nil
	}
	symName := operand[:splitAt]
	n, err := strconv.Atoi(operand[splitAt+1:])
	if err != nil {
		return equExpr{}, fmt.Errorf("malformed EQU operand %q: %w", operand, err)
	}
	return equExpr{hasSymbol: true, symbol: pool.AddString(symName), constant: sign * int32(n)}, nil
}

// equResolvable adapts an equExpr to depsolve.Resolvable.
type equResolvable struct {
	ctx  *ordsym.Context
	pool *idpool.Pool
	expr equExpr
}

func (e equResolvable) symbolResolved() (int32, bool) {
	sym, ok := e.ctx.Lookup(e.expr.symbol)
	if !ok || !sym.Value.Defined || !sym.Value.Absolute {
		return 0, false
	}
	return sym.Value.Abs, true
}

// Dependencies implements depsolve.Resolvable: it is dynamic, reflecting
// current resolution state rather than a fixed set captured at parse time,
// which is what lets MarkDefined's propagation see it drop to zero once its
// referenced symbol resolves.
func (e equResolvable) Dependencies() []idpool.ID {
	if !e.expr.hasSymbol {
		return nil
	}
	if _, ok := e.symbolResolved(); ok {
		return nil
	}
	return []idpool.ID{e.expr.symbol}
}

func (e equResolvable) Resolve() (depsolve.ResolveOutcome, error) {
	if !e.expr.hasSymbol {
		return depsolve.ResolveOutcome{IsAbsolute: true, Abs: e.expr.constant}, nil
	}
	v, ok := e.symbolResolved()
	if !ok {
		return depsolve.ResolveOutcome{}, fmt.Errorf("driver: %s not yet resolvable", e.pool.Name(e.expr.symbol))
	}
	return depsolve.ResolveOutcome{IsAbsolute: true, Abs: v + e.expr.constant}, nil
}

func (d *Driver) dispatchEQU(label, operand string, line opencode.RawLine) {
	nameID := d.Pool.AddString(label)
	if _, ok := d.Ctx.Lookup(nameID); !ok {
		if _, err := d.Ctx.CreateSymbol(nameID, ordsym.Undefined, 0, 0); err != nil {
			d.addDiagnostic(line, diagnostic.SeverityError, diagnostic.KindSemanticImmediate, "E020", err.Error())
			return
		}
	}

	expr, err := parseEquExpr(d.Pool, operand)
	if err != nil {
		d.addDiagnostic(line, diagnostic.SeverityError, diagnostic.KindSyntactic, "S010", err.Error())
		return
	}

	res := equResolvable{ctx: d.Ctx, pool: d.Pool, expr: expr}
	if err := d.Solver.Add(nameID, res); err != nil {
		d.addDiagnostic(line, diagnostic.SeverityError, diagnostic.KindSemanticDeferred, "C001", err.Error())
		return
	}
	// Add eagerly resolves a vertex with no outstanding dependencies; when
	// it does, MarkDefined must run too, to propagate that resolution to
	// every vertex already waiting on this name (depsolve's Add/MarkDefined
	// pairing -- see its own test suite). A vertex left unresolved by Add
	// (e.g. `B EQU A+1` before A is defined) is not marked here; it
	// resolves later via the MarkDefined call that fires when its own
	// dependency becomes defined.
	if d.Solver.IsDefined(nameID) {
		d.Solver.MarkDefined(nameID)
	}
}

func (d *Driver) addDiagnostic(line opencode.RawLine, sev diagnostic.Severity, kind diagnostic.Kind, code, msg string) {
	d.Diags.Add(diagnostic.New(diagnostic.Range{URI: string(line.URI), Begin: diagnostic.Position{Line: line.LineNo}}, sev, kind, code, msg))
}
