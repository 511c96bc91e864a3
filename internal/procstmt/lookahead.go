package procstmt

import (
	"strings"

	"hlasm-core/internal/diagnostic"
	"hlasm-core/internal/idpool"
	"hlasm-core/internal/opencode"
	"hlasm-core/internal/ordsym"
)

// AttrKind is one of the four HLASM symbol attributes a `T'`/`L'`/`S'`/`I'`
// reference may request (§4.I).
type AttrKind byte

const (
	AttrType    AttrKind = 'T'
	AttrLength  AttrKind = 'L'
	AttrScale   AttrKind = 'S'
	AttrInteger AttrKind = 'I'
)

// AttrRequest names one attribute of one symbol needed before the statement
// that referenced it can be fully parsed.
type AttrRequest struct {
	Kind   AttrKind
	Symbol idpool.ID
}

// AttrResult is the resolved (or defaulted) value for one AttrRequest.
type AttrResult struct {
	Request   AttrRequest
	Value     int32
	Defaulted bool
}

// defaultValue is the value HLASM assigns an attribute still unresolved at
// end-of-input (§4.I step 4): T' defaults to 'U' (unknown), everything else
// to zero.
func defaultValue(kind AttrKind) int32 {
	if kind == AttrType {
		return int32('U')
	}
	return 0
}

// dcTypeLengths gives the implicit element length (bytes) HLASM assigns
// common DC/DS type letters absent an explicit length modifier -- the
// minimal slice of constant-length semantics the L' attribute needs, not a
// full object-code-emitting DC parser (object code is out of scope).
var dcTypeLengths = map[byte]int32{
	'C': 1, 'X': 1, 'B': 1,
	'H': 2, 'Y': 2,
	'F': 4, 'A': 4, 'V': 4, 'R': 4,
	'D': 8,
	'E': 4, 'L': 16,
}

// dcElementLength inspects a DC/DS operand like `F'0'` or `FL2'0'` and
// returns the element length in bytes: an explicit `L<n>` modifier between
// the type letter and the quoted value wins over the type's implicit
// length.
func dcElementLength(operand string) (int32, bool) {
	operand = strings.TrimSpace(operand)
	if operand == "" {
		return 0, false
	}
	typ := operand[0]
	base, ok := dcTypeLengths[typ]
	if !ok {
		return 0, false
	}
	rest := operand[1:]
	if idx := strings.IndexByte(rest, 'L'); idx >= 0 && idx < strings.IndexByte(rest, '\'') {
		digits := rest[idx+1:]
		end := strings.IndexByte(digits, '\'')
		if end > 0 {
			var n int32
			for _, c := range digits[:end] {
				if c < '0' || c > '9' {
					return base, true
				}
				n = n*10 + int32(c-'0')
			}
			return n, true
		}
	}
	return base, true
}

// minimalStatement is the label/instruction/operand split lookahead uses;
// it deliberately does not tokenize operands beyond DC/DS's first element,
// per §4.I step 2 ("only EQU, COPY, and DC/DS/DXD with a label need operand
// parsing; all others are parsed label+instruction only").
type minimalStatement struct {
	label       string
	instruction string
	operand     string
}

// parseMinimal splits a raw card image on whitespace into (label,
// instruction, operand). A line beginning with a blank has no label, per
// the standard column convention.
func parseMinimal(text string) minimalStatement {
	if text == "" || text[0] == ' ' {
		fields := strings.Fields(text)
		if len(fields) == 0 {
			return minimalStatement{}
		}
		ms := minimalStatement{instruction: fields[0]}
		if len(fields) > 1 {
			ms.operand = strings.Join(fields[1:], " ")
		}
		return ms
	}
	fields := strings.Fields(text)
	ms := minimalStatement{label: fields[0]}
	if len(fields) > 1 {
		ms.instruction = fields[1]
	}
	if len(fields) > 2 {
		ms.operand = strings.Join(fields[2:], " ")
	}
	return ms
}

// ResolveAttributes runs the attribute-lookahead contract of §4.I in full:
// it snapshots the current provider position, scans forward in minimal-parse
// mode for each requested symbol's defining statement, then rewinds
// unconditionally, restoring ordinary-mode statement production. Symbols
// still unresolved at end-of-input get their default value plus a
// diagnostic (§4.I steps 3-5).
func ResolveAttributes(p *opencode.Provider, pool *idpool.Pool, ctx *ordsym.Context, requests []AttrRequest) ([]AttrResult, []diagnostic.Diagnostic) {
	target := p.BeginLookahead()

	pending := make(map[idpool.ID][]AttrKind)
	for _, req := range requests {
		pending[req.Symbol] = append(pending[req.Symbol], req.Kind)
	}

	results := make(map[AttrRequest]AttrResult)

	for len(pending) > 0 {
		line, ok := p.Next()
		if !ok {
			break
		}
		ms := parseMinimal(line.Text)
		if ms.label == "" {
			continue
		}
		id, found := pool.Find([]byte(ms.label))
		if !found {
			continue
		}
		kinds, needed := pending[id]
		if !needed {
			continue
		}

		for _, kind := range kinds {
			results[AttrRequest{Kind: kind, Symbol: id}] = resolveOne(ctx, id, kind, ms)
		}
		delete(pending, id)
	}

	var diags []diagnostic.Diagnostic
	for id, kinds := range pending {
		for _, kind := range kinds {
			results[AttrRequest{Kind: kind, Symbol: id}] = AttrResult{
				Request:   AttrRequest{Kind: kind, Symbol: id},
				Value:     defaultValue(kind),
				Defaulted: true,
			}
			diags = append(diags, diagnostic.New(diagnostic.Range{}, diagnostic.SeverityWarning, diagnostic.KindSemanticDeferred,
				"A001", "attribute reference to "+pool.Name(id)+" could not be resolved by lookahead; defaulted"))
		}
	}

	p.Rewind(target)

	out := make([]AttrResult, 0, len(requests))
	for _, req := range requests {
		out = append(out, results[req])
	}
	return out, diags
}

// resolveOne computes one attribute for the statement that defines id,
// preferring an already-known ordsym.Symbol (defined earlier via forward
// reference or a prior pass) and falling back to the minimally-parsed
// defining statement's own shape for EQU/DC/DS.
func resolveOne(ctx *ordsym.Context, id idpool.ID, kind AttrKind, ms minimalStatement) AttrResult {
	req := AttrRequest{Kind: kind, Symbol: id}
	if sym, ok := ctx.Lookup(id); ok {
		switch kind {
		case AttrLength:
			return AttrResult{Request: req, Value: sym.Length}
		case AttrType:
			return AttrResult{Request: req, Value: int32(sym.Type)}
		case AttrInteger:
			return AttrResult{Request: req, Value: sym.Value.Abs}
		case AttrScale:
			return AttrResult{Request: req, Value: 0}
		}
	}

	switch ms.instruction {
	case "DC", "DS", "DXD":
		if kind == AttrLength {
			if n, ok := dcElementLength(ms.operand); ok {
				return AttrResult{Request: req, Value: n}
			}
		}
	}
	return AttrResult{Request: req, Value: defaultValue(kind), Defaulted: true}
}
