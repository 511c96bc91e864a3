package opencode

import (
	"testing"

	"hlasm-core/internal/preproc"
	"hlasm-core/internal/vfile"
)

func docOf(texts ...string) preproc.Document {
	d := make(preproc.Document, len(texts))
	for i, t := range texts {
		d[i] = preproc.Line{Text: t, LineNo: i + 1, IsOriginal: true}
	}
	return d
}

func TestAinsertFrontAndBackOrdering(t *testing.T) {
	p := NewProvider(vfile.New(), docOf())
	p.Ainsert("y", false) // BACK
	p.Ainsert("x", true)  // FRONT
	first, ok := p.Next()
	if !ok || first.Text != "x" {
		t.Fatalf("first = %+v, %v; want x", first, ok)
	}
	second, ok := p.Next()
	if !ok || second.Text != "y" {
		t.Fatalf("second = %+v, %v; want y", second, ok)
	}
}

func TestPriorityAinsertBeforeCopyBeforeDocument(t *testing.T) {
	p := NewProvider(vfile.New(), docOf("DOCLINE"))
	p.EnterCopy("MEM", []string{"COPYLINE"}, 1)
	p.Ainsert("AINSLINE", false)

	l, _ := p.Next()
	if l.Text != "AINSLINE" || l.Source != SourceAinsert {
		t.Fatalf("expected AINSERT line first, got %+v", l)
	}
	l, _ = p.Next()
	if l.Text != "COPYLINE" || l.Source != SourceCopy {
		t.Fatalf("expected COPY line second, got %+v", l)
	}
	l, _ = p.Next()
	if l.Text != "DOCLINE" || l.Source != SourceDocument {
		t.Fatalf("expected document line third, got %+v", l)
	}
	if _, ok := p.Next(); ok {
		t.Error("expected exhaustion after all three sources drained")
	}
}

func TestCopyFramePopsWhenExhausted(t *testing.T) {
	p := NewProvider(vfile.New(), docOf("AFTER"))
	p.EnterCopy("MEM", []string{"ONE", "TWO"}, 1)

	var got []string
	for {
		l, ok := p.Next()
		if !ok {
			break
		}
		got = append(got, l.Text)
	}
	want := []string{"ONE", "TWO", "AFTER"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRewindToCurrentPositionClearsOnlyAinsert(t *testing.T) {
	p := NewProvider(vfile.New(), docOf("A", "B", "C"))
	p.Next() // consume "A", cursor now at 1

	target := p.Snapshot()
	p.Ainsert("SPECULATIVE", false)
	p.Rewind(target)

	if p.ainsertActive {
		t.Error("AINSERT should be cleared after rewind")
	}
	l, ok := p.Next()
	if !ok || l.Text != "B" {
		t.Fatalf("expected to resume at B, got %+v, %v", l, ok)
	}
}

func TestRewindRestoresCopyFramePosition(t *testing.T) {
	p := NewProvider(vfile.New(), docOf())
	p.EnterCopy("MEM", []string{"ONE", "TWO", "THREE"}, 1)
	p.Next() // consume ONE

	target := p.Snapshot()
	p.Next() // consume TWO, simulating the lookahead scan moving ahead

	p.Rewind(target)
	l, ok := p.Next()
	if !ok || l.Text != "TWO" {
		t.Fatalf("expected rewind to resume COPY frame at TWO, got %+v, %v", l, ok)
	}
}

func TestBeginLookaheadSwitchesModeAndRewindRestoresOrdinary(t *testing.T) {
	p := NewProvider(vfile.New(), docOf("A", "B"))
	target := p.BeginLookahead()
	if p.Mode() != ModeLookahead {
		t.Fatal("expected ModeLookahead after BeginLookahead")
	}
	p.Next()
	p.Rewind(target)
	if p.Mode() != ModeOrdinary {
		t.Error("expected ModeOrdinary after Rewind")
	}
}

func TestConsumeICTLPhaseOnlyOnce(t *testing.T) {
	p := NewProvider(vfile.New(), docOf("*PROCESS OPT1", " ICTL 1,71,16", " LR 1,2"))
	isCtl := func(text string) bool {
		return len(text) > 0 && (text[0] == '*' || text == " ICTL 1,71,16")
	}
	out := p.ConsumeICTLPhase(isCtl)
	if len(out) != 2 {
		t.Fatalf("expected 2 leading ICTL/PROCESS lines, got %d", len(out))
	}
	again := p.ConsumeICTLPhase(isCtl)
	if again != nil {
		t.Error("expected ConsumeICTLPhase to be a no-op on the second call")
	}
	l, ok := p.Next()
	if !ok || l.Text != " LR 1,2" {
		t.Fatalf("expected next statement line after ICTL phase, got %+v, %v", l, ok)
	}
}

func TestAinsertPublishesVirtualFile(t *testing.T) {
	reg := vfile.New()
	p := NewProvider(reg, docOf())
	p.Ainsert("&SYSNDX GBLA", false)

	l, ok := p.Next()
	if !ok {
		t.Fatal("expected a line")
	}
	if l.URI == "" {
		t.Error("expected AINSERT line to carry a virtual URI")
	}
	if _, found := reg.Lookup(l.URI); !found {
		t.Error("expected the AINSERT URI to resolve in the registry")
	}
}
