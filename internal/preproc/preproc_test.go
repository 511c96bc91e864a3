package preproc

import "testing"

func lines(texts ...string) Document {
	d := make(Document, len(texts))
	for i, t := range texts {
		d[i] = Line{Text: t, LineNo: i + 1, IsOriginal: true}
	}
	return d
}

func TestDB2StageRewritesBlock(t *testing.T) {
	in := lines(
		"         EXEC SQL",
		"           SELECT 1 INTO :X FROM SYSIBM.SYSDUMMY1",
		"         END-EXEC",
	)
	out, diags := (DB2Stage{}).Run(in)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	foundCall := false
	for _, l := range out {
		if l.Text == "         CALL  DSNHLI" {
			foundCall = true
		}
	}
	if !foundCall {
		t.Error("expected a synthesized CALL DSNHLI line")
	}
}

func TestDB2StageFlagsUnterminatedBlock(t *testing.T) {
	in := lines("         EXEC SQL", "           SELECT 1")
	_, diags := (DB2Stage{}).Run(in)
	if len(diags) != 1 {
		t.Fatalf("expected one diagnostic, got %d", len(diags))
	}
}

func TestCICSStageRewritesBlock(t *testing.T) {
	in := lines(
		"         EXEC CICS",
		"           SEND MAP('MAP1')",
		"         END-EXEC",
	)
	out, diags := (CICSStage{}).Run(in)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	foundCall := false
	for _, l := range out {
		if l.Text == "         CALL  DFHEI1" {
			foundCall = true
		}
	}
	if !foundCall {
		t.Error("expected a synthesized CALL DFHEI1 line")
	}
}

func TestPipelineComposesStagesInOrder(t *testing.T) {
	in := lines(
		"         EXEC SQL",
		"           SELECT 1 INTO :X FROM SYSIBM.SYSDUMMY1",
		"         END-EXEC",
		"         EXEC CICS",
		"           RETURN",
		"         END-EXEC",
	)
	p := NewPipeline(DB2Stage{}, CICSStage{})
	out, diags := p.Run(in)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	var sawSQL, sawCICS bool
	for _, l := range out {
		if l.Text == "         CALL  DSNHLI" {
			sawSQL = true
		}
		if l.Text == "         CALL  DFHEI1" {
			sawCICS = true
		}
	}
	if !sawSQL || !sawCICS {
		t.Error("expected both stages to have rewritten their respective blocks")
	}
}

func TestPipelinePreservesOriginalLineOrder(t *testing.T) {
	in := lines("A", "B", "C")
	p := NewPipeline(DB2Stage{}, CICSStage{})
	out, _ := p.Run(in)
	var lastSeen int
	for _, l := range out {
		if !l.IsOriginal {
			continue
		}
		if l.LineNo < lastSeen {
			t.Fatalf("original line %d appeared out of order after %d", l.LineNo, lastSeen)
		}
		lastSeen = l.LineNo
	}
}
