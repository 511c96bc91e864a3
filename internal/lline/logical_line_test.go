package lline

import (
	"bytes"
	"testing"
)

func col(n int) string { return string(bytes.Repeat([]byte{' '}, n)) }

func TestExtractorSimpleSingleSegmentLine(t *testing.T) {
	src := []byte("       LR    1,2\n")
	ex := NewExtractor(src, Default())
	ll, ok := ex.Next()
	if !ok {
		t.Fatal("expected a logical line")
	}
	if len(ll.Segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(ll.Segments))
	}
	if !bytes.Equal(ll.Reconstruct(src), src) {
		t.Errorf("Reconstruct() = %q, want %q", ll.Reconstruct(src), src)
	}
}

func TestExtractorContinuation(t *testing.T) {
	// column 72 (end=71 default -> flag at 0-indexed 71, the column after the code field) holds 'X'.
	line1 := col(7) + "LR    1," + col(56) + "X"
	line2 := col(15) + "2"
	src := []byte(line1 + "\n" + line2 + "\n")

	ex := NewExtractor(src, Default())
	ll, ok := ex.Next()
	if !ok {
		t.Fatal("expected a logical line")
	}
	if len(ll.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(ll.Segments))
	}
	if ll.Segments[0].ContinuationError || ll.Segments[1].ContinuationError {
		t.Error("unexpected continuation error")
	}
	if !bytes.Equal(ll.Reconstruct(src), src) {
		t.Errorf("Reconstruct mismatch:\ngot:  %q\nwant: %q", ll.Reconstruct(src), src)
	}
}

func TestExtractorContinuationErrorWhenPrefixNotBlank(t *testing.T) {
	line1 := col(7) + "LR    1," + col(56) + "X"
	line2 := "X" + col(14) + "2" // column 1 is non-blank
	src := []byte(line1 + "\n" + line2 + "\n")

	ex := NewExtractor(src, Default())
	ll, _ := ex.Next()
	if len(ll.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(ll.Segments))
	}
	if !ll.Segments[1].ContinuationError {
		t.Error("expected a continuation error on the second segment")
	}
	if !bytes.Equal(ll.Reconstruct(src), src) {
		t.Errorf("Reconstruct mismatch even with continuation error")
	}
}

func TestExtractorMissingNextLineAtEOF(t *testing.T) {
	line1 := col(7) + "LR    1," + col(56) + "X"
	src := []byte(line1) // no trailing newline, no continuation line
	ex := NewExtractor(src, Default())
	ll, ok := ex.Next()
	if !ok {
		t.Fatal("expected a logical line")
	}
	last := ll.Segments[len(ll.Segments)-1]
	if !last.MissingNextLine {
		t.Error("expected MissingNextLine to be set")
	}
}

func TestICTLValidateBoundaries(t *testing.T) {
	cases := []struct {
		name string
		i    ICTL
		ok   bool
	}{
		{"default", Default(), true},
		{"continuation == begin+1 accepted", ICTL{Begin: 1, End: 71, Continuation: 2}, true},
		{"continuation <= begin rejected", ICTL{Begin: 10, End: 71, Continuation: 10}, false},
		{"begin out of range", ICTL{Begin: 0, End: 71}, false},
		{"end out of range", ICTL{Begin: 1, End: 81}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.i.Validate()
			if (err == nil) != c.ok {
				t.Errorf("Validate() err=%v, want ok=%v", err, c.ok)
			}
		})
	}
}

func TestExtractorPartitionInvariantAcrossCRLFVariants(t *testing.T) {
	for _, eol := range []string{"\n", "\r", "\r\n"} {
		src := []byte("       LR    1,2" + eol + "       AR    1,2" + eol)
		ex := NewExtractor(src, Default())
		var got []byte
		for {
			ll, ok := ex.Next()
			if !ok {
				break
			}
			got = append(got, ll.Reconstruct(src)...)
		}
		if !bytes.Equal(got, src) {
			t.Errorf("eol %q: reconstruct mismatch: got %q want %q", eol, got, src)
		}
	}
}
