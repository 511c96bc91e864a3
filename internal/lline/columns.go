package lline

import (
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// UTF16Column converts a byte offset within a UTF-8 encoded line into the
// UTF-16 code-unit column LSP ranges must report (§4.B guarantees,
// §7 "Ranges must be UTF-16 code-unit offsets at the LSP boundary").
// Invalid byte sequences are treated as a single replacement rune, matching
// §6.1's "invalid sequences are replaced with U+FFFD and flagged".
func UTF16Column(line []byte, byteOffset int) int {
	if byteOffset > len(line) {
		byteOffset = len(line)
	}
	col := 0
	for i := 0; i < byteOffset; {
		r, size := utf8.DecodeRune(line[i:])
		if r > 0xFFFF {
			col += 2 // surrogate pair
		} else {
			col++
		}
		i += size
	}
	return col
}

// ValidateUTF8 reports whether b is valid UTF-8 and, if not, returns the
// byte offset of the first invalid sequence.
func ValidateUTF8(b []byte) (valid bool, badOffset int) {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return false, i
		}
		i += size
	}
	return true, -1
}

// RevalidateUTF8 is the byte->rune decode step §6.1 requires ahead of
// logical-line segmentation: ill-formed UTF-8 sequences are replaced with
// U+FFFD via golang.org/x/text/runes.ReplaceIllFormed, the ecosystem's
// decoder-level answer to "re-decode untrusted bytes, replacing invalid
// sequences" (the same transform.Transformer shape x/text's own encoding
// package composes for fixed encodings). replaced reports whether any
// substitution occurred, so a caller can raise the §6.1 diagnostic.
func RevalidateUTF8(b []byte) (out []byte, replaced bool) {
	clean, _, err := transform.Bytes(runes.ReplaceIllFormed(), b)
	if err != nil {
		return b, false
	}
	return clean, string(clean) != string(b)
}
