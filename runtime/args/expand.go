package args

// MacroFinder locates macro occurrences inside a command-line string. Given
// the current text and a byte offset, it returns the position and byte
// length of the next occurrence at or after from, together with its
// replacement text, or ok=false when no further occurrence exists. The text
// passed in changes between calls as replacements are spliced in, so
// finders must not cache it.
type MacroFinder func(text string, from int) (pos, length int, replacement string, ok bool)

// String splicing helpers for the in-place expansion machines. All offsets
// are byte offsets; every character either grammar dispatches on is ASCII,
// so multi-byte sequences pass through untouched.

func charAt(s string, pos int) byte {
	if pos >= 0 && pos < len(s) {
		return s[pos]
	}
	return 0
}

func replaceAt(s string, pos, n int, repl string) string {
	return s[:pos] + repl + s[pos+n:]
}

func insertAt(s string, pos int, ins string) string {
	return s[:pos] + ins + s[pos:]
}

func removeAt(s string, pos, n int) string {
	return s[:pos] + s[pos+n:]
}

func repeatByte(c byte, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = c
	}
	return string(b)
}
