package args

import "strings"

// quoteArgUnix wraps arg so the POSIX splitter reproduces it as one word.
// An empty argument becomes ''; an argument free of quote-worthy characters
// is returned unchanged; anything else is single-quoted, with embedded
// single quotes carried through the '\'' idiom.
func quoteArgUnix(arg string) string {
	if arg == "" {
		return "''"
	}
	if !hasSpecialCharsUnix(arg) {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

// quoteArgInternalWin escapes embedded quotes in s, doubling the backslashes
// that precede each one. It assumes the result will be wrapped in quotes;
// that is irrelevant when s contains no quotes. bslashes is the number of
// backslashes immediately preceding the insertion point; the count of
// trailing backslashes is returned so callers can carry it across pieces.
func quoteArgInternalWin(s string, bslashes int) (string, int) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' {
			bslashes++
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			// Double the preceding backslashes and suspend the outer
			// quoting around the embedded quote: cmd cannot escape
			// anything inside a quoted span.
			for j := 0; j < bslashes; j++ {
				b.WriteByte('\\')
			}
			b.WriteString(`"\^""`)
		} else {
			b.WriteByte(c)
		}
		bslashes = 0
	}
	return b.String(), bslashes
}

// quoteArgWin wraps arg so both cmd.exe and the CRT tokenizer reproduce it
// as one word. When the argument ends in backslashes the closing quote goes
// before the trailing run, not after it, so the backslash cannot be misread
// as escaping the quote.
func quoteArgWin(arg string) string {
	if arg == "" {
		return `""`
	}
	if !hasSpecialCharsWin(arg) {
		return arg
	}
	quoted, _ := quoteArgInternalWin(arg, 0)
	i := len(quoted)
	for i > 0 && quoted[i-1] == '\\' {
		i--
	}
	return `"` + quoted[:i] + `"` + quoted[i:]
}
