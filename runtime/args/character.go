package args

// ASCII character lookup tables for fast classification. Characters at or
// above 128 are never metacharacters in either grammar; callers must bounds
// check before indexing:
//
//	if c < 128 && isMetaUnix[c] { ... }
var (
	// cmd.exe metacharacters that force the shell fallback when found
	// outside double quotes.
	isMetaWin [128]bool

	// POSIX shell characters outside the supported splitting subset.
	isMetaUnix [128]bool

	// Characters that make an argument quote-worthy on Unix. Superset of
	// isMetaUnix: whitespace, control characters, '!' and '~' as well.
	isSpecialUnix [128]bool

	// Characters that make an argument quote-worthy on Windows: control
	// characters, space, the cmd metacharacters plus '^' and '"', and the
	// potential separators ',', ';', '='.
	isSpecialWin [128]bool

	// Whitespace as understood by the Microsoft CRT tokenizer.
	isBlankWin [128]bool
)

func init() {
	for _, ch := range "&()<>|" {
		isMetaWin[ch] = true
	}

	for _, ch := range "\\'\"$`<>|;&(){}*?#[]" {
		isMetaUnix[ch] = true
	}

	for i := 0; i <= 32; i++ {
		isSpecialUnix[i] = true
		isSpecialWin[i] = true
	}
	for _, ch := range "\\'\"$`<>|;&(){}*?#!~[]" {
		isSpecialUnix[ch] = true
	}
	for _, ch := range "\"&(),;<=>^|" {
		isSpecialWin[ch] = true
	}

	isBlankWin[' '] = true
	isBlankWin['\t'] = true
}

func isMetaCharWin(c rune) bool {
	return c >= 0 && c < 128 && isMetaWin[c]
}

func isMetaCharUnix(c rune) bool {
	return c >= 0 && c < 128 && isMetaUnix[c]
}

func isSpecialCharUnix(c rune) bool {
	return c >= 0 && c < 128 && isSpecialUnix[c]
}

func isSpecialCharWin(c rune) bool {
	return c >= 0 && c < 128 && isSpecialWin[c]
}

func isBlankCharWin(c rune) bool {
	return c == ' ' || c == '\t'
}

func hasSpecialCharsUnix(arg string) bool {
	for _, c := range arg {
		if isSpecialCharUnix(c) {
			return true
		}
	}
	return false
}

func hasSpecialCharsWin(arg string) bool {
	for _, c := range arg {
		if isSpecialCharWin(c) {
			return true
		}
	}
	return false
}
