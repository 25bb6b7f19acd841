package args

import "strings"

// splitArgsWin tokenizes a command line following the Windows conventions.
// With AbortOnMeta the cmd.exe layer is applied first (environment
// expansion, circumflex escapes, metacharacter detection outside quoted
// spans); the Microsoft CRT CommandLineToArgv rules are applied always.
func splitArgsWin(text string, opts SplitOptions) ([]string, SplitError) {
	if opts.AbortOnMeta {
		prepared, status := prepareArgsWin(text, opts)
		if status != SplitOK {
			return nil, status
		}
		return doSplitArgsWin(prepared.ToWindowsArgs())
	}
	if opts.Env != nil {
		text = envExpandWin(text, opts.Env, opts.Pwd)
	}
	return doSplitArgsWin(text)
}

// envExpandWin substitutes %VAR% references. Variable names are folded to
// upper case; %CD% maps to the supplied working directory. A reference to a
// nonexistent variable is left alone, matching cmd.exe: empty values cannot
// exist, so a non-empty result is an existence check.
func envExpandWin(text string, env Environment, pwd string) string {
	rs := []rune(text)
	off := 0
	prev := -1
	for {
		that := indexRuneFrom(rs, '%', off)
		if that < 0 {
			return string(rs)
		}
		if prev >= 0 {
			name := strings.ToUpper(string(rs[prev+1 : that]))
			var val string
			if name == "CD" && pwd != "" {
				val = toNativeSeparatorsWin(pwd)
			} else {
				val = env.ExpandedValue(name)
			}
			if val != "" {
				vr := []rune(val)
				expanded := make([]rune, 0, len(rs)+len(vr))
				expanded = append(expanded, rs[:prev]...)
				expanded = append(expanded, vr...)
				expanded = append(expanded, rs[that+1:]...)
				rs = expanded
				off = prev + len(vr)
				prev = -1
				continue
			}
		}
		prev = that
		off = that + 1
	}
}

func indexRuneFrom(rs []rune, c rune, from int) int {
	for i := from; i < len(rs); i++ {
		if rs[i] == c {
			return i
		}
	}
	return -1
}

// prepareArgsWin applies the cmd.exe interpretation layer: expands %VAR%
// (or rejects any '%' when no environment is supplied), strips a leading
// '@' echo suppressor, removes circumflex escapes, skips double-quoted
// spans without interpreting them, and rejects the cmd metacharacters
// &()<>| anywhere else. An unterminated quote at end of string is no error
// for cmd. The output still carries CRT-level quoting.
func prepareArgsWin(text string, opts SplitOptions) (Arguments, SplitError) {
	if opts.Env != nil {
		text = envExpandWin(text, opts.Env, opts.Pwd)
	} else if strings.ContainsRune(text, '%') {
		return Arguments{}, FoundMeta
	}

	rs := []rune(text)
	if len(rs) > 0 && rs[0] == '@' {
		rs = rs[1:]
	}

	out := make([]rune, 0, len(rs))
	for p := 0; p < len(rs); p++ {
		c := rs[p]
		switch {
		case c == '^':
			// Drop the circumflex; the escaped character is kept
			// without further inspection.
			if p+1 < len(rs) {
				p++
				out = append(out, rs[p])
			}
		case c == '"':
			out = append(out, c)
			for {
				p++
				if p == len(rs) {
					break
				}
				out = append(out, rs[p])
				if rs[p] == '"' {
					break
				}
			}
		case isMetaCharWin(c):
			return Arguments{}, FoundMeta
		default:
			out = append(out, c)
		}
	}
	return WindowsArgs(string(out)), SplitOK
}

// doSplitArgsWin implements the Microsoft CRT CommandLineToArgv rules:
// space and tab split words; 2N backslashes before a quote become N
// backslashes with the quote toggling quoting, 2N+1 give N backslashes and
// a literal quote; two consecutive quotes inside a quoted span yield one
// literal quote while still closing the quoting (the undocumented MSDN
// three-quote rule follows from this). An unterminated trailing quote is
// tolerated, matching the real tokenizer.
func doSplitArgsWin(text string) ([]string, SplitError) {
	rs := []rune(text)
	n := len(rs)
	ret := []string{}

	p := 0
	for {
		for {
			if p == n {
				return ret, SplitOK
			}
			if !isBlankCharWin(rs[p]) {
				break
			}
			p++
		}

		var arg []rune
		inquote := false
		for {
			copyChar := true
			bslashes := 0
			for p < n && rs[p] == '\\' {
				p++
				bslashes++
			}
			if p < n && rs[p] == '"' {
				if bslashes&1 == 0 {
					if inquote {
						if p+1 < n && rs[p+1] == '"' {
							// Two consecutive quotes inside quoting
							// make one literal quote.
							p++
						} else {
							copyChar = false
						}
						inquote = false
					} else {
						copyChar = false
						inquote = true
					}
				}
				bslashes >>= 1
			}

			for ; bslashes > 0; bslashes-- {
				arg = append(arg, '\\')
			}

			if p == n || (!inquote && isBlankCharWin(rs[p])) {
				ret = append(ret, string(arg))
				break
			}

			if copyChar {
				arg = append(arg, rs[p])
			}
			p++
		}
	}
}
