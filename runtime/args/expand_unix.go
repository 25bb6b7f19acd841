package args

import "strings"

// mxQuoting is the quoting context of the Unix expansion scanner.
type mxQuoting int

const (
	mxBasic       mxQuoting = iota // unquoted
	mxSingleQuote                  // inside '...'
	mxDoubleQuote                  // inside "..."
	mxParen                        // inside $( ) or ( ) command context
	mxSubst                        // inside ${ }
	mxGroup                        // inside { } command grouping
	mxMath                         // inside $(( )) arithmetic
)

// mxState is one level of quoting context. Double quoting bizarrely affects
// the behavior of some complex expressions within the quoted string, so the
// flag is inherited separately from the context kind: entering a command
// substitution suspends the surrounding double quotes for nested content.
type mxState struct {
	current mxQuoting
	dquote  bool
}

// unixExpander scans a command line and splices safely quoted replacement
// text into every macro occurrence. A $(( sequence may turn out to be
// $( ( after all, so the scanner supports speculative parsing: snapshot
// before committing to arithmetic, roll back on a false hit.
type unixExpander struct {
	str    string
	pos    int
	varPos int
	saves  []mxSnapshot
}

type mxSnapshot struct {
	str    string
	pos    int
	varPos int
}

func (x *unixExpander) snapshot(pos int) {
	x.saves = append(x.saves, mxSnapshot{str: x.str, pos: pos, varPos: x.varPos})
}

func (x *unixExpander) commit() {
	x.saves = x.saves[:len(x.saves)-1]
}

func (x *unixExpander) rollback() {
	sav := x.saves[len(x.saves)-1]
	x.saves = x.saves[:len(x.saves)-1]
	x.str = sav.str
	x.pos = sav.pos
	x.varPos = sav.varPos
}

// escapeForDoubleQuotes backslash-escapes the characters that stay special
// inside a double-quoted string.
func escapeForDoubleQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '$' || c == '`' || c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

func suspendSingleQuotes(s string) string {
	return strings.ReplaceAll(s, "'", `'\''`)
}

// expandMacrosUnix performs safe in-place macro substitution for the POSIX
// shell grammar. Each replacement is quoted for the lexical context of its
// occurrence: escaped when inside double quotes, quote-suspended when
// inside single quotes, single-quoted when bare text contains quote-worthy
// characters, verbatim otherwise. Backticks are rewritten into $( ... )
// command substitutions first, because shells disagree about escape
// handling inside backticks; the inserted space avoids accidentally forming
// $((. ok=false means the string could not be parsed and no substitution
// was performed; a half-escaped result is never returned.
func expandMacrosUnix(text string, find MacroFinder) (string, bool) {
	if text == "" {
		return text, true
	}

	x := &unixExpander{str: text}
	varLen, rsts := 0, ""
	var found bool
	x.varPos, varLen, rsts, found = find(x.str, 0)
	if !found {
		return text, true
	}

	state := mxState{current: mxBasic}
	var sstack []mxState

	for x.pos < len(x.str) {
		if x.pos == x.varPos {
			// Expansion rules trigger in any context.
			switch {
			case state.dquote:
				rsts = escapeForDoubleQuotes(rsts)
			case state.current == mxSingleQuote:
				rsts = suspendSingleQuotes(rsts)
			case rsts == "" || hasSpecialCharsUnix(rsts):
				// The choice of single quoting here is arbitrary.
				rsts = "'" + suspendSingleQuotes(rsts) + "'"
			}
			x.str = replaceAt(x.str, x.pos, varLen, rsts)
			x.pos += len(rsts)
			x.varPos, varLen, rsts, found = find(x.str, x.pos)
			if !found {
				break
			}
			continue
		}

		cc := charAt(x.str, x.pos)
		switch {
		case state.current == mxSingleQuote:
			// Only the closing quote means anything here.
			if cc == '\'' {
				state = sstack[len(sstack)-1]
				sstack = sstack[:len(sstack)-1]
			}

		case cc == '\\':
			x.pos += 2
			if x.varPos < x.pos {
				return text, false // backslash-escaped expansion site
			}
			continue

		case cc == '$':
			x.pos++
			cc = charAt(x.str, x.pos)
			if cc == '(' {
				sstack = append(sstack, state)
				if charAt(x.str, x.pos+1) == '(' {
					// $(( starts arithmetic - unless it is $( ( after
					// all, so remember where to retry from.
					x.snapshot(x.pos + 2)
					state.current = mxMath
					x.pos += 2
					continue
				}
				// $( opens a new context which overrides surrounding
				// double quoting.
				state.current = mxParen
				state.dquote = false
			} else if cc == '{' {
				sstack = append(sstack, state)
				state.current = mxSubst
			}
			// Else a bare variable substitution has started.

		case cc == '`':
			// Every shell interprets escapes inside backticks
			// differently, which endangers the quoting of our own
			// insertions. Apply bash's rules and rewrite into a POSIX
			// command substitution with clear semantics.
			if ok := x.rewriteBacktick(state.dquote); !ok {
				return text, false // unterminated backtick expression
			}
			sstack = append(sstack, state)
			state.current = mxParen
			state.dquote = false
			continue

		case state.current == mxDoubleQuote:
			if cc == '"' {
				state = sstack[len(sstack)-1]
				sstack = sstack[:len(sstack)-1]
			}

		case cc == '\'':
			if !state.dquote {
				sstack = append(sstack, state)
				state.current = mxSingleQuote
			}

		case cc == '"':
			if !state.dquote {
				sstack = append(sstack, state)
				state.current = mxDoubleQuote
				state.dquote = true
			}

		case state.current == mxSubst:
			if cc == '}' {
				state = sstack[len(sstack)-1]
				sstack = sstack[:len(sstack)-1]
			}

		case cc == ')':
			switch state.current {
			case mxMath:
				if charAt(x.str, x.pos+1) == ')' {
					x.commit()
					state = sstack[len(sstack)-1]
					sstack = sstack[:len(sstack)-1]
					x.pos += 2
				} else {
					// False hit: the $(( was a $( ( in fact. ash does
					// not care (and will complain), but bash parses it.
					x.rollback()
					state.current = mxParen
					state.dquote = false
					sstack = append(sstack, state)
				}
				continue
			case mxParen:
				state = sstack[len(sstack)-1]
				sstack = sstack[:len(sstack)-1]
			default:
				// Excess closing parenthesis; scanning past it would
				// only guess.
				return x.str, true
			}

		case cc == '}':
			if state.current == mxGroup {
				state = sstack[len(sstack)-1]
				sstack = sstack[:len(sstack)-1]
			} else {
				return x.str, true // excess closing brace
			}

		case cc == '(':
			// Context-saving command grouping.
			sstack = append(sstack, state)
			state.current = mxParen

		case cc == '{':
			// Plain command grouping.
			sstack = append(sstack, state)
			state.current = mxGroup
		}
		x.pos++
	}

	return x.str, true
}

// rewriteBacktick replaces the backtick pair starting at the cursor with a
// $( ... ) substitution, unescaping the backslash sequences bash strips
// inside backticks and keeping the pending macro position in step.
func (x *unixExpander) rewriteBacktick(dquote bool) bool {
	x.str = replaceAt(x.str, x.pos, 1, "$( ")
	x.varPos += 2
	x.pos += 3
	pos2 := x.pos
	for {
		if pos2 >= len(x.str) {
			return false
		}
		cc := charAt(x.str, pos2)
		if cc == '`' {
			break
		}
		if cc == '\\' {
			pos2++
			cc = charAt(x.str, pos2)
			if cc == '$' || cc == '`' || cc == '\\' || (cc == '"' && dquote) {
				x.str = removeAt(x.str, pos2-1, 1)
				if x.varPos >= pos2 {
					x.varPos--
				}
				continue
			}
		}
		pos2++
	}
	x.str = replaceAt(x.str, pos2, 1, ")")
	return true
}
