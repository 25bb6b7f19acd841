package args

import (
	"unicode"

	"github.com/aledsdavies/cmdline/core/platform"
)

// ArgIterator steps through the arguments of a command line one at a time,
// using the same grammar as the splitters but resumable, so a single
// argument can be deleted or inserted surgically without re-serializing the
// whole line (which would destroy unrelated quoting the user typed).
//
// After Next returns true, Value holds the decoded argument when Simple
// reports true; a non-simple argument contains substitutions or expansions
// and must be treated as opaque.
type ArgIterator struct {
	text   []rune
	osType platform.OsType
	pos    int
	prev   int
	value  string
	simple bool
}

// NewArgIterator creates an iterator over text for the grammar of osType.
func NewArgIterator(text string, osType platform.OsType) *ArgIterator {
	return &ArgIterator{text: []rune(text), osType: osType}
}

// Text returns the current, possibly edited, command line.
func (it *ArgIterator) Text() string { return string(it.text) }

// Value returns the most recently yielded argument. It is empty for
// non-simple arguments.
func (it *ArgIterator) Value() string { return it.value }

// Simple reports whether the current argument is free of substitutions and
// expansions, so its decoded value can be taken verbatim.
func (it *ArgIterator) Simple() bool { return it.simple }

// Next advances past one argument. It returns false, leaving the cursor at
// the end, when no more arguments exist.
func (it *ArgIterator) Next() bool {
	// The previous-position update is delayed so the last argument can
	// still be deleted after Next discovers there are no more. A bit of a
	// hack, but it keeps DeleteArg trivial.
	if it.osType == platform.Windows {
		return it.nextWin()
	}
	return it.nextUnix()
}

func (it *ArgIterator) nextWin() bool {
	prev := it.pos
	it.simple = true
	it.value = ""

	shellState := shellBasic
	crtState := crtBasic // only crtBasic, crtInWord, crtClosed, crtQuoted occur here

	type varScanState int
	const (
		noVar varScanState = iota
		newVar
		fullVar
	)
	varState := noVar
	bslashes := 0
	var value []rune

	yield := func() bool {
		if it.simple {
			for ; bslashes > 0; bslashes-- {
				value = append(value, '\\')
			}
			it.value = string(value)
		} else {
			it.value = ""
		}
		if crtState != crtBasic {
			it.prev = prev
			return true
		}
		return false
	}

	for ; ; it.pos++ {
		var cc rune
		if it.pos < len(it.text) {
			cc = it.text[it.pos]
		}
		if shellState == shellBasic && cc == '^' {
			varState = noVar
			shellState = shellEscaped
		} else if (shellState == shellBasic && isMetaCharWin(cc)) || cc == 0 {
			// A "bit" simplistic: the CRT quote state is ignored here.
			return yield()
		} else {
			if crtState != crtQuoted && (cc == ' ' || cc == '\t') {
				if crtState != crtBasic {
					// The shell quote state is lost here. Whatever.
					return yield()
				}
			} else if cc == '\\' {
				bslashes++
				if crtState != crtQuoted {
					crtState = crtInWord
				}
				varState = noVar
			} else {
				if cc == '"' {
					varState = noVar
					if shellState != shellEscaped {
						if shellState == shellQuoted {
							shellState = shellBasic
						} else {
							shellState = shellQuoted
						}
					}
					obslashes := bslashes
					bslashes >>= 1
					if obslashes&1 == 0 {
						// Even number of backslashes: the quote is not
						// escaped.
						switch crtState {
						case crtQuoted:
							crtState = crtClosed
							continue
						case crtClosed:
							// Two consecutive quotes make a literal
							// quote - and still close quoting.
							crtState = crtInWord
						default:
							crtState = crtQuoted
							continue
						}
					} else if crtState != crtQuoted {
						crtState = crtInWord
					}
				} else {
					if cc == '%' {
						if varState == fullVar {
							it.simple = false
							varState = noVar
						} else {
							varState = newVar
						}
					} else if varState != noVar {
						// Not quite cmd reality, but a sane
						// approximation of a variable name.
						if cc == '_' || cc == '-' || cc == '.' ||
							unicode.IsLetter(cc) || unicode.IsNumber(cc) {
							varState = fullVar
						} else {
							varState = noVar
						}
					}
					if crtState != crtQuoted {
						crtState = crtInWord
					}
				}
				for ; bslashes > 0; bslashes-- {
					value = append(value, '\\')
				}
				value = append(value, cc)
			}
			if shellState == shellEscaped {
				shellState = shellBasic
			}
		}
	}
}

func (it *ArgIterator) nextUnix() bool {
	prev := it.pos
	it.simple = true
	it.value = ""

	state := mxState{current: mxBasic}
	var sstack []mxState
	var ostack []int
	var value []rune
	hadWord := false

	pop := func() {
		state = sstack[len(sstack)-1]
		sstack = sstack[:len(sstack)-1]
	}

loop:
	for ; it.pos < len(it.text); it.pos++ {
		cc := it.text[it.pos]
		switch {
		case state.current == mxSingleQuote:
			if cc == '\'' {
				pop()
				continue
			}

		case cc == '\\':
			it.pos++
			if it.pos >= len(it.text) {
				break loop
			}
			cc = it.text[it.pos]
			if state.dquote && cc != '"' && cc != '\\' && cc != '$' && cc != '`' {
				value = append(value, '\\')
			}

		case cc == '$':
			it.pos++
			if it.pos >= len(it.text) {
				break loop
			}
			cc = it.text[it.pos]
			if cc == '(' {
				sstack = append(sstack, state)
				it.pos++
				if it.pos >= len(it.text) {
					break loop
				}
				if it.text[it.pos] == '(' {
					ostack = append(ostack, it.pos)
					state.current = mxMath
				} else {
					state.dquote = false
					state.current = mxParen
					// Cursor one char too far now - whatever.
				}
			} else if cc == '{' {
				sstack = append(sstack, state)
				state.current = mxSubst
			}
			// Else the cursor is one char too far now - whatever.
			it.simple = false
			hadWord = true
			continue

		case cc == '`':
			for {
				it.pos++
				if it.pos >= len(it.text) {
					it.simple = false
					it.value = ""
					it.prev = prev
					return true
				}
				cc = it.text[it.pos]
				if cc == '`' {
					break
				}
				if cc == '\\' {
					it.pos++ // may overshoot by one - whatever
				}
			}
			it.simple = false
			hadWord = true
			continue

		case state.current == mxDoubleQuote:
			if cc == '"' {
				pop()
				continue
			}

		case cc == '\'':
			if !state.dquote {
				sstack = append(sstack, state)
				state.current = mxSingleQuote
				hadWord = true
				continue
			}

		case cc == '"':
			if !state.dquote {
				sstack = append(sstack, state)
				state.dquote = true
				state.current = mxDoubleQuote
				hadWord = true
				continue
			}

		case state.current == mxSubst:
			if cc == '}' {
				pop()
			}
			continue // not simple anyway

		case cc == ')':
			switch state.current {
			case mxMath:
				it.pos++
				if it.pos >= len(it.text) {
					break loop
				}
				if it.text[it.pos] == ')' {
					ostack = ostack[:len(ostack)-1]
					pop()
				} else {
					// False hit: the $(( was a $( ( in fact. ash does
					// not care, but bash does.
					it.pos = ostack[len(ostack)-1]
					ostack = ostack[:len(ostack)-1]
					state.current = mxParen
					state.dquote = false
					sstack = append(sstack, state)
				}
				continue
			case mxParen:
				pop()
				continue
			default:
				break loop
			}

		case cc == '(':
			sstack = append(sstack, state)
			state.current = mxParen
			it.simple = false
			hadWord = true
			continue

		case cc == '<' || cc == '>' || cc == '&' || cc == '|' || cc == ';':
			if len(sstack) == 0 {
				break loop
			}

		case cc == ' ' || cc == '\t':
			if !hadWord {
				continue
			}
			if len(sstack) == 0 {
				break loop
			}
		}
		value = append(value, cc)
		hadWord = true
	}

	if it.simple {
		it.value = string(value)
	}
	if hadWord {
		it.prev = prev
		return true
	}
	return false
}

// DeleteArg removes the most recently yielded argument from the command
// line, consuming trailing whitespace when it was the first argument, and
// leaves the cursor where the argument started.
func (it *ArgIterator) DeleteArg() {
	if it.prev == 0 {
		for it.pos < len(it.text) && unicode.IsSpace(it.text[it.pos]) {
			it.pos++
		}
	}
	it.text = append(it.text[:it.prev:it.prev], it.text[it.pos:]...)
	it.pos = it.prev
}

// AppendArg inserts arg, freshly quoted, at the cursor, splicing in a
// separating space as needed.
func (it *ArgIterator) AppendArg(arg string) {
	quoted := []rune(QuoteArg(arg, it.osType))
	var ins []rune
	at := it.pos
	if it.pos == 0 {
		ins = append(quoted, ' ')
	} else {
		ins = append([]rune{' '}, quoted...)
	}
	rest := append([]rune(nil), it.text[at:]...)
	it.text = append(append(it.text[:at:at], ins...), rest...)
	it.pos += len(quoted) + 1
}
