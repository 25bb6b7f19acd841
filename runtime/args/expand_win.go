package args

// The Windows expansion runs two independent quoting state machines in
// lockstep: cmd.exe's shell layer (circumflex escapes and double quotes)
// and the CRT CommandLineToArgv de-quoting layer. A substitution point
// where the two disagree about quoting cannot be escaped safely and is an
// unrecoverable error.

// shellQuoteState is the cmd.exe parsing state.
type shellQuoteState int

const (
	shellBasic   shellQuoteState = iota // initial state
	shellQuoted                         // double-quoted: no other meta chars are interpreted
	shellEscaped                        // circumflex-escaped: next char is not interpreted
)

// crtQuoteState is the CommandLineToArgv parsing state and some more.
// crtQuoted and crtNeedQuote must stay numerically highest: states below
// crtQuoted are the unquoted family.
type crtQuoteState int

const (
	crtBasic     crtQuoteState = iota // initial state
	crtNeedWord                       // after empty expansion; insert "" if whitespace follows
	crtInWord                         // in non-whitespace
	crtClosed                         // previous char closed the double-quoting
	crtHadQuote                       // closed double-quoting right after an expansion
	crtQuoted                         // double-quoted: spaces do not split tokens
	crtNeedQuote                      // expansion opened a quote; close it unless another follows
)

const intMax = int(^uint(0) >> 1)

// expandMacrosWin performs safe in-place macro substitution for the
// cmd.exe/CRT grammar. Replacements are CRT-quoted for their context; an
// expansion inside a circumflex-escaped quote, at a point where the two
// quoting layers disagree, or directly adjacent to a closing quote that
// cannot be re-opened is refused with ok=false and no partial output.
func expandMacrosWin(text string, find MacroFinder) (string, bool) {
	if text == "" {
		return text, true
	}

	str := text
	varPos, varLen, rsts, found := find(str, 0)
	if !found {
		return text, true
	}

	shellState := shellBasic
	crtState := crtBasic
	pos := 0
	bslashes := 0  // manual backslashes seen before the cursor
	rbslashes := 0 // trailing backslashes of the last replacement

	for {
		if pos == varPos {
			if shellState == shellEscaped {
				return text, false // circumflex'd quoted expansion site
			}
			if (shellState == shellQuoted) != (crtState == crtQuoted) {
				return text, false // CRT quoting out of sync with shell quoting
			}
			rbslashes += bslashes
			bslashes = 0
			if crtState < crtQuoted {
				if rsts == "" {
					if crtState == crtBasic {
						// Outside any quoting and the replacement is
						// empty, so a pair of quotes is due. Delaying
						// the insertion is just pedantry.
						crtState = crtNeedWord
					}
				} else if hasSpecialCharsWin(rsts) {
					if crtState == crtClosed {
						// Quoted expansion right after a closing quote.
						return text, false
					}
					var tbslashes int
					rsts, tbslashes = quoteArgInternalWin(rsts, 0)
					rsts = `"` + rsts
					if rbslashes > 0 {
						rsts = repeatByte('\\', rbslashes) + rsts
					}
					crtState = crtNeedQuote
					rbslashes = tbslashes
				} else {
					// The replacement contains no spaces and no quotes,
					// so splicing it into the current word is safe.
					crtState = crtInWord
					rsts, rbslashes = quoteArgInternalWin(rsts, rbslashes)
				}
			} else {
				rsts, rbslashes = quoteArgInternalWin(rsts, rbslashes)
			}
			str = replaceAt(str, pos, varLen, rsts)
			pos += len(rsts)
			varPos = pos
			var ok bool
			varPos, varLen, rsts, ok = find(str, varPos)
			if !ok {
				// Don't leave immediately: a pending crtNeedWord may
				// still resolve, and trailing backslashes may need
				// their closing quote.
				varPos = intMax
			}
			continue
		}

		if crtState == crtNeedQuote {
			if rbslashes > 0 {
				str = insertAt(str, pos, repeatByte('\\', rbslashes))
				pos += rbslashes
				if varPos != intMax {
					varPos += rbslashes
				}
				rbslashes = 0
			}
			str = insertAt(str, pos, `"`)
			pos++
			if varPos != intMax {
				varPos++
			}
			crtState = crtHadQuote
		}

		cc := charAt(str, pos)
		if shellState == shellBasic && cc == '^' {
			shellState = shellEscaped
		} else {
			if cc == 0 || cc == ' ' || cc == '\t' {
				if crtState < crtQuoted {
					if crtState == crtNeedWord {
						str = insertAt(str, pos, `""`)
						pos += 2
						if varPos != intMax {
							varPos += 2
						}
					}
					crtState = crtBasic
				}
				if cc == 0 {
					break
				}
				bslashes = 0
				rbslashes = 0
			} else if cc == '\\' {
				bslashes++
				if crtState < crtQuoted {
					crtState = crtInWord
				}
			} else {
				if cc == '"' {
					if shellState != shellEscaped {
						if shellState == shellQuoted {
							shellState = shellBasic
						} else {
							shellState = shellQuoted
						}
					}
					if rbslashes > 0 {
						// Offset -1 skips a possible circumflex; at
						// least one backslash precedes, so the fixed
						// offset is fine.
						str = insertAt(str, pos-1, repeatByte('\\', rbslashes))
						pos += rbslashes
						if varPos != intMax {
							varPos += rbslashes
						}
					}
					if bslashes&1 == 0 {
						// Even number of backslashes: the quote is not
						// escaped.
						switch crtState {
						case crtQuoted:
							crtState = crtClosed
						case crtClosed:
							// Two consecutive quotes make a literal
							// quote - and still close quoting. See
							// quoteArgWin.
							crtState = crtInWord
						case crtHadQuote:
							// Opening quote right after a quoted
							// expansion. Can't do that.
							return text, false
						default:
							crtState = crtQuoted
						}
					} else if crtState < crtQuoted {
						crtState = crtInWord
					}
				} else if crtState < crtQuoted {
					crtState = crtInWord
				}
				bslashes = 0
				rbslashes = 0
			}
			if varPos == intMax && rbslashes == 0 {
				break
			}
			if shellState == shellEscaped {
				shellState = shellBasic
			}
		}
		pos++
	}

	return str, true
}
