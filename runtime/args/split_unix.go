package args

import "unicode"

// splitArgsUnix tokenizes a command line following the POSIX shell subset:
// whitespace splits words, backslash quotes the next character, single
// quotes copy verbatim, double quotes suppress splitting while keeping
// backslash escapes for '"' and '\', and $VAR / ${VAR} substitute from the
// environment snapshot. A leading unquoted '~' (alone or before '/') expands
// to the home directory. With AbortOnMeta, any construct outside this subset
// yields FoundMeta instead of being passed through.
//
// The original grammar is a single goto-threaded loop; here it is a cursor
// struct with one dispatch loop per quoting context. A fetch flag stands in
// for the re-dispatch jumps: after an unbraced expansion the terminating
// character has already been consumed and must be examined again.
func splitArgsUnix(text string, opts SplitOptions) ([]string, SplitError) {
	s := &unixSplitter{runes: []rune(text), opts: opts}
	for {
		// Skip inter-word whitespace.
		for {
			if s.pos >= len(s.runes) {
				return s.words, SplitOK
			}
			if !unicode.IsSpace(s.runes[s.pos]) {
				break
			}
			s.pos++
		}
		if status := s.parseWord(); status != SplitOK {
			return nil, status
		}
	}
}

type unixSplitter struct {
	runes []rune
	pos   int
	opts  SplitOptions
	words []string
}

// parseWord consumes one word starting at the current (non-space) cursor
// position and appends the words it produces. An expansion can produce
// several words or none at all.
func (s *unixSplitter) parseWord() SplitError {
	var word []rune
	hadWord := false

	c := s.runes[s.pos]
	s.pos++

	dispatch := true
	if c == '~' {
		if s.pos >= len(s.runes) || unicode.IsSpace(s.runes[s.pos]) || s.runes[s.pos] == '/' {
			word = append(word, []rune(s.opts.homeDir())...)
			hadWord = true
			dispatch = false
		} else if s.opts.AbortOnMeta {
			return FoundMeta
		}
	}

	for {
		if dispatch {
			redispatch, status := s.dispatchChar(&c, &word, &hadWord)
			if status != SplitOK {
				return status
			}
			if redispatch {
				// c already holds the character after an unbraced
				// expansion; it still terminates the word if blank.
				if unicode.IsSpace(c) {
					break
				}
				continue
			}
		}
		dispatch = true

		if s.pos >= len(s.runes) {
			break
		}
		c = s.runes[s.pos]
		s.pos++
		if unicode.IsSpace(c) {
			break
		}
	}

	if hadWord {
		s.words = append(s.words, string(word))
	}
	return SplitOK
}

// dispatchChar handles one unquoted character. redispatch means c has been
// replaced by an already-fetched character that needs another dispatch.
func (s *unixSplitter) dispatchChar(c *rune, word *[]rune, hadWord *bool) (redispatch bool, status SplitError) {
	switch {
	case *c == '\'':
		start := s.pos
		for {
			if s.pos >= len(s.runes) {
				return false, BadQuoting
			}
			cc := s.runes[s.pos]
			s.pos++
			if cc == '\'' {
				break
			}
		}
		*word = append(*word, s.runes[start:s.pos-1]...)
		*hadWord = true

	case *c == '"':
		if status := s.parseDoubleQuoted(word); status != SplitOK {
			return false, status
		}
		*hadWord = true

	case *c == '$' && s.opts.Env != nil:
		return s.expandBare(c, word, hadWord)

	default:
		if *c == '\\' {
			if s.pos >= len(s.runes) {
				return false, BadQuoting
			}
			*c = s.runes[s.pos]
			s.pos++
		} else if s.opts.AbortOnMeta && isMetaCharUnix(*c) {
			return false, FoundMeta
		}
		*word = append(*word, *c)
		*hadWord = true
	}
	return false, SplitOK
}

// parseDoubleQuoted consumes the contents of a double-quoted span, the
// opening quote already eaten. Expansions inside the quotes are not
// word-split.
func (s *unixSplitter) parseDoubleQuoted(word *[]rune) SplitError {
	var c rune
	fetch := true
	for {
		if fetch {
			if s.pos >= len(s.runes) {
				return BadQuoting
			}
			c = s.runes[s.pos]
			s.pos++
		}
		fetch = true

		if c == '"' {
			return SplitOK
		}
		switch {
		case c == '\\':
			if s.pos >= len(s.runes) {
				return BadQuoting
			}
			c = s.runes[s.pos]
			s.pos++
			// Inside double quotes the backslash only quotes '"' and
			// '\' (plus '$' and '`' when those abort); otherwise it is
			// kept literally.
			if c != '"' && c != '\\' && !(s.opts.AbortOnMeta && (c == '$' || c == '`')) {
				*word = append(*word, '\\')
			}

		case c == '$' && s.opts.Env != nil:
			braced := false
			if s.pos >= len(s.runes) {
				return BadQuoting
			}
			c = s.runes[s.pos]
			s.pos++
			if c == '{' {
				if s.pos >= len(s.runes) {
					return BadQuoting
				}
				c = s.runes[s.pos]
				s.pos++
				braced = true
			}
			var name []rune
			for unicode.IsLetter(c) || unicode.IsNumber(c) || c == '_' {
				name = append(name, c)
				if s.pos >= len(s.runes) {
					return BadQuoting
				}
				c = s.runes[s.pos]
				s.pos++
			}
			val, ok := s.lookupVar(string(name))
			if !ok {
				return FoundMeta
			}
			*word = append(*word, []rune(val)...)
			if !braced {
				// The terminator is already in c; dispatch it again.
				fetch = false
				continue
			}
			if c != '}' {
				if s.opts.AbortOnMeta {
					return FoundMeta // assume a complex expansion
				}
				return BadQuoting
			}
			continue

		case s.opts.AbortOnMeta && (c == '$' || c == '`'):
			return FoundMeta
		}
		*word = append(*word, c)
	}
}

// expandBare handles $VAR / ${VAR} outside quotes. The substituted value is
// itself split on blanks, so it can contribute several words or none.
func (s *unixSplitter) expandBare(c *rune, word *[]rune, hadWord *bool) (redispatch bool, status SplitError) {
	if s.pos >= len(s.runes) {
		return false, BadQuoting // a trailing bare '$'; bash keeps it, we reject it
	}
	*c = s.runes[s.pos]
	s.pos++
	braced := false
	if *c == '{' {
		if s.pos >= len(s.runes) {
			return false, BadQuoting
		}
		*c = s.runes[s.pos]
		s.pos++
		braced = true
	}
	var name []rune
	for unicode.IsLetter(*c) || unicode.IsNumber(*c) || *c == '_' {
		name = append(name, *c)
		if s.pos >= len(s.runes) {
			if braced {
				return false, BadQuoting
			}
			*c = ' '
			break
		}
		*c = s.runes[s.pos]
		s.pos++
	}
	val, ok := s.lookupVar(string(name))
	if !ok {
		return false, FoundMeta
	}
	for _, cc := range val {
		if cc == '\t' || cc == '\n' || cc == ' ' {
			if *hadWord {
				s.words = append(s.words, string(*word))
				*word = (*word)[:0]
				*hadWord = false
			}
		} else {
			*word = append(*word, cc)
			*hadWord = true
		}
	}
	if !braced {
		return true, SplitOK
	}
	if *c != '}' {
		if s.opts.AbortOnMeta {
			return false, FoundMeta // assume a complex expansion
		}
		return false, BadQuoting
	}
	return false, SplitOK
}

// lookupVar resolves one variable name. PWD is special-cased to the supplied
// working directory. An unset variable is assumed to be a shell construct we
// do not model (ok=false) under AbortOnMeta, and silently drops otherwise.
func (s *unixSplitter) lookupVar(name string) (string, bool) {
	if name == "PWD" && s.opts.Pwd != "" {
		return s.opts.Pwd, true
	}
	if _, found := s.opts.Env.Lookup(name); found {
		return s.opts.Env.ExpandedValue(name), true
	}
	if s.opts.AbortOnMeta {
		return "", false
	}
	return "", true
}
