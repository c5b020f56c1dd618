package extract

// Scanner tracks whether a byte stream is inside a JSON string literal. It is
// the single primitive used to find object boundaries, keys, and structural
// characters anywhere in a model buffer: braces, brackets, commas and colons
// only count when Feed reports them as structural.
type Scanner struct {
	inString bool
	escaped  bool
}

// Feed advances over c and reports whether c is structural: outside any
// string literal and not itself a quote. A backslash suppresses the meaning
// of exactly the next byte.
func (s *Scanner) Feed(c byte) bool {
	if s.escaped {
		s.escaped = false
		return false
	}
	switch c {
	case '\\':
		s.escaped = true
		return false
	case '"':
		s.inString = !s.inString
		return false
	}
	return !s.inString
}

// InString reports whether the scanner is currently inside a string literal.
func (s *Scanner) InString() bool { return s.inString }

// Span is a half-open byte range [Start, End) of a buffer.
type Span struct {
	Start int
	End   int
}

// Of returns the text covered by the span.
func (sp Span) Of(text string) string { return text[sp.Start:sp.End] }

// ScanObjects collects the top-level objects that start at or after from.
// Scanning stops at a closer (']' or '}') that belongs to the enclosing
// container, so scanning the inside of an array yields exactly its object
// elements. If an object has started but not closed by the end of text, it
// is returned as open.
func ScanObjects(text string, from int) (spans []Span, open *Span) {
	var sc Scanner
	depth := 0
	start := -1
	for i := from; i < len(text); i++ {
		c := text[i]
		if !sc.Feed(c) {
			continue
		}
		switch c {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				return spans, nil
			}
			depth--
			if depth == 0 {
				spans = append(spans, Span{Start: start, End: i + 1})
				start = -1
			}
		case ']':
			if depth == 0 {
				return spans, nil
			}
		}
	}
	if depth > 0 && start >= 0 {
		return spans, &Span{Start: start, End: len(text)}
	}
	return spans, nil
}

// ObjectAt returns the balanced object starting at text[i]. ok is false when
// text[i] is not '{' or the object has not closed yet.
func ObjectAt(text string, i int) (Span, bool) {
	if i < 0 || i >= len(text) || text[i] != '{' {
		return Span{}, false
	}
	var sc Scanner
	depth := 0
	for j := i; j < len(text); j++ {
		c := text[j]
		if !sc.Feed(c) {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return Span{Start: i, End: j + 1}, true
			}
		}
	}
	return Span{}, false
}

// FindKey locates an object key named key and returns the index of its value
// (after the colon and any whitespace). Keys of the root object win; a match
// at any other depth is used only when the root has none. Occurrences inside
// string values never match.
func FindKey(text, key string) (int, bool) {
	var sc Scanner
	depth := 0
	strStart, strDepth := -1, 0
	fallback := -1
	for i := 0; i < len(text); i++ {
		c := text[i]
		was := sc.InString()
		structural := sc.Feed(c)
		if c == '"' && !was && sc.InString() {
			strStart, strDepth = i, depth
			continue
		}
		if was && !sc.InString() {
			if strStart >= 0 && text[strStart+1:i] == key {
				if v, ok := valueAfterColon(text, i+1); ok {
					if strDepth == 1 {
						return v, true
					}
					if fallback < 0 {
						fallback = v
					}
				}
			}
			strStart = -1
			continue
		}
		if !structural {
			continue
		}
		switch c {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		}
	}
	if fallback >= 0 {
		return fallback, true
	}
	return 0, false
}

func valueAfterColon(text string, i int) (int, bool) {
	i = skipSpace(text, i)
	if i >= len(text) || text[i] != ':' {
		return 0, false
	}
	i = skipSpace(text, i+1)
	if i >= len(text) {
		return 0, false
	}
	return i, true
}

func skipSpace(text string, i int) int {
	for i < len(text) && isSpace(text[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}
