package extract

// Syntax repairs applied by the recovery parser. Every function here walks
// its input with Scanner so that text inside string literals is never
// touched.

// Patch applies the full repair sequence: trailing commas, bare keys,
// single-quoted strings, an unterminated string, then bracket balancing.
func Patch(text string) string {
	text = StripTrailingCommas(text)
	text = QuoteBareKeys(text)
	text = SingleToDoubleQuotes(text)
	text = FixOddQuotes(text)
	return Balance(text)
}

// StripTrailingCommas removes structural commas that are followed only by
// whitespace and a closing '}' or ']'.
func StripTrailingCommas(text string) string {
	var sc Scanner
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if sc.Feed(c) && c == ',' {
			j := skipSpace(text, i+1)
			if j < len(text) && (text[j] == '}' || text[j] == ']') {
				continue
			}
		}
		out = append(out, c)
	}
	return string(out)
}

// QuoteBareKeys wraps unquoted object keys (identifier followed by ':') that
// appear after '{' or ','.
func QuoteBareKeys(text string) string {
	var sc Scanner
	out := make([]byte, 0, len(text)+16)
	var lastSig byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if sc.Feed(c) && isIdentStart(c) && (lastSig == '{' || lastSig == ',') {
			j := i
			for j < len(text) && isIdentPart(text[j]) {
				j++
			}
			k := skipSpace(text, j)
			if k < len(text) && text[k] == ':' {
				out = append(out, '"')
				out = append(out, text[i:j]...)
				out = append(out, '"')
				lastSig = '"'
				i = j - 1
				continue
			}
		}
		out = append(out, c)
		if !isSpace(c) {
			lastSig = c
		}
	}
	return string(out)
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '-' || (c >= '0' && c <= '9')
}

// SingleToDoubleQuotes rewrites single-quoted string literals that appear
// outside double-quoted strings.
func SingleToDoubleQuotes(text string) string {
	var sc Scanner
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if !sc.Feed(c) || c != '\'' {
			out = append(out, c)
			continue
		}
		out = append(out, '"')
		j := i + 1
		for ; j < len(text); j++ {
			d := text[j]
			if d == '\\' && j+1 < len(text) {
				if text[j+1] == '\'' {
					out = append(out, '\'')
				} else {
					out = append(out, d, text[j+1])
				}
				j++
				continue
			}
			if d == '\'' {
				break
			}
			if d == '"' {
				out = append(out, '\\', '"')
				continue
			}
			out = append(out, d)
		}
		if j < len(text) {
			out = append(out, '"')
		}
		i = j
	}
	return string(out)
}

// FixOddQuotes handles a buffer that ends inside a string literal. It cuts
// back to the last field boundary (a comma right after a closing quote) when
// there is one, otherwise it closes the string.
func FixOddQuotes(text string) string {
	var sc Scanner
	boundary := -1
	for i := 0; i < len(text); i++ {
		c := text[i]
		if sc.Feed(c) && c == ',' && i > 0 && text[i-1] == '"' {
			boundary = i
		}
	}
	if !sc.InString() {
		return text
	}
	if boundary > 0 {
		return text[:boundary]
	}
	return text + `"`
}

// Balance closes every open '{' and '['. A closer that does not match the
// innermost open container gets the missing closers inserted before it;
// a closer with no matching opener is dropped. Dangling commas, colons and
// keys at the end are cleaned up before the final closers are appended.
func Balance(text string) string {
	var sc Scanner
	out := make([]byte, 0, len(text)+8)
	var stack []byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if !sc.Feed(c) {
			out = append(out, c)
			continue
		}
		switch c {
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			k := lastIndex(stack, openerFor(c))
			if k < 0 {
				continue
			}
			for j := len(stack) - 1; j > k; j-- {
				out = append(out, closerFor(stack[j]))
			}
			stack = stack[:k]
		}
		out = append(out, c)
	}
	if sc.InString() {
		out = append(out, '"')
	}

	var top byte
	if len(stack) > 0 {
		top = stack[len(stack)-1]
	}
	out = trimDangling(out, top)
	for j := len(stack) - 1; j >= 0; j-- {
		out = append(out, closerFor(stack[j]))
	}
	return StripTrailingCommas(string(out))
}

func trimDangling(out []byte, top byte) []byte {
	for {
		out = trimRightSpace(out)
		if len(out) == 0 {
			return out
		}
		switch last := out[len(out)-1]; {
		case last == ',':
			out = out[:len(out)-1]
		case last == ':':
			return append(out, "null"...)
		case last == '"' && top == '{':
			start := stringStart(out)
			if start < 0 {
				return out
			}
			prev := trimRightSpace(out[:start])
			if len(prev) == 0 || (prev[len(prev)-1] != '{' && prev[len(prev)-1] != ',') {
				return out
			}
			// A key with no value.
			out = prev
		default:
			return out
		}
	}
}

// stringStart finds the opening quote of the string literal that ends at the
// last byte of out.
func stringStart(out []byte) int {
	for i := len(out) - 2; i >= 0; i-- {
		if out[i] != '"' {
			continue
		}
		backslashes := 0
		for j := i - 1; j >= 0 && out[j] == '\\'; j-- {
			backslashes++
		}
		if backslashes%2 == 0 {
			return i
		}
	}
	return -1
}

func trimRightSpace(b []byte) []byte {
	for len(b) > 0 && isSpace(b[len(b)-1]) {
		b = b[:len(b)-1]
	}
	return b
}

func lastIndex(stack []byte, c byte) int {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == c {
			return i
		}
	}
	return -1
}

func openerFor(c byte) byte {
	if c == '}' {
		return '{'
	}
	return '['
}

func closerFor(c byte) byte {
	if c == '{' {
		return '}'
	}
	return ']'
}
