package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func structuralBytes(text string) string {
	var sc Scanner
	var out []byte
	for i := 0; i < len(text); i++ {
		if sc.Feed(text[i]) {
			out = append(out, text[i])
		}
	}
	return string(out)
}

func TestScanner_IgnoresBracesInStrings(t *testing.T) {
	assert.Equal(t, `{:}`, structuralBytes(`{"a":"{[}]"}`))
}

func TestScanner_EscapedQuoteStaysInString(t *testing.T) {
	assert.Equal(t, `{:}`, structuralBytes(`{"a":"say \"}\" now"}`))
}

func TestScanner_EscapedBackslashClosesString(t *testing.T) {
	// "a\\" is a complete string ending in one backslash.
	text := `{"k":"a\\"}`
	assert.Equal(t, `{:}`, structuralBytes(text))

	sp, ok := ObjectAt(text, 0)
	require.True(t, ok)
	assert.Equal(t, text, sp.Of(text))
}

func TestScanner_InString(t *testing.T) {
	var sc Scanner
	for _, c := range []byte(`{"open`) {
		sc.Feed(c)
	}
	assert.True(t, sc.InString())
	sc.Feed('"')
	assert.False(t, sc.InString())
}

func TestScanObjects_NestedAndOpen(t *testing.T) {
	text := `[{"a":{"b":1}}, {"c":"}"}, {"d":`
	spans, open := ScanObjects(text, 1)
	require.Len(t, spans, 2)
	assert.Equal(t, `{"a":{"b":1}}`, spans[0].Of(text))
	assert.Equal(t, `{"c":"}"}`, spans[1].Of(text))
	require.NotNil(t, open)
	assert.Equal(t, `{"d":`, open.Of(text))
}

func TestScanObjects_StopsAtEnclosingCloser(t *testing.T) {
	text := `[{"a":1}] {"x":1}`
	spans, open := ScanObjects(text, 1)
	require.Len(t, spans, 1)
	assert.Nil(t, open)
}

func TestObjectAt_NotClosed(t *testing.T) {
	_, ok := ObjectAt(`{"a":{"b":1}`, 0)
	assert.False(t, ok)

	_, ok = ObjectAt(`x{}`, 0)
	assert.False(t, ok)
}

func TestFindKey_PrefersRootKey(t *testing.T) {
	text := `{"x":{"hierarchy":1},"hierarchy":[2]}`
	at, ok := FindKey(text, "hierarchy")
	require.True(t, ok)
	assert.Equal(t, byte('['), text[at])
}

func TestFindKey_IgnoresStringValues(t *testing.T) {
	text := `{"text":"hierarchy","other":"the hierarchy: here"}`
	_, ok := FindKey(text, "hierarchy")
	assert.False(t, ok)
}

func TestFindKey_FallsBackToNestedKey(t *testing.T) {
	text := `{"data": {"hierarchy" :  [1]}}`
	at, ok := FindKey(text, "hierarchy")
	require.True(t, ok)
	assert.Equal(t, "[1]}}", text[at:])
}

func TestFindKey_KeyWithoutValueYet(t *testing.T) {
	_, ok := FindKey(`{"hierarchy"`, "hierarchy")
	assert.False(t, ok)
	_, ok = FindKey(`{"hierarchy": `, "hierarchy")
	assert.False(t, ok)
}
