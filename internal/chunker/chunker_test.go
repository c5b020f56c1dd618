package chunker

import (
	"errors"
	"strings"
	"testing"
)

func TestSplit_ShortTextIsOneChunk(t *testing.T) {
	text := strings.Repeat("word ", 200)
	chunks, err := NewSplitter(DefaultConfig()).Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Content != text || c.StartChar != 0 || c.EndChar != len(text) || c.TotalChunks != 1 {
		t.Errorf("unexpected chunk: %+v", c)
	}
}

func TestSplit_LongTextProducesOverlappingChunks(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 445)
	if len(text) < 20000 {
		t.Fatalf("fixture too short: %d", len(text))
	}

	chunks, err := NewSplitter(Config{ChunkSize: 8000, ChunkOverlap: 1000}).Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}

	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if c.TotalChunks != len(chunks) {
			t.Errorf("chunk %d TotalChunks = %d, want %d", i, c.TotalChunks, len(chunks))
		}
		if len(c.Content) > 8000 {
			t.Errorf("chunk %d is %d chars, above chunk size", i, len(c.Content))
		}
		if text[c.StartChar:c.EndChar] != c.Content {
			t.Errorf("chunk %d offsets [%d,%d) do not match its content", i, c.StartChar, c.EndChar)
		}
		if i > 0 && c.StartChar >= chunks[i-1].EndChar {
			t.Errorf("chunk %d does not overlap its predecessor", i)
		}
	}
}

func TestSplit_PrefersParagraphBoundaries(t *testing.T) {
	para := strings.Repeat("x", 60)
	text := strings.Join([]string{para, para, para, para}, "\n\n")

	chunks, err := NewSplitter(Config{ChunkSize: 130, ChunkOverlap: 10}).Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		for _, p := range strings.Split(c.Content, "\n\n") {
			if p != para {
				t.Errorf("chunk %d split inside a paragraph: %q", i, p)
			}
		}
	}
}

func TestSplit_FallsBackToCharacters(t *testing.T) {
	text := strings.Repeat("a", 250)
	chunks, err := NewSplitter(Config{ChunkSize: 100, ChunkOverlap: 20}).Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Content) > 100 {
			t.Errorf("chunk %d is %d chars", i, len(c.Content))
		}
	}
}

func TestSplit_InvalidConfig(t *testing.T) {
	cases := []Config{
		{ChunkSize: 100, ChunkOverlap: 100},
		{ChunkSize: 100, ChunkOverlap: 500},
		{ChunkSize: -5, ChunkOverlap: 1},
	}
	for _, cfg := range cases {
		_, err := NewSplitter(cfg).Split(strings.Repeat("z", 1000))
		var ce *ChunkingError
		if !errors.As(err, &ce) {
			t.Errorf("config %+v: expected ChunkingError, got %v", cfg, err)
		}
	}
}

func TestSplit_DefaultConfigFallback(t *testing.T) {
	s := NewSplitter(Config{})
	got := s.Config()
	if got.ChunkSize != 8000 || got.ChunkOverlap != 1000 {
		t.Errorf("defaults not applied: %+v", got)
	}
	if len(got.Separators) != len(DefaultSeparators) {
		t.Errorf("expected default separators, got %q", got.Separators)
	}
}

func TestSplit_ZeroOverlapKept(t *testing.T) {
	s := NewSplitter(Config{ChunkSize: 500})
	if got := s.Config().ChunkOverlap; got != 0 {
		t.Fatalf("overlap = %d, want 0", got)
	}

	text := strings.Repeat("abcd ", 300)
	chunks, err := s.Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	total := 0
	for _, c := range chunks {
		if len(c.Content) > 500 {
			t.Errorf("chunk %d has %d chars", c.Index, len(c.Content))
		}
		total += len(c.Content)
	}
	if total > len(text) {
		t.Errorf("chunks hold %d chars of a %d char text; overlap leaked in", total, len(text))
	}
}

func TestSplit_EmptyText(t *testing.T) {
	chunks, err := NewSplitter(DefaultConfig()).Split("")
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Content != "" {
		t.Errorf("expected one empty chunk, got %+v", chunks)
	}
}

func TestEstimateTokens(t *testing.T) {
	cases := map[string]int{
		"":      0,
		"a":     1,
		"abcd":  1,
		"abcde": 2,
	}
	for in, want := range cases {
		if got := EstimateTokens(in); got != want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestExceedsLimit(t *testing.T) {
	if ExceedsLimit(strings.Repeat("a", 400), 100) {
		t.Error("400 chars is exactly 100 tokens and should not exceed")
	}
	if !ExceedsLimit(strings.Repeat("a", 401), 100) {
		t.Error("401 chars should exceed 100 tokens")
	}
	if ExceedsLimit(strings.Repeat("a", 120000), 0) {
		t.Error("120000 chars is at the default limit")
	}
	if !ExceedsLimit(strings.Repeat("a", 120004), 0) {
		t.Error("expected default limit to be exceeded")
	}
}
