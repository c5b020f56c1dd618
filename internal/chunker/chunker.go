package chunker

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// Config controls chunking behavior. Sizes are in characters.
type Config struct {
	ChunkSize    int      // Target chunk size.
	ChunkOverlap int      // Trailing context carried into the next chunk.
	Separators   []string // Tried in order; "" splits between characters.
}

// DefaultSeparators break on paragraphs, then lines, sentences, and words.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    8000,
		ChunkOverlap: 1000,
		Separators:   DefaultSeparators,
	}
}

// ChunkingError means the document could not be split. It is fatal for the
// document and should not be retried.
type ChunkingError struct {
	Cause error
}

func (e *ChunkingError) Error() string {
	return fmt.Sprintf("chunking failed: %v", e.Cause)
}

func (e *ChunkingError) Unwrap() error { return e.Cause }

// Splitter cuts long text into overlapping chunks.
type Splitter struct {
	cfg Config
}

// NewSplitter fills unset fields of cfg with defaults. The overlap is only
// defaulted along with an unset ChunkSize, so an explicit size with zero
// overlap means no overlap.
func NewSplitter(cfg Config) *Splitter {
	def := DefaultConfig()
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = def.ChunkSize
		if cfg.ChunkOverlap == 0 {
			cfg.ChunkOverlap = def.ChunkOverlap
		}
	}
	if len(cfg.Separators) == 0 {
		cfg.Separators = def.Separators
	}
	return &Splitter{cfg: cfg}
}

// Config returns the effective configuration.
func (s *Splitter) Config() Config { return s.cfg }

// Split returns the chunks of text. Text shorter than the chunk size comes
// back as one chunk spanning all of it.
func (s *Splitter) Split(text string) (chunks []doctree.Chunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			chunks, err = nil, &ChunkingError{Cause: fmt.Errorf("%v", r)}
		}
	}()

	if s.cfg.ChunkSize <= 0 {
		return nil, &ChunkingError{Cause: fmt.Errorf("chunk size must be positive, got %d", s.cfg.ChunkSize)}
	}
	if s.cfg.ChunkOverlap < 0 || s.cfg.ChunkOverlap >= s.cfg.ChunkSize {
		return nil, &ChunkingError{Cause: fmt.Errorf("chunk overlap %d must be in [0, %d)", s.cfg.ChunkOverlap, s.cfg.ChunkSize)}
	}

	if len(text) < s.cfg.ChunkSize {
		return []doctree.Chunk{{
			Content:     text,
			Index:       0,
			StartChar:   0,
			EndChar:     len(text),
			TotalChunks: 1,
		}}, nil
	}

	parts := s.splitRecursive(text, s.cfg.Separators)
	chunks = make([]doctree.Chunk, 0, len(parts))
	cursor, prevEnd := 0, 0
	for i, part := range parts {
		start := prevEnd - s.cfg.ChunkOverlap
		if i == 0 || start < 0 {
			start = 0
		}
		// Prefer the real position when the part is a verbatim slice. The
		// carried overlap never reaches further back than ChunkOverlap.
		from := max(cursor, start)
		if idx := strings.Index(text[from:], part); idx >= 0 {
			start = from + idx
			cursor = start + 1
		}
		end := start + len(part)
		chunks = append(chunks, doctree.Chunk{
			Content:   part,
			Index:     i,
			StartChar: start,
			EndChar:   end,
		})
		prevEnd = end
	}
	for i := range chunks {
		chunks[i].TotalChunks = len(chunks)
	}
	return chunks, nil
}

// splitRecursive splits on the first separator present in text, merges the
// pieces back up to the chunk size, and recurses with the remaining
// separators into pieces that are still too large.
func (s *Splitter) splitRecursive(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = ""
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var pieces []string
	if separator == "" {
		pieces = strings.Split(text, "")
	} else {
		pieces = strings.Split(text, separator)
	}

	var result, good []string
	for _, p := range pieces {
		if len(p) < s.cfg.ChunkSize {
			good = append(good, p)
			continue
		}
		if len(good) > 0 {
			result = append(result, s.merge(good, separator)...)
			good = nil
		}
		if len(rest) == 0 {
			result = append(result, p)
		} else {
			result = append(result, s.splitRecursive(p, rest)...)
		}
	}
	if len(good) > 0 {
		result = append(result, s.merge(good, separator)...)
	}
	return result
}

// merge greedily joins pieces into segments of at most ChunkSize characters.
// When a segment is emitted, pieces are dropped from its front until no more
// than ChunkOverlap characters remain; those start the next segment.
func (s *Splitter) merge(pieces []string, separator string) []string {
	sepLen := len(separator)
	var out, current []string
	total := 0

	joinLen := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}

	for _, p := range pieces {
		if total+len(p)+joinLen() > s.cfg.ChunkSize && len(current) > 0 {
			if seg := strings.TrimSpace(strings.Join(current, separator)); seg != "" {
				out = append(out, seg)
			}
			for total > s.cfg.ChunkOverlap || (total+len(p)+joinLen() > s.cfg.ChunkSize && total > 0) {
				drop := len(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		current = append(current, p)
		total += len(p)
		if len(current) > 1 {
			total += sepLen
		}
	}
	if seg := strings.TrimSpace(strings.Join(current, separator)); seg != "" {
		out = append(out, seg)
	}
	return out
}
