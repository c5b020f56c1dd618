package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/dgallion1/docstruct/internal/hierarchy"
)

// Strategy names the repair step that produced a recovery result.
type Strategy string

const (
	StrategyDirect    Strategy = "direct"
	StrategyFenced    Strategy = "fenced"
	StrategyPatched   Strategy = "patched"
	StrategyTruncated Strategy = "truncated"
	StrategySkeleton  Strategy = "skeleton"
	StrategyFallback  Strategy = "fallback"
)

// Recovery is the best-effort result for a buffer that never completed.
// Partial means content was probably lost in repair; Failed means nothing
// could be recovered and the document is the failure placeholder.
type Recovery struct {
	Document    hierarchy.Document
	Strategy    Strategy
	Partial     bool
	Failed      bool
	InputLength int
	Dropped     int // hierarchy entries rejected by node validation
}

var truncationFractions = []float64{0.95, 0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3}

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\r?\n?(.*?)```")

// Recover repairs buffer into a Document, trying each strategy in order and
// stopping at the first whose output parses as a JSON object. It always
// returns a well-formed result.
func Recover(buffer string) (rec Recovery) {
	defer func() {
		if r := recover(); r != nil {
			rec = fallbackRecovery(buffer)
		}
	}()

	outer, hasOuter := outerSpan(buffer)
	if hasOuter {
		if r, ok := tryDecode(outer, StrategyDirect); ok {
			return finish(r, buffer)
		}
	}

	if m := fencedBlockRe.FindStringSubmatch(buffer); len(m) > 1 {
		if r, ok := tryDecode(strings.TrimSpace(m[1]), StrategyFenced); ok {
			return finish(r, buffer)
		}
	}

	bases := repairBases(buffer, outer, hasOuter)
	for _, base := range bases {
		if r, ok := tryDecode(Patch(base), StrategyPatched); ok {
			r.Partial = true
			return finish(r, buffer)
		}
	}

	for _, base := range bases {
		if r, ok := truncateAndRepair(base); ok {
			return finish(r, buffer)
		}
	}

	if r, ok := skeleton(buffer); ok {
		return finish(r, buffer)
	}

	return fallbackRecovery(buffer)
}

func finish(r Recovery, buffer string) Recovery {
	r.InputLength = len(buffer)
	return r
}

func fallbackRecovery(buffer string) Recovery {
	return Recovery{
		Document:    hierarchy.NewDocument(hierarchy.FailedMetadata(), nil),
		Strategy:    StrategyFallback,
		Partial:     true,
		Failed:      true,
		InputLength: len(buffer),
	}
}

// outerSpan is the text from the first '{' to the last '}'.
func outerSpan(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// repairBases returns the texts patching and truncation work on: everything
// from the first '{' (a stream cut off mid-object has no final brace) and the
// outer span.
func repairBases(buffer, outer string, hasOuter bool) []string {
	var bases []string
	if start := strings.IndexByte(buffer, '{'); start >= 0 {
		tail := strings.TrimSpace(buffer[start:])
		tail = strings.TrimSpace(strings.TrimSuffix(tail, "```"))
		bases = append(bases, tail)
	}
	if hasOuter && (len(bases) == 0 || bases[0] != outer) {
		bases = append(bases, outer)
	}
	return bases
}

func truncateAndRepair(base string) (Recovery, bool) {
	for _, f := range truncationFractions {
		cut := int(float64(len(base)) * f)
		if cut < 2 {
			continue
		}
		candidate := base[:cut]
		if b := safeBoundary(candidate); b > 0 && float64(b) >= 0.8*float64(cut) {
			candidate = candidate[:b]
		}
		if r, ok := tryDecode(Balance(FixOddQuotes(candidate)), StrategyTruncated); ok {
			r.Partial = true
			return r, true
		}
	}
	return Recovery{}, false
}

// safeBoundary returns the end of the last "},", "}" or "]" in text, or 0.
func safeBoundary(text string) int {
	best := 0
	for _, marker := range []string{"},", "}", "]"} {
		if i := strings.LastIndex(text, marker); i >= 0 {
			// The closer itself is kept; a trailing comma is not.
			if end := i + 1; end > best {
				best = end
			}
		}
	}
	return best
}

func skeleton(buffer string) (Recovery, bool) {
	md, status := metadataCandidate(buffer)
	if status != CandidateComplete {
		return Recovery{}, false
	}
	at, ok := FindKey(buffer, "hierarchy")
	if !ok || buffer[at] != '[' {
		return Recovery{}, false
	}
	return Recovery{
		Document: hierarchy.NewDocument(*md, nil),
		Strategy: StrategySkeleton,
		Partial:  true,
	}, true
}

// tryDecode accepts raw when it parses as a JSON object and converts it to a
// Document leniently: missing metadata becomes the unknown placeholder and
// hierarchy entries that are not valid nodes are dropped.
func tryDecode(raw string, strategy Strategy) (Recovery, bool) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &top); err != nil || top == nil {
		return Recovery{}, false
	}

	md := hierarchy.UnknownMetadata()
	if m, ok := top["metadata"]; ok && !isNull(m) {
		if decoded, err := hierarchy.DecodeMetadata(m); err == nil {
			md = decoded
		}
	}

	var nodes []hierarchy.Node
	dropped := 0
	if h, ok := top["hierarchy"]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(h, &items); err == nil {
			for _, item := range items {
				n, err := hierarchy.DecodeNode(item)
				if err != nil {
					dropped++
					continue
				}
				nodes = append(nodes, n)
			}
		}
	}

	return Recovery{
		Document: hierarchy.NewDocument(md, nodes),
		Strategy: strategy,
		Dropped:  dropped,
	}, true
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}
