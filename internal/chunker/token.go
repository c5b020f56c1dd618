package chunker

// DefaultMaxTokens is the request size above which a document is chunked.
const DefaultMaxTokens = 30000

// charsPerToken is the usual rough ratio for English prose.
const charsPerToken = 4

// EstimateTokens rounds len(text)/4 up.
func EstimateTokens(text string) int {
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// ExceedsLimit reports whether text is estimated to be larger than maxTokens.
// A non-positive maxTokens means DefaultMaxTokens.
func ExceedsLimit(text string, maxTokens int) bool {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return EstimateTokens(text) > maxTokens
}
