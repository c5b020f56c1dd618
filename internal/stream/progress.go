package stream

// Progress is the percentage range streaming progress is mapped onto.
// 100 is reserved for finalization.
type Progress struct {
	Min int
	Max int
}

// DefaultProgress leaves room below for preparation and above for storage.
var DefaultProgress = Progress{Min: 15, Max: 90}

// fragmentHalfway is the fragment count at which single-stream progress
// reaches the middle of the range.
const fragmentHalfway = 40

// expansion is the assumed ratio of model output to chunk input size.
const expansion = 1.3

func (p Progress) normalized() Progress {
	if p.Min < 0 || p.Max > 99 || p.Min >= p.Max {
		return DefaultProgress
	}
	return p
}

func (p Progress) scale(frac float64) int {
	frac = min(max(frac, 0), 1)
	return p.Min + int(frac*float64(p.Max-p.Min))
}

// Fragments maps a fragment count to a percentage that rises quickly at
// first and never reaches Max.
func (p Progress) Fragments(n int) int {
	if n <= 0 {
		return p.Min
	}
	frac := float64(n) / float64(n+fragmentHalfway)
	return min(p.scale(frac), p.Max-1)
}

// Chunks weighs completed chunks and the fraction of the current chunk's
// expected output received so far.
func (p Progress) Chunks(done, total, received, chunkLen int) int {
	if total <= 0 {
		return p.Min
	}
	current := 0.0
	if expected := float64(chunkLen) * expansion; expected > 0 {
		current = min(float64(received)/expected, 0.99)
	}
	return p.scale((float64(done) + current) / float64(total))
}
