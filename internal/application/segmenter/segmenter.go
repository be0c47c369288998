// Package segmenter splits raw transcript text into bounded word ranges.
// Segmentation is a pure function of the input text and config, so a
// pipeline run can always be restarted from scratch.
package segmenter

import (
	"fmt"
	"strings"
)

// Mode selects the chunking strategy.
type Mode string

const (
	// ModeNone produces boundary-aligned, non-overlapping chunks sized
	// near the target within [min, max].
	ModeNone Mode = "none"
	// ModeMinimal adds a small fixed overlap between adjacent chunks.
	ModeMinimal Mode = "minimal"
	// ModeLegacy uses the historical fixed window and overlap.
	ModeLegacy Mode = "legacy"
)

const (
	minimalOverlapWords = 10
	legacyWindowWords   = 300
	legacyOverlapWords  = 50
)

// Chunk is one produced segment boundary. EndWord is exclusive.
type Chunk struct {
	Text      string
	StartWord int
	EndWord   int
}

// Config bounds chunk sizes in words.
type Config struct {
	TargetWords int
	MinWords    int
	MaxWords    int
}

// Validate rejects inconsistent bounds before any work is done.
func (c Config) Validate() error {
	if c.TargetWords <= 0 {
		return fmt.Errorf("target_words must be positive, got %d", c.TargetWords)
	}
	if c.MinWords <= 0 || c.MaxWords <= 0 {
		return fmt.Errorf("min_words and max_words must be positive, got %d/%d", c.MinWords, c.MaxWords)
	}
	if c.MinWords > c.TargetWords || c.TargetWords > c.MaxWords {
		return fmt.Errorf("bounds must satisfy min <= target <= max, got %d <= %d <= %d",
			c.MinWords, c.TargetWords, c.MaxWords)
	}
	return nil
}

// Segmenter chunks transcripts.
type Segmenter struct {
	cfg Config
}

// New creates a segmenter with validated config.
func New(cfg Config) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Segmenter{cfg: cfg}, nil
}

// Segment splits text into an ordered sequence of chunks. The final chunk
// may be shorter than the minimum; it is still emitted, never dropped.
func (s *Segmenter) Segment(text string, mode Mode) ([]Chunk, error) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	switch mode {
	case ModeNone, "":
		return s.segmentAligned(words), nil
	case ModeMinimal:
		return segmentWindowed(words, s.cfg.TargetWords, minimalOverlapWords), nil
	case ModeLegacy:
		return segmentWindowed(words, legacyWindowWords, legacyOverlapWords), nil
	default:
		return nil, fmt.Errorf("unknown segmentation mode %q", mode)
	}
}

// segmentAligned cuts non-overlapping chunks, preferring a sentence end
// inside the [min, max] window closest to the target size. Boundaries are
// strictly increasing and partition [0, len(words)) with no gaps.
func (s *Segmenter) segmentAligned(words []string) []Chunk {
	ends := sentenceEnds(words)

	var chunks []Chunk
	start := 0
	for start < len(words) {
		remaining := len(words) - start
		if remaining <= s.cfg.MaxWords {
			chunks = append(chunks, newChunk(words, start, len(words)))
			break
		}

		cut := start + s.cfg.TargetWords
		if aligned, ok := nearestEnd(ends, start+s.cfg.MinWords, start+s.cfg.MaxWords, cut); ok {
			cut = aligned
		}
		chunks = append(chunks, newChunk(words, start, cut))
		start = cut
	}
	return chunks
}

// segmentWindowed cuts fixed-size windows advancing by window-overlap.
func segmentWindowed(words []string, window, overlap int) []Chunk {
	if window <= 0 {
		return []Chunk{newChunk(words, 0, len(words))}
	}
	step := window - overlap
	if step <= 0 {
		step = window
	}

	var chunks []Chunk
	for start := 0; start < len(words); start += step {
		end := start + window
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, newChunk(words, start, end))
		if end >= len(words) {
			break
		}
	}
	return chunks
}

func newChunk(words []string, start, end int) Chunk {
	return Chunk{
		Text:      strings.Join(words[start:end], " "),
		StartWord: start,
		EndWord:   end,
	}
}

// sentenceEnds returns the exclusive word indexes right after each
// sentence-terminating word.
func sentenceEnds(words []string) []int {
	var ends []int
	for i, w := range words {
		trimmed := strings.TrimRight(w, `"')]`+"”’")
		if strings.HasSuffix(trimmed, ".") ||
			strings.HasSuffix(trimmed, "!") ||
			strings.HasSuffix(trimmed, "?") ||
			strings.HasSuffix(trimmed, "…") {
			ends = append(ends, i+1)
		}
	}
	return ends
}

// nearestEnd picks the sentence end within [lo, hi] closest to the
// preferred cut point.
func nearestEnd(ends []int, lo, hi, preferred int) (int, bool) {
	best := -1
	bestDist := 0
	for _, e := range ends {
		if e < lo || e > hi {
			continue
		}
		dist := e - preferred
		if dist < 0 {
			dist = -dist
		}
		if best == -1 || dist < bestDist {
			best = e
			bestDist = dist
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}
