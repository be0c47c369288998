package segmenter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "palavra"
	}
	return strings.Join(words, " ")
}

func TestSegmentPartitionsTranscript(t *testing.T) {
	s, err := New(Config{TargetWords: 250, MinWords: 150, MaxWords: 350})
	require.NoError(t, err)

	chunks, err := s.Segment(makeWords(900), ModeNone)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 3)
	require.LessOrEqual(t, len(chunks), 4)

	// Boundaries must partition [0, 900) with no gaps or overlaps.
	assert.Equal(t, 0, chunks[0].StartWord)
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].EndWord, chunks[i].StartWord)
		assert.Less(t, chunks[i].StartWord, chunks[i].EndWord)
	}
	assert.Equal(t, 900, chunks[len(chunks)-1].EndWord)
}

func TestSegmentShortFinalChunkEmitted(t *testing.T) {
	s, err := New(Config{TargetWords: 250, MinWords: 150, MaxWords: 350})
	require.NoError(t, err)

	// 401 words: a 250-word chunk plus a 151-word tail barely above the
	// minimum. One word more or less, the tail is still emitted.
	chunks, err := s.Segment(makeWords(401), ModeNone)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 401, chunks[1].EndWord)
	assert.Less(t, chunks[1].EndWord-chunks[1].StartWord, 350)
}

func TestSegmentPrefersSentenceBoundary(t *testing.T) {
	s, err := New(Config{TargetWords: 10, MinWords: 5, MaxWords: 15})
	require.NoError(t, err)

	// Sentence ends after word 8; the cut should align there instead of
	// the raw target of 10.
	text := strings.Repeat("um ", 7) + "fim. " + strings.Repeat("dois ", 20)
	chunks, err := s.Segment(text, ModeNone)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, 8, chunks[0].EndWord)
	assert.True(t, strings.HasSuffix(chunks[0].Text, "fim."))
}

func TestSegmentMinimalOverlap(t *testing.T) {
	s, err := New(Config{TargetWords: 50, MinWords: 25, MaxWords: 75})
	require.NoError(t, err)

	chunks, err := s.Segment(makeWords(200), ModeMinimal)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, 10, chunks[i-1].EndWord-chunks[i].StartWord)
	}
}

func TestSegmentLegacyWindow(t *testing.T) {
	s, err := New(Config{TargetWords: 250, MinWords: 150, MaxWords: 350})
	require.NoError(t, err)

	chunks, err := s.Segment(makeWords(600), ModeLegacy)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, 0, chunks[0].StartWord)
	assert.Equal(t, 300, chunks[0].EndWord)
	assert.Equal(t, 250, chunks[1].StartWord)
}

func TestSegmentEmptyText(t *testing.T) {
	s, err := New(Config{TargetWords: 250, MinWords: 150, MaxWords: 350})
	require.NoError(t, err)

	chunks, err := s.Segment("   ", ModeNone)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSegmentDeterministic(t *testing.T) {
	s, err := New(Config{TargetWords: 250, MinWords: 150, MaxWords: 350})
	require.NoError(t, err)

	text := makeWords(900)
	a, err := s.Segment(text, ModeNone)
	require.NoError(t, err)
	b, err := s.Segment(text, ModeNone)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSegmentUnknownMode(t *testing.T) {
	s, err := New(Config{TargetWords: 250, MinWords: 150, MaxWords: 350})
	require.NoError(t, err)

	_, err = s.Segment("alguma coisa", Mode("bogus"))
	assert.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{TargetWords: 0, MinWords: 10, MaxWords: 20})
	assert.Error(t, err)

	_, err = New(Config{TargetWords: 30, MinWords: 10, MaxWords: 20})
	assert.Error(t, err)

	_, err = New(Config{TargetWords: 15, MinWords: 20, MaxWords: 30})
	assert.Error(t, err)
}
