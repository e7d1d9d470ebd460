package chat

import (
	"iter"
	"slices"
	"strings"
	"unicode/utf8"
)

// Chunks splits text into space-separated words and greedily packs them into
// chunks of at most maxLength characters. A word is never split: a single word
// longer than maxLength is yielded whole as an oversized chunk. Empty chunks
// are never yielded.
//
// Joining the chunks with single spaces reconstructs text. The sequence is a
// pure function of its inputs and may be ranged over any number of times.
// Chunks made only of whitespace are dropped. A maxLength below 1 selects
// DefaultMaxLength.
func Chunks(text string, maxLength int) iter.Seq[string] {
	if maxLength < 1 {
		maxLength = DefaultMaxLength
	}
	return func(yield func(string) bool) {
		var (
			chunk    strings.Builder
			chunkLen int
			started  bool
		)
		for word := range strings.SplitSeq(text, " ") {
			wordLen := utf8.RuneCountInString(word)
			if started && chunkLen+wordLen+1 > maxLength {
				if !emit(chunk.String(), yield) {
					return
				}
				chunk.Reset()
				chunkLen = 0
				started = false
			}
			if started {
				chunk.WriteByte(' ')
				chunkLen++
			}
			chunk.WriteString(word)
			chunkLen += wordLen
			started = true
		}
		if started {
			emit(chunk.String(), yield)
		}
	}
}

// emit yields chunk unless it is blank; it returns false when the consumer
// stopped the iteration.
func emit(chunk string, yield func(string) bool) bool {
	if strings.TrimSpace(chunk) == "" {
		return true
	}
	return yield(chunk)
}

// Segment collects Chunks into a slice.
func Segment(text string, maxLength int) []string {
	return slices.Collect(Chunks(text, maxLength))
}
