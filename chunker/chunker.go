// Package chunker implements the deterministic sliding-window text
// splitter used to produce chunks at build time. It operates on runes
// so chunk_size and chunk_overlap are measured in characters, not
// bytes, and is pure: the same input and parameters always produce a
// byte-identical sequence of chunk strings.
package chunker

import (
	"unicode"

	"github.com/maurocanuto/mempack/errors"
)

// Options configures the splitter.
type Options struct {
	// ChunkSize is the target chunk length in characters.
	ChunkSize int
	// ChunkOverlap is how many trailing characters of a chunk are
	// repeated as a prefix of the next chunk.
	ChunkOverlap int
}

// Validate reports an InvalidConfig error if o's fields are out of range.
func (o Options) Validate() error {
	if o.ChunkSize <= 0 {
		return errors.E(errors.InvalidConfig, "chunk_size must be positive")
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		return errors.E(errors.InvalidConfig, "chunk_overlap must be in [0, chunk_size)")
	}
	return nil
}

// Split divides text into an ordered list of chunk strings per o.
// Empty input yields zero chunks.
func Split(text string, o Options) ([]string, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	var chunks []string
	start := 0
	prevBreak := 0
	for start < len(runes) {
		end := start + o.ChunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		// Only look for a break past the previous chunk's end, so a chunk
		// never consists of the carried-over overlap alone.
		breakAt := softBreak(runes, prevBreak, end)
		chunks = append(chunks, string(runes[start:breakAt]))
		prevBreak = breakAt

		next := breakAt - o.ChunkOverlap
		if next < start {
			next = breakAt
		}
		// Align the overlap start to the nearest preceding whitespace so
		// the shared prefix doesn't begin mid-word.
		next = alignToWhitespace(runes, next, start)
		if next <= start {
			next = breakAt
		}
		start = next
	}
	return chunks, nil
}

// softBreak returns the end of the right-most paragraph break in
// (start, end]; failing that, of the right-most sentence break; failing
// that, of the right-most whitespace run. If no boundary exists, it
// hard-splits at end (spec Open Question (a)).
func softBreak(runes []rune, start, end int) int {
	if at := lastParagraphBreak(runes, start, end); at > start {
		return at
	}
	if at := lastSentenceBreak(runes, start, end); at > start {
		return at
	}
	if at := lastWhitespaceRun(runes, start, end); at > start {
		return at
	}
	return end
}

func lastParagraphBreak(runes []rune, start, end int) int {
	best := -1
	for i := start; i < end-1 && i+1 < len(runes); i++ {
		if runes[i] == '\n' && runes[i+1] == '\n' {
			j := i + 2
			for j < len(runes) && runes[j] == '\n' {
				j++
			}
			if j <= end {
				best = j
			}
		}
	}
	if best > start {
		return best
	}
	return -1
}

func lastSentenceBreak(runes []rune, start, end int) int {
	best := -1
	for i := start; i < end-1 && i+1 < len(runes); i++ {
		c := runes[i]
		if (c == '.' || c == '?' || c == '!') && runes[i+1] == ' ' {
			if i+2 <= end {
				best = i + 2
			}
		}
	}
	if best > start {
		return best
	}
	return -1
}

func lastWhitespaceRun(runes []rune, start, end int) int {
	best := -1
	i := start
	for i < end && i < len(runes) {
		if unicode.IsSpace(runes[i]) {
			j := i
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			if j <= end {
				best = j
			}
			i = j
			continue
		}
		i++
	}
	if best > start {
		return best
	}
	return -1
}

// alignToWhitespace walks backward from pos to the nearest preceding
// whitespace boundary, never going before floor.
func alignToWhitespace(runes []rune, pos, floor int) int {
	if pos <= floor || pos >= len(runes) {
		return pos
	}
	for i := pos; i > floor; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return pos
}
