package indexer

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"askdocs-ai/internal/textproc"
)

const (
	defaultTargetTokens  = 768
	defaultOverlapTokens = 128
	defaultMaxChunks     = 1000

	// tokenTolerance bounds how far past the target a snapped window may
	// grow before it is re-split.
	tokenTolerance = 1.2
)

// ChunkerOptions controls window sizing and boundary handling.
type ChunkerOptions struct {
	TargetTokens      int  // window size in tokens
	OverlapTokens     int  // overlap between consecutive windows
	PreserveStructure bool // snap window ends to sentence/paragraph/heading boundaries
	MaxChunks         int  // hard cap per document
}

// DefaultChunkerOptions returns the production window configuration.
func DefaultChunkerOptions() ChunkerOptions {
	return ChunkerOptions{
		TargetTokens:      defaultTargetTokens,
		OverlapTokens:     defaultOverlapTokens,
		PreserveStructure: true,
		MaxChunks:         defaultMaxChunks,
	}
}

// WindowChunker slices cleaned document text into overlapping windows sized
// in tokens. Window ends prefer natural boundaries so chunks do not cut
// through sentences, and oversized windows are re-split.
type WindowChunker struct {
	cleaner *textproc.SourceCleaner
	counter TokenCounter
	opts    ChunkerOptions
	logger  *slog.Logger
}

// NewWindowChunker creates a chunker using the given token counter tier.
func NewWindowChunker(counter TokenCounter, opts ChunkerOptions, logger *slog.Logger) *WindowChunker {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TargetTokens <= 0 {
		opts.TargetTokens = defaultTargetTokens
	}
	if opts.OverlapTokens < 0 {
		opts.OverlapTokens = 0
	}
	if opts.OverlapTokens >= opts.TargetTokens {
		// overlap must leave room for forward progress
		opts.OverlapTokens = opts.TargetTokens / 2
	}
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = defaultMaxChunks
	}
	if counter == nil {
		counter = CharCounter{}
	}
	return &WindowChunker{
		cleaner: textproc.NewSourceCleaner(logger),
		counter: counter,
		opts:    opts,
		logger:  logger,
	}
}

// Chunk cleans the content and windows it into chunks for the document.
// Content that cleans down to nothing yields no chunks and no error.
func (c *WindowChunker) Chunk(ctx context.Context, documentID, content string) ([]Chunk, error) {
	cleaned := c.cleaner.Clean(content)
	if cleaned == "" {
		c.logger.WarnContext(ctx, "document empty after cleaning", "document_id", documentID)
		return nil, nil
	}

	runes := []rune(cleaned)
	var boundaries []int
	if c.opts.PreserveStructure {
		boundaries = detectBoundaries(runes)
	}

	counter := newRunCounter(c.counter, c.logger)
	targetChars := c.opts.TargetTokens * charsPerToken
	overlapChars := c.opts.OverlapTokens * charsPerToken
	maxTokens := int(float64(c.opts.TargetTokens) * tokenTolerance)

	var chunks []Chunk
	cursor := 0

	for cursor < len(runes) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if len(chunks) >= c.opts.MaxChunks {
			c.logger.WarnContext(ctx, "chunk cap reached, truncating document",
				"document_id", documentID,
				"max_chunks", c.opts.MaxChunks,
			)
			break
		}

		end := len(runes)
		if targetEnd := cursor + targetChars; targetEnd < len(runes) {
			// Snap to the latest boundary within reach of the overlap;
			// otherwise cut at the target.
			end = targetEnd
			if b := latestBoundaryIn(boundaries, cursor, targetEnd+overlapChars); b > 0 {
				end = b
			}
		}

		// Oversized windows re-split at an interior sentence boundary until
		// they fit the tolerance.
		text := strings.TrimSpace(string(runes[cursor:end]))
		tokens := counter.count(ctx, text)
		for tokens > maxTokens && end-cursor > 1 {
			end = interiorSplitPoint(runes, boundaries, cursor, end)
			text = strings.TrimSpace(string(runes[cursor:end]))
			tokens = counter.count(ctx, text)
		}

		if text == "" {
			// Only whitespace remains past the cursor.
			break
		}

		ordinal := len(chunks)
		chunks = append(chunks, Chunk{
			ID:         ChunkID(documentID, ordinal),
			DocumentID: documentID,
			Ordinal:    ordinal,
			Text:       text,
			TokenCount: tokens,
			StartChar:  cursor,
			EndChar:    end,
		})

		if end >= len(runes) {
			break
		}
		next := end - overlapChars
		if next <= cursor {
			next = cursor + 1
		}
		cursor = next
	}

	return chunks, nil
}

// detectBoundaries returns sorted rune offsets where a window may end:
// after sentence-terminal punctuation followed by a capitalized sentence,
// after paragraph breaks, and before heading lines.
func detectBoundaries(runes []rune) []int {
	seen := make(map[int]struct{})
	var boundaries []int
	add := func(off int) {
		if off <= 0 || off >= len(runes) {
			return
		}
		if _, ok := seen[off]; ok {
			return
		}
		seen[off] = struct{}{}
		boundaries = append(boundaries, off)
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if isSentenceEnd(runes, i) {
			add(i + 1)
		}

		if r == '\n' && i+1 < len(runes) && runes[i+1] == '\n' {
			add(i + 2)
		}

		// Heading lines start a new chunk; the boundary sits before them.
		if r == '#' && (i == 0 || runes[i-1] == '\n') && isHeadingLine(runes, i) {
			add(i)
		}
	}

	sort.Ints(boundaries)
	return boundaries
}

// isSentenceEnd reports whether the rune at i terminates a sentence: '.',
// '!' or '?' followed by whitespace and then an uppercase letter or digit.
func isSentenceEnd(runes []rune, i int) bool {
	r := runes[i]
	if r != '.' && r != '!' && r != '?' {
		return false
	}
	j := i + 1
	if j >= len(runes) || !unicode.IsSpace(runes[j]) {
		return false
	}
	for j < len(runes) && unicode.IsSpace(runes[j]) {
		j++
	}
	if j >= len(runes) {
		return true
	}
	next := runes[j]
	return unicode.IsUpper(next) || unicode.IsDigit(next) || next == '#'
}

// isHeadingLine reports whether a '#' at offset i opens a markdown heading.
func isHeadingLine(runes []rune, i int) bool {
	j := i
	for j < len(runes) && runes[j] == '#' {
		j++
	}
	return j > i && j-i <= 6 && j < len(runes) && runes[j] == ' '
}

// latestBoundaryIn returns the largest boundary b with lo < b <= hi, or -1.
func latestBoundaryIn(boundaries []int, lo, hi int) int {
	// First index with boundary > hi; the one before it is the candidate.
	idx := sort.SearchInts(boundaries, hi+1) - 1
	if idx < 0 || boundaries[idx] <= lo {
		return -1
	}
	return boundaries[idx]
}

// interiorSplitPoint picks the sentence boundary closest to the window
// midpoint, falling back to the midpoint itself when the window has no
// interior boundary.
func interiorSplitPoint(runes []rune, boundaries []int, start, end int) int {
	mid := start + (end-start)/2

	best := -1
	for _, b := range boundaries {
		if b <= start || b >= end {
			continue
		}
		if best == -1 || abs(b-mid) < abs(best-mid) {
			best = b
		}
	}
	if best > start {
		return best
	}
	if mid <= start {
		return start + 1
	}
	return mid
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
