package chunker

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"slmchat/internal/domain"
)

// DefaultSeparators are tried in order: paragraphs, lines, words, runes.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveChunker splits text on the coarsest separator that keeps pieces
// under chunkSize runes, recursing into finer separators for pieces that are
// still too long, then merges neighbouring pieces back up to chunkSize with
// chunkOverlap runes carried between consecutive chunks.
type RecursiveChunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

func NewRecursiveChunker(chunkSize, chunkOverlap int) *RecursiveChunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &RecursiveChunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}
}

// piece is a slice of the source text and the byte offset it starts at.
type piece struct {
	text  string
	start int
}

func (c *RecursiveChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	pieces := c.split(document.Content, 0, c.separators)
	chunks := make([]domain.Chunk, 0, len(pieces))
	for i, p := range pieces {
		chunks = append(chunks, domain.Chunk{
			DocumentID: document.ID,
			ChunkID:    document.ID + ":" + strconv.Itoa(i),
			Text:       p.text,
			Index:      i,
			Page:       document.Page,
			Start:      p.start,
			End:        p.start + len(p.text),
		})
	}
	return chunks, nil
}

// SplitText returns the trimmed, non-empty chunk texts for text.
func (c *RecursiveChunker) SplitText(text string) []string {
	pieces := c.split(text, 0, c.separators)
	if len(pieces) == 0 {
		return nil
	}
	out := make([]string, len(pieces))
	for i, p := range pieces {
		out[i] = p.text
	}
	return out
}

// split works on text found at byte offset base of the source.
func (c *RecursiveChunker) split(text string, base int, separators []string) []piece {
	separator := separators[len(separators)-1]
	var next []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			next = separators[i+1:]
			break
		}
	}

	var final, good []piece
	for _, p := range splitKeepSeparator(text, separator, base) {
		if runeLen(p.text) < c.chunkSize {
			good = append(good, p)
			continue
		}
		if len(good) > 0 {
			final = append(final, c.merge(good)...)
			good = nil
		}
		if len(next) == 0 {
			if t, ok := trim(p); ok {
				final = append(final, t)
			}
		} else {
			final = append(final, c.split(p.text, p.start, next)...)
		}
	}
	if len(good) > 0 {
		final = append(final, c.merge(good)...)
	}
	return final
}

// merge joins consecutive pieces into chunks no longer than chunkSize,
// keeping up to chunkOverlap runes of the previous chunk at the start of
// the next one. Pieces are adjacent in the source and already carry their
// separator, so joining them reproduces the source span.
func (c *RecursiveChunker) merge(pieces []piece) []piece {
	var (
		docs    []piece
		current []piece
		total   int
	)
	emit := func() {
		if doc, ok := trim(join(current)); ok {
			docs = append(docs, doc)
		}
	}
	for _, p := range pieces {
		n := runeLen(p.text)
		if total+n > c.chunkSize && len(current) > 0 {
			emit()
			for total > c.chunkOverlap || (total+n > c.chunkSize && total > 0) {
				total -= runeLen(current[0].text)
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if len(current) > 0 {
		emit()
	}
	return docs
}

func join(pieces []piece) piece {
	var b strings.Builder
	for _, p := range pieces {
		b.WriteString(p.text)
	}
	return piece{text: b.String(), start: pieces[0].start}
}

// trim strips surrounding whitespace and moves start past what was cut.
func trim(p piece) (piece, bool) {
	left := strings.TrimLeftFunc(p.text, unicode.IsSpace)
	text := strings.TrimRightFunc(left, unicode.IsSpace)
	if text == "" {
		return piece{}, false
	}
	return piece{text: text, start: p.start + len(p.text) - len(left)}, true
}

// splitKeepSeparator splits text on sep and attaches each separator to the
// start of the piece that follows it. An empty sep splits into runes.
func splitKeepSeparator(text, sep string, base int) []piece {
	if sep == "" {
		out := make([]piece, 0, len(text))
		for i, r := range text {
			out = append(out, piece{text: string(r), start: base + i})
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]piece, 0, len(parts))
	pos := 0
	for i, p := range parts {
		start := base + pos
		if i > 0 {
			p = sep + p
			start -= len(sep)
		}
		pos += len(parts[i]) + len(sep)
		if p != "" {
			out = append(out, piece{text: p, start: start})
		}
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
