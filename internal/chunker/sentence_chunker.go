package chunker

import (
	"regexp"
	"strconv"
	"strings"

	"slmchat/internal/domain"
)

// SentenceChunker splits text into sentence-based chunks with overlap.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 || overlapSentences >= sentencesPerChunk {
		overlapSentences = 0
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}
}

type span struct {
	text       string
	start, end int
}

func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	var sentences []span
	for _, loc := range c.splitter.FindAllStringIndex(document.Content, -1) {
		raw := document.Content[loc[0]:loc[1]]
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		lead := strings.Index(raw, trimmed)
		sentences = append(sentences, span{
			text:  trimmed,
			start: loc[0] + lead,
			end:   loc[0] + lead + len(trimmed),
		})
	}
	if len(sentences) == 0 {
		trimmed := strings.TrimSpace(document.Content)
		if trimmed == "" {
			return nil, nil
		}
		start := strings.Index(document.Content, trimmed)
		sentences = []span{{text: trimmed, start: start, end: start + len(trimmed)}}
	}

	var chunks []domain.Chunk
	i := 0
	idx := 0
	for i < len(sentences) {
		end := i + c.sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		texts := make([]string, 0, end-i)
		for _, s := range sentences[i:end] {
			texts = append(texts, s.text)
		}
		chunks = append(chunks, domain.Chunk{
			DocumentID: document.ID,
			ChunkID:    document.ID + ":" + strconv.Itoa(idx),
			Text:       strings.Join(texts, " "),
			Index:      idx,
			Page:       document.Page,
			Start:      sentences[i].start,
			End:        sentences[end-1].end,
		})
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
		idx++
	}
	return chunks, nil
}
