package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"ragengine/internal/domain"
)

var (
	paragraphRe = regexp.MustCompile(`\n{2,}`)
	sentenceRe  = regexp.MustCompile(`[.!?]+\s+`)
	wordRe      = regexp.MustCompile(`\s+`)
)

// TextChunker splits document text into overlapping chunks, preferring
// the largest semantic boundary (paragraph, then sentence, then word)
// that keeps a piece within the chunk budget. Separator characters stay
// attached to the piece they terminate, so every chunk is a literal
// slice of the document and concatenating chunk texts minus the
// declared overlap reproduces the document exactly.
type TextChunker struct {
	chunkSize int
	overlap   int
}

func NewTextChunker(chunkSize, overlap int) (*TextChunker, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrValidation, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap must be in [0, chunk size), got %d", domain.ErrValidation, overlap)
	}
	return &TextChunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// span is a half-open [start, end) range into the document text.
type span struct {
	start, end int
}

func (c *TextChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	text := doc.Text
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	pieces := c.split(text)

	var chunks []domain.Chunk
	cursor := 0
	for cursor < len(pieces) {
		// Chunks after the first reserve room for the overlap prefix.
		budget := c.chunkSize
		if len(chunks) > 0 {
			budget = c.chunkSize - c.overlap
		}

		start := pieces[cursor].start
		end := start
		for cursor < len(pieces) {
			p := pieces[cursor]
			plen := p.end - p.start
			if end == start && plen > budget {
				// Indivisible piece larger than the budget: emitted
				// unsplit as its own oversized chunk.
				end = p.end
				cursor++
				break
			}
			if end-start+plen > budget {
				break
			}
			end = p.end
			cursor++
		}

		chunkStart := start
		if len(chunks) > 0 {
			ov := c.overlap
			if ov > start {
				ov = start
			}
			chunkStart = start - ov
		}

		idx := len(chunks)
		meta := cloneMetadata(doc.Metadata)
		meta[domain.MetaDocumentID] = doc.ID
		meta[domain.MetaChunkIndex] = idx
		meta[domain.MetaStartOffset] = chunkStart
		meta[domain.MetaEndOffset] = end

		chunks = append(chunks, domain.Chunk{
			ID:          chunkID(doc.ID, chunkStart, end),
			DocumentID:  doc.ID,
			Index:       idx,
			StartOffset: chunkStart,
			EndOffset:   end,
			Text:        text[chunkStart:end],
			Metadata:    meta,
		})
	}

	return chunks, nil
}

// split breaks text into contiguous pieces no longer than the
// post-overlap budget, except single words that cannot be split
// further. Pieces cover the text exactly, in order.
func (c *TextChunker) split(text string) []span {
	limit := c.chunkSize - c.overlap

	var pieces []span
	for _, p := range splitAfter(text, 0, paragraphRe) {
		if p.end-p.start <= limit {
			pieces = append(pieces, p)
			continue
		}
		for _, s := range splitAfter(text[p.start:p.end], p.start, sentenceRe) {
			if s.end-s.start <= limit {
				pieces = append(pieces, s)
				continue
			}
			pieces = append(pieces, splitAfter(text[s.start:s.end], s.start, wordRe)...)
		}
	}
	return pieces
}

// splitAfter cuts text immediately after every separator match, keeping
// the separator attached to the preceding piece. base offsets the
// returned spans into the original document.
func splitAfter(text string, base int, re *regexp.Regexp) []span {
	locs := re.FindAllStringIndex(text, -1)
	var out []span
	prev := 0
	for _, loc := range locs {
		out = append(out, span{base + prev, base + loc[1]})
		prev = loc[1]
	}
	if prev < len(text) {
		out = append(out, span{base + prev, base + len(text)})
	}
	return out
}

func cloneMetadata(meta map[string]any) map[string]any {
	clone := make(map[string]any, len(meta)+4)
	for k, v := range meta {
		clone[k] = v
	}
	return clone
}

func chunkID(docID string, start, end int) string {
	data := fmt.Sprintf("%s:%d-%d", docID, start, end)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
