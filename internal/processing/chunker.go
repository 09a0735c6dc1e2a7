package processing

import (
	"regexp"
	"strings"
)

// Chunking parameters. Later paragraphs overlap so that sentences cut at a
// boundary still appear whole in one chunk.
const (
	MaxChunkSize = 800
	ChunkOverlap = 100
)

var paragraphBreak = regexp.MustCompile(`\n{2,}`)

// ChunkText splits text into paragraph chunks, further splitting long
// paragraphs into overlapping size-bounded pieces. Chunk order follows
// document order, which keeps content-derived chunk IDs stable across
// repeated ingestion of the same document.
func ChunkText(text string) []string {
	paras := paragraphBreak.Split(text, -1)
	var out []string
	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, splitLong(p, MaxChunkSize, ChunkOverlap)...)
	}
	return out
}

func splitLong(s string, max, overlap int) []string {
	if len(s) <= max {
		return []string{s}
	}
	var res []string
	for i := 0; i < len(s); i += max - overlap {
		end := i + max
		if end > len(s) {
			end = len(s)
		}
		piece := strings.TrimSpace(s[i:end])
		if piece != "" {
			res = append(res, piece)
		}
		if end == len(s) {
			break
		}
	}
	return res
}
