package processing

import (
	"strings"
	"testing"
)

func TestChunkTextSplitsParagraphs(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph.\n\n\nThird paragraph."
	chunks := ChunkText(text)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != "First paragraph." || chunks[2] != "Third paragraph." {
		t.Errorf("unexpected chunk contents: %v", chunks)
	}
}

func TestChunkTextSkipsBlankParagraphs(t *testing.T) {
	chunks := ChunkText("Content.\n\n   \n\nMore content.")
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
}

func TestChunkTextSplitsLongParagraphsWithOverlap(t *testing.T) {
	long := strings.Repeat("a", 2000)
	chunks := ChunkText(long)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for a long paragraph, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > MaxChunkSize {
			t.Errorf("chunk %d exceeds max size: %d", i, len(c))
		}
	}
}

func TestChunkTextDeterministic(t *testing.T) {
	text := "Alpha.\n\n" + strings.Repeat("b", 1500) + "\n\nOmega."
	first := ChunkText(text)
	second := ChunkText(text)
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestChunkTextEmptyInput(t *testing.T) {
	if chunks := ChunkText("   \n\n  "); len(chunks) != 0 {
		t.Errorf("expected no chunks for blank input, got %v", chunks)
	}
}
