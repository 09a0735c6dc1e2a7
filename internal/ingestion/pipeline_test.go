package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1, 0}, nil
}

type recordedChunk struct {
	chunkID    string
	documentID string
	content    string
}

type fakeWriter struct {
	upserts []recordedChunk
}

func (f *fakeWriter) Upsert(ctx context.Context, chunkID, documentID, content string, embedding []float32, metadata map[string]string) error {
	f.upserts = append(f.upserts, recordedChunk{chunkID: chunkID, documentID: documentID, content: content})
	return nil
}

func TestChunkIDStableAcrossReingestion(t *testing.T) {
	a := ChunkID("report.pdf", 3, "Revenue grew 12% year over year.")
	b := ChunkID("report.pdf", 3, "Revenue grew 12% year over year.")
	if a != b {
		t.Errorf("identical content at the same offset must share an ID: %s vs %s", a, b)
	}
}

func TestChunkIDVariesWithInputs(t *testing.T) {
	base := ChunkID("report.pdf", 0, "text")
	if ChunkID("report.pdf", 1, "text") == base {
		t.Error("different offsets must produce different IDs")
	}
	if ChunkID("other.pdf", 0, "text") == base {
		t.Error("different documents must produce different IDs")
	}
	if ChunkID("report.pdf", 0, "other text") == base {
		t.Error("different content must produce different IDs")
	}
}

func TestIngestFileIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "earnings.txt")
	content := "Q3 revenue was $10M.\n\nOperating margin improved to 21%."
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	writer := &fakeWriter{}
	p := NewPipeline(fakeEmbedder{}, writer)

	first, err := p.IngestFile(context.Background(), path, "earnings.txt")
	if err != nil {
		t.Fatalf("first ingestion failed: %v", err)
	}
	second, err := p.IngestFile(context.Background(), path, "earnings.txt")
	if err != nil {
		t.Fatalf("second ingestion failed: %v", err)
	}
	if first != 2 || second != 2 {
		t.Fatalf("expected 2 chunks per run, got %d and %d", first, second)
	}

	ids := make(map[string]int)
	for _, u := range writer.upserts {
		ids[u.chunkID]++
	}
	if len(ids) != 2 {
		t.Errorf("re-ingestion must reuse chunk IDs; got %d distinct IDs", len(ids))
	}
	for id, n := range ids {
		if n != 2 {
			t.Errorf("chunk %s upserted %d times, expected 2", id, n)
		}
	}
}

func TestIngestFileEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, []byte("   \n\n  "), 0o644); err != nil {
		t.Fatal(err)
	}
	p := NewPipeline(fakeEmbedder{}, &fakeWriter{})
	if _, err := p.IngestFile(context.Background(), path, "empty.txt"); err == nil {
		t.Fatal("expected an error for a document with no chunks")
	}
}

func TestExtractTextUnsupportedType(t *testing.T) {
	if _, err := ExtractText("report.xlsx"); err == nil {
		t.Fatal("expected an error for an unsupported extension")
	}
}

func TestExtractTextPlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.md")
	if err := os.WriteFile(path, []byte("# Heading\n\nBody."), 0o644); err != nil {
		t.Fatal(err)
	}
	text, err := ExtractText(path)
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if !strings.Contains(text, "Body.") {
		t.Errorf("unexpected text %q", text)
	}
}

func TestParseDocumentXML(t *testing.T) {
	doc := `<?xml version="1.0"?>
	<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
	  <w:body>
	    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
	    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
	  </w:body>
	</w:document>`
	text, err := parseDocumentXML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parseDocumentXML failed: %v", err)
	}
	lines := strings.Split(text, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d: %q", len(lines), text)
	}
	if lines[0] != "First paragraph." || lines[1] != "Second paragraph." {
		t.Errorf("unexpected paragraphs: %q", lines)
	}
}

func TestSupportedType(t *testing.T) {
	for _, name := range []string{"report.pdf", "memo.DOCX", "page.html", "note.txt", "readme.md"} {
		if !SupportedType(name) {
			t.Errorf("expected %q to be supported", name)
		}
	}
	for _, name := range []string{"sheet.xlsx", "image.bmp", "archive", ""} {
		if SupportedType(name) {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}
