package knowledge

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreReplaceAndLoad(t *testing.T) {
	s := openTestStore(t)

	chunks := []Chunk{
		{Source: "a.md", Content: "budget planning"},
		{Source: "b.md", Content: "timeline review"},
	}
	vectors := [][]float64{{0.6, 0.8}, {1, 0}}
	terms := []string{"budget", "timeline"}
	idf := []float64{1.2, 1.4}

	if err := s.Replace(chunks, vectors, terms, idf); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}

	gotChunks, gotVectors, err := s.LoadChunks()
	if err != nil {
		t.Fatalf("LoadChunks() error = %v", err)
	}
	if len(gotChunks) != 2 || gotChunks[0].Source != "a.md" {
		t.Errorf("LoadChunks() = %+v", gotChunks)
	}
	if len(gotVectors) != 2 || gotVectors[0][1] != 0.8 {
		t.Errorf("vectors = %+v", gotVectors)
	}

	gotTerms, gotIDF, err := s.LoadVocabulary()
	if err != nil {
		t.Fatalf("LoadVocabulary() error = %v", err)
	}
	if len(gotTerms) != 2 || gotTerms[1] != "timeline" || gotIDF[1] != 1.4 {
		t.Errorf("vocabulary = %v / %v", gotTerms, gotIDF)
	}
}

func TestStoreReplaceOverwrites(t *testing.T) {
	s := openTestStore(t)

	first := []Chunk{{Source: "old.md", Content: "old"}}
	if err := s.Replace(first, [][]float64{{1}}, []string{"old"}, []float64{1}); err != nil {
		t.Fatal(err)
	}
	second := []Chunk{{Source: "new.md", Content: "new"}}
	if err := s.Replace(second, [][]float64{{1}}, []string{"new"}, []float64{1}); err != nil {
		t.Fatal(err)
	}

	chunks, _, err := s.LoadChunks()
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || chunks[0].Source != "new.md" {
		t.Errorf("LoadChunks() = %+v, want only new.md", chunks)
	}
}

func TestStoreReplaceLengthMismatch(t *testing.T) {
	s := openTestStore(t)

	err := s.Replace([]Chunk{{Source: "a", Content: "a"}}, nil, nil, nil)
	if err == nil {
		t.Error("Replace() expected error on length mismatch")
	}
}

func TestStoreEmpty(t *testing.T) {
	s := openTestStore(t)

	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
}
