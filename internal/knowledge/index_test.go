package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nguyentantai21042004/meeting-flow/internal/logger"
)

func writeVault(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"budget.md":   "The quarterly budget review covered hiring costs and infrastructure spend. Finance asked every team to cut cloud waste.",
		"timeline.md": "Project timeline update. The launch milestone moved to October because the vendor integration slipped.",
		"notes.txt":   "should never be indexed",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestIndex(t *testing.T, sourceDir string) *Index {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return NewIndex(sourceDir, store, 1000, 150, logger.New("error"))
}

func TestBuildAndQuery(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t, writeVault(t))

	ix.Build(ctx)
	if got := ix.Status(); got != StatusReady {
		t.Fatalf("Status() = %v, want %v", got, StatusReady)
	}

	snippets := ix.Query(ctx, "budget costs", 5)
	if len(snippets) == 0 {
		t.Fatal("Query() returned no snippets")
	}
	if snippets[0].Source != "budget.md" {
		t.Errorf("top snippet source = %v, want budget.md", snippets[0].Source)
	}
	for _, sn := range snippets {
		if sn.Source == "notes.txt" {
			t.Error("non-markdown file was indexed")
		}
	}
}

func TestBuildUnconfiguredStaysNotReady(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t, "")

	ix.Build(ctx)
	if got := ix.Status(); got != StatusNotReady {
		t.Errorf("Status() = %v, want %v", got, StatusNotReady)
	}
	if snippets := ix.Query(ctx, "budget", 5); snippets != nil {
		t.Errorf("Query() = %v, want nil before ready", snippets)
	}
}

func TestBuildMissingDirectoryFails(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t, "/does/not/exist")

	ix.Build(ctx)
	if got := ix.Status(); got != StatusFailed {
		t.Errorf("Status() = %v, want %v", got, StatusFailed)
	}
	if snippets := ix.Query(ctx, "budget", 5); snippets != nil {
		t.Errorf("Query() after failure = %v, want nil", snippets)
	}
}

func TestBuildReusesPersistedIndex(t *testing.T) {
	ctx := context.Background()
	vault := writeVault(t)

	dbPath := filepath.Join(t.TempDir(), "index.db")
	store, err := OpenStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}

	first := NewIndex(vault, store, 1000, 150, logger.New("error"))
	first.Build(ctx)
	if first.Status() != StatusReady {
		t.Fatal("first build did not become ready")
	}
	store.Close()

	// Remove the vault: the second build must come from the persisted DB.
	if err := os.RemoveAll(vault); err != nil {
		t.Fatal(err)
	}

	store2, err := OpenStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store2.Close()

	second := NewIndex(vault, store2, 1000, 150, logger.New("error"))
	second.Build(ctx)
	if second.Status() != StatusReady {
		t.Fatalf("Status() = %v, want ready from persisted index", second.Status())
	}
	if snippets := second.Query(ctx, "launch milestone", 3); len(snippets) == 0 {
		t.Error("Query() on restored index returned nothing")
	}
}

func TestQueryUnknownTokens(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t, writeVault(t))
	ix.Build(ctx)

	if snippets := ix.Query(ctx, "zzzz qqqq", 5); len(snippets) != 0 {
		t.Errorf("Query() = %v, want empty for unknown tokens", snippets)
	}
}
