package contextstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nguyentantai21042004/meeting-flow/internal/logger"
)

func newTestStore(t *testing.T, docsDir string) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "context.json"), docsDir, logger.New("error"))
}

func TestGetDefaults(t *testing.T) {
	s := newTestStore(t, "")

	prefs := s.Get()
	if prefs.BusinessContext == "" {
		t.Error("BusinessContext default is empty")
	}
	if prefs.CustomInstructions == "" {
		t.Error("CustomInstructions default is empty")
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	s := newTestStore(t, "")

	want := Preferences{
		BusinessContext:    "Acme Corp, weekly engineering sync",
		CustomInstructions: "List decisions first",
	}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got := s.Get()
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
}

func TestGetCorruptFileFallsBack(t *testing.T) {
	s := newTestStore(t, "")
	if err := os.WriteFile(s.filePath, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	prefs := s.Get()
	if prefs.BusinessContext == "" {
		t.Error("corrupt file should fall back to defaults")
	}
}

func TestGetPartialFileMergesDefaults(t *testing.T) {
	s := newTestStore(t, "")
	if err := os.WriteFile(s.filePath, []byte(`{"business_context":"only this"}`), 0644); err != nil {
		t.Fatal(err)
	}

	prefs := s.Get()
	if prefs.BusinessContext != "only this" {
		t.Errorf("BusinessContext = %q", prefs.BusinessContext)
	}
	if prefs.CustomInstructions == "" {
		t.Error("missing field should keep its default")
	}
}

func TestExternalContext(t *testing.T) {
	docsDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(docsDir, "glossary.md"), []byte("OKR means objective"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docsDir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}

	s := newTestStore(t, docsDir)
	got := s.ExternalContext(context.Background())

	if !strings.Contains(got, "Context from glossary.md") {
		t.Errorf("missing provenance header: %q", got)
	}
	if !strings.Contains(got, "OKR means objective") {
		t.Errorf("missing content: %q", got)
	}
	if strings.Contains(got, "ignored") {
		t.Error("non-markdown file must be skipped")
	}
}

func TestExternalContextUnconfigured(t *testing.T) {
	s := newTestStore(t, "")
	if got := s.ExternalContext(context.Background()); got != "" {
		t.Errorf("ExternalContext() = %q, want empty", got)
	}
}
