package contextstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nguyentantai21042004/meeting-flow/internal/logger"
)

const (
	defaultBusinessContext = "Default business context. Please update this with information about your business, team members, and any specific terminology or context that would help in transcription."
	defaultInstructions    = "Default custom instructions. Describe how summaries should be structured, e.g. decisions first, then action items with owners."
)

// Preferences holds the two user-editable prompt building blocks.
type Preferences struct {
	BusinessContext    string `json:"business_context"`
	CustomInstructions string `json:"custom_instructions"`
}

// Store reads and writes the preferences document and loads optional
// external context documents used to enrich the summarization prompt.
type Store struct {
	mu       sync.Mutex
	filePath string
	docsDir  string
	logger   logger.Logger
}

// New creates a Store persisting preferences at filePath. docsDir may be
// empty, in which case no external context is loaded.
func New(filePath, docsDir string, log logger.Logger) *Store {
	return &Store{
		filePath: filePath,
		docsDir:  docsDir,
		logger:   log,
	}
}

// Get returns the saved preferences, falling back to defaults for missing
// fields or an unreadable file.
func (s *Store) Get() Preferences {
	prefs := Preferences{
		BusinessContext:    defaultBusinessContext,
		CustomInstructions: defaultInstructions,
	}

	s.mu.Lock()
	data, err := os.ReadFile(s.filePath)
	s.mu.Unlock()
	if err != nil {
		return prefs
	}

	var saved Preferences
	if err := json.Unmarshal(data, &saved); err != nil {
		s.logger.Error(context.Background(), "Error decoding %s, using defaults: %v", s.filePath, err)
		return prefs
	}

	if saved.BusinessContext != "" {
		prefs.BusinessContext = saved.BusinessContext
	}
	if saved.CustomInstructions != "" {
		prefs.CustomInstructions = saved.CustomInstructions
	}
	return prefs
}

// Save persists the preferences document, creating its directory if needed.
func (s *Store) Save(prefs Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create context dir: %w", err)
		}
	}
	if err := os.WriteFile(s.filePath, data, 0644); err != nil {
		return fmt.Errorf("write context: %w", err)
	}
	return nil
}

// ExternalContext concatenates all .md files from the configured docs
// directory, each prefixed with a provenance header. Returns "" when the
// directory is unconfigured, missing, or holds no markdown files.
func (s *Store) ExternalContext(ctx context.Context) string {
	if s.docsDir == "" {
		s.logger.Debug(ctx, "External context directory not configured, skipping")
		return ""
	}

	entries, err := os.ReadDir(s.docsDir)
	if err != nil {
		s.logger.Warn(ctx, "Cannot read external context directory %s: %v", s.docsDir, err)
		return ""
	}

	var b strings.Builder
	for _, e := range entries {
		if e.IsDir() || strings.ToLower(filepath.Ext(e.Name())) != ".md" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.docsDir, e.Name()))
		if err != nil {
			s.logger.Warn(ctx, "Could not read context file %s: %v", e.Name(), err)
			continue
		}
		fmt.Fprintf(&b, "\n\n--- Context from %s ---\n%s", e.Name(), data)
	}

	if b.Len() == 0 {
		s.logger.Debug(ctx, "No .md files found in %s", s.docsDir)
	}
	return b.String()
}
