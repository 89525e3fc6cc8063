package summary

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nguyentantai21042004/meeting-flow/internal/logger"
)

// Document describes one summary to persist.
type Document struct {
	Summary          string
	OriginalFilename string
	Keywords         string
	CreatedAt        time.Time
}

// Writer persists summaries as timestamped markdown documents, with a
// best-effort .docx twin. A Writer with an empty output directory is a
// no-op.
type Writer struct {
	outputDir string
	logger    logger.Logger
}

// NewWriter creates a Writer targeting outputDir. Pass "" to disable
// persistence.
func NewWriter(outputDir string, log logger.Logger) *Writer {
	return &Writer{outputDir: outputDir, logger: log}
}

// Save writes the summary document and returns the markdown path, or ""
// when persistence is unconfigured or failed. Failures are logged, never
// surfaced: a lost summary file must not fail the pipeline.
func (w *Writer) Save(ctx context.Context, doc Document) string {
	if w.outputDir == "" {
		w.logger.Debug(ctx, "Summary output directory not configured, skipping persistence")
		return ""
	}

	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		w.logger.Error(ctx, "Failed to create summary directory %s: %v", w.outputDir, err)
		return ""
	}

	title := deriveTitle(doc.OriginalFilename)
	base := fmt.Sprintf("%s_%s", doc.CreatedAt.Format("20060102_150405"), sanitizeFilename(title))
	mdPath := filepath.Join(w.outputDir, base+".md")

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- Created: %s\n", doc.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "- Source: %s\n", doc.OriginalFilename)
	if doc.Keywords != "" {
		fmt.Fprintf(&b, "- Keywords: %s\n", doc.Keywords)
	}
	fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(doc.Summary))

	if err := os.WriteFile(mdPath, []byte(b.String()), 0644); err != nil {
		w.logger.Error(ctx, "Failed to write summary %s: %v", mdPath, err)
		return ""
	}
	w.logger.Info(ctx, "Summary saved to %s", mdPath)

	docxPath := filepath.Join(w.outputDir, base+".docx")
	if err := markdownToDocx(title, doc.Summary, docxPath); err != nil {
		w.logger.Warn(ctx, "Failed to write docx twin %s: %v", docxPath, err)
	}

	return mdPath
}

var separators = regexp.MustCompile(`[_\-\s]+`)
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9 ]+`)

// deriveTitle turns a stored upload name into a human-readable title:
// a leading UUID segment and the extension are stripped, separators
// become spaces.
func deriveTitle(filename string) string {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))

	if idx := strings.Index(name, "_"); idx > 0 {
		if _, err := uuid.Parse(name[:idx]); err == nil {
			name = name[idx+1:]
		}
	}

	name = separators.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	if name == "" {
		return "Meeting Summary"
	}
	return name
}

// sanitizeFilename keeps the title filesystem-safe for the output name.
func sanitizeFilename(title string) string {
	clean := unsafeChars.ReplaceAllString(title, "")
	clean = strings.TrimSpace(clean)
	clean = strings.ReplaceAll(clean, " ", "-")
	if clean == "" {
		return "summary"
	}
	return strings.ToLower(clean)
}
