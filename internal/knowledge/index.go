package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nguyentantai21042004/meeting-flow/internal/logger"
)

// Status describes whether the index may be queried.
type Status string

const (
	StatusNotReady Status = "not-ready"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
)

// Snippet is one retrieved passage with provenance.
type Snippet struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// Index builds and queries the local knowledge base. Build runs once in
// the background at startup; Query fails soft to an empty result until the
// index is ready.
type Index struct {
	sourceDir string
	store     *Store
	chunker   *chunker
	logger    logger.Logger

	mu       sync.RWMutex
	status   Status
	embedder *embedder
	chunks   []Chunk
	vectors  [][]float64
}

// NewIndex creates an Index over the given source directory and persisted
// store. sourceDir may be empty, leaving the index permanently not-ready.
func NewIndex(sourceDir string, store *Store, chunkSize, chunkOverlap int, log logger.Logger) *Index {
	return &Index{
		sourceDir: sourceDir,
		store:     store,
		chunker:   newChunker(chunkSize, chunkOverlap),
		logger:    log,
		status:    StatusNotReady,
	}
}

// Status reports the current index status.
func (ix *Index) Status() Status {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.status
}

// Build validates and reuses the persisted index if possible, otherwise
// ingests the source directory from scratch. It is intended to run once,
// in a background goroutine, and never blocks request serving.
func (ix *Index) Build(ctx context.Context) {
	if ix.sourceDir == "" {
		ix.logger.Info(ctx, "Knowledge source directory not configured, index stays not-ready")
		return
	}

	start := time.Now()
	if err := ix.build(ctx); err != nil {
		ix.logger.Error(ctx, "Knowledge index build failed: %v", err)
		ix.setStatus(StatusFailed)
		return
	}

	ix.mu.RLock()
	count := len(ix.chunks)
	ix.mu.RUnlock()
	ix.logger.Info(ctx, "Knowledge index ready: %d chunks in %s", count, time.Since(start).Round(time.Millisecond))
}

func (ix *Index) build(ctx context.Context) error {
	if loaded, err := ix.loadExisting(ctx); err != nil {
		ix.logger.Warn(ctx, "Could not load persisted index, rebuilding: %v", err)
	} else if loaded {
		return nil
	}

	if info, err := os.Stat(ix.sourceDir); err != nil || !info.IsDir() {
		return fmt.Errorf("knowledge source is not a directory: %s", ix.sourceDir)
	}

	documents, err := ix.loadDocuments(ctx)
	if err != nil {
		return err
	}
	if len(documents) == 0 {
		return fmt.Errorf("no markdown documents found in %s", ix.sourceDir)
	}

	var chunks []Chunk
	for _, doc := range documents {
		chunks = append(chunks, ix.chunker.Split(doc.name, doc.content)...)
	}
	ix.logger.Info(ctx, "Split %d documents into %d chunks", len(documents), len(chunks))

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}

	emb := newEmbedder()
	if err := emb.Prepare(texts); err != nil {
		return fmt.Errorf("prepare embedder: %w", err)
	}

	vectors := make([][]float64, len(chunks))
	for i := range chunks {
		vec, err := emb.Embed(chunks[i].Content)
		if err != nil {
			return fmt.Errorf("embed chunk: %w", err)
		}
		vectors[i] = vec
	}

	terms, idf := emb.Vocabulary()
	if err := ix.store.Replace(chunks, vectors, terms, idf); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}

	ix.mu.Lock()
	ix.embedder = emb
	ix.chunks = chunks
	ix.vectors = vectors
	ix.status = StatusReady
	ix.mu.Unlock()
	return nil
}

// loadExisting restores a previously persisted index. Returns false when
// the store is empty.
func (ix *Index) loadExisting(ctx context.Context) (bool, error) {
	count, err := ix.store.Count()
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}

	chunks, vectors, err := ix.store.LoadChunks()
	if err != nil {
		return false, err
	}
	terms, idf, err := ix.store.LoadVocabulary()
	if err != nil {
		return false, err
	}

	emb := newEmbedder()
	if err := emb.Restore(terms, idf); err != nil {
		return false, err
	}

	ix.mu.Lock()
	ix.embedder = emb
	ix.chunks = chunks
	ix.vectors = vectors
	ix.status = StatusReady
	ix.mu.Unlock()

	ix.logger.Info(ctx, "Loaded persisted knowledge index: %d chunks", len(chunks))
	return true, nil
}

type document struct {
	name    string
	content string
}

func (ix *Index) loadDocuments(ctx context.Context) ([]document, error) {
	var docs []document
	err := filepath.WalkDir(ix.sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) != ".md" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			ix.logger.Warn(ctx, "Skipping unreadable document %s: %v", path, err)
			return nil
		}
		rel, relErr := filepath.Rel(ix.sourceDir, path)
		if relErr != nil {
			rel = filepath.Base(path)
		}
		docs = append(docs, document{name: rel, content: string(data)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk source directory: %w", err)
	}
	return docs, nil
}

// Query returns the topK most similar snippets for the given text. It
// returns an empty slice whenever the index is not ready, the query has no
// known tokens, or the index holds no data.
func (ix *Index) Query(ctx context.Context, text string, topK int) []Snippet {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.status != StatusReady || len(ix.chunks) == 0 {
		return nil
	}
	if topK <= 0 {
		topK = 5
	}

	vec, err := ix.embedder.Embed(text)
	if err != nil {
		ix.logger.Warn(ctx, "Embedding query failed: %v", err)
		return nil
	}

	zero := true
	for _, v := range vec {
		if v != 0 {
			zero = false
			break
		}
	}
	if zero {
		return nil
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(ix.vectors))
	for i, stored := range ix.vectors {
		scores[i] = scored{i, dot(stored, vec)}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if topK > len(scores) {
		topK = len(scores)
	}
	out := make([]Snippet, 0, topK)
	for _, sc := range scores[:topK] {
		if sc.score <= 0 {
			break
		}
		ch := ix.chunks[sc.idx]
		out = append(out, Snippet{Content: ch.Content, Source: ch.Source, Score: sc.score})
	}
	return out
}

func (ix *Index) setStatus(status Status) {
	ix.mu.Lock()
	ix.status = status
	ix.mu.Unlock()
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
