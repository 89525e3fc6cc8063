package knowledge

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS chunks (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	source  TEXT NOT NULL,
	content TEXT NOT NULL,
	vector  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS vocabulary (
	idx  INTEGER PRIMARY KEY,
	term TEXT NOT NULL,
	idf  REAL NOT NULL
);
`

// Store persists the vector index in a local SQLite file.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and if needed initializes) the index database at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping index database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Count reports the number of persisted chunks.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Replace atomically swaps the persisted index for the given chunks,
// vectors and vocabulary.
func (s *Store) Replace(chunks []Chunk, vectors [][]float64, terms []string, idf []float64) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if len(terms) != len(idf) {
		return fmt.Errorf("terms and idf length mismatch: %d vs %d", len(terms), len(idf))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM vocabulary"); err != nil {
		return fmt.Errorf("clear vocabulary: %w", err)
	}

	insertChunk, err := tx.Prepare("INSERT INTO chunks (source, content, vector) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer insertChunk.Close()

	for i, ch := range chunks {
		encoded, err := json.Marshal(vectors[i])
		if err != nil {
			return fmt.Errorf("encode vector: %w", err)
		}
		if _, err := insertChunk.Exec(ch.Source, ch.Content, string(encoded)); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}

	insertTerm, err := tx.Prepare("INSERT INTO vocabulary (idx, term, idf) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare vocabulary insert: %w", err)
	}
	defer insertTerm.Close()

	for i, term := range terms {
		if _, err := insertTerm.Exec(i, term, idf[i]); err != nil {
			return fmt.Errorf("insert term: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadChunks returns all persisted chunks with their vectors.
func (s *Store) LoadChunks() ([]Chunk, [][]float64, error) {
	rows, err := s.db.Query("SELECT source, content, vector FROM chunks ORDER BY id")
	if err != nil {
		return nil, nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	var vectors [][]float64
	for rows.Next() {
		var ch Chunk
		var encoded string
		if err := rows.Scan(&ch.Source, &ch.Content, &encoded); err != nil {
			return nil, nil, fmt.Errorf("scan chunk: %w", err)
		}
		var vec []float64
		if err := json.Unmarshal([]byte(encoded), &vec); err != nil {
			return nil, nil, fmt.Errorf("decode vector: %w", err)
		}
		chunks = append(chunks, ch)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, vectors, nil
}

// LoadVocabulary returns the persisted terms in index order with IDF weights.
func (s *Store) LoadVocabulary() ([]string, []float64, error) {
	rows, err := s.db.Query("SELECT term, idf FROM vocabulary ORDER BY idx")
	if err != nil {
		return nil, nil, fmt.Errorf("query vocabulary: %w", err)
	}
	defer rows.Close()

	var terms []string
	var idf []float64
	for rows.Next() {
		var term string
		var weight float64
		if err := rows.Scan(&term, &weight); err != nil {
			return nil, nil, fmt.Errorf("scan term: %w", err)
		}
		terms = append(terms, term)
		idf = append(idf, weight)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate vocabulary: %w", err)
	}
	return terms, idf, nil
}
