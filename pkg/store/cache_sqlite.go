package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// maxLookupBatch keeps IN (...) lists well under SQLite's variable limit.
const maxLookupBatch = 500

// SQLiteCache implements EmbeddingCache using SQLite as the backend.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache opens (or creates) an embedding cache database.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewSQLiteCache(dbPath string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	cache := &SQLiteCache{db: db}
	if err := cache.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return cache, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *SQLiteCache) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS embeddings (
		id TEXT PRIMARY KEY,
		model TEXT NOT NULL,
		text TEXT NOT NULL,
		vector BLOB NOT NULL,
		dim INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_embeddings_model_text ON embeddings(model, text);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Get implements EmbeddingCache.
func (s *SQLiteCache) Get(ctx context.Context, model string, texts []string) (map[string][]float32, error) {
	out := make(map[string][]float32)

	for start := 0; start < len(texts); start += maxLookupBatch {
		end := start + maxLookupBatch
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		query := `SELECT text, vector, dim FROM embeddings WHERE model = ? AND text IN (` + placeholders + `)`

		args := make([]any, 0, len(batch)+1)
		args = append(args, model)
		for _, t := range batch {
			args = append(args, t)
		}

		if err := s.scanInto(ctx, out, query, args); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (s *SQLiteCache) scanInto(ctx context.Context, out map[string][]float32, query string, args []any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			text string
			blob []byte
			dim  int
		)
		if err := rows.Scan(&text, &blob, &dim); err != nil {
			return fmt.Errorf("failed to scan embedding: %w", err)
		}
		v := deserializeEmbedding(blob)
		// Skip corrupt rows; the caller will re-embed and overwrite them.
		if v == nil || len(v) != dim {
			continue
		}
		out[text] = v
	}

	return rows.Err()
}

// Put implements EmbeddingCache.
func (s *SQLiteCache) Put(ctx context.Context, model string, vectors map[string][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (id, model, text, vector, dim)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(model, text) DO UPDATE SET vector = excluded.vector, dim = excluded.dim
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for text, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("embedding for %q cannot be empty", text)
		}
		if _, err := stmt.ExecContext(ctx, uuid.New().String(), model, text, serializeEmbedding(v), len(v)); err != nil {
			return fmt.Errorf("failed to insert embedding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Count returns the number of cached vectors for a model.
func (s *SQLiteCache) Count(ctx context.Context, model string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings WHERE model = ?`, model).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteCache) Close() error {
	return s.db.Close()
}
