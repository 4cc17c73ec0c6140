package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/vector"
)

// DBFileName is the database file created inside the index directory.
const DBFileName = "index.db"

const (
	metaEmbeddingModel = "embedding_model"
	metaDimensions     = "dimensions"
	metaChunkSize      = "chunk_size"
	metaChunkOverlap   = "chunk_overlap"
	metaBuiltAt        = "built_at"
)

var _ Storage = (*SQLiteStorage)(nil)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates the index database inside dir and initializes the schema.
// The directory is created if it does not exist. Write transactions start with BEGIN IMMEDIATE,
// so two processes building the same index are serialized rather than interleaved.
func NewSQLiteStorage(dir string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	dbPath := filepath.Join(dir, DBFileName)
	db, err := sql.Open("sqlite3", dbPath+"?_txlock=immediate&_busy_timeout=10000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		start_offset INTEGER NOT NULL,
		overlap INTEGER NOT NULL,
		embedding BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source_index ON chunks(source, chunk_index);

	CREATE TABLE IF NOT EXISTS index_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// IndexExists reports whether dir holds a committed, non-empty index. It never creates files.
func IndexExists(dir string) (bool, error) {
	dbPath := filepath.Join(dir, DBFileName)
	if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=10000")
	if err != nil {
		return false, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	var tables int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'chunks'`).Scan(&tables); err != nil {
		return false, err
	}
	if tables == 0 {
		return false, nil
	}
	var count int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// ReplaceChunks stores chunks and meta in a single transaction.
func (s *SQLiteStorage) ReplaceChunks(ctx context.Context, chunks []*models.Chunk, meta IndexMeta, overwrite bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&existing); err != nil {
		return err
	}
	if existing > 0 && !overwrite {
		return models.ErrIndexExists
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_meta`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, source, chunk_index, content, start_offset, overlap, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", c.ID)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Source, c.Index, c.Content, c.Start, c.Overlap, vector.Encode(c.Embedding)); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}
	}

	values := map[string]string{
		metaEmbeddingModel: meta.EmbeddingModel,
		metaDimensions:     strconv.Itoa(meta.Dimensions),
		metaChunkSize:      strconv.Itoa(meta.ChunkSize),
		metaChunkOverlap:   strconv.Itoa(meta.ChunkOverlap),
		metaBuiltAt:        meta.BuiltAt.UTC().Format(time.RFC3339),
	}
	for k, v := range values {
		if _, err := tx.ExecContext(ctx, `INSERT INTO index_meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListChunks returns all chunks with their embeddings, ordered by source and chunk index.
func (s *SQLiteStorage) ListChunks(ctx context.Context) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, chunk_index, content, start_offset, overlap, embedding
		 FROM chunks ORDER BY source, chunk_index`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var c models.Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.Source, &c.Index, &c.Content, &c.Start, &c.Overlap, &blob); err != nil {
			return nil, err
		}
		if c.Embedding, err = vector.Decode(blob); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// Meta returns the build metadata, or nil if no index has been committed.
func (s *SQLiteStorage) Meta(ctx context.Context) (*IndexMeta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM index_meta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}

	meta := &IndexMeta{EmbeddingModel: values[metaEmbeddingModel]}
	var errs []error
	meta.Dimensions, err = strconv.Atoi(values[metaDimensions])
	errs = append(errs, err)
	meta.ChunkSize, err = strconv.Atoi(values[metaChunkSize])
	errs = append(errs, err)
	meta.ChunkOverlap, err = strconv.Atoi(values[metaChunkOverlap])
	errs = append(errs, err)
	meta.BuiltAt, err = time.Parse(time.RFC3339, values[metaBuiltAt])
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("corrupt index metadata: %w", err)
	}
	return meta, nil
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// CountSources returns the number of distinct source documents.
func (s *SQLiteStorage) CountSources(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT source) FROM chunks`).Scan(&count)
	return count, err
}

// DiskUsage returns the on-disk size of the database including its WAL files.
func (s *SQLiteStorage) DiskUsage() (int64, error) {
	return databaseSize(s.path)
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
