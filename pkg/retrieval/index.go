package retrieval

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// DefaultNamespace holds the ingested legal corpus.
const DefaultNamespace = "Corpus"

// Match is one similarity hit with its metadata.
type Match struct {
	ID     string
	Score  float64
	Text   string
	Source string
}

// Document is one chunk to store.
type Document struct {
	ID     string
	Text   string
	Source string
	Vector []float32
}

// Index is a namespaced vector store.
type Index interface {
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)
	Upsert(ctx context.Context, namespace string, docs []Document) error
	DeleteSource(ctx context.Context, namespace, source string) error
}

// SQLiteIndex stores vectors in a sqlite-vec vec0 table.
type SQLiteIndex struct {
	db        *sql.DB
	dimension int
}

// OpenSQLiteIndex opens or creates the index database at path.
func OpenSQLiteIndex(path string, dimension int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, errors.New("index path is required")
	}
	if dimension <= 0 {
		return nil, errors.New("index dimension must be positive")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	idx := &SQLiteIndex{db: db, dimension: dimension}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize index schema: %w", err)
	}
	return idx, nil
}

func (x *SQLiteIndex) initSchema() error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			namespace TEXT NOT NULL,
			source TEXT NOT NULL,
			text TEXT NOT NULL,
			indexed_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_documents_ns ON documents(namespace);
		CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(namespace, source);

		CREATE VIRTUAL TABLE IF NOT EXISTS embeddings USING vec0(
			doc_id TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, x.dimension)
	_, err := x.db.Exec(schema)
	return err
}

// Query returns the topK nearest documents in namespace, best first.
func (x *SQLiteIndex) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	if len(vector) != x.dimension {
		return nil, fmt.Errorf("query vector has dimension %d, index expects %d", len(vector), x.dimension)
	}
	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize query vector: %w", err)
	}

	rows, err := x.db.QueryContext(ctx, `
		SELECT d.id, d.text, d.source, vec_distance_cosine(e.embedding, ?) AS distance
		FROM embeddings e
		JOIN documents d ON d.id = e.doc_id
		WHERE d.namespace = ?
		ORDER BY distance ASC
		LIMIT ?
	`, blob, namespace, topK)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var distance float64
		if err := rows.Scan(&m.ID, &m.Text, &m.Source, &distance); err != nil {
			return nil, err
		}
		m.Score = 1.0 - distance
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Upsert stores documents, replacing any with the same id.
func (x *SQLiteIndex) Upsert(ctx context.Context, namespace string, docs []Document) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, doc := range docs {
		if len(doc.Vector) != x.dimension {
			return fmt.Errorf("document %s has dimension %d, index expects %d", doc.ID, len(doc.Vector), x.dimension)
		}
		blob, err := sqlite_vec.SerializeFloat32(doc.Vector)
		if err != nil {
			return fmt.Errorf("failed to serialize vector: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO documents (id, namespace, source, text, indexed_at) VALUES (?, ?, ?, ?, ?)`,
			doc.ID, namespace, doc.Source, doc.Text, now,
		); err != nil {
			return fmt.Errorf("failed to store document: %w", err)
		}
		// vec0 tables do not support INSERT OR REPLACE.
		if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE doc_id = ?`, doc.ID); err != nil {
			return fmt.Errorf("failed to replace embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO embeddings (doc_id, embedding) VALUES (?, ?)`, doc.ID, blob); err != nil {
			return fmt.Errorf("failed to store embedding: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteSource removes every chunk previously ingested from source.
func (x *SQLiteIndex) DeleteSource(ctx context.Context, namespace, source string) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM documents WHERE namespace = ? AND source = ?`, namespace, source)
	if err != nil {
		return err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE doc_id = ?`, id); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE namespace = ? AND source = ?`, namespace, source); err != nil {
		return err
	}
	return tx.Commit()
}

// Count returns the number of documents in namespace.
func (x *SQLiteIndex) Count(ctx context.Context, namespace string) (int, error) {
	var n int
	err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE namespace = ?`, namespace).Scan(&n)
	return n, err
}

// Close closes the database.
func (x *SQLiteIndex) Close() error {
	return x.db.Close()
}

// DocumentID derives a stable chunk id from its source and offset.
func DocumentID(source string, offset int) string {
	sum := sha256.Sum256([]byte(source + "#" + strconv.Itoa(offset)))
	return hex.EncodeToString(sum[:16])
}
