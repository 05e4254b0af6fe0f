// Package cache persists extraction results in a local sqlite database so
// unchanged files never get rescanned and extracted objects can be searched
// with FTS5.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *Store) initSchema() error {
	schema := GetSchema()

	lines := strings.Split(schema, "\n")
	var cleanLines []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "--") && trimmed != "" {
			cleanLines = append(cleanLines, line)
		}
	}
	cleanSchema := strings.Join(cleanLines, "\n")

	if _, err := s.db.Exec(cleanSchema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	_, _ = s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, GetSchemaVersion())
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) UpsertFile(file *CachedFile) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	result, err := s.db.Exec(`
		INSERT INTO files (path, content_hash, encoding, status, error_message, extracted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET
			content_hash = excluded.content_hash,
			encoding = excluded.encoding,
			status = excluded.status,
			error_message = excluded.error_message,
			extracted_at = excluded.extracted_at,
			updated_at = CURRENT_TIMESTAMP
	`, file.Path, file.ContentHash, file.Encoding, file.Status, file.ErrorMessage, now)

	if err != nil {
		return 0, fmt.Errorf("upsert file: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil || id == 0 {
		row := s.db.QueryRow("SELECT id FROM files WHERE path = ?", file.Path)
		if err := row.Scan(&id); err != nil {
			return 0, fmt.Errorf("get file id: %w", err)
		}
	}

	return id, nil
}

func (s *Store) GetFile(path string) (*CachedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file := &CachedFile{}
	var extractedAt, updatedAt sql.NullTime
	var errorMsg sql.NullString

	err := s.db.QueryRow(`
		SELECT id, path, content_hash, encoding, status, error_message, extracted_at, updated_at
		FROM files WHERE path = ?
	`, path).Scan(
		&file.ID, &file.Path, &file.ContentHash, &file.Encoding,
		&file.Status, &errorMsg, &extractedAt, &updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	if errorMsg.Valid {
		file.ErrorMessage = errorMsg.String
	}
	if extractedAt.Valid {
		file.ExtractedAt = extractedAt.Time
	}
	if updatedAt.Valid {
		file.UpdatedAt = updatedAt.Time
	}

	return file, nil
}

func (s *Store) DeleteFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM files WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (s *Store) UpdateFileStatus(path string, status FileStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	_, err := s.db.Exec(`
		UPDATE files SET status = ?, error_message = ?, updated_at = ? WHERE path = ?
	`, status, errorMsg, now, path)

	if err != nil {
		return fmt.Errorf("update file status: %w", err)
	}

	return nil
}

// ReplaceObjects swaps the stored objects of a file in one transaction.
func (s *Store) ReplaceObjects(fileID int64, objects []*CachedObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec("DELETE FROM objects WHERE file_id = ?", fileID)
	if err != nil {
		return fmt.Errorf("clear objects: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO objects (file_id, path, name, kind, signature, docstring, line_start, line_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	for _, obj := range objects {
		_, err := stmt.Exec(
			fileID, obj.Path, obj.Name, obj.Kind, obj.Signature,
			obj.Docstring, obj.LineStart, obj.LineEnd,
		)
		if err != nil {
			return fmt.Errorf("insert object %s: %w", obj.Path, err)
		}
	}

	return tx.Commit()
}

func (s *Store) ObjectsByFile(fileID int64) ([]*CachedObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, file_id, path, name, kind, signature, docstring, line_start, line_end
		FROM objects WHERE file_id = ? ORDER BY line_start ASC
	`, fileID)

	if err != nil {
		return nil, fmt.Errorf("get objects by file: %w", err)
	}
	defer rows.Close()

	return scanObjects(rows)
}

// Search runs an FTS5 match over object paths, names, signatures and
// docstrings.
func (s *Store) Search(query string, limit int) ([]*CachedObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT o.id, o.file_id, o.path, o.name, o.kind, o.signature, o.docstring, o.line_start, o.line_end
		FROM objects o
		INNER JOIN objects_fts fts ON o.id = fts.rowid
		WHERE objects_fts MATCH ? LIMIT ?
	`, query, limit)

	if err != nil {
		return nil, fmt.Errorf("search objects: %w", err)
	}
	defer rows.Close()

	return scanObjects(rows)
}

func scanObjects(rows *sql.Rows) ([]*CachedObject, error) {
	var objects []*CachedObject

	for rows.Next() {
		obj := &CachedObject{}
		var signature, docstring sql.NullString
		var lineEnd sql.NullInt64

		err := rows.Scan(
			&obj.ID, &obj.FileID, &obj.Path, &obj.Name, &obj.Kind,
			&signature, &docstring, &obj.LineStart, &lineEnd,
		)
		if err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}

		if signature.Valid {
			obj.Signature = signature.String
		}
		if docstring.Valid {
			obj.Docstring = docstring.String
		}
		if lineEnd.Valid {
			obj.LineEnd = int(lineEnd.Int64)
		}

		objects = append(objects, obj)
	}

	return objects, rows.Err()
}

func (s *Store) GetStats() (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{}
	var lastExtracted sql.NullTime

	err := s.db.QueryRow(`
		SELECT
			COUNT(*) as total_files,
			COALESCE(SUM(CASE WHEN status = 'extracted' THEN 1 ELSE 0 END), 0) as extracted_files,
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) as failed_files,
			COALESCE(SUM(CASE WHEN status = 'skipped' THEN 1 ELSE 0 END), 0) as skipped_files,
			MAX(extracted_at) as last_extracted_at
		FROM files
	`).Scan(&stats.TotalFiles, &stats.ExtractedFiles, &stats.FailedFiles, &stats.SkippedFiles, &lastExtracted)

	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}

	if lastExtracted.Valid {
		stats.LastExtracted = &lastExtracted.Time
	}

	err = s.db.QueryRow("SELECT COUNT(*) FROM objects").Scan(&stats.TotalObjects)
	if err != nil {
		return nil, fmt.Errorf("get object count: %w", err)
	}

	return stats, nil
}
