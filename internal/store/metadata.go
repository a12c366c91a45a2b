package store

import (
	"context"
	"database/sql"
	"errors"
)

// GetImportedFileHash returns the content hash recorded for a fixture path.
// Returns empty string and nil error if the path was never imported.
func (s *Store) GetImportedFileHash(ctx context.Context, path string) (string, error) {
	var hash string
	err := s.get(ctx, &hash, `SELECT hash FROM imported_files WHERE path = ?`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash upserts the content hash for a fixture path.
func (s *Store) SetImportedFileHash(ctx context.Context, path, hash string) error {
	_, err := s.exec(ctx,
		`INSERT INTO imported_files (path, hash) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET hash = excluded.hash`,
		path, hash,
	)
	return err
}
