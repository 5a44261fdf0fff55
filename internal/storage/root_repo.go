package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_root_store.go -package=mocks codeindex/internal/storage RootStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RootStore defines the interface for watch root storage operations.
type RootStore interface {
	// Add stores path, returning the existing record if it is already present.
	Add(ctx context.Context, path string) (*RootRecord, error)
	// Remove deletes path. Returns ErrNotFound if it is not stored.
	Remove(ctx context.Context, path string) error
	// List returns all roots ordered by path.
	List(ctx context.Context) ([]RootRecord, error)
}

// RootRepo provides methods for root operations.
// It implements the RootStore interface.
type RootRepo struct {
	db *sql.DB
}

// NewRootRepo creates a new RootRepo.
func NewRootRepo(db *sql.DB) *RootRepo {
	return &RootRepo{db: db}
}

// Add gets an existing root by path, or creates it if it doesn't exist.
func (r *RootRepo) Add(ctx context.Context, path string) (*RootRecord, error) {
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO roots (path) VALUES (?) ON CONFLICT (path) DO NOTHING",
		path,
	); err != nil {
		return nil, fmt.Errorf("failed to insert root: %w", err)
	}

	var root RootRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT id, path, created_at FROM roots WHERE path = ?",
		path,
	).Scan(&root.ID, &root.Path, &root.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to query root: %w", err)
	}
	return &root, nil
}

// Remove deletes a root by path.
func (r *RootRepo) Remove(ctx context.Context, path string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM roots WHERE path = ?", path)
	if err != nil {
		return fmt.Errorf("failed to delete root: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete root: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all roots ordered by path.
func (r *RootRepo) List(ctx context.Context) ([]RootRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, path, created_at FROM roots ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to query roots: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	roots := []RootRecord{}
	for rows.Next() {
		var root RootRecord
		if err := rows.Scan(&root.ID, &root.Path, &root.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan root: %w", err)
		}
		roots = append(roots, root)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return roots, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
