package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CredentialRepository persists session credentials in the credentials table.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new [CredentialRepository] with the given database connection
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Put stores value under origin/key, replacing any previous value.
func (r *CredentialRepository) Put(origin, key, value string) error {
	if origin == "" || key == "" {
		return fmt.Errorf("origin and key are required")
	}

	query := `
		INSERT INTO credentials (origin, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(origin, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	if _, err := r.db.Exec(query, origin, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to store credential %s: %w", key, err)
	}
	return nil
}

// PutAll stores every key/value pair for origin in one transaction.
func (r *CredentialRepository) PutAll(origin string, values map[string]string) error {
	now := time.Now().UTC()
	return withTx(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO credentials (origin, key, value, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(origin, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for key, value := range values {
			if _, err := stmt.Exec(origin, key, value, now); err != nil {
				return fmt.Errorf("failed to store credential %s: %w", key, err)
			}
		}
		return nil
	})
}

// Get returns the value stored under origin/key.
func (r *CredentialRepository) Get(origin, key string) (string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM credentials WHERE origin = ? AND key = ?", origin, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrCredentialNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query credential: %w", err)
	}
	return value, nil
}

// List returns all credentials stored for origin.
func (r *CredentialRepository) List(origin string) (map[string]string, error) {
	rows, err := r.db.Query("SELECT key, value FROM credentials WHERE origin = ? ORDER BY key", origin)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		values[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credentials: %w", err)
	}
	return values, nil
}

// Delete removes a single credential. Deleting a missing key is not an error.
func (r *CredentialRepository) Delete(origin, key string) error {
	if _, err := r.db.Exec("DELETE FROM credentials WHERE origin = ? AND key = ?", origin, key); err != nil {
		return fmt.Errorf("failed to delete credential %s: %w", key, err)
	}
	return nil
}

// DeleteAll removes every credential stored for origin and reports how many were removed.
func (r *CredentialRepository) DeleteAll(origin string) (int64, error) {
	result, err := r.db.Exec("DELETE FROM credentials WHERE origin = ?", origin)
	if err != nil {
		return 0, fmt.Errorf("failed to clear credentials: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

// UpdatedAt returns when origin/key was last written.
func (r *CredentialRepository) UpdatedAt(origin, key string) (time.Time, error) {
	var updatedAt time.Time
	err := r.db.QueryRow("SELECT updated_at FROM credentials WHERE origin = ? AND key = ?", origin, key).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrCredentialNotFound, key)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query credential: %w", err)
	}
	return updatedAt, nil
}
