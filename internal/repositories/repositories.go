package repositories

import (
	"database/sql"
	"fmt"
)

// ErrCredentialNotFound is returned when no value is stored under an origin/key pair.
var ErrCredentialNotFound = fmt.Errorf("credential not found")

// withTx runs fn inside a transaction, committing only when fn succeeds.
func withTx(db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
