package repositories

import (
	"errors"
	"testing"
)

func TestCredentialRepositoryErrors(t *testing.T) {
	t.Run("Put", func(t *testing.T) {
		t.Run("MissingKey", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			if err := NewCredentialRepository(db).Put(origin, "", "v"); err == nil {
				t.Fatal("expected error for empty key")
			}
		})

		t.Run("ClosedDatabase", func(t *testing.T) {
			db := setupTestDB(t)
			db.Close()

			if err := NewCredentialRepository(db).Put(origin, "auth_token", "v"); err == nil {
				t.Fatal("expected error on closed database")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			_, err := NewCredentialRepository(db).Get(origin, "missing")
			if !errors.Is(err, ErrCredentialNotFound) {
				t.Fatalf("expected ErrCredentialNotFound, got %v", err)
			}
		})

		t.Run("ClosedDatabase", func(t *testing.T) {
			db := setupTestDB(t)
			db.Close()

			_, err := NewCredentialRepository(db).Get(origin, "auth_token")
			if err == nil || errors.Is(err, ErrCredentialNotFound) {
				t.Fatalf("expected query error, got %v", err)
			}
		})
	})

	t.Run("UpdatedAt", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			_, err := NewCredentialRepository(db).UpdatedAt(origin, "missing")
			if !errors.Is(err, ErrCredentialNotFound) {
				t.Fatalf("expected ErrCredentialNotFound, got %v", err)
			}
		})
	})

	t.Run("List", func(t *testing.T) {
		t.Run("ClosedDatabase", func(t *testing.T) {
			db := setupTestDB(t)
			db.Close()

			if _, err := NewCredentialRepository(db).List(origin); err == nil {
				t.Fatal("expected error on closed database")
			}
		})
	})

	t.Run("DeleteAll", func(t *testing.T) {
		t.Run("ClosedDatabase", func(t *testing.T) {
			db := setupTestDB(t)
			db.Close()

			if _, err := NewCredentialRepository(db).DeleteAll(origin); err == nil {
				t.Fatal("expected error on closed database")
			}
		})
	})
}
