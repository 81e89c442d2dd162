package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/catx/internal/shared"
)

const origin = "http://localhost"

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestCredentialRepository(t *testing.T) {
	t.Run("Put And Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db)
		if err := repo.Put(origin, "auth_token", "abc"); err != nil {
			t.Fatalf("failed to put credential: %v", err)
		}

		value, err := repo.Get(origin, "auth_token")
		if err != nil {
			t.Fatalf("failed to get credential: %v", err)
		}
		if value != "abc" {
			t.Errorf("expected abc, got %s", value)
		}
	})

	t.Run("Put Overwrites", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db)
		repo.Put(origin, "auth_token", "first")

		before, err := repo.UpdatedAt(origin, "auth_token")
		if err != nil {
			t.Fatalf("failed to read updated_at: %v", err)
		}

		time.Sleep(5 * time.Millisecond)
		if err := repo.Put(origin, "auth_token", "second"); err != nil {
			t.Fatalf("failed to overwrite credential: %v", err)
		}

		value, _ := repo.Get(origin, "auth_token")
		if value != "second" {
			t.Errorf("expected second, got %s", value)
		}

		after, _ := repo.UpdatedAt(origin, "auth_token")
		if !after.After(before) {
			t.Errorf("updated_at should advance: before %v, after %v", before, after)
		}
	})

	t.Run("Origins Are Isolated", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db)
		repo.Put(origin, "auth_token", "local")
		repo.Put("https://catalog.example.com", "auth_token", "remote")

		local, _ := repo.Get(origin, "auth_token")
		remote, _ := repo.Get("https://catalog.example.com", "auth_token")
		if local != "local" || remote != "remote" {
			t.Errorf("origins leaked: local=%s remote=%s", local, remote)
		}
	})

	t.Run("PutAll And List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db)
		err := repo.PutAll(origin, map[string]string{
			"auth_token":       "a",
			"refresh_token":    "r",
			"token_expiration": "2030-01-01T00:00:00Z",
		})
		if err != nil {
			t.Fatalf("failed to put credentials: %v", err)
		}

		values, err := repo.List(origin)
		if err != nil {
			t.Fatalf("failed to list credentials: %v", err)
		}
		if len(values) != 3 {
			t.Fatalf("expected 3 credentials, got %d", len(values))
		}
		if values["refresh_token"] != "r" {
			t.Errorf("expected refresh_token r, got %s", values["refresh_token"])
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db)
		repo.Put(origin, "auth_token", "a")

		if err := repo.Delete(origin, "auth_token"); err != nil {
			t.Fatalf("failed to delete credential: %v", err)
		}
		if err := repo.Delete(origin, "auth_token"); err != nil {
			t.Errorf("deleting a missing key should not fail: %v", err)
		}

		if _, err := repo.Get(origin, "auth_token"); !errors.Is(err, ErrCredentialNotFound) {
			t.Errorf("expected ErrCredentialNotFound, got %v", err)
		}
	})

	t.Run("DeleteAll", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db)
		repo.PutAll(origin, map[string]string{"auth_token": "a", "refresh_token": "r"})
		repo.Put("https://other.example.com", "auth_token", "keep")

		n, err := repo.DeleteAll(origin)
		if err != nil {
			t.Fatalf("failed to clear credentials: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 rows removed, got %d", n)
		}

		if _, err := repo.Get("https://other.example.com", "auth_token"); err != nil {
			t.Errorf("other origin should be untouched: %v", err)
		}
	})
}
