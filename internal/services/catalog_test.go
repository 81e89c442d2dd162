package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/catx/internal/models"
	"github.com/desertthunder/catx/internal/shared"
	tu "github.com/desertthunder/catx/internal/testing"
)

func TestAlbumService(t *testing.T) {
	t.Run("List", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/albums/paginated" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			q := r.URL.Query()
			if q.Get("page") != "2" || q.Get("size") != "5" || q.Get("sortBy") != "releaseYear" ||
				q.Get("sortDirection") != "desc" || q.Get("includeArtists") != "true" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}

			tu.WriteEnvelope(w, http.StatusOK, models.Page[models.Album]{
				Content: []models.Album{{
					ID:      1,
					Title:   "Toxicity",
					Artists: []models.ArtistSummary{{ID: 1, Name: "System of a Down"}},
				}},
				TotalElements: 11,
				TotalPages:    3,
				Size:          5,
				Number:        2,
			})
		}))
		defer server.Close()

		svc := NewAlbumService(NewAPIService(server.URL, nil))
		page, err := svc.List(context.Background(), PageRequest{Page: 2, Size: 5, SortBy: "releaseYear", SortDirection: SortDesc})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if page.TotalPages != 3 || len(page.Content) != 1 {
			t.Fatalf("unexpected page %+v", page)
		}
		if page.Content[0].ArtistCount != 1 {
			t.Errorf("expected artist count derived from artists, got %d", page.Content[0].ArtistCount)
		}
	})

	t.Run("List Defaults", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("page") != "0" || q.Get("size") != "10" || q.Get("sortBy") != "title" || q.Get("sortDirection") != "asc" {
				t.Errorf("unexpected default query %s", r.URL.RawQuery)
			}
			tu.WriteEnvelope(w, http.StatusOK, models.Page[models.Album]{})
		}))
		defer server.Close()

		if _, err := NewAlbumService(NewAPIService(server.URL, nil)).List(context.Background(), PageRequest{Page: -1}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("All", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/albums" || r.URL.Query().Get("includeArtists") != "true" {
				t.Errorf("unexpected request %s", r.URL)
			}
			tu.WriteEnvelope(w, http.StatusOK, []models.Album{
				{ID: 1, Title: "Lateralus", Artists: []models.ArtistSummary{{ID: 2, Name: "Tool"}}},
				{ID: 2, Title: "Ænima"},
			})
		}))
		defer server.Close()

		albums, err := NewAlbumService(NewAPIService(server.URL, nil)).All(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(albums) != 2 || albums[0].ArtistCount != 1 || albums[1].ArtistCount != 0 {
			t.Errorf("unexpected albums %+v", albums)
		}
	})

	t.Run("Get NotFound", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		_, err := NewAlbumService(NewAPIService(server.URL, nil)).Get(context.Background(), 42)
		if !errors.Is(err, shared.ErrAlbumNotFound) {
			t.Errorf("expected ErrAlbumNotFound, got %v", err)
		}
	})

	t.Run("Search", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/albums/search" || r.URL.Query().Get("title") != "mezmerize" {
				t.Errorf("unexpected request %s", r.URL)
			}
			tu.WriteEnvelope(w, http.StatusOK, []models.Album{{ID: 3, Title: "Mezmerize"}})
		}))
		defer server.Close()

		albums, err := NewAlbumService(NewAPIService(server.URL, nil)).Search(context.Background(), "mezmerize")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(albums) != 1 || albums[0].Title != "Mezmerize" {
			t.Errorf("unexpected albums %+v", albums)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete || r.URL.Path != "/albums/7" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		if err := NewAlbumService(NewAPIService(server.URL, nil)).Delete(context.Background(), 7); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

func TestArtistService(t *testing.T) {
	t.Run("List Sorts By Name", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if r.URL.Path != "/artists/paginated" || q.Get("sortBy") != "name" || q.Get("includeAlbums") != "true" {
				t.Errorf("unexpected request %s", r.URL)
			}
			tu.WriteEnvelope(w, http.StatusOK, models.Page[models.Artist]{Content: []models.Artist{{ID: "1", Name: "Tool"}}})
		}))
		defer server.Close()

		page, err := NewArtistService(NewAPIService(server.URL, nil)).List(context.Background(), PageRequest{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(page.Content) != 1 || page.Content[0].Name != "Tool" {
			t.Errorf("unexpected page %+v", page)
		}
	})

	t.Run("Get", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/artists/5" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			w.Write([]byte(`{"id":5,"name":"Deftones","albumCount":2}`))
		}))
		defer server.Close()

		artist, err := NewArtistService(NewAPIService(server.URL, nil)).Get(context.Background(), "5")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if artist.ID.String() != "5" || artist.AlbumCount != 2 {
			t.Errorf("unexpected artist %+v", artist)
		}
	})

	t.Run("Get Timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		svc := NewArtistService(NewAPIService(server.URL, nil))
		svc.timeout = 50 * time.Millisecond

		_, err := svc.Get(context.Background(), "5")
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("Get NotFound", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tu.WriteFailure(w, http.StatusNotFound, "NOT_FOUND", "artist not found")
		}))
		defer server.Close()

		_, err := NewArtistService(NewAPIService(server.URL, nil)).Get(context.Background(), "404")
		if !errors.Is(err, shared.ErrArtistNotFound) {
			t.Errorf("expected ErrArtistNotFound, got %v", err)
		}
	})
}
