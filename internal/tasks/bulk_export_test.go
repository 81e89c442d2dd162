package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/catx/internal/formatter"
	"github.com/desertthunder/catx/internal/models"
	"github.com/desertthunder/catx/internal/shared"
)

type mockFetcher struct {
	mu       sync.Mutex
	albums   map[int64]*models.Album
	getCalls int
	allCalls int
	allErr   error
}

func newMockFetcher(n int) *mockFetcher {
	m := &mockFetcher{albums: map[int64]*models.Album{}}
	for i := 1; i <= n; i++ {
		m.albums[int64(i)] = &models.Album{
			ID:          int64(i),
			Title:       fmt.Sprintf("Album %d", i),
			ReleaseYear: 1990 + i,
			Artists:     []models.ArtistSummary{{ID: 1, Name: "Artist"}},
		}
	}
	return m
}

func (m *mockFetcher) Get(_ context.Context, id int64) (*models.Album, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	album, ok := m.albums[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", shared.ErrAlbumNotFound, id)
	}
	copied := *album
	return &copied, nil
}

func (m *mockFetcher) All(context.Context) ([]models.Album, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allCalls++
	if m.allErr != nil {
		return nil, m.allErr
	}
	albums := make([]models.Album, 0, len(m.albums))
	for i := int64(1); i <= int64(len(m.albums)); i++ {
		albums = append(albums, *m.albums[i])
	}
	return albums, nil
}

func drain() (chan ProgressUpdate, func() []ProgressUpdate) {
	ch := make(chan ProgressUpdate, 100)
	var got []ProgressUpdate
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range ch {
			got = append(got, u)
		}
	}()
	return ch, func() []ProgressUpdate {
		close(ch)
		<-done
		return got
	}
}

func TestBulkExport_SuccessfulExport(t *testing.T) {
	tests := []struct {
		name           string
		format         formatter.Format
		albumCount     int
		ids            []int64
		wantSuccess    int
		validateResult func(t *testing.T, result *BulkExportResult, tempDir string)
	}{
		{
			name:        "selected albums json export",
			format:      formatter.FormatJSON,
			albumCount:  3,
			ids:         []int64{1, 3},
			wantSuccess: 2,
			validateResult: func(t *testing.T, result *BulkExportResult, tempDir string) {
				for _, id := range []int64{1, 3} {
					path := filepath.Join(tempDir, fmt.Sprintf("album_%d.json", id))
					if _, err := os.Stat(path); os.IsNotExist(err) {
						t.Errorf("JSON file not created at %s", path)
					}
				}
			},
		},
		{
			name:        "whole catalog markdown export",
			format:      formatter.FormatMarkdown,
			albumCount:  4,
			wantSuccess: 4,
			validateResult: func(t *testing.T, result *BulkExportResult, tempDir string) {
				for _, res := range result.Results {
					readme := filepath.Join(tempDir, fmt.Sprintf("album_%d", res.AlbumID), "README.md")
					if _, err := os.Stat(readme); os.IsNotExist(err) {
						t.Errorf("README not created at %s", readme)
					}
				}
			},
		},
		{
			name:        "default format is markdown",
			albumCount:  1,
			wantSuccess: 1,
			validateResult: func(t *testing.T, result *BulkExportResult, tempDir string) {
				if result.Format != string(formatter.FormatMarkdown) {
					t.Errorf("Format = %q, want markdown", result.Format)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			fetcher := newMockFetcher(tt.albumCount)
			exporter := NewExporter(fetcher, nil, nil)
			progressCh, collect := drain()

			result, err := exporter.BulkExport(context.Background(), progressCh, tt.ids, BulkExportOpts{
				Format:     tt.format,
				OutputDir:  tempDir,
				NumWorkers: 2,
				RateLimit:  100,
			})
			collect()

			if err != nil {
				t.Fatalf("BulkExport() error = %v", err)
			}
			if result.SuccessfulExports != tt.wantSuccess {
				t.Errorf("SuccessfulExports = %d, want %d", result.SuccessfulExports, tt.wantSuccess)
			}
			if result.FailedExports != 0 {
				t.Errorf("FailedExports = %d, want 0", result.FailedExports)
			}
			if result.ManifestPath != filepath.Join(tempDir, ManifestFile) {
				t.Errorf("ManifestPath = %q", result.ManifestPath)
			}
			tt.validateResult(t, result, tempDir)
		})
	}
}

func TestBulkExport_PartialFailures(t *testing.T) {
	tempDir := t.TempDir()
	fetcher := newMockFetcher(2)
	exporter := NewExporter(fetcher, nil, nil)
	progressCh, collect := drain()

	result, err := exporter.BulkExport(context.Background(), progressCh, []int64{1, 99, 2}, BulkExportOpts{
		Format:    formatter.FormatJSON,
		OutputDir: tempDir,
		RateLimit: 100,
	})
	collect()

	if err != nil {
		t.Fatalf("BulkExport() error = %v", err)
	}
	if result.SuccessfulExports != 2 || result.FailedExports != 1 {
		t.Fatalf("got %d ok / %d failed, want 2 / 1", result.SuccessfulExports, result.FailedExports)
	}

	var failed *AlbumExportResult
	for i := range result.Results {
		if !result.Results[i].Success {
			failed = &result.Results[i]
		}
	}
	if failed == nil || failed.AlbumID != 99 {
		t.Fatalf("expected album 99 to fail, got %+v", failed)
	}
	if !errors.Is(failed.Error, shared.ErrAlbumNotFound) {
		t.Errorf("expected ErrAlbumNotFound, got %v", failed.Error)
	}

	data, err := os.ReadFile(result.ManifestPath)
	if err != nil {
		t.Fatalf("failed to read manifest: %v", err)
	}
	var manifest BulkExportResult
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("manifest is not valid JSON: %v", err)
	}
	if manifest.TotalAlbums != 3 || manifest.FailedExports != 1 {
		t.Errorf("manifest totals = %d/%d, want 3/1", manifest.TotalAlbums, manifest.FailedExports)
	}
	if !strings.Contains(string(data), "album not found") {
		t.Errorf("expected failure message in manifest, got %s", data)
	}
}

func TestBulkExport_WorkerCount(t *testing.T) {
	tests := []struct {
		name       string
		numWorkers int
	}{
		{"default workers (0 -> 5)", 0},
		{"negative workers (-1 -> 5)", -1},
		{"max workers (15 -> 10)", 15},
		{"valid workers (3)", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := NewExporter(newMockFetcher(1), nil, nil)

			result, err := exporter.BulkExport(context.Background(), nil, []int64{1}, BulkExportOpts{
				Format:     formatter.FormatJSON,
				OutputDir:  t.TempDir(),
				NumWorkers: tt.numWorkers,
			})
			if err != nil {
				t.Fatalf("BulkExport() error = %v", err)
			}
			if result.SuccessfulExports != 1 {
				t.Errorf("export should succeed regardless of worker count")
			}
		})
	}
}

func TestBulkExport_ProgressUpdates(t *testing.T) {
	exporter := NewExporter(newMockFetcher(2), nil, nil)
	progressCh, collect := drain()

	_, err := exporter.BulkExport(context.Background(), progressCh, []int64{1, 2}, BulkExportOpts{
		Format:    formatter.FormatJSON,
		OutputDir: t.TempDir(),
		RateLimit: 100,
	})
	updates := collect()

	if err != nil {
		t.Fatalf("BulkExport() error = %v", err)
	}

	phases := map[Phase]int{}
	for _, u := range updates {
		phases[u.Phase]++
	}
	if phases[FetchAlbums] != 1 {
		t.Errorf("expected one fetch update, got %d", phases[FetchAlbums])
	}
	if phases[ExportAlbum] != 4 {
		t.Errorf("expected 4 export updates (start and finish per album), got %d", phases[ExportAlbum])
	}
	if phases[WriteManifest] != 1 {
		t.Errorf("expected one manifest update, got %d", phases[WriteManifest])
	}
}

func TestBulkExport_Errors(t *testing.T) {
	t.Run("nil fetcher", func(t *testing.T) {
		exporter := NewExporter(nil, nil, nil)
		_, err := exporter.BulkExport(context.Background(), nil, []int64{1}, BulkExportOpts{OutputDir: t.TempDir()})
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("unsupported format", func(t *testing.T) {
		exporter := NewExporter(newMockFetcher(1), nil, nil)
		_, err := exporter.BulkExport(context.Background(), nil, []int64{1}, BulkExportOpts{
			Format:    formatter.FormatCSV,
			OutputDir: t.TempDir(),
		})
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("catalog listing fails", func(t *testing.T) {
		fetcher := newMockFetcher(1)
		fetcher.allErr = errors.New("boom")
		exporter := NewExporter(fetcher, nil, nil)

		_, err := exporter.BulkExport(context.Background(), nil, nil, BulkExportOpts{OutputDir: t.TempDir()})
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		exporter := NewExporter(newMockFetcher(2), nil, nil)

		_, err := exporter.BulkExport(ctx, nil, []int64{1, 2}, BulkExportOpts{OutputDir: t.TempDir()})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestExportSingleAlbum(t *testing.T) {
	cover := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte{0xFF, 0xD8, 0xFF})
	}))
	defer cover.Close()

	exporter := NewExporter(newMockFetcher(0), cover.Client(), nil)
	album := &models.Album{ID: 5, Title: "Covered", CoverURL: cover.URL + "/5.jpg"}

	result := exporter.exportSingleAlbum(context.Background(), albumExportJob{album: album}, BulkExportOpts{
		Format:    formatter.FormatMarkdown,
		OutputDir: t.TempDir(),
	})
	if !result.Success {
		t.Fatalf("export failed: %v", result.Error)
	}
	if len(result.Files) != 2 {
		t.Fatalf("expected cover and README, got %v", result.Files)
	}
	if !strings.HasSuffix(result.Files[0], "cover.jpg") || !strings.HasSuffix(result.Files[1], "README.md") {
		t.Errorf("unexpected files: %v", result.Files)
	}
	for _, file := range result.Files {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			t.Errorf("file not created: %s", file)
		}
	}
}
