// package tasks implements bulk catalog operations.
package tasks

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catx/internal/models"
	"github.com/desertthunder/catx/internal/shared"
)

// AlbumFetcher reads albums. [services.AlbumService] satisfies it.
type AlbumFetcher interface {
	Get(ctx context.Context, id int64) (*models.Album, error)
	All(ctx context.Context) ([]models.Album, error)
}

// AlbumExportResult is the outcome of exporting one album.
type AlbumExportResult struct {
	AlbumID int64    `json:"albumId"`
	Title   string   `json:"title"`
	Success bool     `json:"success"`
	Files   []string `json:"files,omitempty"`
	Error   error    `json:"-"`
	Message string   `json:"error,omitempty"`
}

// BulkExportResult summarizes a bulk export and doubles as its manifest.
type BulkExportResult struct {
	Format            string              `json:"format"`
	ExportedAt        time.Time           `json:"exportedAt"`
	TotalAlbums       int                 `json:"totalAlbums"`
	SuccessfulExports int                 `json:"successfulExports"`
	FailedExports     int                 `json:"failedExports"`
	OutputDirectory   string              `json:"outputDirectory"`
	ManifestPath      string              `json:"-"`
	Results           []AlbumExportResult `json:"results"`
}

type albumExportJob struct {
	album *models.Album
}

// Exporter writes albums to disk. Covers are downloaded with client.
type Exporter struct {
	albums AlbumFetcher
	client *http.Client
	logger *log.Logger
}

// NewExporter creates an Exporter. A nil client uses [http.DefaultClient]; a nil logger writes to stderr.
func NewExporter(albums AlbumFetcher, client *http.Client, logger *log.Logger) *Exporter {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Exporter{
		albums: albums,
		client: client,
		logger: shared.WithLogger(logger, "component", "export"),
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Exporter) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// writeManifest stores result as indented JSON at path.
func writeManifest(result *BulkExportResult, path string) error {
	for i := range result.Results {
		if err := result.Results[i].Error; err != nil {
			result.Results[i].Message = err.Error()
		}
	}

	data, err := shared.MarshalJSON(result, true)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
