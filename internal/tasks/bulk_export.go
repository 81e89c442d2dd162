package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/catx/internal/formatter"
	"github.com/desertthunder/catx/internal/models"
	"github.com/desertthunder/catx/internal/shared"
	"golang.org/x/time/rate"
)

// ManifestFile is written into the output directory of every bulk export.
const ManifestFile = "export_manifest.json"

// BulkExportOpts contains configuration for bulk album exports.
type BulkExportOpts struct {
	Format     formatter.Format // json or markdown (default)
	OutputDir  string           // Base output directory (default: catalog_export_{epoch})
	NumWorkers int              // Concurrent workers (default: 5, at most 10)
	RateLimit  float64          // Album fetches per second (default: 5)
}

// BulkExport exports albums concurrently with rate limiting and progress tracking.
//
// With no ids the whole catalog is fetched in one request. Otherwise each id is fetched
// individually under the rate limit; ids that cannot be fetched are recorded as failures.
func (e *Exporter) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, ids []int64, opts BulkExportOpts) (*BulkExportResult, error) {
	if e.albums == nil {
		return nil, fmt.Errorf("%w: album service not initialized", shared.ErrServiceUnavailable)
	}

	switch opts.Format {
	case "":
		opts.Format = formatter.FormatMarkdown
	case formatter.FormatMarkdown, formatter.FormatJSON:
	default:
		return nil, fmt.Errorf("%w: album export supports json or markdown, got %q", shared.ErrInvalidFlag, opts.Format)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("catalog_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	var catalog []models.Album
	if len(ids) == 0 {
		e.sendProgress(prog, fetchingAlbumsUpdate(1, 0))
		all, err := e.albums.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to list albums: %v", shared.ErrAPIRequest, err)
		}
		catalog = all
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	total := len(ids)
	if catalog != nil {
		total = len(catalog)
	}

	result := &BulkExportResult{
		Format:          string(opts.Format),
		ExportedAt:      time.Now().UTC(),
		TotalAlbums:     total,
		OutputDirectory: opts.OutputDir,
		Results:         make([]AlbumExportResult, 0, total),
	}

	jobs := make(chan albumExportJob, total)
	results := make(chan AlbumExportResult, total)

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)

		if catalog != nil {
			for i := range catalog {
				e.sendProgress(prog, exportingAlbumUpdate(i+1, total, catalog[i].Title))
				jobs <- albumExportJob{album: &catalog[i]}
			}
			return
		}

		limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
		e.sendProgress(prog, fetchingAlbumsUpdate(1, total))
		for i, id := range ids {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			album, err := e.albums.Get(ctx, id)
			if err != nil {
				results <- AlbumExportResult{
					AlbumID: id,
					Title:   fmt.Sprintf("Unknown (%d)", id),
					Error:   fmt.Errorf("failed to fetch album: %w", err),
				}
				continue
			}

			e.sendProgress(prog, exportingAlbumUpdate(i+1, total, album.Title))
			jobs <- albumExportJob{album: album}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			e.sendProgress(prog, exportCompletedUpdate(completed, total, res.Title, len(res.Files)))
		} else {
			result.FailedExports++
			e.logger.Warn("album export failed", "id", res.AlbumID, "error", res.Error)
			e.sendProgress(prog, exportFailedUpdate(completed, total, res.Title, res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	manifestPath := filepath.Join(opts.OutputDir, ManifestFile)
	if err := writeManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	e.sendProgress(prog, manifestUpdate(manifestPath))
	return result, nil
}

// exportWorker exports albums from the jobs channel until it closes.
func (e *Exporter) exportWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan albumExportJob, results chan<- AlbumExportResult, opts BulkExportOpts) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			results <- AlbumExportResult{AlbumID: job.album.ID, Title: job.album.Title, Error: ctx.Err()}
			continue
		}
		results <- e.exportSingleAlbum(ctx, job, opts)
	}
}

// exportSingleAlbum writes one album in the requested format.
func (e *Exporter) exportSingleAlbum(ctx context.Context, j albumExportJob, opts BulkExportOpts) AlbumExportResult {
	result := AlbumExportResult{
		AlbumID: j.album.ID,
		Title:   j.album.Title,
		Files:   []string{},
	}

	switch opts.Format {
	case formatter.FormatJSON:
		jsonPath := filepath.Join(opts.OutputDir, fmt.Sprintf("album_%d.json", j.album.ID))
		data, err := shared.MarshalJSON(j.album, true)
		if err != nil {
			result.Error = fmt.Errorf("JSON marshal failed: %w", err)
			return result
		}
		if err := os.WriteFile(jsonPath, data, 0644); err != nil {
			result.Error = fmt.Errorf("JSON write failed: %w", err)
			return result
		}
		result.Files = []string{jsonPath}
	default:
		dir := filepath.Join(opts.OutputDir, fmt.Sprintf("album_%d", j.album.ID))
		md, err := formatter.WriteAlbumExport(ctx, j.album, dir, e.client, e.logger)
		if err != nil {
			result.Error = fmt.Errorf("markdown export failed: %w", err)
			return result
		}
		result.Files = md.Files
	}

	result.Success = true
	return result
}
