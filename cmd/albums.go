package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/catx/internal/formatter"
	"github.com/desertthunder/catx/internal/models"
	"github.com/desertthunder/catx/internal/services"
	"github.com/desertthunder/catx/internal/shared"
	"github.com/desertthunder/catx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// pageRequest reads the shared paging flags.
func pageRequest(cmd *cli.Command) services.PageRequest {
	req := services.PageRequest{
		Page:          int(cmd.Int("page")),
		Size:          int(cmd.Int("size")),
		SortBy:        cmd.String("sort-by"),
		SortDirection: services.SortAsc,
	}
	if cmd.Bool("desc") {
		req.SortDirection = services.SortDesc
	}
	return req
}

func albumID(cmd *cli.Command) (int64, error) {
	raw := strings.TrimSpace(cmd.StringArg("id"))
	if raw == "" {
		return 0, fmt.Errorf("%w: album id", shared.ErrMissingArgument)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: album id %q", shared.ErrInvalidArgument, raw)
	}
	return id, nil
}

// AlbumsList prints or exports one page of albums.
func (r *Runner) AlbumsList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.init(); err != nil {
		return err
	}

	req := pageRequest(cmd)
	r.logger.Debug("listing albums", "page", req.Page, "size", req.Size, "sort", req.SortBy)

	page, err := r.albums.List(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if output := cmd.String("output"); output != "" {
		path, err := formatter.WriteExport(format, page, output)
		if err != nil {
			return err
		}
		r.logger.Info("export complete", "format", format, "path", path)
		return r.writePlain("✓ Exported %d albums to %s\n", len(page.Content), path)
	}

	data, err := formatter.Render(format, page)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

// AlbumsGet shows one album, optionally exporting it as Markdown with its cover.
func (r *Runner) AlbumsGet(ctx context.Context, cmd *cli.Command) error {
	id, err := albumID(cmd)
	if err != nil {
		return err
	}
	if err := r.init(); err != nil {
		return err
	}

	album, err := r.albums.Get(ctx, id)
	if err != nil {
		return err
	}

	if cmd.IsSet("export") {
		result, err := formatter.WriteAlbumExport(ctx, album, cmd.String("export"), r.httpClient, r.logger)
		if err != nil {
			return fmt.Errorf("failed to export album: %w", err)
		}
		r.writePlain("✓ Exported \"%s\" to %s\n", album.Title, result.Directory)
		for _, f := range result.Files {
			r.writePlain("  %s\n", f)
		}
		return nil
	}

	if cmd.Bool("json") {
		return r.writeJSON(album, true)
	}

	r.writePlainHeader(album.Title)
	r.writePlain("ID:       %d\n", album.ID)
	if names := album.ArtistNames(); names != "" {
		r.writePlain("Artists:  %s\n", names)
	}
	if album.ReleaseYear > 0 {
		r.writePlain("Released: %d\n", album.ReleaseYear)
	}
	if album.RecordLabel != "" {
		r.writePlain("Label:    %s\n", album.RecordLabel)
	}
	if album.TrackCount > 0 {
		r.writePlain("Tracks:   %d\n", album.TrackCount)
	}
	if album.Description != "" {
		r.writePlainln("%s", album.Description)
	}
	return nil
}

// AlbumsSearch lists albums whose title matches the term.
func (r *Runner) AlbumsSearch(ctx context.Context, cmd *cli.Command) error {
	term := strings.TrimSpace(cmd.StringArg("term"))
	if term == "" {
		return fmt.Errorf("%w: search term", shared.ErrMissingArgument)
	}
	if err := r.init(); err != nil {
		return err
	}

	albums, err := r.albums.Search(ctx, term)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(albums, true)
	}

	if len(albums) == 0 {
		return r.writePlain("No albums match %q\n", term)
	}

	page := &models.Page[models.Album]{
		Content:       albums,
		TotalElements: int64(len(albums)),
		TotalPages:    1,
		Size:          len(albums),
	}
	data, err := formatter.Render(formatter.FormatText, page)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

// AlbumsExport writes many albums to disk with a worker pool, printing progress as it goes.
func (r *Runner) AlbumsExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	var ids []int64
	for _, raw := range cmd.Args().Slice() {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("%w: album id %q", shared.ErrInvalidArgument, raw)
		}
		ids = append(ids, id)
	}

	if err := r.init(); err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 100)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()

	exporter := tasks.NewExporter(r.albums, r.httpClient, r.logger)
	result, err := exporter.BulkExport(ctx, progress, ids, tasks.BulkExportOpts{
		Format:     format,
		OutputDir:  cmd.String("dir"),
		NumWorkers: int(cmd.Int("workers")),
		RateLimit:  cmd.Float("rate"),
	})
	close(progress)
	<-done

	if err != nil {
		return err
	}

	r.writePlainln("✓ Exported %d of %d albums to %s", result.SuccessfulExports, result.TotalAlbums, result.OutputDirectory)
	if result.FailedExports > 0 {
		r.writePlain("✗ %d failed, see %s\n", result.FailedExports, result.ManifestPath)
	}
	return nil
}

// AlbumsDelete removes an album.
func (r *Runner) AlbumsDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := albumID(cmd)
	if err != nil {
		return err
	}
	if err := r.init(); err != nil {
		return err
	}

	if err := r.albums.Delete(ctx, id); err != nil {
		return err
	}
	r.logger.Info("album deleted", "id", id)
	return r.writePlain("✓ Deleted album %d\n", id)
}

// ArtistsList prints one page of artists.
func (r *Runner) ArtistsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.init(); err != nil {
		return err
	}

	page, err := r.artists.List(ctx, pageRequest(cmd))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(page, true)
	}

	r.writePlain("Artists: page %d of %d, %d total\n\n", page.Number+1, max(page.TotalPages, 1), page.TotalElements)
	for i, artist := range page.Content {
		r.writePlain("%3d. %s", page.Number*page.Size+i+1, artist.Name)
		if artist.MusicalGenre != "" {
			r.writePlain(" (%s)", artist.MusicalGenre)
		}
		r.writePlain(" [%d albums]\n", max(artist.AlbumCount, len(artist.Albums)))
	}
	return nil
}

// ArtistsGet shows one artist and their albums.
func (r *Runner) ArtistsGet(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: artist id", shared.ErrMissingArgument)
	}
	if err := r.init(); err != nil {
		return err
	}

	artist, err := r.artists.Get(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(artist, true)
	}

	r.writePlainHeader(artist.Name)
	if artist.MusicalGenre != "" {
		r.writePlain("Genre:   %s\n", artist.MusicalGenre)
	}
	if artist.CountryOfOrigin != "" {
		r.writePlain("Country: %s\n", artist.CountryOfOrigin)
	}
	if artist.Biography != "" {
		r.writePlainln("%s", artist.Biography)
	}
	if len(artist.Albums) > 0 {
		r.writePlainln("Albums:")
		for _, album := range artist.Albums {
			if album.ReleaseYear > 0 {
				r.writePlain("  • %s (%d)\n", album.Title, album.ReleaseYear)
			} else {
				r.writePlain("  • %s\n", album.Title)
			}
		}
	}
	return nil
}
