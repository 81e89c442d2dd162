// package formatter renders album listings to CSV, Markdown, plain text and JSON, and writes album exports to disk
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catx/internal/models"
	"github.com/desertthunder/catx/internal/shared"
)

type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

var extensions = map[Format]string{
	FormatText:     "txt",
	FormatCSV:      "csv",
	FormatMarkdown: "md",
	FormatJSON:     "json",
}

// ParseFormat accepts a format name or its file extension, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want text, csv, markdown or json)", shared.ErrInvalidFlag, s)
	}
}

// Render converts a page of albums to the given format.
func Render(f Format, page *models.Page[models.Album]) ([]byte, error) {
	switch f {
	case FormatCSV:
		return ExportToCSV(page)
	case FormatMarkdown:
		return ExportToMarkdown(page)
	case FormatJSON:
		return ExportToJSON(page)
	case FormatText, "":
		return ExportToText(page)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, f)
	}
}

// ExportToCSV converts a page of albums to CSV with columns: ID, Title, Artists, Release Year, Record Label, Tracks
func ExportToCSV(page *models.Page[models.Album]) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artists", "Release Year", "Record Label", "Tracks"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, album := range page.Content {
		record := []string{
			strconv.FormatInt(album.ID, 10),
			album.Title,
			album.ArtistNames(),
			year(album.ReleaseYear),
			album.RecordLabel,
			strconv.Itoa(album.TrackCount),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a page of albums to a Markdown list
func ExportToMarkdown(page *models.Page[models.Album]) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Albums\n\n")
	fmt.Fprintf(&buf, "**Page**: %s\n", pageLabel(page))
	fmt.Fprintf(&buf, "**Total**: %d\n\n", page.TotalElements)

	for i, album := range page.Content {
		fmt.Fprintf(&buf, "%d. %s%s\n", offset(page)+i+1, markdownTitle(album), details(album))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a page of albums to plain text
func ExportToText(page *models.Page[models.Album]) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Albums: page %s, %d total\n\n", pageLabel(page), page.TotalElements)
	for i, album := range page.Content {
		line := album.Title
		if artists := album.ArtistNames(); artists != "" {
			line = artists + " - " + line
		}
		fmt.Fprintf(&buf, "%d. [%d] %s%s\n", offset(page)+i+1, album.ID, line, yearSuffix(album.ReleaseYear))
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a page of albums to indented JSON
func ExportToJSON(page *models.Page[models.Album]) ([]byte, error) {
	return shared.MarshalJSON(page, true)
}

// ExportAlbumToMarkdown renders a single album, with an optional cover image reference
func ExportAlbumToMarkdown(album *models.Album, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", album.Title)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	if artists := album.ArtistNames(); artists != "" {
		fmt.Fprintf(&buf, "**Artists**: %s\n", artists)
	}
	if album.ReleaseYear > 0 {
		fmt.Fprintf(&buf, "**Released**: %d\n", album.ReleaseYear)
	}
	if album.RecordLabel != "" {
		fmt.Fprintf(&buf, "**Label**: %s\n", album.RecordLabel)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n", album.TrackCount)

	if album.Description != "" {
		fmt.Fprintf(&buf, "\n%s\n", album.Description)
	}

	return buf.Bytes(), nil
}

func pageLabel(page *models.Page[models.Album]) string {
	return fmt.Sprintf("%d of %d", page.Number+1, max(page.TotalPages, 1))
}

func offset(page *models.Page[models.Album]) int {
	return page.Number * page.Size
}

func markdownTitle(album models.Album) string {
	if artists := album.ArtistNames(); artists != "" {
		return fmt.Sprintf("%s - **%s**", artists, album.Title)
	}
	return fmt.Sprintf("**%s**", album.Title)
}

func details(album models.Album) string {
	var parts []string
	if album.ReleaseYear > 0 {
		parts = append(parts, strconv.Itoa(album.ReleaseYear))
	}
	if album.RecordLabel != "" {
		parts = append(parts, album.RecordLabel)
	}
	if album.TrackCount > 0 {
		parts = append(parts, fmt.Sprintf("%d tracks", album.TrackCount))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func year(y int) string {
	if y <= 0 {
		return ""
	}
	return strconv.Itoa(y)
}

func yearSuffix(y int) string {
	if y <= 0 {
		return ""
	}
	return fmt.Sprintf(" (%d)", y)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes.
//
// A nil client gets a 30 second timeout.
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// WriteExport renders a page of albums and writes it to path.
//
// Defaults to albums_page_{n}.{ext} in the working directory.
func WriteExport(f Format, page *models.Page[models.Album], path string) (string, error) {
	if f == "" {
		f = FormatText
	}
	if path == "" {
		path = fmt.Sprintf("albums_page_%d.%s", page.Number+1, extensions[f])
	}

	data, err := Render(f, page)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", f, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", f, err)
	}

	return path, nil
}

// AlbumExportResult contains information about files created by WriteAlbumExport
type AlbumExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteAlbumExport writes a single album to a dedicated directory.
//
// Directory name defaults to album_{id}. When the album has a cover URL the image is downloaded
// to {dir}/cover.jpg; a failed download is logged and the export continues without it.
func WriteAlbumExport(ctx context.Context, album *models.Album, outputDir string, client *http.Client, logger *log.Logger) (*AlbumExportResult, error) {
	if outputDir == "" {
		outputDir = fmt.Sprintf("album_%d", album.ID)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &AlbumExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if album.CoverURL != "" {
		imageData, err := DownloadImage(ctx, client, album.CoverURL)
		if err != nil {
			logger.Warn("failed to download cover image", "error", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				logger.Warn("failed to save cover image", "error", err)
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportAlbumToMarkdown(album, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}
