package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
}

// Operation phase enumeration
type Phase int

const (
	FetchAlbums Phase = iota
	ExportAlbum
	WriteManifest
)

func (p Phase) String() string {
	switch p {
	case FetchAlbums:
		return "fetch_albums"
	case ExportAlbum:
		return "export_album"
	case WriteManifest:
		return "write_manifest"
	default:
		return ""
	}
}

func fetchingAlbumsUpdate(step, total int) ProgressUpdate {
	if total == 0 {
		return ProgressUpdate{Phase: FetchAlbums, Step: step, Message: "Fetching the full catalog..."}
	}
	return ProgressUpdate{
		Phase:   FetchAlbums,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching %d albums...", total),
	}
}

func exportingAlbumUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportAlbum,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, title),
	}
}

func exportCompletedUpdate(step, total int, title string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportAlbum,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, title, filesCount),
	}
}

func exportFailedUpdate(step, total int, title string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportAlbum,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, title, err),
	}
}

func manifestUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteManifest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Manifest written to %s", path),
	}
}
