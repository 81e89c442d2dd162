package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/catx/internal/models"
)

var (
	_ list.Item = albumItem{}
)

// albumItem wraps [models.Album] to implement [list.Item].
type albumItem struct {
	album models.Album
}

func (i albumItem) FilterValue() string { return i.album.Title }
func (i albumItem) Title() string       { return i.album.Title }
func (i albumItem) Description() string {
	var parts []string
	if artists := i.album.ArtistNames(); artists != "" {
		parts = append(parts, artists)
	}
	if i.album.ReleaseYear > 0 {
		parts = append(parts, fmt.Sprint(i.album.ReleaseYear))
	}
	if i.album.TrackCount > 0 {
		parts = append(parts, fmt.Sprintf("%d tracks", i.album.TrackCount))
	}
	return strings.Join(parts, " • ")
}

func albumItems(albums []models.Album) []list.Item {
	items := make([]list.Item, len(albums))
	for i, a := range albums {
		items[i] = albumItem{album: a}
	}
	return items
}
