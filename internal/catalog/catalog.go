// Package catalog keeps the album list view state: the current page, its size, sort order and
// search term, and the albums last loaded for them.
//
// [AlbumList] reloads itself when a live notification arrives (see [AlbumList.Watch]), so the
// view stays current without polling.
package catalog

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catx/internal/broadcast"
	"github.com/desertthunder/catx/internal/models"
	"github.com/desertthunder/catx/internal/services"
	"github.com/desertthunder/catx/internal/shared"
)

const (
	DefaultPageSize = 10
	// SortField orders server-side pages; ids grow with creation so desc shows newest first.
	SortField = "id"
)

// Source is the album backend. [services.AlbumService] satisfies it.
type Source interface {
	List(ctx context.Context, req services.PageRequest) (*models.Page[models.Album], error)
	All(ctx context.Context) ([]models.Album, error)
	Delete(ctx context.Context, id int64) error
}

// Reporter receives load failures, typically a toast service.
type Reporter interface {
	Report(err error)
}

// State is a snapshot of the list.
type State struct {
	Albums        []models.Album
	Loading       bool
	Page          int
	Size          int
	TotalPages    int
	TotalElements int64
	SearchTerm    string
	SortDirection services.SortDirection
	Err           error
}

type AlbumListOpts struct {
	Source   Source
	Reporter Reporter    // optional
	Logger   *log.Logger // defaults to [shared.NewLogger]
	PageSize int         // defaults to [DefaultPageSize]
}

// AlbumList is safe for concurrent use.
type AlbumList struct {
	source   Source
	reporter Reporter
	logger   *log.Logger

	mu      sync.Mutex
	state   State
	seq     uint64
	reloads atomic.Int64
	changes *broadcast.Slot[State]
}

// NewAlbumList creates an empty [AlbumList]; nothing is fetched until it is loaded.
func NewAlbumList(opts AlbumListOpts) *AlbumList {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	size := opts.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	l := &AlbumList{
		source:   opts.Source,
		reporter: opts.Reporter,
		logger:   shared.WithLogger(logger, "component", "albums"),
		state:    State{Size: size, SortDirection: services.SortDesc},
		changes:  broadcast.New[State](),
	}
	l.changes.Publish(l.state)
	return l
}

// State returns the current snapshot.
func (l *AlbumList) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Changes streams snapshots, starting with the current one.
func (l *AlbumList) Changes() (<-chan State, func()) {
	return l.changes.Subscribe(true)
}

// Reloads reports how many loads have started.
func (l *AlbumList) Reloads() int64 {
	return l.reloads.Load()
}

// Reload fetches the albums for the current page, sort and search term.
//
// When a search term is set the whole catalog is fetched and filtered locally by album title or
// artist name; the result is a single page. A load that finishes after a newer one started is
// discarded.
func (l *AlbumList) Reload(ctx context.Context) error {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	st := l.state
	l.state.Loading = true
	l.publishLocked()
	l.mu.Unlock()

	l.reloads.Add(1)

	var (
		albums   []models.Album
		total    int64
		pages    int
		err      error
		searched = st.SearchTerm != ""
	)
	if searched {
		var all []models.Album
		if all, err = l.source.All(ctx); err == nil {
			albums = filter(all, st.SearchTerm, st.SortDirection)
			total, pages = int64(len(albums)), 1
		}
	} else {
		var page *models.Page[models.Album]
		page, err = l.source.List(ctx, services.PageRequest{
			Page:          st.Page,
			Size:          st.Size,
			SortBy:        SortField,
			SortDirection: st.SortDirection,
		})
		if err == nil {
			albums, total, pages = page.Content, page.TotalElements, page.TotalPages
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if seq != l.seq {
		return err
	}

	l.state.Loading = false
	l.state.Err = err
	if err != nil {
		l.logger.Error("failed to load albums", "error", err)
		if l.reporter != nil {
			l.reporter.Report(err)
		}
	} else {
		l.state.Albums = albums
		l.state.TotalElements = total
		l.state.TotalPages = pages
	}
	l.publishLocked()
	return err
}

func filter(albums []models.Album, term string, dir services.SortDirection) []models.Album {
	term = strings.ToLower(term)
	out := make([]models.Album, 0, len(albums))
	for _, a := range albums {
		if matches(a, term) {
			out = append(out, a)
		}
	}

	slices.SortStableFunc(out, func(a, b models.Album) int {
		c := cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		if dir == services.SortDesc {
			return -c
		}
		return c
	})
	return out
}

func matches(a models.Album, term string) bool {
	if strings.Contains(strings.ToLower(a.Title), term) {
		return true
	}
	return slices.ContainsFunc(a.Artists, func(artist models.ArtistSummary) bool {
		return strings.Contains(strings.ToLower(artist.Name), term)
	})
}

// update applies fn to the state and reloads when fn reports a change.
func (l *AlbumList) update(ctx context.Context, fn func(*State) bool) error {
	l.mu.Lock()
	changed := fn(&l.state)
	l.mu.Unlock()
	if !changed {
		return nil
	}
	return l.Reload(ctx)
}

// NextPage moves forward one page. It does nothing on the last page.
func (l *AlbumList) NextPage(ctx context.Context) error {
	return l.update(ctx, func(s *State) bool {
		if s.Page >= s.TotalPages-1 {
			return false
		}
		s.Page++
		return true
	})
}

// PreviousPage moves back one page. It does nothing on the first page.
func (l *AlbumList) PreviousPage(ctx context.Context) error {
	return l.update(ctx, func(s *State) bool {
		if s.Page <= 0 {
			return false
		}
		s.Page--
		return true
	})
}

// GoToPage jumps to a zero-based page. Out of range pages are ignored.
func (l *AlbumList) GoToPage(ctx context.Context, page int) error {
	return l.update(ctx, func(s *State) bool {
		if page < 0 || page >= s.TotalPages {
			return false
		}
		s.Page = page
		return true
	})
}

// ChangePageSize sets the page size and returns to the first page.
func (l *AlbumList) ChangePageSize(ctx context.Context, size int) error {
	return l.update(ctx, func(s *State) bool {
		if size <= 0 {
			return false
		}
		s.Size = size
		s.Page = 0
		return true
	})
}

// SetSearchTerm filters the list and returns to the first page. An empty term restores paging.
func (l *AlbumList) SetSearchTerm(ctx context.Context, term string) error {
	return l.update(ctx, func(s *State) bool {
		s.SearchTerm = strings.TrimSpace(term)
		s.Page = 0
		return true
	})
}

// ToggleSortOrder flips between ascending and descending and returns to the first page.
func (l *AlbumList) ToggleSortOrder(ctx context.Context) error {
	return l.update(ctx, func(s *State) bool {
		if s.SortDirection == services.SortAsc {
			s.SortDirection = services.SortDesc
		} else {
			s.SortDirection = services.SortAsc
		}
		s.Page = 0
		return true
	})
}

// Delete removes an album and reloads the current page.
func (l *AlbumList) Delete(ctx context.Context, id int64) error {
	if err := l.source.Delete(ctx, id); err != nil {
		l.logger.Error("failed to delete album", "id", id, "error", err)
		if l.reporter != nil {
			l.reporter.Report(err)
		}
		return err
	}
	return l.Reload(ctx)
}

// Watch reloads the list once for every notification received. It returns when ctx ends or
// notifications is closed.
func (l *AlbumList) Watch(ctx context.Context, notifications <-chan models.AlbumNotification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			if n.Action == "" {
				continue
			}
			l.logger.Info("album changed", "action", n.Action, "id", n.ID, "title", n.Title)
			l.Reload(ctx)
		}
	}
}

// Close ends every [AlbumList.Changes] subscription.
func (l *AlbumList) Close() {
	l.changes.Close()
}

func (l *AlbumList) publishLocked() {
	l.changes.Publish(l.state)
}
