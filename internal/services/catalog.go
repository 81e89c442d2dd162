package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/desertthunder/catx/internal/models"
	"github.com/desertthunder/catx/internal/shared"
)

// ArtistTimeout bounds a single artist detail fetch.
const ArtistTimeout = 10 * time.Second

// SortDirection orders paginated listings.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// PageRequest selects one page of a listing. Page is zero-based.
type PageRequest struct {
	Page          int
	Size          int
	SortBy        string
	SortDirection SortDirection
}

// DefaultPageRequest is the first page of ten, sorted by title ascending.
func DefaultPageRequest() PageRequest {
	return PageRequest{Page: 0, Size: 10, SortBy: "title", SortDirection: SortAsc}
}

func (p PageRequest) query() url.Values {
	d := DefaultPageRequest()
	if p.Size <= 0 {
		p.Size = d.Size
	}
	if p.Page < 0 {
		p.Page = 0
	}
	if p.SortBy == "" {
		p.SortBy = d.SortBy
	}
	if p.SortDirection != SortDesc {
		p.SortDirection = SortAsc
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("size", strconv.Itoa(p.Size))
	q.Set("sortBy", p.SortBy)
	q.Set("sortDirection", string(p.SortDirection))
	return q
}

// AlbumService reads and deletes albums.
type AlbumService struct {
	api *APIService
}

// NewAlbumService creates an [AlbumService] on top of api.
func NewAlbumService(api *APIService) *AlbumService {
	return &AlbumService{api: api}
}

// List fetches one page of albums with their artists.
func (s *AlbumService) List(ctx context.Context, req PageRequest) (*models.Page[models.Album], error) {
	q := req.query()
	q.Set("includeArtists", "true")

	var page models.Page[models.Album]
	if err := s.api.DoJSON(ctx, http.MethodGet, "/albums/paginated?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}

	for i := range page.Content {
		page.Content[i].ArtistCount = len(page.Content[i].Artists)
	}
	return &page, nil
}

// All fetches every album with its artists, unpaginated.
func (s *AlbumService) All(ctx context.Context) ([]models.Album, error) {
	var albums []models.Album
	if err := s.api.DoJSON(ctx, http.MethodGet, "/albums?includeArtists=true", nil, &albums); err != nil {
		return nil, err
	}
	for i := range albums {
		albums[i].ArtistCount = len(albums[i].Artists)
	}
	return albums, nil
}

// Get fetches a single album by id.
func (s *AlbumService) Get(ctx context.Context, id int64) (*models.Album, error) {
	var album models.Album
	path := fmt.Sprintf("/albums/%d?includeArtists=true", id)
	if err := s.api.DoJSON(ctx, http.MethodGet, path, nil, &album); err != nil {
		return nil, notFound(err, shared.ErrAlbumNotFound, id)
	}
	return &album, nil
}

// Search finds albums whose title matches term.
func (s *AlbumService) Search(ctx context.Context, term string) ([]models.Album, error) {
	q := url.Values{}
	q.Set("title", term)

	var albums []models.Album
	if err := s.api.DoJSON(ctx, http.MethodGet, "/albums/search?"+q.Encode(), nil, &albums); err != nil {
		return nil, err
	}
	return albums, nil
}

// Delete removes an album by id.
func (s *AlbumService) Delete(ctx context.Context, id int64) error {
	if err := s.api.DoJSON(ctx, http.MethodDelete, fmt.Sprintf("/albums/%d", id), nil, nil); err != nil {
		return notFound(err, shared.ErrAlbumNotFound, id)
	}
	return nil
}

// ArtistService reads artists.
type ArtistService struct {
	api     *APIService
	timeout time.Duration
}

func NewArtistService(api *APIService) *ArtistService {
	return &ArtistService{api: api, timeout: ArtistTimeout}
}

// List fetches one page of artists with their albums.
func (s *ArtistService) List(ctx context.Context, req PageRequest) (*models.Page[models.Artist], error) {
	if req.SortBy == "" {
		req.SortBy = "name"
	}
	q := req.query()
	q.Set("includeAlbums", "true")

	var page models.Page[models.Artist]
	if err := s.api.DoJSON(ctx, http.MethodGet, "/artists/paginated?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Get fetches a single artist, giving up with [shared.ErrTimeout] after [ArtistTimeout].
func (s *ArtistService) Get(ctx context.Context, id string) (*models.Artist, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var artist models.Artist
	err := s.api.DoJSON(ctx, http.MethodGet, "/artists/"+url.PathEscape(id), nil, &artist)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: artist %s after %s", shared.ErrTimeout, id, s.timeout)
		}
		return nil, notFound(err, shared.ErrArtistNotFound, id)
	}
	return &artist, nil
}

func notFound(err, sentinel error, id any) error {
	if StatusCode(err) == http.StatusNotFound {
		return fmt.Errorf("%w: %v", sentinel, id)
	}
	return err
}
