package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultExpiresIn is the access token lifetime, in seconds, assumed when the server omits expiresIn.
const DefaultExpiresIn = 3600

// Credentials are posted to the login endpoint.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is posted to the registration endpoint.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Fullname string `json:"fullname"`
}

// RefreshRequest is posted to the refresh endpoint.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is returned by login, refresh and registration.
type AuthResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresIn    ExpiresIn `json:"expiresIn"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	TokenType    string    `json:"tokenType"`
}

// ExpiresIn is a token lifetime in seconds. The backend sends it either as a JSON number or a numeric string.
type ExpiresIn int64

// UnmarshalJSON accepts 3600, "3600" and null.
func (e *ExpiresIn) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*e = 0
		return nil
	}

	raw = strings.Trim(raw, `"`)
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		raw = raw[:i]
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid expiresIn %s: %w", string(data), err)
	}
	*e = ExpiresIn(n)
	return nil
}

// Seconds returns the lifetime, falling back to [DefaultExpiresIn] when unset or non-positive.
func (e ExpiresIn) Seconds() int64 {
	if e <= 0 {
		return DefaultExpiresIn
	}
	return int64(e)
}

// User is the identity carried in the access token payload.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Fullname string `json:"fullname"`
}

// ArtistSummary is the artist shape embedded in album listings.
type ArtistSummary struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	MusicalGenre string `json:"musicalGenre,omitempty"`
	PhotoURL     string `json:"photoUrl,omitempty"`
}

type Album struct {
	ID          int64           `json:"id,omitempty"`
	Title       string          `json:"title"`
	ReleaseYear int             `json:"releaseYear,omitempty"`
	RecordLabel string          `json:"recordLabel,omitempty"`
	TrackCount  int             `json:"trackCount,omitempty"`
	CoverURL    string          `json:"coverUrl,omitempty"`
	Description string          `json:"description,omitempty"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	UpdatedAt   string          `json:"updatedAt,omitempty"`
	Artists     []ArtistSummary `json:"artists,omitempty"`
	ArtistCount int             `json:"artistCount,omitempty"`
}

// ArtistNames joins the album's artist names with ", ".
func (a Album) ArtistNames() string {
	names := make([]string, 0, len(a.Artists))
	for _, artist := range a.Artists {
		names = append(names, artist.Name)
	}
	return strings.Join(names, ", ")
}

type Artist struct {
	ID              json.Number `json:"id,omitempty"`
	Name            string      `json:"name"`
	MusicalGenre    string      `json:"musicalGenre,omitempty"`
	Biography       string      `json:"biography,omitempty"`
	CountryOfOrigin string      `json:"countryOfOrigin,omitempty"`
	PhotoURL        string      `json:"photoUrl,omitempty"`
	Albums          []Album     `json:"albums,omitempty"`
	AlbumCount      int         `json:"albumCount,omitempty"`
	CreatedAt       string      `json:"createdAt,omitempty"`
	UpdatedAt       string      `json:"updatedAt,omitempty"`
}

// Page is one page of a paginated listing. Number is zero-based.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Size          int   `json:"size"`
	Number        int   `json:"number"`
}

// NotificationAction is the kind of change an [AlbumNotification] reports.
type NotificationAction string

const (
	ActionCreate NotificationAction = "CREATE"
	ActionUpdate NotificationAction = "UPDATE"
	ActionDelete NotificationAction = "DELETE"
)

// AlbumNotification is pushed by the backend whenever an album changes.
type AlbumNotification struct {
	Action      NotificationAction `json:"action"`
	ID          int64              `json:"id"`
	Title       string             `json:"title"`
	ReleaseYear int                `json:"releaseYear,omitempty"`
	CoverURL    string             `json:"coverUrl,omitempty"`
	CreatedAt   string             `json:"createdAt,omitempty"`
}

// Envelope is the wrapper every backend response body uses.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *EnvelopeError  `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
