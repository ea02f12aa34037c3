// Package slideshow turns Photos Library listings into the shape the
// browser player consumes.
package slideshow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pysugar/photo-slideshow/internal/auth/token"
	"github.com/pysugar/photo-slideshow/internal/photos"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnavailable means no listing could be produced: the account has no
	// usable credential or the API call failed.
	ErrUnavailable = errors.New("listing unavailable")

	// ErrAccountNotFound is the ErrUnavailable case where the account is
	// missing or its token could not be refreshed.
	ErrAccountNotFound = fmt.Errorf("%w: account not found or expired", ErrUnavailable)
)

// Credentials resolves an account to a usable access token.
// *token.Manager satisfies it.
type Credentials interface {
	Read(ctx context.Context, accountID string) (token.Credential, bool)
	ListAll() []token.AccountSummary
}

// Lister is the subset of *photos.Client the service drives.
type Lister interface {
	ListMedia(ctx context.Context, accessToken, pageToken string, pageSize int) (*photos.MediaPage, error)
	SearchMedia(ctx context.Context, accessToken string, filters photos.Filters, pageToken string, pageSize int) (*photos.MediaPage, error)
	ListAlbumMedia(ctx context.Context, accessToken, albumID, pageToken string, pageSize int) (*photos.MediaPage, error)
	ListAlbums(ctx context.Context, accessToken, pageToken string) (*photos.AlbumPage, error)
	ListSharedAlbums(ctx context.Context, accessToken, pageToken string) (*photos.AlbumPage, error)
}

// MediaQuery selects one page of media for an account.
type MediaQuery struct {
	// Type is "image", "video" or "all"; empty means all.
	Type string
	// AlbumID wins over every other filter.
	AlbumID string
	// StartDate and EndDate (YYYY-MM-DD) apply only when both are set.
	StartDate     string
	EndDate       string
	FavoritesOnly bool
	PageToken     string
	PageSize      int
}

// Filters builds the search filter for q. A malformed date is returned as
// a *photos.DateFilterParseError.
func (q MediaQuery) Filters() (photos.Filters, error) {
	var f photos.Filters
	if q.StartDate != "" && q.EndDate != "" {
		dates, err := photos.DateRangeFilter(q.StartDate, q.EndDate)
		if err != nil {
			return photos.Filters{}, err
		}
		f = f.Merge(dates)
	}
	f = f.Merge(photos.MediaTypeFilter(q.Type))
	if q.FavoritesOnly {
		f = f.Merge(photos.FavoritesFilter())
	}
	return f, nil
}

// AlbumQuery selects one page of albums.
type AlbumQuery struct {
	Shared    bool
	PageToken string
}

// Item is one media item as served to the player.
type Item struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	MimeType     string `json:"mimeType"`
	Type         string `json:"type"`
	BaseURL      string `json:"baseUrl"`
	Description  string `json:"description"`
	CreationTime string `json:"creationTime"`
	DisplayURL   string `json:"displayUrl,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	VideoURL     string `json:"videoUrl,omitempty"`
}

type MediaResponse struct {
	MediaItems    []Item `json:"mediaItems"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// Album is one album as served to the player.
type Album struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	CoverPhotoBaseURL string `json:"coverPhotoBaseUrl"`
	MediaItemsCount   string `json:"mediaItemsCount"`
	IsWriteable       bool   `json:"isWriteable"`
	ThumbnailURL      string `json:"thumbnailUrl,omitempty"`
}

type AlbumResponse struct {
	Albums        []Album `json:"albums"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// AccountStatus is a stored account and whether it currently has a usable token.
type AccountStatus struct {
	AccountID string `json:"user_id"`
	Email     string `json:"email"`
	Valid     bool   `json:"valid"`
}

const (
	TypeImage   = "image"
	TypeVideo   = "video"
	TypeUnknown = "unknown"

	defaultAlbumTitle = "Untitled Album"

	// accountCheckConcurrency caps parallel credential reads in Accounts.
	accountCheckConcurrency = 4
)

type Service struct {
	creds  Credentials
	lister Lister
}

func NewService(creds Credentials, lister Lister) *Service {
	return &Service{creds: creds, lister: lister}
}

// Media lists one page for an account. The album path takes precedence over
// a filtered search, which takes precedence over the plain listing.
func (s *Service) Media(ctx context.Context, accountID string, q MediaQuery) (*MediaResponse, error) {
	filters, err := q.Filters()
	if err != nil {
		return nil, err
	}

	cred, ok := s.creds.Read(ctx, accountID)
	if !ok {
		return nil, ErrAccountNotFound
	}

	var page *photos.MediaPage
	switch {
	case q.AlbumID != "":
		page, err = s.lister.ListAlbumMedia(ctx, cred.AccessToken, q.AlbumID, q.PageToken, q.PageSize)
	case !filters.Empty():
		page, err = s.lister.SearchMedia(ctx, cred.AccessToken, filters, q.PageToken, q.PageSize)
	default:
		page, err = s.lister.ListMedia(ctx, cred.AccessToken, q.PageToken, q.PageSize)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	resp := &MediaResponse{
		MediaItems:    make([]Item, 0, len(page.MediaItems)),
		NextPageToken: page.NextPageToken,
	}
	for _, raw := range page.MediaItems {
		resp.MediaItems = append(resp.MediaItems, ShapeItem(raw))
	}
	return resp, nil
}

// Albums lists one page of the account's own or shared albums.
func (s *Service) Albums(ctx context.Context, accountID string, q AlbumQuery) (*AlbumResponse, error) {
	cred, ok := s.creds.Read(ctx, accountID)
	if !ok {
		return nil, ErrAccountNotFound
	}

	var (
		page *photos.AlbumPage
		err  error
	)
	if q.Shared {
		page, err = s.lister.ListSharedAlbums(ctx, cred.AccessToken, q.PageToken)
	} else {
		page, err = s.lister.ListAlbums(ctx, cred.AccessToken, q.PageToken)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	resp := &AlbumResponse{
		Albums:        make([]Album, 0, len(page.Albums)),
		NextPageToken: page.NextPageToken,
	}
	for _, raw := range page.Albums {
		resp.Albums = append(resp.Albums, ShapeAlbum(raw))
	}
	return resp, nil
}

// Accounts lists stored accounts and checks each credential in parallel.
// Checking may refresh expired tokens.
func (s *Service) Accounts(ctx context.Context) []AccountStatus {
	summaries := s.creds.ListAll()
	out := make([]AccountStatus, len(summaries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(accountCheckConcurrency)
	for i, sum := range summaries {
		g.Go(func() error {
			_, ok := s.creds.Read(gctx, sum.AccountID)
			out[i] = AccountStatus{AccountID: sum.AccountID, Email: sum.Email, Valid: ok}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// ShapeItem derives the media kind and the variant URLs the player needs.
func ShapeItem(raw photos.MediaItem) Item {
	item := Item{
		ID:           raw.ID,
		Filename:     raw.Filename,
		MimeType:     raw.MimeType,
		Type:         MediaKind(raw.MimeType),
		BaseURL:      raw.BaseURL,
		Description:  raw.Description,
		CreationTime: raw.MediaMetadata.CreationTime,
	}
	switch item.Type {
	case TypeImage:
		item.DisplayURL = photos.DisplayURL(raw.BaseURL)
		item.ThumbnailURL = photos.ThumbnailURL(raw.BaseURL)
	case TypeVideo:
		item.VideoURL = photos.VideoURL(raw.BaseURL)
		item.ThumbnailURL = photos.ThumbnailURL(raw.BaseURL)
	}
	return item
}

// MediaKind maps a mime type to image, video or unknown by its top-level type.
func MediaKind(mimeType string) string {
	top, _, _ := strings.Cut(mimeType, "/")
	switch strings.ToLower(strings.TrimSpace(top)) {
	case TypeImage:
		return TypeImage
	case TypeVideo:
		return TypeVideo
	}
	return TypeUnknown
}

// ShapeAlbum fills in defaults and adds a thumbnail when there is a cover.
func ShapeAlbum(raw photos.Album) Album {
	a := Album{
		ID:                raw.ID,
		Title:             raw.Title,
		CoverPhotoBaseURL: raw.CoverPhotoBaseURL,
		MediaItemsCount:   raw.MediaItemsCount,
		IsWriteable:       raw.IsWriteable,
	}
	if a.Title == "" {
		a.Title = defaultAlbumTitle
	}
	if a.MediaItemsCount == "" {
		a.MediaItemsCount = "0"
	}
	if a.CoverPhotoBaseURL != "" {
		a.ThumbnailURL = photos.ThumbnailURL(a.CoverPhotoBaseURL)
	}
	return a
}
