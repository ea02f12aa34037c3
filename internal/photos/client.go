package photos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pysugar/photo-slideshow/internal/logging"
	"github.com/pysugar/photo-slideshow/internal/metrics"
	"github.com/pysugar/photo-slideshow/internal/util"
)

const (
	DefaultBaseURL = "https://photoslibrary.googleapis.com/v1"

	// MaxPageSize is the largest page the mediaItems endpoints accept.
	MaxPageSize = 100

	// RequestTimeout bounds every listing call.
	RequestTimeout = 30 * time.Second
)

// Operation names used in errors, logs and metrics.
const (
	OpListMedia        = "list_media"
	OpSearchMedia      = "search_media"
	OpListAlbumMedia   = "list_album_media"
	OpListAlbums       = "list_albums"
	OpListSharedAlbums = "list_shared_albums"
)

// ListingFetchError is a listing call that did not produce a page.
// Status is 0 when the API could not be reached.
type ListingFetchError struct {
	Op     string
	Status int
	Body   string
}

func (e *ListingFetchError) Error() string {
	return fmt.Sprintf("%s failed: status %d: %s", e.Op, e.Status, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	MaxPageSize int
	HTTPClient  *http.Client
	Metrics     *metrics.Metrics
}

// Client calls the Photos Library API on behalf of whichever account's
// access token is passed in. It is safe for concurrent use.
type Client struct {
	baseURL     string
	maxPageSize int
	httpClient  *http.Client
	metrics     *metrics.Metrics
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.MaxPageSize <= 0 || opts.MaxPageSize > MaxPageSize {
		opts.MaxPageSize = MaxPageSize
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: RequestTimeout}
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		maxPageSize: opts.MaxPageSize,
		httpClient:  opts.HTTPClient,
		metrics:     opts.Metrics,
	}
}

// PageSize clamps n to [1, max page size]; n <= 0 selects the maximum.
func (c *Client) PageSize(n int) int {
	if n <= 0 || n > c.maxPageSize {
		return c.maxPageSize
	}
	return n
}

// ListMedia pages through the whole library, newest first.
func (c *Client) ListMedia(ctx context.Context, accessToken, pageToken string, pageSize int) (*MediaPage, error) {
	q := url.Values{"pageSize": {strconv.Itoa(c.PageSize(pageSize))}}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	var page MediaPage
	if err := c.do(ctx, OpListMedia, http.MethodGet, "/mediaItems", q, nil, accessToken, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

type searchRequest struct {
	AlbumID   string   `json:"albumId,omitempty"`
	PageSize  int      `json:"pageSize"`
	PageToken string   `json:"pageToken,omitempty"`
	Filters   *Filters `json:"filters,omitempty"`
}

// SearchMedia pages through items matching filters.
func (c *Client) SearchMedia(ctx context.Context, accessToken string, filters Filters, pageToken string, pageSize int) (*MediaPage, error) {
	body := searchRequest{PageSize: c.PageSize(pageSize), PageToken: pageToken, Filters: &filters}
	var page MediaPage
	if err := c.do(ctx, OpSearchMedia, http.MethodPost, "/mediaItems:search", nil, body, accessToken, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListAlbumMedia pages through the items of one album. The API does not
// allow filters together with an album id.
func (c *Client) ListAlbumMedia(ctx context.Context, accessToken, albumID, pageToken string, pageSize int) (*MediaPage, error) {
	body := searchRequest{AlbumID: albumID, PageSize: c.PageSize(pageSize), PageToken: pageToken}
	var page MediaPage
	if err := c.do(ctx, OpListAlbumMedia, http.MethodPost, "/mediaItems:search", nil, body, accessToken, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) ListAlbums(ctx context.Context, accessToken, pageToken string) (*AlbumPage, error) {
	var page AlbumPage
	if err := c.do(ctx, OpListAlbums, http.MethodGet, "/albums", pageQuery(pageToken), nil, accessToken, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListSharedAlbums returns albums shared with the account. The page's
// Albums field carries the API's sharedAlbums list.
func (c *Client) ListSharedAlbums(ctx context.Context, accessToken, pageToken string) (*AlbumPage, error) {
	var page sharedAlbumPage
	if err := c.do(ctx, OpListSharedAlbums, http.MethodGet, "/sharedAlbums", pageQuery(pageToken), nil, accessToken, &page); err != nil {
		return nil, err
	}
	return &AlbumPage{Albums: page.SharedAlbums, NextPageToken: page.NextPageToken}, nil
}

func pageQuery(pageToken string) url.Values {
	if pageToken == "" {
		return nil
	}
	return url.Values{"pageToken": {pageToken}}
}

// do runs one authenticated call and decodes a 200 reply into out.
// Every other outcome becomes a *ListingFetchError.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any, accessToken string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	err := c.roundTrip(ctx, op, method, path, query, body, accessToken, out)
	if err != nil {
		c.metrics.ObserveListing(op, metrics.ResultFailed)
		log.Printf("%s❌ [Photos] %v", logging.Prefix(ctx), err)
		return err
	}
	c.metrics.ObserveListing(op, metrics.ResultSuccess)
	return nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, query url.Values, body any, accessToken string, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &ListingFetchError{Op: op, Body: fmt.Sprintf("encode request: %v", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &ListingFetchError{Op: op, Body: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ListingFetchError{Op: op, Body: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ListingFetchError{Op: op, Status: resp.StatusCode, Body: fmt.Sprintf("read body: %v", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return &ListingFetchError{Op: op, Status: resp.StatusCode, Body: util.TruncateBytes(raw)}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ListingFetchError{Op: op, Status: resp.StatusCode, Body: fmt.Sprintf("decode body: %v", err)}
	}
	return nil
}
