package photos

// MediaItem is a media item as returned by the Library API.
type MediaItem struct {
	ID            string        `json:"id"`
	Filename      string        `json:"filename"`
	MimeType      string        `json:"mimeType"`
	BaseURL       string        `json:"baseUrl"`
	ProductURL    string        `json:"productUrl,omitempty"`
	Description   string        `json:"description,omitempty"`
	MediaMetadata MediaMetadata `json:"mediaMetadata"`
}

type MediaMetadata struct {
	CreationTime string `json:"creationTime,omitempty"`
	Width        string `json:"width,omitempty"`
	Height       string `json:"height,omitempty"`
}

// MediaPage is one page of media items. An empty NextPageToken means last page.
type MediaPage struct {
	MediaItems    []MediaItem `json:"mediaItems"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

// Album is an album or shared album. MediaItemsCount is a decimal string on the wire.
type Album struct {
	ID                string `json:"id"`
	Title             string `json:"title,omitempty"`
	ProductURL        string `json:"productUrl,omitempty"`
	CoverPhotoBaseURL string `json:"coverPhotoBaseUrl,omitempty"`
	CoverPhotoMediaID string `json:"coverPhotoMediaItemId,omitempty"`
	MediaItemsCount   string `json:"mediaItemsCount,omitempty"`
	IsWriteable       bool   `json:"isWriteable,omitempty"`
}

// AlbumPage is one page of albums or shared albums.
type AlbumPage struct {
	Albums        []Album `json:"albums"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

type sharedAlbumPage struct {
	SharedAlbums  []Album `json:"sharedAlbums"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}
