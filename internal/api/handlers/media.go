package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pysugar/photo-slideshow/internal/logging"
	"github.com/pysugar/photo-slideshow/internal/photos"
	"github.com/pysugar/photo-slideshow/internal/slideshow"
)

// DefaultMediaType is what the player shows when it does not ask for a type.
const DefaultMediaType = "image"

// PhotosHandler lists one page of media for an account.
// GET /api/photos/{id}?type=&album_id=&start_date=&end_date=&favorites=&page_token=&page_size=
func PhotosHandler(svc *slideshow.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "id")
		q := r.URL.Query()

		query := slideshow.MediaQuery{
			Type:          q.Get("type"),
			AlbumID:       q.Get("album_id"),
			StartDate:     q.Get("start_date"),
			EndDate:       q.Get("end_date"),
			FavoritesOnly: strings.EqualFold(q.Get("favorites"), "true"),
			PageToken:     q.Get("page_token"),
		}
		if query.Type == "" {
			query.Type = DefaultMediaType
		}
		if v := q.Get("page_size"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "page_size must be an integer")
				return
			}
			query.PageSize = n
		}

		resp, err := svc.Media(r.Context(), accountID, query)
		if err != nil {
			writeListingError(w, r, accountID, err, "Failed to fetch photos")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// AlbumsHandler lists one page of albums; type=shared lists shared albums.
// GET /api/albums/{id}?type=&page_token=
func AlbumsHandler(svc *slideshow.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "id")
		q := r.URL.Query()

		resp, err := svc.Albums(r.Context(), accountID, slideshow.AlbumQuery{
			Shared:    q.Get("type") == "shared",
			PageToken: q.Get("page_token"),
		})
		if err != nil {
			writeListingError(w, r, accountID, err, "Failed to fetch albums")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeListingError(w http.ResponseWriter, r *http.Request, accountID string, err error, fetchMsg string) {
	var dateErr *photos.DateFilterParseError
	switch {
	case errors.As(err, &dateErr):
		writeError(w, http.StatusBadRequest, dateErr.Error())
	case errors.Is(err, slideshow.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "Account not found or expired")
	default:
		log.Printf("%s❌ Listing for %s failed: %v", logging.Prefix(r.Context()), accountID, err)
		writeError(w, http.StatusInternalServerError, fetchMsg)
	}
}
