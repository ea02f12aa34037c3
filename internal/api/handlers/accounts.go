package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pysugar/photo-slideshow/internal/auth/token"
	"github.com/pysugar/photo-slideshow/internal/logging"
	"github.com/pysugar/photo-slideshow/internal/slideshow"
)

// AccountsHandler lists stored accounts with a validity flag.
// GET /api/accounts
func AccountsHandler(svc *slideshow.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Accounts(r.Context()))
	}
}

// RemoveAccountHandler deletes an account's stored credential.
// DELETE /api/auth/remove/{id}
func RemoveAccountHandler(tokenMgr *token.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "id")

		removed, err := tokenMgr.Remove(accountID)
		if err != nil {
			log.Printf("%s❌ Failed to remove account %s: %v", logging.Prefix(r.Context()), accountID, err)
			writeError(w, http.StatusInternalServerError, "Failed to remove account")
			return
		}
		if !removed {
			writeError(w, http.StatusNotFound, "Account not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Account removed successfully"})
	}
}
