package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pysugar/photo-slideshow/internal/auth/flow"
	"github.com/pysugar/photo-slideshow/internal/auth/google"
	"github.com/pysugar/photo-slideshow/internal/auth/token"
	"github.com/pysugar/photo-slideshow/internal/logging"
)

// Authenticator is the part of *google.Client the login handlers use.
type Authenticator interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*google.TokenBundle, error)
	FetchIdentity(ctx context.Context, accessToken string) (*google.Identity, error)
	RequestDeviceCode(ctx context.Context) (*google.DeviceCode, error)
	PollDeviceToken(ctx context.Context, deviceCode string) (*google.TokenBundle, error)
	Scopes() []string
}

type startAuthRequest struct {
	Method string `json:"method"`
}

// StartAuthHandler begins a login. The direct method returns the consent URL;
// the device method returns a user code to enter on another device.
// POST /api/auth/start
func StartAuthHandler(auth Authenticator, flows *flow.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Query().Get("method")
		if method == "" && r.ContentLength != 0 {
			var req startAuthRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
				method = req.Method
			}
		}

		switch flow.Method(strings.ToLower(method)) {
		case "", flow.MethodDirect:
			f := flows.Begin(flow.MethodDirect, nil)
			writeJSON(w, http.StatusOK, map[string]string{
				"auth_url": auth.AuthCodeURL(f.ID),
				"method":   string(flow.MethodDirect),
				"flow_id":  f.ID,
			})

		case flow.MethodDevice:
			dc, err := auth.RequestDeviceCode(r.Context())
			if errors.Is(err, google.ErrClassicFlowDisabled) {
				writeError(w, http.StatusBadRequest, "Device login requires a client id and secret")
				return
			}
			if err != nil {
				log.Printf("%s❌ Device code request failed: %v", logging.Prefix(r.Context()), err)
				writeError(w, http.StatusBadGateway, "Failed to start device login")
				return
			}
			f := flows.Begin(flow.MethodDevice, dc)
			writeJSON(w, http.StatusOK, map[string]any{
				"method":           string(flow.MethodDevice),
				"flow_id":          f.ID,
				"user_code":        dc.UserCode,
				"verification_url": dc.VerificationURL,
				"expires_in":       dc.ExpiresIn,
				"interval":         dc.Interval,
			})

		default:
			writeError(w, http.StatusBadRequest, "Unknown auth method: "+method)
		}
	}
}

// CallbackHandler finishes a direct login and sends the browser back to the player.
// GET /auth/callback?code=&state=
func CallbackHandler(auth Authenticator, flows *flow.Store, tokenMgr *token.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		if e := q.Get("error"); e != "" {
			log.Printf("%s⚠️ Authorization denied: %s", logging.Prefix(ctx), e)
			writeError(w, http.StatusBadRequest, "Authorization failed: "+e)
			return
		}
		code := q.Get("code")
		if code == "" {
			writeError(w, http.StatusBadRequest, "No authorization code received")
			return
		}
		if _, err := flows.Take(q.Get("state")); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid or expired authorization state")
			return
		}

		bundle, err := auth.ExchangeCode(ctx, code)
		if err != nil {
			log.Printf("%s❌ Code exchange failed: %v", logging.Prefix(ctx), err)
			writeError(w, http.StatusInternalServerError, "Failed to exchange code for token")
			return
		}
		if _, err := completeLogin(ctx, auth, tokenMgr, bundle); err != nil {
			writeLoginError(w, err)
			return
		}

		http.Redirect(w, r, "/?success=true", http.StatusFound)
	}
}

// CheckAuthHandler reports on a login in progress. Device logins are polled
// here; a completed poll saves the account.
// GET /api/auth/check/{id}
func CheckAuthHandler(auth Authenticator, flows *flow.Store, tokenMgr *token.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		flowID := chi.URLParam(r, "id")

		f, err := flows.Get(flowID)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"status": "not_found"})
			return
		}
		if f.Method != flow.MethodDevice || f.Device == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "not_used"})
			return
		}

		bundle, err := auth.PollDeviceToken(ctx, f.Device.DeviceCode)
		var exErr *google.AuthExchangeError
		switch {
		case errors.Is(err, google.ErrAuthorizationPending):
			writeJSON(w, http.StatusOK, map[string]string{"status": "pending"})
			return
		case errors.As(err, &exErr) && exErr.RateLimited():
			writeJSON(w, http.StatusOK, map[string]string{"status": "slow_down"})
			return
		case err != nil:
			log.Printf("%s❌ Device token poll failed: %v", logging.Prefix(ctx), err)
			flows.Delete(flowID)
			writeJSON(w, http.StatusBadGateway, map[string]string{"status": "error", "error": "Failed to exchange code for token"})
			return
		}

		cred, err := completeLogin(ctx, auth, tokenMgr, bundle)
		flows.Delete(flowID)
		if err != nil {
			writeLoginError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "complete",
			"user_id": cred.AccountID,
			"email":   cred.Email,
		})
	}
}

var errSaveCredential = errors.New("save credential")

func completeLogin(ctx context.Context, auth Authenticator, tokenMgr *token.Manager, bundle *google.TokenBundle) (token.Credential, error) {
	id, err := auth.FetchIdentity(ctx, bundle.AccessToken)
	if err != nil {
		log.Printf("%s❌ User info lookup failed: %v", logging.Prefix(ctx), err)
		return token.Credential{}, err
	}
	cred, err := tokenMgr.Save(bundle, id, auth.Scopes())
	if err != nil {
		log.Printf("%s❌ Failed to save credential for %s: %v", logging.Prefix(ctx), id.Email, err)
		return token.Credential{}, errors.Join(errSaveCredential, err)
	}
	log.Printf("%s✅ Account authorized: %s", logging.Prefix(ctx), cred.Email)
	return cred, nil
}

func writeLoginError(w http.ResponseWriter, err error) {
	if errors.Is(err, errSaveCredential) {
		writeError(w, http.StatusInternalServerError, "Failed to save credentials")
		return
	}
	writeError(w, http.StatusInternalServerError, "Failed to get user info")
}
