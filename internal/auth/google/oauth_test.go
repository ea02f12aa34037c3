package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

type tokenServer struct {
	t        *testing.T
	status   int
	response string
	lastForm url.Values
	calls    int
}

func (s *tokenServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.calls++
	if err := r.ParseForm(); err != nil {
		s.t.Errorf("parse form: %v", err)
	}
	s.lastForm = r.PostForm
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(s.status)
	w.Write([]byte(s.response))
}

func newTestClient(t *testing.T, mux http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := NewClient(Options{
		ClientID:         "client-id",
		ClientSecret:     "client-secret",
		RedirectURI:      "http://localhost:5000/auth/callback",
		Scopes:           []string{"openid", "email"},
		AuthURL:          srv.URL + "/auth",
		TokenURL:         srv.URL + "/token",
		RefreshURL:       srv.URL + "/refresh",
		AuthBaseURL:      srv.URL,
		UserInfoEndpoint: srv.URL + "/",
	})
	return c, srv
}

func expectForm(t *testing.T, form url.Values, want map[string]string) {
	t.Helper()
	for k, v := range want {
		if got := form.Get(k); got != v {
			t.Errorf("form[%s] = %q, want %q", k, got, v)
		}
	}
}

func TestAuthCodeURL(t *testing.T) {
	c := NewClient(Options{ClientID: "cid", RedirectURI: "http://localhost:5000/auth/callback", Scopes: []string{"openid", "email"}})

	u, err := url.Parse(c.AuthCodeURL("flow-123"))
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	if u.Host != "accounts.google.com" {
		t.Errorf("host = %s", u.Host)
	}
	expectForm(t, u.Query(), map[string]string{
		"client_id":     "cid",
		"state":         "flow-123",
		"access_type":   "offline",
		"prompt":        "consent",
		"scope":         "openid email",
		"response_type": "code",
	})
}

func TestExchangeCode_Success(t *testing.T) {
	ts := &tokenServer{t: t, status: http.StatusOK, response: `{"access_token":"ya29.new","refresh_token":"1//refresh","expires_in":3599,"token_type":"Bearer"}`}
	mux := http.NewServeMux()
	mux.Handle("/token", ts)
	c, _ := newTestClient(t, mux)

	bundle, err := c.ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if bundle.AccessToken != "ya29.new" || bundle.RefreshToken != "1//refresh" {
		t.Errorf("bundle = %+v", bundle)
	}
	if bundle.ExpiresIn != 3599*time.Second {
		t.Errorf("expires in = %s", bundle.ExpiresIn)
	}
	expectForm(t, ts.lastForm, map[string]string{
		"grant_type":    "authorization_code",
		"code":          "auth-code",
		"client_id":     "client-id",
		"client_secret": "client-secret",
		"redirect_uri":  "http://localhost:5000/auth/callback",
	})
}

func TestExchangeCode_DefaultsExpiry(t *testing.T) {
	ts := &tokenServer{t: t, status: http.StatusOK, response: `{"access_token":"ya29.new","token_type":"Bearer"}`}
	mux := http.NewServeMux()
	mux.Handle("/token", ts)
	c, _ := newTestClient(t, mux)

	bundle, err := c.ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if bundle.ExpiresIn != time.Hour {
		t.Errorf("expires in = %s, want 1h", bundle.ExpiresIn)
	}
	if bundle.RefreshToken != "" {
		t.Errorf("refresh token = %q", bundle.RefreshToken)
	}
}

func TestExchangeCode_Failure(t *testing.T) {
	ts := &tokenServer{t: t, status: http.StatusBadRequest, response: `{"error":"invalid_grant"}`}
	mux := http.NewServeMux()
	mux.Handle("/token", ts)
	c, _ := newTestClient(t, mux)

	_, err := c.ExchangeCode(context.Background(), "bad-code")
	var exErr *AuthExchangeError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected AuthExchangeError, got %v", err)
	}
	if exErr.Status != http.StatusBadRequest {
		t.Errorf("status = %d", exErr.Status)
	}
	if !strings.Contains(exErr.Body, "invalid_grant") {
		t.Errorf("body = %q", exErr.Body)
	}
	if exErr.RateLimited() {
		t.Error("400 is not rate limiting")
	}
	if got := StatusOf(err); got != http.StatusBadRequest {
		t.Errorf("StatusOf = %d", got)
	}
}

func TestExchangeCode_TransportFailure(t *testing.T) {
	c := NewClient(Options{ClientID: "cid", TokenURL: "http://127.0.0.1:1/token"})

	_, err := c.ExchangeCode(context.Background(), "code")
	var exErr *AuthExchangeError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected AuthExchangeError, got %v", err)
	}
	if exErr.Status != 0 || exErr.Body == "" {
		t.Errorf("unexpected error fields: %+v", exErr)
	}
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		response    string
		wantErr     bool
		rateLimited bool
		wantAccess  string
		wantRefresh string
	}{
		{
			name:        "keeps refresh token when none returned",
			status:      http.StatusOK,
			response:    `{"access_token":"ya29.fresh","expires_in":3600,"token_type":"Bearer"}`,
			wantAccess:  "ya29.fresh",
			wantRefresh: "1//old",
		},
		{
			name:        "rotated refresh token",
			status:      http.StatusOK,
			response:    `{"access_token":"ya29.fresh","refresh_token":"1//rotated","expires_in":3600,"token_type":"Bearer"}`,
			wantAccess:  "ya29.fresh",
			wantRefresh: "1//rotated",
		},
		{name: "rate limited 403", status: http.StatusForbidden, response: `{"error":"slow_down"}`, wantErr: true, rateLimited: true},
		{name: "rate limited 429", status: http.StatusTooManyRequests, response: `{"error":"quota"}`, wantErr: true, rateLimited: true},
		{name: "revoked grant", status: http.StatusBadRequest, response: `{"error":"invalid_grant"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := &tokenServer{t: t, status: tt.status, response: tt.response}
			mux := http.NewServeMux()
			mux.Handle("/refresh", ts)
			c, _ := newTestClient(t, mux)

			bundle, err := c.Refresh(context.Background(), "1//old")
			if ts.calls != 1 {
				t.Errorf("refresh is single-attempt, got %d calls", ts.calls)
			}
			expectForm(t, ts.lastForm, map[string]string{
				"grant_type":    "refresh_token",
				"refresh_token": "1//old",
				"clientId":      "client-id",
				"clientSecret":  "client-secret",
				"client_id":     "",
			})

			if tt.wantErr {
				var rfErr *RefreshError
				if !errors.As(err, &rfErr) {
					t.Fatalf("expected RefreshError, got %v", err)
				}
				if rfErr.Status != tt.status {
					t.Errorf("status = %d, want %d", rfErr.Status, tt.status)
				}
				if rfErr.RateLimited() != tt.rateLimited {
					t.Errorf("RateLimited = %v, want %v", rfErr.RateLimited(), tt.rateLimited)
				}
				return
			}
			if err != nil {
				t.Fatalf("Refresh: %v", err)
			}
			if bundle.AccessToken != tt.wantAccess || bundle.RefreshToken != tt.wantRefresh {
				t.Errorf("bundle = %+v", bundle)
			}
			if d := bundle.ExpiresIn - time.Hour; d < -2*time.Second || d > 2*time.Second {
				t.Errorf("expires in = %s, want about 1h", bundle.ExpiresIn)
			}
		})
	}
}

func TestRefresh_SharedServerForm(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/refresh", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("clientId") == "" || r.PostForm.Get("clientSecret") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"missing clientId/clientSecret"}`))
			return
		}
		w.Write([]byte(`{"access_token":"ya29.shared","expires_in":3599}`))
	})
	c, _ := newTestClient(t, mux)

	bundle, err := c.Refresh(context.Background(), "1//r")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if bundle.AccessToken != "ya29.shared" {
		t.Errorf("access token = %q", bundle.AccessToken)
	}
	if bundle.RefreshToken != "1//r" {
		t.Errorf("refresh token should be kept, got %q", bundle.RefreshToken)
	}
	if bundle.ExpiresIn != 3599*time.Second {
		t.Errorf("expires in = %s", bundle.ExpiresIn)
	}
}

func TestRefresh_SharedServerNeedsClientCredentials(t *testing.T) {
	c := NewClient(Options{ClientID: "only-id", AuthBaseURL: "http://127.0.0.1:1", RefreshURL: "http://127.0.0.1:1/refresh"})

	_, err := c.Refresh(context.Background(), "1//r")
	var rfErr *RefreshError
	if !errors.As(err, &rfErr) {
		t.Fatalf("expected RefreshError, got %v", err)
	}
	if rfErr.Status != http.StatusBadRequest {
		t.Errorf("status = %d", rfErr.Status)
	}
}

func TestRefresh_StandardTokenEndpoint(t *testing.T) {
	ts := &tokenServer{t: t, status: http.StatusOK, response: `{"access_token":"ya29.google","expires_in":3600,"token_type":"Bearer"}`}
	srv := httptest.NewServer(ts)
	t.Cleanup(srv.Close)
	c := NewClient(Options{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshURL:   srv.URL + "/token",
		AuthBaseURL:  "https://photos-kodi-login.onrender.com",
	})

	bundle, err := c.Refresh(context.Background(), "1//old")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if bundle.AccessToken != "ya29.google" || bundle.RefreshToken != "1//old" {
		t.Errorf("bundle = %+v", bundle)
	}
	expectForm(t, ts.lastForm, map[string]string{
		"client_id":  "client-id",
		"grant_type": "refresh_token",
		"clientId":   "",
	})
}

func TestRefresh_NoRefreshToken(t *testing.T) {
	c := NewClient(Options{ClientID: "cid"})
	_, err := c.Refresh(context.Background(), "")

	var rfErr *RefreshError
	if !errors.As(err, &rfErr) {
		t.Fatalf("expected RefreshError, got %v", err)
	}
	if rfErr.Status != http.StatusBadRequest {
		t.Errorf("status = %d", rfErr.Status)
	}
}

func TestFetchIdentity(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer ya29.good" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":401,"message":"Invalid Credentials"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": "10769150350006150715", "email": "viewer@example.com"})
	})
	c, _ := newTestClient(t, mux)

	id, err := c.FetchIdentity(context.Background(), "ya29.good")
	if err != nil {
		t.Fatalf("FetchIdentity: %v", err)
	}
	if id.AccountID != "10769150350006150715" || id.Email != "viewer@example.com" {
		t.Errorf("identity = %+v", id)
	}

	_, err = c.FetchIdentity(context.Background(), "ya29.bad")
	var idErr *IdentityFetchError
	if !errors.As(err, &idErr) {
		t.Fatalf("expected IdentityFetchError, got %v", err)
	}
	if idErr.Status != http.StatusUnauthorized {
		t.Errorf("status = %d", idErr.Status)
	}
	if got := StatusOf(err); got != http.StatusUnauthorized {
		t.Errorf("StatusOf = %d", got)
	}
}

func TestDeviceFlow(t *testing.T) {
	var polls int
	mux := http.NewServeMux()
	mux.HandleFunc("/devicecode", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("clientId") != "client-id" || r.PostForm.Get("clientSecret") != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"device_code":"dev-1","user_code":"ABCD-EFGH","verification_uri":"https://example.com/device","expires_in":1800,"interval":5}`))
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("grant_type") != deviceCodeGrantType || r.PostForm.Get("deviceCode") != "dev-1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		polls++
		switch polls {
		case 1:
			w.WriteHeader(http.StatusAccepted)
		case 2:
			w.WriteHeader(http.StatusForbidden)
		default:
			w.Write([]byte(`{"access_token":"ya29.device","refresh_token":"1//device","expires_in":1200}`))
		}
	})
	c, srv := newTestClient(t, mux)

	dc, err := c.RequestDeviceCode(context.Background())
	if err != nil {
		t.Fatalf("RequestDeviceCode: %v", err)
	}
	if dc.DeviceCode != "dev-1" || dc.UserCode != "ABCD-EFGH" {
		t.Errorf("device code = %+v", dc)
	}
	if dc.VerificationURL != "https://example.com/device" {
		t.Errorf("verification url = %s", dc.VerificationURL)
	}
	if dc.BaseURL != srv.URL {
		t.Errorf("base url = %s, want %s", dc.BaseURL, srv.URL)
	}

	if _, err := c.PollDeviceToken(context.Background(), "dev-1"); !errors.Is(err, ErrAuthorizationPending) {
		t.Fatalf("first poll: expected ErrAuthorizationPending, got %v", err)
	}

	_, err = c.PollDeviceToken(context.Background(), "dev-1")
	var exErr *AuthExchangeError
	if !errors.As(err, &exErr) || !exErr.RateLimited() {
		t.Fatalf("second poll: expected rate limited AuthExchangeError, got %v", err)
	}

	bundle, err := c.PollDeviceToken(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("third poll: %v", err)
	}
	if bundle.AccessToken != "ya29.device" {
		t.Errorf("access token = %q", bundle.AccessToken)
	}
	if bundle.ExpiresIn != 20*time.Minute {
		t.Errorf("expires in = %s", bundle.ExpiresIn)
	}
}

func TestDeviceFlow_RequiresClientCredentials(t *testing.T) {
	c := NewClient(Options{ClientID: "only-id"})

	if _, err := c.RequestDeviceCode(context.Background()); !errors.Is(err, ErrClassicFlowDisabled) {
		t.Errorf("RequestDeviceCode: expected ErrClassicFlowDisabled, got %v", err)
	}
	if _, err := c.PollDeviceToken(context.Background(), "dev"); !errors.Is(err, ErrClassicFlowDisabled) {
		t.Errorf("PollDeviceToken: expected ErrClassicFlowDisabled, got %v", err)
	}
	if !strings.HasPrefix(c.AuthCodeURL("s"), "https://accounts.google.com/") {
		t.Error("direct flow should stay available")
	}
}
