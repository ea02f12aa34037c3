package google

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleOAuth "golang.org/x/oauth2/google"
)

const (
	// RequestTimeout bounds every call to the auth and identity endpoints.
	RequestTimeout = 30 * time.Second

	// defaultExpiresIn applies when a token response omits expires_in.
	defaultExpiresIn = time.Hour
)

// Options configures a Client. Empty URLs fall back to Google's endpoints.
type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	AuthURL     string
	TokenURL    string
	RefreshURL  string
	AuthBaseURL string // shared auth server for device-code and refresh

	// UserInfoEndpoint overrides the Google API root used for userinfo lookups.
	UserInfoEndpoint string

	HTTPClient *http.Client
}

// TokenBundle is what the token endpoints hand back.
type TokenBundle struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Identity is the Google account a token belongs to.
type Identity struct {
	AccountID string
	Email     string
}

// Client talks to the OAuth token endpoints and the userinfo API.
// Every call is a single attempt; retries are the caller's decision.
type Client struct {
	opts          Options
	code          *oauth2.Config
	refresh       *oauth2.Config
	sharedRefresh bool
	httpClient    *http.Client
}

// NewClient builds a Client from opts.
func NewClient(opts Options) *Client {
	if opts.AuthURL == "" {
		opts.AuthURL = googleOAuth.Endpoint.AuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = googleOAuth.Endpoint.TokenURL
	}
	if opts.RefreshURL == "" {
		opts.RefreshURL = opts.TokenURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: RequestTimeout}
	}

	return &Client{
		opts: opts,
		code: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURI,
			Scopes:       opts.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   opts.AuthURL,
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		refresh: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  opts.RefreshURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		sharedRefresh: onSharedServer(opts.RefreshURL, opts.AuthBaseURL),
		httpClient:    httpClient,
	}
}

// onSharedServer reports whether endpoint lives under the shared auth server.
func onSharedServer(endpoint, base string) bool {
	base = strings.TrimRight(base, "/")
	return base != "" && strings.HasPrefix(endpoint, base+"/")
}

// Scopes returns the scopes requested during authorization.
func (c *Client) Scopes() []string {
	return append([]string(nil), c.opts.Scopes...)
}

// HasClientCredentials reports whether the device-code path is usable.
func (c *Client) HasClientCredentials() bool {
	return c.opts.ClientID != "" && c.opts.ClientSecret != ""
}

// AuthCodeURL is the consent page URL. state must round-trip to the callback.
func (c *Client) AuthCodeURL(state string) string {
	return c.code.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode trades an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenBundle, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	tok, err := c.code.Exchange(ctx, code)
	if err != nil {
		status, body := retrieveErrorDetails(err)
		return nil, &AuthExchangeError{Status: status, Body: body}
	}
	return bundleFromToken(tok), nil
}

// Refresh trades a refresh token for a new access token. A refresh URL on
// the shared auth server gets that server's form; any other URL is treated as
// a standard OAuth token endpoint.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenBundle, error) {
	if refreshToken == "" {
		return nil, &RefreshError{Status: http.StatusBadRequest, Body: "no refresh token available"}
	}
	if c.sharedRefresh {
		return c.refreshShared(ctx, refreshToken)
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	tok, err := c.refresh.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		status, body := retrieveErrorDetails(err)
		return nil, &RefreshError{Status: status, Body: body}
	}
	return bundleFromToken(tok), nil
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return context.WithTimeout(ctx, RequestTimeout)
}

func retrieveErrorDetails(err error) (int, string) {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return status, strings.TrimSpace(string(re.Body))
	}
	return 0, err.Error()
}

func bundleFromToken(tok *oauth2.Token) *TokenBundle {
	expiresIn := time.Duration(tok.ExpiresIn) * time.Second
	if expiresIn <= 0 && !tok.Expiry.IsZero() {
		expiresIn = time.Until(tok.Expiry).Round(time.Second)
	}
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	return &TokenBundle{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    expiresIn,
	}
}
