package google

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// FetchIdentity looks up the account id and email behind an access token.
func (c *Client) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	bearer := &http.Client{
		Timeout: RequestTimeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   c.httpClient.Transport,
		},
	}

	opts := []option.ClientOption{option.WithHTTPClient(bearer)}
	if c.opts.UserInfoEndpoint != "" {
		opts = append(opts, option.WithEndpoint(c.opts.UserInfoEndpoint))
	}
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, &IdentityFetchError{Body: err.Error()}
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return nil, &IdentityFetchError{Status: gerr.Code, Body: gerr.Body}
		}
		return nil, &IdentityFetchError{Body: err.Error()}
	}
	if info.Id == "" {
		return nil, &IdentityFetchError{Status: http.StatusOK, Body: "user info response has no account id"}
	}

	return &Identity{AccountID: info.Id, Email: info.Email}, nil
}
