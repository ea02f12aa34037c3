package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const deviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"

// DeviceCode is the shared auth server's answer to a device-code request.
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
	BaseURL         string `json:"baseUrl"`
}

// RequestDeviceCode starts a device-code login through the shared auth server.
func (c *Client) RequestDeviceCode(ctx context.Context) (*DeviceCode, error) {
	if !c.HasClientCredentials() {
		return nil, ErrClassicFlowDisabled
	}

	form := url.Values{
		"clientId":     {c.opts.ClientID},
		"clientSecret": {c.opts.ClientSecret},
	}
	status, body, err := c.postForm(ctx, joinURL(c.opts.AuthBaseURL, "devicecode"), form)
	if err != nil {
		return nil, &AuthExchangeError{Body: err.Error()}
	}
	if status != http.StatusOK {
		return nil, &AuthExchangeError{Status: status, Body: string(body)}
	}

	var dc DeviceCode
	if err := json.Unmarshal(body, &dc); err != nil {
		return nil, &AuthExchangeError{Status: status, Body: fmt.Sprintf("decode device code: %v", err)}
	}
	if dc.VerificationURL == "" {
		var alt struct {
			VerificationURI string `json:"verification_uri"`
		}
		if json.Unmarshal(body, &alt) == nil {
			dc.VerificationURL = alt.VerificationURI
		}
	}
	dc.BaseURL = c.opts.AuthBaseURL
	return &dc, nil
}

// PollDeviceToken checks whether the user finished the device-code prompt.
// It returns ErrAuthorizationPending while waiting and an *AuthExchangeError
// with RateLimited() when polled too fast.
func (c *Client) PollDeviceToken(ctx context.Context, deviceCode string) (*TokenBundle, error) {
	if !c.HasClientCredentials() {
		return nil, ErrClassicFlowDisabled
	}

	form := url.Values{
		"deviceCode": {deviceCode},
		"grant_type": {deviceCodeGrantType},
	}
	status, body, err := c.postForm(ctx, joinURL(c.opts.AuthBaseURL, "token"), form)
	if err != nil {
		return nil, &AuthExchangeError{Body: err.Error()}
	}
	switch status {
	case http.StatusOK:
	case http.StatusAccepted:
		return nil, ErrAuthorizationPending
	default:
		return nil, &AuthExchangeError{Status: status, Body: string(body)}
	}

	bundle, err := decodeTokenResponse(body)
	if err != nil {
		return nil, &AuthExchangeError{Status: status, Body: err.Error()}
	}
	return bundle, nil
}

// refreshShared trades a refresh token at the shared auth server, which takes
// the client credentials as clientId/clientSecret form fields.
func (c *Client) refreshShared(ctx context.Context, refreshToken string) (*TokenBundle, error) {
	if !c.HasClientCredentials() {
		return nil, &RefreshError{Status: http.StatusBadRequest, Body: ErrClassicFlowDisabled.Error()}
	}

	form := url.Values{
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
		"clientId":      {c.opts.ClientID},
		"clientSecret":  {c.opts.ClientSecret},
	}
	status, body, err := c.postForm(ctx, c.opts.RefreshURL, form)
	if err != nil {
		return nil, &RefreshError{Status: status, Body: err.Error()}
	}
	if status != http.StatusOK {
		return nil, &RefreshError{Status: status, Body: strings.TrimSpace(string(body))}
	}

	bundle, err := decodeTokenResponse(body)
	if err != nil {
		return nil, &RefreshError{Status: status, Body: err.Error()}
	}
	if bundle.RefreshToken == "" {
		bundle.RefreshToken = refreshToken
	}
	return bundle, nil
}

func decodeTokenResponse(body []byte) (*TokenBundle, error) {
	var tr struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, errors.New("token response has no access_token")
	}

	bundle := &TokenBundle{AccessToken: tr.AccessToken, RefreshToken: tr.RefreshToken, ExpiresIn: defaultExpiresIn}
	if tr.ExpiresIn > 0 {
		bundle.ExpiresIn = time.Duration(tr.ExpiresIn) * time.Second
	}
	return bundle, nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func joinURL(parts ...string) string {
	trimmed := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed = append(trimmed, strings.Trim(p, "/"))
	}
	return strings.Join(trimmed, "/")
}
