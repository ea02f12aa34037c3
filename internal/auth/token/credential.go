package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// expiryLayout is the only format written. Readers also accept RFC 3339
// (with a trailing Z) for records written by older versions.
const expiryLayout = "2006-01-02 15:04:05.000000"

var expiryReadLayouts = []string{
	"2006-01-02 15:04:05", // fractional seconds are accepted by time.Parse
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

var (
	// ErrRecordNotFound means no credential is stored for the account.
	ErrRecordNotFound = errors.New("credential not found")
)

// RecordCorruptError is a stored record that cannot be decoded into a usable credential.
type RecordCorruptError struct {
	AccountID string
	Err       error
}

func (e *RecordCorruptError) Error() string {
	return fmt.Sprintf("credential record %q is corrupt: %v", e.AccountID, e.Err)
}

func (e *RecordCorruptError) Unwrap() error { return e.Err }

// Credential is the token record of one authenticated Google account.
type Credential struct {
	AccountID    string
	Email        string
	AccessToken  string
	RefreshToken string
	Scopes       []string
	Expiry       time.Time
}

// AccountSummary is what account listings expose.
type AccountSummary struct {
	AccountID string `json:"user_id"`
	Email     string `json:"email"`
}

// Expired reports whether the access token is no longer usable at now.
func (c Credential) Expired(now time.Time) bool {
	return !c.Expiry.After(now)
}

// Clone returns a copy that shares no mutable state with c.
func (c Credential) Clone() Credential {
	c.Scopes = slices.Clone(c.Scopes)
	return c
}

func (c Credential) validate() error {
	if c.AccountID == "" {
		return errors.New("missing account id")
	}
	if c.AccessToken == "" {
		return errors.New("missing access token")
	}
	if c.Expiry.IsZero() {
		return errors.New("missing expiry")
	}
	return nil
}

// record is the on-disk JSON shape, one file per account.
type record struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token"`
	Email        string   `json:"email"`
	UserID       string   `json:"user_id"`
	Scopes       []string `json:"scopes"`
	Expiry       string   `json:"expiry"`
}

func encodeRecord(c Credential) ([]byte, error) {
	r := record{
		Token:        c.AccessToken,
		RefreshToken: c.RefreshToken,
		Email:        c.Email,
		UserID:       c.AccountID,
		Scopes:       c.Scopes,
		Expiry:       formatExpiry(c.Expiry),
	}
	if r.Scopes == nil {
		r.Scopes = []string{}
	}
	return json.MarshalIndent(r, "", "  ")
}

// decodeRecord parses a stored record. accountID fills in user_id when the
// record predates that field.
func decodeRecord(accountID string, data []byte) (Credential, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return Credential{}, &RecordCorruptError{AccountID: accountID, Err: err}
	}
	expiry, err := parseExpiry(r.Expiry)
	if err != nil {
		return Credential{}, &RecordCorruptError{AccountID: accountID, Err: err}
	}
	if r.UserID == "" {
		r.UserID = accountID
	}
	if r.Scopes == nil {
		r.Scopes = []string{}
	}

	c := Credential{
		AccountID:    r.UserID,
		Email:        r.Email,
		AccessToken:  r.Token,
		RefreshToken: r.RefreshToken,
		Scopes:       r.Scopes,
		Expiry:       expiry,
	}
	if err := c.validate(); err != nil {
		return Credential{}, &RecordCorruptError{AccountID: accountID, Err: err}
	}
	return c, nil
}

func formatExpiry(t time.Time) string {
	return t.UTC().Format(expiryLayout)
}

func parseExpiry(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("missing expiry")
	}
	for _, layout := range expiryReadLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized expiry %q", s)
}
