package token

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/pysugar/photo-slideshow/internal/auth/google"
	"github.com/pysugar/photo-slideshow/internal/metrics"
	"github.com/pysugar/photo-slideshow/internal/util"
)

// Refresher trades a refresh token for a new access token.
// *google.Client satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*google.TokenBundle, error)
}

// Manager handles the credential lifecycle: save, read with lazy refresh,
// list and remove.
//
// There is no per-account lock. Two readers of the same expired credential
// may both refresh it and the last write wins.
type Manager struct {
	backend Backend
	auth    Refresher
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithMetrics records refresh outcomes.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// NewManager creates a new credential manager
func NewManager(backend Backend, auth Refresher, opts ...Option) *Manager {
	m := &Manager{
		backend: backend,
		auth:    auth,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Save persists the tokens of a freshly authorized account, replacing any
// earlier record for the same account id. Expiry is now + bundle.ExpiresIn.
func (m *Manager) Save(bundle *google.TokenBundle, id *google.Identity, scopes []string) (Credential, error) {
	if bundle == nil || id == nil {
		return Credential{}, errors.New("token bundle and identity are required")
	}
	cred := Credential{
		AccountID:    id.AccountID,
		Email:        id.Email,
		AccessToken:  bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		Scopes:       append([]string{}, scopes...),
		Expiry:       m.expiryAfter(bundle.ExpiresIn),
	}
	if err := m.backend.Store(cred); err != nil {
		return Credential{}, err
	}
	log.Printf("💾 Saved credential for %s (expires: %s)", cred.Email, cred.Expiry.Format(time.RFC3339))
	return cred.Clone(), nil
}

// Read returns the account's credential, refreshing it first when expired.
// A missing, corrupt or unrefreshable record all read as absent; the log
// says which one it was.
func (m *Manager) Read(ctx context.Context, accountID string) (Credential, bool) {
	cred, err := m.backend.Load(accountID)
	if err != nil {
		var corrupt *RecordCorruptError
		if errors.As(err, &corrupt) {
			log.Printf("⚠️ Credential for %s is unreadable: %v", accountID, err)
		}
		return Credential{}, false
	}

	if !cred.Expired(m.now()) {
		return cred.Clone(), true
	}

	log.Printf("⚠️ Token for %s is expired, refreshing...", cred.Email)
	if status, err := m.Refresh(ctx, &cred); err != nil {
		log.Printf("❌ Refresh failed for %s (status %d), treating account as unavailable: %v", cred.Email, status, err)
		return Credential{}, false
	}
	return cred.Clone(), true
}

// Refresh exchanges cred's refresh token and, on success, updates cred in
// place and persists it. It returns 200 on success and otherwise the
// upstream status (502 when the auth server was unreachable).
func (m *Manager) Refresh(ctx context.Context, cred *Credential) (int, error) {
	bundle, err := m.auth.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		var rfErr *google.RefreshError
		if errors.As(err, &rfErr) && rfErr.RateLimited() {
			m.metrics.ObserveRefresh(metrics.ResultRateLimited)
			log.Printf("⏳ Refresh rate limited for %s, retry later", cred.Email)
		} else {
			m.metrics.ObserveRefresh(metrics.ResultFailed)
		}
		status := google.StatusOf(err)
		if status == 0 {
			status = http.StatusBadGateway
		}
		return status, err
	}

	updated := *cred
	updated.AccessToken = bundle.AccessToken
	updated.Expiry = m.expiryAfter(bundle.ExpiresIn)
	if bundle.RefreshToken != "" && bundle.RefreshToken != cred.RefreshToken {
		log.Printf("🔄 Rotating refresh token for: %s", cred.Email)
		updated.RefreshToken = bundle.RefreshToken
	}

	if err := m.backend.Store(updated); err != nil {
		m.metrics.ObserveRefresh(metrics.ResultFailed)
		return http.StatusInternalServerError, fmt.Errorf("persist refreshed credential: %w", err)
	}
	*cred = updated
	m.metrics.ObserveRefresh(metrics.ResultSuccess)

	log.Printf("✅ Refreshed token for: %s (token: %s, expires: %s)",
		cred.Email, util.MaskSecret(cred.AccessToken), cred.Expiry.Format(time.RFC3339))
	return http.StatusOK, nil
}

// ListAll enumerates stored accounts. Corrupt records are skipped.
func (m *Manager) ListAll() []AccountSummary {
	creds, err := m.backend.List()
	if err != nil {
		log.Printf("⚠️ Failed to list credentials: %v", err)
		return []AccountSummary{}
	}
	out := make([]AccountSummary, 0, len(creds))
	for _, c := range creds {
		out = append(out, AccountSummary{AccountID: c.AccountID, Email: c.Email})
	}
	return out
}

// Remove deletes an account's credential and reports whether one existed.
func (m *Manager) Remove(accountID string) (bool, error) {
	existed, err := m.backend.Delete(accountID)
	if err != nil {
		return false, err
	}
	if existed {
		log.Printf("🗑️ Removed credential for account %s", accountID)
	}
	return existed, nil
}

// expiryAfter is truncated to the precision of the stored timestamp so a
// saved credential reads back unchanged.
func (m *Manager) expiryAfter(d time.Duration) time.Time {
	return m.now().UTC().Add(d).Truncate(time.Microsecond)
}
