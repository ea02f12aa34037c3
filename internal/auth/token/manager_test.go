package token

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/pysugar/photo-slideshow/internal/auth/google"
	"github.com/pysugar/photo-slideshow/internal/metrics"
)

type fakeRefresher struct {
	mu     sync.Mutex
	calls  int
	seen   []string
	bundle *google.TokenBundle
	err    error
}

func (f *fakeRefresher) Refresh(_ context.Context, refreshToken string) (*google.TokenBundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seen = append(f.seen, refreshToken)
	if f.err != nil {
		return nil, f.err
	}
	b := *f.bundle
	return &b, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(t *testing.T, r Refresher) (*Manager, *fakeClock, *FileBackend) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	backend := newFileBackend(t)
	return NewManager(backend, r, WithClock(clock.Now), WithMetrics(metrics.New())), clock, backend
}

var testIdentity = &google.Identity{AccountID: "10769150350006150715", Email: "viewer@example.com"}

func mustSave(t *testing.T, m *Manager, bundle *google.TokenBundle, scopes []string) Credential {
	t.Helper()
	cred, err := m.Save(bundle, testIdentity, scopes)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	return cred
}

func mustRead(t *testing.T, m *Manager, accountID string) Credential {
	t.Helper()
	cred, ok := m.Read(context.Background(), accountID)
	if !ok {
		t.Fatalf("expected credential for %s", accountID)
	}
	return cred
}

func TestSave_ExpiryIsSaveTimePlusExpiresIn(t *testing.T) {
	for _, s := range []int{0, 1, 59, 3599, 3600, 86400} {
		m, clock, _ := newTestManager(t, &fakeRefresher{})
		d := time.Duration(s) * time.Second
		cred := mustSave(t, m, &google.TokenBundle{AccessToken: "ya29.a", RefreshToken: "1//r", ExpiresIn: d}, []string{"openid"})
		if want := clock.Now().Add(d); !want.Equal(cred.Expiry) {
			t.Errorf("S=%d: expiry = %s, want %s", s, cred.Expiry, want)
		}
	}
}

func TestSave_ThenReadRoundTrip(t *testing.T) {
	r := &fakeRefresher{}
	m, _, _ := newTestManager(t, r)

	saved := mustSave(t, m, &google.TokenBundle{AccessToken: "ya29.a", RefreshToken: "1//r", ExpiresIn: time.Hour},
		[]string{"https://www.googleapis.com/auth/photoslibrary.readonly", "openid"})

	got := mustRead(t, m, testIdentity.AccountID)
	assertSameCredential(t, saved, got)
	if r.calls != 0 {
		t.Errorf("fresh credential was refreshed %d times", r.calls)
	}
}

func TestSave_NilScopesReadBackEmpty(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeRefresher{})

	saved := mustSave(t, m, &google.TokenBundle{AccessToken: "ya29.a", ExpiresIn: time.Hour}, nil)
	got := mustRead(t, m, testIdentity.AccountID)
	assertSameCredential(t, saved, got)
}

func TestSave_RequiresBundleAndIdentity(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeRefresher{})
	if _, err := m.Save(nil, testIdentity, nil); err == nil {
		t.Error("expected error for nil bundle")
	}
	if _, err := m.Save(&google.TokenBundle{AccessToken: "x"}, nil, nil); err == nil {
		t.Error("expected error for nil identity")
	}
}

func TestRead_ExpiredRefreshesExactlyOnce(t *testing.T) {
	r := &fakeRefresher{bundle: &google.TokenBundle{AccessToken: "ya29.fresh", ExpiresIn: time.Hour}}
	m, clock, backend := newTestManager(t, r)

	mustSave(t, m, &google.TokenBundle{AccessToken: "ya29.old", RefreshToken: "1//keep", ExpiresIn: time.Hour}, nil)
	clock.Advance(time.Hour)

	got := mustRead(t, m, testIdentity.AccountID)
	if r.calls != 1 {
		t.Errorf("refresh calls = %d, want 1", r.calls)
	}
	if want := []string{"1//keep"}; !reflect.DeepEqual(r.seen, want) {
		t.Errorf("refresh tokens sent = %v, want %v", r.seen, want)
	}
	if got.AccessToken != "ya29.fresh" {
		t.Errorf("access token = %q", got.AccessToken)
	}
	if got.RefreshToken != "1//keep" {
		t.Errorf("refresh token should be retained when none returned, got %q", got.RefreshToken)
	}
	if want := clock.Now().Add(time.Hour); !want.Equal(got.Expiry) {
		t.Errorf("expiry = %s, want %s", got.Expiry, want)
	}

	stored, err := backend.Load(testIdentity.AccountID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSameCredential(t, got, stored)

	mustRead(t, m, testIdentity.AccountID)
	if r.calls != 1 {
		t.Errorf("refreshed credential should be fresh again, calls = %d", r.calls)
	}
}

func TestRead_NotExpiredNeverRefreshes(t *testing.T) {
	r := &fakeRefresher{bundle: &google.TokenBundle{AccessToken: "ya29.fresh", ExpiresIn: time.Hour}}
	m, clock, _ := newTestManager(t, r)

	mustSave(t, m, &google.TokenBundle{AccessToken: "ya29.old", ExpiresIn: time.Hour}, nil)
	clock.Advance(time.Hour - time.Microsecond)

	mustRead(t, m, testIdentity.AccountID)
	if r.calls != 0 {
		t.Errorf("refresh calls = %d, want 0", r.calls)
	}
}

func TestRead_RefreshFailureReadsAsAbsent(t *testing.T) {
	r := &fakeRefresher{err: &google.RefreshError{Status: http.StatusBadRequest, Body: `{"error":"invalid_grant"}`}}
	m, clock, backend := newTestManager(t, r)

	mustSave(t, m, &google.TokenBundle{AccessToken: "ya29.old", RefreshToken: "1//revoked", ExpiresIn: time.Minute}, nil)
	clock.Advance(2 * time.Minute)

	if _, ok := m.Read(context.Background(), testIdentity.AccountID); ok {
		t.Error("expected unrefreshable credential to read as absent")
	}
	if r.calls != 1 {
		t.Errorf("refresh calls = %d, want 1", r.calls)
	}

	stored, err := backend.Load(testIdentity.AccountID)
	if err != nil {
		t.Fatalf("record should be kept for a later retry: %v", err)
	}
	if stored.AccessToken != "ya29.old" {
		t.Errorf("stored access token = %q", stored.AccessToken)
	}
}

func TestRead_MissingAndCorrupt(t *testing.T) {
	r := &fakeRefresher{}
	m, _, backend := newTestManager(t, r)

	if _, ok := m.Read(context.Background(), "missing"); ok {
		t.Error("missing account read as present")
	}

	if err := os.WriteFile(filepath.Join(backend.Dir(), "broken.json"), []byte(`{"token":`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Read(context.Background(), "broken"); ok {
		t.Error("corrupt record read as present")
	}
	if r.calls != 0 {
		t.Errorf("refresh calls = %d, want 0", r.calls)
	}
}

func TestRead_ReturnsCopies(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeRefresher{})
	mustSave(t, m, &google.TokenBundle{AccessToken: "ya29.a", ExpiresIn: time.Hour}, []string{"openid"})

	first := mustRead(t, m, testIdentity.AccountID)
	first.Scopes[0] = "mutated"
	first.AccessToken = "mutated"

	second := mustRead(t, m, testIdentity.AccountID)
	if want := []string{"openid"}; !reflect.DeepEqual(second.Scopes, want) {
		t.Errorf("scopes = %v, want %v", second.Scopes, want)
	}
	if second.AccessToken != "ya29.a" {
		t.Errorf("access token = %q", second.AccessToken)
	}
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name        string
		refresher   *fakeRefresher
		wantStatus  int
		wantErr     bool
		wantAccess  string
		wantRefresh string
	}{
		{
			name:        "success keeps refresh token",
			refresher:   &fakeRefresher{bundle: &google.TokenBundle{AccessToken: "ya29.new", ExpiresIn: 30 * time.Minute}},
			wantStatus:  http.StatusOK,
			wantAccess:  "ya29.new",
			wantRefresh: "1//old",
		},
		{
			name:        "success rotates refresh token",
			refresher:   &fakeRefresher{bundle: &google.TokenBundle{AccessToken: "ya29.new", RefreshToken: "1//new", ExpiresIn: 30 * time.Minute}},
			wantStatus:  http.StatusOK,
			wantAccess:  "ya29.new",
			wantRefresh: "1//new",
		},
		{
			name:        "rate limited",
			refresher:   &fakeRefresher{err: &google.RefreshError{Status: http.StatusForbidden}},
			wantStatus:  http.StatusForbidden,
			wantErr:     true,
			wantAccess:  "ya29.old",
			wantRefresh: "1//old",
		},
		{
			name:        "unreachable",
			refresher:   &fakeRefresher{err: &google.RefreshError{Body: "dial tcp: connection refused"}},
			wantStatus:  http.StatusBadGateway,
			wantErr:     true,
			wantAccess:  "ya29.old",
			wantRefresh: "1//old",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, clock, _ := newTestManager(t, tt.refresher)
			cred := mustSave(t, m, &google.TokenBundle{AccessToken: "ya29.old", RefreshToken: "1//old", ExpiresIn: time.Minute}, nil)
			before := cred.Expiry

			status, err := m.Refresh(context.Background(), &cred)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if cred.AccessToken != tt.wantAccess {
				t.Errorf("access token = %q, want %q", cred.AccessToken, tt.wantAccess)
			}
			if cred.RefreshToken != tt.wantRefresh {
				t.Errorf("refresh token = %q, want %q", cred.RefreshToken, tt.wantRefresh)
			}
			if tt.wantErr {
				if !before.Equal(cred.Expiry) {
					t.Errorf("failed refresh changed expiry to %s", cred.Expiry)
				}
			} else if want := clock.Now().Add(30 * time.Minute); !want.Equal(cred.Expiry) {
				t.Errorf("expiry = %s, want %s", cred.Expiry, want)
			}
		})
	}
}

func TestListAll_SkipsCorrupt(t *testing.T) {
	m, _, backend := newTestManager(t, &fakeRefresher{})
	mustSave(t, m, &google.TokenBundle{AccessToken: "ya29.a", ExpiresIn: time.Hour}, nil)
	if err := os.WriteFile(filepath.Join(backend.Dir(), "junk.json"), []byte("\x00\x01"), 0o600); err != nil {
		t.Fatal(err)
	}

	accounts := m.ListAll()
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(accounts))
	}
	if want := (AccountSummary{AccountID: testIdentity.AccountID, Email: testIdentity.Email}); accounts[0] != want {
		t.Errorf("account = %+v, want %+v", accounts[0], want)
	}
}

func TestListAll_EmptyStore(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeRefresher{})
	accounts := m.ListAll()
	if accounts == nil || len(accounts) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", accounts)
	}
}

func TestRemove_Idempotent(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeRefresher{})

	if existed, err := m.Remove("nobody"); err != nil || existed {
		t.Fatalf("remove nobody: existed=%v err=%v", existed, err)
	}
	if n := len(m.ListAll()); n != 0 {
		t.Fatalf("expected empty store, got %d accounts", n)
	}

	mustSave(t, m, &google.TokenBundle{AccessToken: "ya29.a", ExpiresIn: time.Hour}, nil)

	if existed, err := m.Remove(testIdentity.AccountID); err != nil || !existed {
		t.Fatalf("first remove: existed=%v err=%v", existed, err)
	}
	if existed, err := m.Remove(testIdentity.AccountID); err != nil || existed {
		t.Fatalf("second remove: existed=%v err=%v", existed, err)
	}
	if _, ok := m.Read(context.Background(), testIdentity.AccountID); ok {
		t.Error("removed account still readable")
	}
}

func TestManager_SQLBackend(t *testing.T) {
	r := &fakeRefresher{bundle: &google.TokenBundle{AccessToken: "ya29.fresh", ExpiresIn: time.Hour}}
	clock := &fakeClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	m := NewManager(NewSQLBackend(newTestDB(t)), r, WithClock(clock.Now))

	saved := mustSave(t, m, &google.TokenBundle{AccessToken: "ya29.old", RefreshToken: "1//r", ExpiresIn: time.Hour}, []string{"openid", "email"})
	got := mustRead(t, m, testIdentity.AccountID)
	assertSameCredential(t, saved, got)

	clock.Advance(2 * time.Hour)
	got = mustRead(t, m, testIdentity.AccountID)
	if got.AccessToken != "ya29.fresh" {
		t.Errorf("access token = %q", got.AccessToken)
	}
	if r.calls != 1 {
		t.Errorf("refresh calls = %d, want 1", r.calls)
	}
}
