package flow

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pysugar/photo-slideshow/internal/auth/google"
)

const (
	// DefaultTTL is how long an unfinished login stays claimable.
	DefaultTTL = 10 * time.Minute

	sweepInterval = time.Minute
)

// ErrFlowNotFound covers unknown, consumed and expired flows alike.
var ErrFlowNotFound = errors.New("auth flow not found or expired")

// Method is how the user completes a login.
type Method string

const (
	MethodDirect Method = "direct"
	MethodDevice Method = "device"
)

// Flow is one login in progress. For direct logins the ID is also the
// OAuth state parameter.
type Flow struct {
	ID        string
	Method    Method
	Device    *google.DeviceCode
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store keeps in-flight logins in memory and forgets them after their TTL.
type Store struct {
	mu    sync.Mutex
	flows map[string]Flow
	ttl   time.Duration
	now   func() time.Time
}

// NewStore creates a store. A non-positive ttl means DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		flows: make(map[string]Flow),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Begin registers a new flow under a random id. Device flows never outlive
// the device code they wrap.
func (s *Store) Begin(method Method, device *google.DeviceCode) Flow {
	now := s.now()
	expires := now.Add(s.ttl)
	if device != nil && device.ExpiresIn > 0 {
		if dl := now.Add(time.Duration(device.ExpiresIn) * time.Second); dl.Before(expires) {
			expires = dl
		}
	}

	f := Flow{
		ID:        uuid.NewString(),
		Method:    method,
		Device:    device,
		CreatedAt: now,
		ExpiresAt: expires,
	}

	s.mu.Lock()
	s.flows[f.ID] = f
	s.mu.Unlock()
	return f
}

// Get returns a live flow without consuming it.
func (s *Store) Get(id string) (Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.flows[id]
	if !ok {
		return Flow{}, ErrFlowNotFound
	}
	if !s.now().Before(f.ExpiresAt) {
		delete(s.flows, id)
		return Flow{}, ErrFlowNotFound
	}
	return f, nil
}

// Take returns a live flow and removes it, so a callback can only be redeemed once.
func (s *Store) Take(id string) (Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.flows[id]
	if !ok {
		return Flow{}, ErrFlowNotFound
	}
	delete(s.flows, id)
	if !s.now().Before(f.ExpiresAt) {
		return Flow{}, ErrFlowNotFound
	}
	return f, nil
}

// Delete forgets a flow.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.flows, id)
	s.mu.Unlock()
}

// Len counts stored flows, expired ones included until the next sweep.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.flows)
}

// Sweep drops expired flows and returns how many it removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, f := range s.flows {
		if !now.Before(f.ExpiresAt) {
			delete(s.flows, id)
			removed++
		}
	}
	return removed
}

// Run sweeps once a minute until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Printf("🧹 [Flow] Dropped %d expired login flows", n)
			}
		}
	}
}
