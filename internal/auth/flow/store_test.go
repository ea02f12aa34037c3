package flow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pysugar/photo-slideshow/internal/auth/google"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(ttl time.Duration) (*Store, *time.Time) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	s := NewStore(ttl)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestBeginGet(t *testing.T) {
	s, _ := newTestStore(0)

	f := s.Begin(MethodDirect, nil)
	_, err := uuid.Parse(f.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, f.ExpiresAt.Sub(f.CreatedAt))

	got, err := s.Get(f.ID)
	require.NoError(t, err)
	assert.Equal(t, f, got)

	_, err = s.Get(f.ID)
	assert.NoError(t, err, "Get does not consume")
}

func TestTakeConsumes(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	f := s.Begin(MethodDirect, nil)

	_, err := s.Take(f.ID)
	require.NoError(t, err)

	_, err = s.Take(f.ID)
	assert.ErrorIs(t, err, ErrFlowNotFound)
	assert.Zero(t, s.Len())
}

func TestExpiry(t *testing.T) {
	s, now := newTestStore(time.Minute)
	a := s.Begin(MethodDirect, nil)
	b := s.Begin(MethodDirect, nil)

	*now = now.Add(time.Minute)

	_, err := s.Get(a.ID)
	assert.ErrorIs(t, err, ErrFlowNotFound)
	_, err = s.Take(b.ID)
	assert.ErrorIs(t, err, ErrFlowNotFound)
	assert.Zero(t, s.Len(), "expired flows are dropped on access")
}

func TestSweep(t *testing.T) {
	s, now := newTestStore(time.Minute)
	for i := 0; i < 5; i++ {
		s.Begin(MethodDirect, nil)
	}
	*now = now.Add(30 * time.Second)
	keep := s.Begin(MethodDirect, nil)

	*now = now.Add(45 * time.Second)
	assert.Equal(t, 5, s.Sweep())
	assert.Equal(t, 1, s.Len())

	_, err := s.Get(keep.ID)
	assert.NoError(t, err)
}

func TestDeviceFlowBoundByDeviceCode(t *testing.T) {
	s, _ := newTestStore(10 * time.Minute)

	f := s.Begin(MethodDevice, &google.DeviceCode{DeviceCode: "dev", ExpiresIn: 120})
	assert.Equal(t, 2*time.Minute, f.ExpiresAt.Sub(f.CreatedAt))

	f = s.Begin(MethodDevice, &google.DeviceCode{DeviceCode: "dev", ExpiresIn: 3600})
	assert.Equal(t, 10*time.Minute, f.ExpiresAt.Sub(f.CreatedAt))
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(0)
	f := s.Begin(MethodDevice, nil)
	s.Delete(f.ID)
	_, err := s.Get(f.ID)
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := NewStore(0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
