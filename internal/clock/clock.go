// Package clock supplies network-corrected wall time.
package clock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/beevik/ntp"
	"github.com/rs/zerolog"

	"github.com/sweeney/spot-outlet/internal/metrics"
)

// Querier measures the offset between the local clock and a time source.
type Querier interface {
	Offset(ctx context.Context) (time.Duration, error)
}

// NTPQuerier queries an NTP server.
type NTPQuerier struct {
	Host    string
	Timeout time.Duration
}

// Offset returns the validated clock offset reported by the server.
func (q NTPQuerier) Offset(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("ntp query %s: %w", q.Host, err)
	}
	timeout := q.Timeout
	if deadline, ok := ctx.Deadline(); ok && (timeout <= 0 || time.Until(deadline) < timeout) {
		timeout = time.Until(deadline)
	}
	resp, err := ntp.QueryWithOptions(q.Host, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return 0, fmt.Errorf("ntp query %s: %w", q.Host, err)
	}
	if err := resp.Validate(); err != nil {
		return 0, fmt.Errorf("ntp response %s: %w", q.Host, err)
	}
	return resp.ClockOffset, nil
}

// Service returns the local time corrected by the last known offset.
// It synchronises on first use, every resyncEvery calls to Now, and on the
// call after Invalidate. A failed sync keeps the previous offset.
type Service struct {
	querier     Querier
	resyncEvery int
	local       func() time.Time
	logger      zerolog.Logger
	metrics     *metrics.Metrics

	mu       sync.Mutex
	offset   time.Duration
	synced   bool
	calls    int
	lastSync time.Time
}

// New creates a Service. resyncEvery <= 0 means 100.
func New(q Querier, resyncEvery int, logger zerolog.Logger, m *metrics.Metrics) *Service {
	if resyncEvery <= 0 {
		resyncEvery = 100
	}
	return &Service{
		querier:     q,
		resyncEvery: resyncEvery,
		local:       time.Now,
		logger:      logger.With().Str("component", "clock").Logger(),
		metrics:     m,
	}
}

// Now returns the corrected current time.
func (s *Service) Now(ctx context.Context) time.Time {
	s.mu.Lock()
	need := !s.synced || s.calls >= s.resyncEvery
	if need {
		s.calls = 0
	}
	s.calls++
	s.mu.Unlock()

	if need {
		s.sync(ctx)
	}

	s.mu.Lock()
	off := s.offset
	s.mu.Unlock()
	return s.local().Add(off)
}

// Invalidate forces a sync on the next call to Now.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.synced = false
	s.mu.Unlock()
}

// Offset returns the applied offset and when it was last measured.
// The time is zero if no sync has succeeded.
func (s *Service) Offset() (time.Duration, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset, s.lastSync
}

func (s *Service) sync(ctx context.Context) {
	off, err := s.querier.Offset(ctx)
	s.metrics.ClockSync(off, err)
	if err != nil {
		s.logger.Warn().Err(err).Dur("offset", s.currentOffset()).Msg("clock sync failed, keeping previous offset")
		return
	}

	s.mu.Lock()
	s.offset = off
	s.synced = true
	s.lastSync = s.local()
	s.mu.Unlock()
	s.logger.Info().Dur("offset", off).Msg("clock synchronised")
}

func (s *Service) currentOffset() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}
