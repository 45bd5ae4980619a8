// Package scheduler implements the per-source refresh scheduler: one
// serialized refresh loop per catalog source, triggered on a staleness
// check and cancellable via context.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/toolmesh/gateway/internal/gatewayerr"
	"github.com/toolmesh/gateway/internal/logger"
	"github.com/toolmesh/gateway/internal/registry"
)

// SourceProducer fetches the current set of entries for one catalog
// source. Real scrapers are out of scope; StaticProducer is the only
// producer implementation shipped here.
type SourceProducer interface {
	Produce(ctx context.Context) ([]registry.Entry, error)
}

// Store is the subset of registry.Store the scheduler needs.
type Store interface {
	BulkAddEntries(entries []registry.Entry) error
	ShouldRefreshSource(src registry.SourceType, interval time.Duration) bool
	UpdateSourceStatus(status registry.SourceRefreshStatus)
}

// Scheduler runs one refresh loop per registered source.
type Scheduler struct {
	store           Store
	refreshInterval time.Duration

	mu        sync.Mutex
	producers map[registry.SourceType]SourceProducer
	// refreshLocks serializes refreshes per source, matching the
	// reference scheduler's one-lock-per-source-type design: a forced
	// refresh and a periodic refresh for the same source never run
	// concurrently.
	refreshLocks map[registry.SourceType]*sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler that refreshes sources no more often than
// refreshInterval.
func New(store Store, refreshInterval time.Duration) *Scheduler {
	return &Scheduler{
		store:           store,
		refreshInterval: refreshInterval,
		producers:       make(map[registry.SourceType]SourceProducer),
		refreshLocks:    make(map[registry.SourceType]*sync.Mutex),
	}
}

// Register adds a source and its producer. Must be called before Start.
func (s *Scheduler) Register(src registry.SourceType, producer SourceProducer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.producers[src] = producer
	s.refreshLocks[src] = &sync.Mutex{}
}

func (s *Scheduler) lockFor(src registry.SourceType) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocks[src]
}

// Start launches one goroutine per registered source. Each goroutine
// checks staleness, refreshes if needed, then sleeps for
// max(1 hour, refreshInterval/4) before checking again, matching the
// refresh cadence in spec.md section 4.3.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.mu.Lock()
	sources := make([]registry.SourceType, 0, len(s.producers))
	for src := range s.producers {
		sources = append(sources, src)
	}
	s.mu.Unlock()

	for _, src := range sources {
		src := src
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(ctx, src)
		}()
	}
}

// Stop cancels every refresh loop and waits for them to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// retryBackoff is how long a loop sleeps after a caught refresh failure,
// instead of its normal cadence, matching spec.md section 7's short
// retry backoff for background refresh loops.
const retryBackoff = 60 * time.Second

func (s *Scheduler) loop(ctx context.Context, src registry.SourceType) {
	sleepInterval := s.refreshInterval / 4
	if sleepInterval < time.Hour {
		sleepInterval = time.Hour
	}

	for {
		next := sleepInterval
		if s.store.ShouldRefreshSource(src, s.refreshInterval) {
			if err := s.refresh(ctx, src); err != nil {
				logger.AddLog("ERROR", fmt.Sprintf("refresh of source %s failed: %v", src, err))
				next = retryBackoff
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(next):
		}
	}
}

func (s *Scheduler) refresh(ctx context.Context, src registry.SourceType) error {
	lock := s.lockFor(src)
	if lock == nil {
		return fmt.Errorf("%w: no producer registered for source %s", gatewayerr.ErrSourceRefreshError, src)
	}
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()
	s.store.UpdateSourceStatus(registry.SourceRefreshStatus{
		SourceType:  src,
		LastAttempt: now,
		Status:      "refreshing",
	})

	s.mu.Lock()
	producer := s.producers[src]
	s.mu.Unlock()

	entries, err := producer.Produce(ctx)
	if err != nil {
		s.store.UpdateSourceStatus(registry.SourceRefreshStatus{
			SourceType:   src,
			LastAttempt:  now,
			Status:       "error",
			ErrorMessage: err.Error(),
		})
		return fmt.Errorf("%w: %v", gatewayerr.ErrSourceRefreshError, err)
	}

	if err := s.store.BulkAddEntries(entries); err != nil {
		s.store.UpdateSourceStatus(registry.SourceRefreshStatus{
			SourceType:   src,
			LastAttempt:  now,
			Status:       "error",
			ErrorMessage: err.Error(),
		})
		return fmt.Errorf("%w: %v", gatewayerr.ErrSourceRefreshError, err)
	}

	s.store.UpdateSourceStatus(registry.SourceRefreshStatus{
		SourceType:  src,
		LastAttempt: now,
		LastRefresh: now,
		EntryCount:  len(entries),
		Status:      "ok",
	})
	return nil
}

// ForceRefresh bypasses the staleness check and refreshes src immediately,
// still serialized behind that source's refresh lock.
func (s *Scheduler) ForceRefresh(ctx context.Context, src registry.SourceType) error {
	return s.refresh(ctx, src)
}

// ForceRefreshAll refreshes every registered source, continuing past a
// failing source rather than stopping at it, and returns the first
// per-source error encountered (nil if every refresh succeeded).
func (s *Scheduler) ForceRefreshAll(ctx context.Context) error {
	s.mu.Lock()
	sources := make([]registry.SourceType, 0, len(s.producers))
	for src := range s.producers {
		sources = append(sources, src)
	}
	s.mu.Unlock()

	var firstErr error
	for _, src := range sources {
		if err := s.refresh(ctx, src); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
