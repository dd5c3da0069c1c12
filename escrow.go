package escrow

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/escrow/pkg/adapters/memory"
	"github.com/aretw0/escrow/pkg/domain"
	"github.com/aretw0/escrow/pkg/ports"
	"github.com/aretw0/escrow/pkg/stages"
	"github.com/aretw0/escrow/pkg/tracker"
)

// Service is the high-level entry point for the escrow library.
// It embeds the tracker and owns the lifecycle of the store behind it.
type Service struct {
	*tracker.Tracker

	store   ports.TransactionStore
	closers []io.Closer
	logger  *slog.Logger
}

type settings struct {
	store       ports.TransactionStore
	trackerOpts []tracker.Option
	closers     []io.Closer
	logger      *slog.Logger
}

// Option defines a functional option for configuring the Service.
type Option func(*settings)

// WithStore injects a TransactionStore, bypassing the default in-memory store.
// If the store implements io.Closer it is closed by Service.Close.
func WithStore(store ports.TransactionStore) Option {
	return func(s *settings) {
		s.store = store
		if c, ok := store.(io.Closer); ok {
			s.closers = append(s.closers, c)
		}
	}
}

// WithLocker serializes advancement across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(s *settings) {
		s.trackerOpts = append(s.trackerOpts, tracker.WithLocker(locker))
	}
}

// WithLockTTL sets the distributed lock expiry.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *settings) {
		s.trackerOpts = append(s.trackerOpts, tracker.WithLockTTL(ttl))
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls accumulate.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *settings) {
		s.trackerOpts = append(s.trackerOpts, tracker.WithHooks(hooks))
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithUserID sets the account the service acts for.
func WithUserID(userID string) Option {
	return func(s *settings) {
		s.trackerOpts = append(s.trackerOpts, tracker.WithUserID(userID))
	}
}

// WithCatalog replaces the default five-stage pipeline.
func WithCatalog(catalog stages.Catalog) Option {
	return func(s *settings) {
		s.trackerOpts = append(s.trackerOpts, tracker.WithCatalog(catalog))
	}
}

// WithRetry tunes compare-and-set retries on stage advancement.
func WithRetry(initial time.Duration, maxRetries uint64) Option {
	return func(s *settings) {
		s.trackerOpts = append(s.trackerOpts, tracker.WithRetry(initial, maxRetries))
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.trackerOpts = append(s.trackerOpts, tracker.WithClock(now))
	}
}

// WithCloser registers an extra resource (a Redis client, a pool) released by Service.Close.
func WithCloser(c io.Closer) Option {
	return func(s *settings) {
		s.closers = append(s.closers, c)
	}
}

// New initializes a Service. Without WithStore, transactions live in memory.
func New(opts ...Option) (*Service, error) {
	s := &settings{}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = memory.NewStore()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	t, err := tracker.New(s.store, append([]tracker.Option{tracker.WithLogger(s.logger)}, s.trackerOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("error initializing tracker: %w", err)
	}

	return &Service{
		Tracker: t,
		store:   s.store,
		closers: s.closers,
		logger:  s.logger,
	}, nil
}

// Store returns the underlying transaction store.
func (s *Service) Store() ports.TransactionStore {
	return s.store
}

// Close releases every registered resource in reverse order.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
