package backend

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/google/uuid"

	"pocketbook/internal/amqp"
	"pocketbook/internal/cache"
	"pocketbook/internal/docstore"
	"pocketbook/internal/docstore/memory"
	"pocketbook/internal/docstore/sqlite"
	"pocketbook/internal/log"
	"pocketbook/internal/metrics"
)

// Backend is an opened document store plus the infrastructure around it.
type Backend struct {
	// Store is what services use. It is cached when a cache is configured.
	Store docstore.Store
	// Bus is nil unless an AMQP URL was configured.
	Bus *amqp.Client

	sqlite *sqlite.Store
	cached *docstore.CachedStore
	caches *cache.Manager
	logger *log.Logger
	close  []func() error
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewFactory creates a new backend factory. metrics may be nil.
func NewFactory(logger *log.Logger, m *metrics.Metrics) Factory {
	if logger == nil {
		logger = log.ForComponent(log.ComponentBackend)
	}
	return &DefaultFactory{logger: logger, metrics: m}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		b   *Backend
		hub *docstore.Hub
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		b, hub, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		b, hub = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if f.metrics != nil {
		hub.OnActiveChange(f.metrics.SetActiveSubscriptions)
	}

	if config.CacheSize > 0 {
		lru := cache.NewLRUCache[docstore.Document](config.CacheSize, config.CacheTTL)
		b.cached = docstore.WithCache(b.Store, lru)
		b.Store = b.cached
		b.caches = cache.NewManager(f.logger)
		b.caches.Register(&statsReporter{lru: lru, metrics: f.metrics})
		b.caches.StartCleanup(ctx, config.CacheTTL)
		f.logger.Info("Point-read cache enabled", "size", config.CacheSize, "ttl", config.CacheTTL)
	}
	return b, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Backend, *docstore.Hub, error) {
	opts := []sqlite.Option{sqlite.WithLogger(log.ForComponent(log.ComponentStore))}
	if config.SubscriptionBuffer > 0 {
		opts = append(opts, sqlite.WithBuffer(config.SubscriptionBuffer))
	}
	store, err := sqlite.Open(config.SQLiteDBPath, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}
	b := &Backend{Store: store, sqlite: store, logger: f.logger}
	b.close = append(b.close, store.Close)

	// The bus is optional; a store without it still serves this process.
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, uuid.NewString())
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without change sharing", log.FieldError, err)
		} else {
			store.SetNotifier(client)
			b.Bus = client
			// Detach before closing so late commits do not publish on a closed channel.
			b.close = append([]func() error{func() error {
				store.SetNotifier(nil)
				return client.Close()
			}}, b.close...)
			f.logger.Info("Initialized AMQP client", "exchange", config.AMQPExchange, log.FieldOrigin, client.Origin())
		}
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", b.Bus != nil)
	return b, store.Hub(), nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*Backend, *docstore.Hub) {
	var opts []memory.Option
	if config.SubscriptionBuffer > 0 {
		opts = append(opts, memory.WithBuffer(config.SubscriptionBuffer))
	}
	store := memory.New(opts...)
	f.logger.Info("Initialized memory backend")
	return &Backend{Store: store, logger: f.logger, close: []func() error{store.Close}}, store.Hub()
}

// Relay applies changes published by other processes to this process's
// subscribers until ctx is cancelled. Without a bus it returns at once.
func (b *Backend) Relay(ctx context.Context) error {
	if b.Bus == nil || b.sqlite == nil {
		return nil
	}
	b.logger.InfoContext(ctx, "Relaying remote changes", log.FieldOrigin, b.Bus.Origin())
	err := b.Bus.ConsumeChanges(ctx, b.applyRemote)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (b *Backend) applyRemote(ctx context.Context, msg *amqp.ChangeMessage) error {
	if b.cached != nil {
		b.cached.Invalidate(path.Join(msg.Collection, msg.DocID))
	}
	if err := b.sqlite.Refresh(ctx, msg.Kind, msg.Collection, msg.DocID); err != nil {
		return fmt.Errorf("refresh %s/%s: %w", msg.Collection, msg.DocID, err)
	}
	return nil
}

// Close stops background work and closes the store and bus.
func (b *Backend) Close() error {
	if b.caches != nil {
		b.caches.Stop()
		b.caches.Sweep()
	}
	var errs []error
	for _, fn := range b.close {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// statsReporter sweeps an LRU cache and forwards its lookup deltas to metrics.
type statsReporter struct {
	lru     *cache.LRUCache[docstore.Document]
	metrics *metrics.Metrics
	hits    int64
	misses  int64
}

func (s *statsReporter) CleanExpired() int {
	n := s.lru.CleanExpired()
	st := s.lru.Stats()
	s.metrics.ObserveCache(st.Hits-s.hits, st.Misses-s.misses)
	s.hits, s.misses = st.Hits, st.Misses
	return n
}
