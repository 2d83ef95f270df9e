package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Layr-Labs/bip322-go/pkg/persistence"
	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// Key prefixes for namespacing
const (
	keyPrefixResult      = "verify:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerCache is a disk-backed verification cache using Badger.
// Results survive restarts and optionally expire after a TTL.
type BadgerCache struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	ttl      time.Duration
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ persistence.IVerificationCache = (*BadgerCache)(nil)

// NewBadgerCache opens (or creates) a cache database at dataPath.
// A ttl of zero keeps entries forever.
// A background goroutine is started for value log garbage collection.
func NewBadgerCache(dataPath string, ttl time.Duration, logger *zap.Logger) (*BadgerCache, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bc := &BadgerCache{
		db:     db,
		logger: logger,
		ttl:    ttl,
	}

	if err := bc.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bc.gcCancel = cancel
	bc.gcWg.Add(1)
	go bc.runGC(ctx)

	logger.Sugar().Infow("Badger cache initialized", "path", absPath, "ttl", ttl)

	return bc, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerCache) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic value log garbage collection in the background
func (b *BadgerCache) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Get returns the cached result for key, or nil if absent or expired
func (b *BadgerCache) Get(key string) (*persistence.CachedResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("cache is closed")
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keyPrefixResult + key))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load cached result: %w", err)
	}

	if data == nil {
		return nil, nil
	}

	result, err := persistence.UnmarshalCachedResult(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}
	return result, nil
}

// Put stores result under key
func (b *BadgerCache) Put(key string, result *persistence.CachedResult) error {
	if result == nil {
		return fmt.Errorf("cannot cache nil result")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("cache is closed")
	}

	data, err := persistence.MarshalCachedResult(result)
	if err != nil {
		return fmt.Errorf("failed to marshal cached result: %w", err)
	}

	entry := badgerdb.NewEntry([]byte(keyPrefixResult+key), data)
	if b.ttl > 0 {
		entry = entry.WithTTL(b.ttl)
	}
	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.SetEntry(entry)
	})
}

// Close stops the GC goroutine and closes the database
func (b *BadgerCache) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger cache closed")
	return nil
}

// HealthCheck verifies the database is open and initialized
func (b *BadgerCache) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("cache is closed")
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version not found - database may not be properly initialized")
		}
		return err
	})
}
