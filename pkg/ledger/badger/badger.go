package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Key prefixes for namespacing
const (
	keyPrefixClaimed     = "claimed:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerLedger is a durable, disk-backed ClaimLedger on Badger.
// SyncWrites is enabled so a recorded claim survives process crash;
// losing a claimed flag would allow a double release, which is the one
// failure this store exists to prevent.
type BadgerLedger struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerLedger opens (or creates) a Badger-backed claim ledger at
// dataPath and starts a background value-log GC goroutine.
func NewBadgerLedger(dataPath string, logger *zap.Logger) (*BadgerLedger, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true // fsync on every write; claim records must not be lost
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bl := &BadgerLedger{
		db:     db,
		logger: logger,
	}

	if err := bl.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bl.gcCancel = cancel
	bl.gcWg.Add(1)
	go bl.runGC(ctx)

	logger.Sugar().Infow("Badger claim ledger initialized", "path", absPath)

	return bl, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerLedger) initSchema() error {
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
			return fmt.Errorf("schema version mismatch: found %s, expected %s", existingVersion, currentSchemaVersion)
		}
		return nil
	})
}

// runGC runs Badger value-log garbage collection periodically.
func (b *BadgerLedger) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Rerun while GC keeps reclaiming space
			for {
				if err := b.db.RunValueLogGC(0.5); err != nil {
					break
				}
			}
		}
	}
}

func claimKey(account common.Address) []byte {
	return []byte(keyPrefixClaimed + account.Hex())
}

// HasClaimed reports whether the account's claim has been recorded.
func (b *BadgerLedger) HasClaimed(account common.Address) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false, fmt.Errorf("ledger is closed")
	}

	var claimed bool
	err := b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(claimKey(account))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to read claim record for %s: %w", account.Hex(), err)
	}
	return claimed, nil
}

// MarkClaimed records the account's claim. Errors if already recorded.
func (b *BadgerLedger) MarkClaimed(account common.Address) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("ledger is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		key := claimKey(account)
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("account %s already marked claimed", account.Hex())
		}
		if err != badgerdb.ErrKeyNotFound {
			return fmt.Errorf("failed to read claim record: %w", err)
		}
		return txn.Set(key, []byte{1})
	})
}

// Unmark erases the account's claim record. Idempotent.
func (b *BadgerLedger) Unmark(account common.Address) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("ledger is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(claimKey(account))
	})
}

// Close stops background GC and closes the database. Idempotent.
func (b *BadgerLedger) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	b.gcCancel()
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}
	return nil
}

// HealthCheck verifies the database accepts reads.
func (b *BadgerLedger) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("ledger is closed")
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err != nil {
			return fmt.Errorf("schema version unreadable: %w", err)
		}
		return nil
	})
}
