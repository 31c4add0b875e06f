package badger

import (
	"fmt"
	"os"
	"path/filepath"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/common"
	"github.com/timshannon/badgerhold/v4"
)

// gcDiscardRatio is the badger value-log GC threshold: a file is rewritten
// when at least this fraction of it is stale.
const gcDiscardRatio = 0.5

// BadgerDB owns the badgerhold store that every typed storage shares
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	config *common.BadgerConfig
}

// NewBadgerDB opens (and when configured, first resets) the database at
// config.Path. Badger holds a directory lock, so a second open of the same
// path fails; all typed stores share the one returned connection.
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	if config.ResetOnStartup {
		resetDatabase(logger, config.Path)
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Logger = nil // arbor owns all logging

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", config.Path, err)
	}

	logger.Debug().Str("path", config.Path).Msg("Badger database opened")

	return &BadgerDB{store: store, logger: logger, config: config}, nil
}

// resetDatabase deletes the database directory for clean test runs
func resetDatabase(logger arbor.ILogger, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	logger.Debug().Str("path", path).Msg("Deleting existing database (reset_on_startup=true)")
	if err := os.RemoveAll(path); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to delete database directory")
	}
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// RunGC reclaims space from badger's value log. Each successful pass
// rewrites one file, so it loops until badger reports nothing left to
// rewrite. Safe to call while serving traffic.
func (b *BadgerDB) RunGC() int {
	rewritten := 0
	for {
		err := b.store.Badger().RunValueLogGC(gcDiscardRatio)
		if err != nil {
			if err != badgerdb.ErrNoRewrite {
				b.logger.Warn().Err(err).Msg("Value log GC failed")
			}
			return rewritten
		}
		rewritten++
	}
}

// Close closes the database connection
func (b *BadgerDB) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
