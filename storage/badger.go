// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package storage

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/hashicorp/go-hclog"
)

// Badger is a Storage persisted on disk with badger.
type Badger struct {
	mu     sync.RWMutex
	db     *badger.DB
	logger hclog.Logger
}

var _ Storage = (*Badger)(nil)

// NewBadger opens (or creates) a badger database in dir. dir must be empty
// when WithInMemory is used.
//
// Supported options: WithInMemory, WithLogger, WithSyncWrites
func NewBadger(dir string, opt ...Option) (*Badger, error) {
	const op = "storage.NewBadger"
	opts := getBadgerOpts(opt...)
	switch {
	case opts.withInMemory && dir != "":
		return nil, fmt.Errorf("%s: dir must be empty for an in-memory database: %w", op, ErrInvalidParameter)
	case !opts.withInMemory && dir == "":
		return nil, fmt.Errorf("%s: missing dir: %w", op, ErrInvalidParameter)
	}
	logger := opts.withLogger.Named("badger")

	bopts := badger.DefaultOptions(dir).
		WithInMemory(opts.withInMemory).
		WithSyncWrites(opts.withSyncWrites).
		WithLogger(&badgerLogger{logger: logger})
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to open database: %w", op, err)
	}
	logger.Debug("storage opened", "dir", dir, "in_memory", opts.withInMemory)
	return &Badger{db: db, logger: logger}, nil
}

// Get implements Storage.
func (b *Badger) Get(key string) ([]byte, error) {
	const op = "storage.(Badger).Get"
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrClosed)
	}
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, fmt.Errorf("%s: %q: %w", op, key, ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("%s: unable to read %q: %w", op, key, err)
	}
	return value, nil
}

// Set implements Storage.
func (b *Badger) Set(key string, value []byte) error {
	const op = "storage.(Badger).Set"
	if key == "" {
		return fmt.Errorf("%s: missing key: %w", op, ErrInvalidParameter)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	}); err != nil {
		return fmt.Errorf("%s: unable to write %q: %w", op, key, err)
	}
	return nil
}

// Delete implements Storage.
func (b *Badger) Delete(key string) error {
	const op = "storage.(Badger).Delete"
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	}); err != nil {
		return fmt.Errorf("%s: unable to delete %q: %w", op, key, err)
	}
	return nil
}

// Close releases the database. It is safe to call more than once.
func (b *Badger) Close() error {
	const op = "storage.(Badger).Close"
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// badgerLogger bridges badger's printf style logger to hclog.
type badgerLogger struct {
	logger hclog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(trim(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(trim(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(trim(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace(trim(format, args...))
}

func trim(format string, args ...interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
