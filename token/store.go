// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package token holds the bearer token the portal presents on outbound API
// requests.
package token

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/webdiario/portalauth/metrics"
	"github.com/webdiario/portalauth/storage"
)

// DefaultStorageKey is the durable storage key of the bearer token.
const DefaultStorageKey = "oidc_access_token"

// Source provides the current bearer token.
type Source interface {
	// Token returns the current token and whether one is held.
	Token() (string, bool)
}

// Store is the process-wide cell holding the current bearer token. Writes are
// persisted to durable storage; reads never touch storage, so a write is
// visible to the very next request.
type Store struct {
	mu      sync.RWMutex
	current string

	storage storage.Storage
	key     string
	logger  hclog.Logger
}

var _ Source = (*Store)(nil)

// NewStore creates a Store backed by s and restores a previously persisted
// token, if any.
//
// Supported options: WithLogger, WithStorageKey
func NewStore(s storage.Storage, opt ...Option) (*Store, error) {
	const op = "token.NewStore"
	if s == nil {
		return nil, fmt.Errorf("%s: missing storage: %w", op, ErrNilParameter)
	}
	opts := getStoreOpts(opt...)
	st := &Store{
		storage: s,
		key:     opts.withKey,
		logger:  opts.withLogger.Named("token"),
	}
	raw, err := s.Get(st.key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		st.logger.Warn("unable to restore persisted token", "error", err)
	default:
		st.current = string(raw)
	}
	return st, nil
}

// Key returns the storage key the token is persisted under.
func (s *Store) Key() string {
	return s.key
}

// Token implements Source.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current != ""
}

// Set replaces the current token. An empty token clears the store. The
// in-memory value is always updated, even when persisting fails.
func (s *Store) Set(t string) error {
	const op = "token.(Store).Set"
	if t == "" {
		return s.Clear()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = t
	metrics.TokenStoreWrites.WithLabelValues("set").Inc()
	if err := s.storage.Set(s.key, []byte(t)); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrPersist, err)
	}
	s.logger.Trace("token stored", "token", AccessToken(t))
	return nil
}

// Clear removes the current token from memory and durable storage.
func (s *Store) Clear() error {
	const op = "token.(Store).Clear"
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = ""
	metrics.TokenStoreWrites.WithLabelValues("clear").Inc()
	if err := s.storage.Delete(s.key); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrPersist, err)
	}
	s.logger.Trace("token cleared")
	return nil
}
