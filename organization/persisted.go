// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package organization

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/webdiario/portalauth/storage"
)

// StorageKey is the durable storage key of the selected organization.
const StorageKey = "@WebDiario:currentTenant"

// Persisted is the durable record of the selected organization. The record
// is always written whole. A record that cannot be decoded is erased and
// treated as absent.
type Persisted struct {
	storage storage.Storage
	key     string
	logger  hclog.Logger
}

// NewPersisted creates a Persisted backed by s.
//
// Supported options: WithLogger, WithStorageKey
func NewPersisted(s storage.Storage, opt ...Option) (*Persisted, error) {
	const op = "organization.NewPersisted"
	if s == nil {
		return nil, fmt.Errorf("%s: missing storage: %w", op, ErrNilParameter)
	}
	opts := getPersistedOpts(opt...)
	return &Persisted{
		storage: s,
		key:     opts.withStorageKey,
		logger:  opts.withLogger.Named("persisted"),
	}, nil
}

// Key returns the storage key of the record.
func (p *Persisted) Key() string {
	return p.key
}

// Load returns the persisted organization, or nil when there is none.
func (p *Persisted) Load() (*Organization, error) {
	const op = "organization.(Persisted).Load"
	raw, err := p.storage.Get(p.key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var o Organization
	if err := json.Unmarshal(raw, &o); err != nil || o.ID == "" {
		p.logger.Warn("discarding corrupt organization record", "error", err)
		if err := p.storage.Delete(p.key); err != nil {
			p.logger.Error("unable to erase corrupt organization record", "error", err)
		}
		return nil, nil
	}
	return &o, nil
}

// Save replaces the persisted organization with o.
func (p *Persisted) Save(o Organization) error {
	const op = "organization.(Persisted).Save"
	if o.ID == "" {
		return fmt.Errorf("%s: missing organization id: %w", op, ErrInvalidParameter)
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("%s: unable to encode organization: %w", op, err)
	}
	if err := p.storage.Set(p.key, raw); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Erase removes the persisted organization.
func (p *Persisted) Erase() error {
	const op = "organization.(Persisted).Erase"
	if err := p.storage.Delete(p.key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CurrentID returns the id of the persisted organization. It is read from
// storage on every call.
func (p *Persisted) CurrentID() (string, bool) {
	o, err := p.Load()
	if err != nil {
		p.logger.Error("unable to read organization record", "error", err)
		return "", false
	}
	if o == nil {
		return "", false
	}
	return o.ID, true
}
