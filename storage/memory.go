// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package storage

import (
	"fmt"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is a Storage that lives for the lifetime of the process.
type Memory struct {
	c *gocache.Cache
}

var _ Storage = (*Memory)(nil)

// NewMemory creates an empty in-memory Storage. Entries never expire.
func NewMemory() *Memory {
	return &Memory{c: gocache.New(gocache.NoExpiration, 0)}
}

// Get implements Storage.
func (m *Memory) Get(key string) ([]byte, error) {
	const op = "storage.(Memory).Get"
	v, ok := m.c.Get(key)
	if !ok {
		return nil, fmt.Errorf("%s: %q: %w", op, key, ErrNotFound)
	}
	b, _ := v.([]byte)
	return append([]byte(nil), b...), nil
}

// Set implements Storage.
func (m *Memory) Set(key string, value []byte) error {
	const op = "storage.(Memory).Set"
	if key == "" {
		return fmt.Errorf("%s: missing key: %w", op, ErrInvalidParameter)
	}
	m.c.Set(key, append([]byte(nil), value...), gocache.NoExpiration)
	return nil
}

// Delete implements Storage.
func (m *Memory) Delete(key string) error {
	m.c.Delete(key)
	return nil
}
