// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package storage provides the durable key/value storage the portal uses for
// its process-wide records (the bearer token and the current organization).
// Values are always written whole, so a reader never observes a partially
// updated record.
package storage

// Storage is a durable local key/value store.
type Storage interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(key string) ([]byte, error)

	// Set replaces the value stored under key.
	Set(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}
