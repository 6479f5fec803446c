// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package storage

import "github.com/hashicorp/go-hclog"

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

type badgerOptions struct {
	withInMemory   bool
	withLogger     hclog.Logger
	withSyncWrites bool
}

func badgerDefaults() badgerOptions {
	return badgerOptions{
		withLogger:     hclog.NewNullLogger(),
		withSyncWrites: true,
	}
}

func getBadgerOpts(opt ...Option) badgerOptions {
	opts := badgerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// WithInMemory keeps the badger database entirely in memory.
func WithInMemory() Option {
	return func(o interface{}) {
		if o, ok := o.(*badgerOptions); ok {
			o.withInMemory = true
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*badgerOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithSyncWrites controls whether every write is fsynced before returning.
// Defaults to true.
func WithSyncWrites(sync bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*badgerOptions); ok {
			o.withSyncWrites = sync
		}
	}
}
