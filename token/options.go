// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package token

import "github.com/hashicorp/go-hclog"

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

type storeOptions struct {
	withLogger hclog.Logger
	withKey    string
}

func storeDefaults() storeOptions {
	return storeOptions{
		withLogger: hclog.NewNullLogger(),
		withKey:    DefaultStorageKey,
	}
}

func getStoreOpts(opt ...Option) storeOptions {
	opts := storeDefaults()
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(&opts)
	}
	return opts
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithStorageKey overrides the key the token is persisted under.
func WithStorageKey(k string) Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok && k != "" {
			o.withKey = k
		}
	}
}
