// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package organization

import "github.com/hashicorp/go-hclog"

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(opts)
	}
}

type extractOptions struct {
	withLogger     hclog.Logger
	withStrategies []Strategy
}

func extractDefaults() extractOptions {
	return extractOptions{
		withLogger:     hclog.NewNullLogger(),
		withStrategies: DefaultStrategies(),
	}
}

func getExtractOpts(opt ...Option) extractOptions {
	opts := extractDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

type persistedOptions struct {
	withLogger     hclog.Logger
	withStorageKey string
}

func persistedDefaults() persistedOptions {
	return persistedOptions{
		withLogger:     hclog.NewNullLogger(),
		withStorageKey: StorageKey,
	}
}

func getPersistedOpts(opt ...Option) persistedOptions {
	opts := persistedDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

type resolverOptions struct {
	extractOptions
	withMetadataSource MetadataSource
}

func resolverDefaults() resolverOptions {
	return resolverOptions{
		extractOptions: extractDefaults(),
	}
}

func getResolverOpts(opt ...Option) resolverOptions {
	opts := resolverDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger for: Extract, Persisted, Resolver
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		switch v := o.(type) {
		case *extractOptions:
			v.withLogger = l
		case *persistedOptions:
			v.withLogger = l
		case *resolverOptions:
			v.withLogger = l
		}
	}
}

// WithStrategies overrides the ordered claim locations for: Extract, Resolver
func WithStrategies(s ...Strategy) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *extractOptions:
			v.withStrategies = s
		case *resolverOptions:
			v.withStrategies = s
		}
	}
}

// WithStorageKey overrides the key the selection is persisted under, for:
// Persisted
func WithStorageKey(k string) Option {
	return func(o interface{}) {
		if v, ok := o.(*persistedOptions); ok && k != "" {
			v.withStorageKey = k
		}
	}
}

// WithMetadataSource provides the directory used to fetch organization
// metadata, for: Resolver
func WithMetadataSource(m MetadataSource) Option {
	return func(o interface{}) {
		if v, ok := o.(*resolverOptions); ok {
			v.withMetadataSource = m
		}
	}
}
