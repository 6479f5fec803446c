// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

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

type loadOptions struct {
	withFile      string
	withEnvPrefix string
	withDefaults  *Config
}

func loadDefaults() loadOptions {
	return loadOptions{
		withEnvPrefix: DefaultEnvPrefix,
	}
}

func getLoadOpts(opt ...Option) loadOptions {
	opts := loadDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithFile provides an optional YAML file for: Load
func WithFile(path string) Option {
	return func(o interface{}) {
		if o, ok := o.(*loadOptions); ok {
			o.withFile = path
		}
	}
}

// WithEnvPrefix overrides the environment variable prefix for: Load. An
// empty prefix disables environment overrides.
func WithEnvPrefix(prefix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*loadOptions); ok {
			o.withEnvPrefix = prefix
		}
	}
}

// WithDefaults replaces Default() as the base configuration for: Load
func WithDefaults(c *Config) Option {
	return func(o interface{}) {
		if o, ok := o.(*loadOptions); ok {
			o.withDefaults = c
		}
	}
}
