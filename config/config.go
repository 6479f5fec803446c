// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package config loads the portal's process configuration from defaults, an
// optional YAML file and the environment, in that order of precedence.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/webdiario/portalauth/apiclient"
	"github.com/webdiario/portalauth/directory"
	"github.com/webdiario/portalauth/oidcauth"
	"github.com/webdiario/portalauth/session"
)

const (
	// DefaultEnvPrefix is the prefix of environment overrides, e.g.
	// PORTAL_OIDC__CLIENT_ID.
	DefaultEnvPrefix = "PORTAL_"

	// EnvNestingSeparator separates nested keys in environment variable
	// names. A single underscore stays part of the key.
	EnvNestingSeparator = "__"

	// DefaultCheckInterval is how often the session expiry is checked.
	DefaultCheckInterval = 15 * time.Second
)

// Config is the portal's process configuration.
type Config struct {
	OIDC      OIDC      `koanf:"oidc"`
	Directory Directory `koanf:"directory"`
	API       API       `koanf:"api"`
	Session   Session   `koanf:"session"`
	Storage   Storage   `koanf:"storage"`
	Log       Log       `koanf:"log"`
}

// OIDC configures the sign-in client.
type OIDC struct {
	Issuer                string   `koanf:"issuer"`
	ClientID              string   `koanf:"client_id"`
	ClientSecret          string   `koanf:"client_secret"`
	RedirectURL           string   `koanf:"redirect_url"`
	PostLogoutRedirectURL string   `koanf:"post_logout_redirect_url"`
	Scopes                []string `koanf:"scopes"`
	UILocales             string   `koanf:"ui_locales"`
	SupportedSigningAlgs  []string `koanf:"supported_signing_algs"`
	LoadUserInfo          bool     `koanf:"load_user_info"`
	ProviderCA            string   `koanf:"provider_ca"`
}

// Directory configures the organization metadata lookups. They are disabled
// when URL is empty.
type Directory struct {
	URL          string        `koanf:"url"`
	Realm        string        `koanf:"realm"`
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	ProviderCA   string        `koanf:"provider_ca"`
	CacheTTL     time.Duration `koanf:"cache_ttl"`
	ExpirySkew   time.Duration `koanf:"expiry_skew"`
}

// API configures the backend client.
type API struct {
	BaseURL           string        `koanf:"base_url"`
	Timeout           time.Duration `koanf:"timeout"`
	OrganizationsPath string        `koanf:"organizations_path"`
	CACert            string        `koanf:"ca_cert"`
}

// Session configures expiry warnings.
type Session struct {
	WarnWindow    time.Duration `koanf:"warn_window"`
	WarnThrottle  time.Duration `koanf:"warn_throttle"`
	CheckInterval time.Duration `koanf:"check_interval"`
}

// Storage configures where local state is kept.
type Storage struct {
	Dir      string `koanf:"dir"`
	InMemory bool   `koanf:"in_memory"`
}

// Log configures the logger.
type Log struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

// Default returns the configuration used for anything not set by a file or
// the environment.
func Default() *Config {
	return &Config{
		OIDC: OIDC{
			Scopes:       append([]string(nil), oidcauth.DefaultScopes...),
			LoadUserInfo: true,
		},
		Directory: Directory{
			CacheTTL:   directory.DefaultCacheTTL,
			ExpirySkew: directory.DefaultExpirySkew,
		},
		API: API{
			Timeout:           apiclient.DefaultTimeout,
			OrganizationsPath: apiclient.DefaultOrganizationsPath,
		},
		Session: Session{
			WarnWindow:    session.DefaultWarnWindow,
			WarnThrottle:  session.DefaultWarnThrottle,
			CheckInterval: DefaultCheckInterval,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads the configuration. Values from the file override the defaults
// and the environment overrides both. The result is validated.
//
// Supported options: WithFile, WithEnvPrefix, WithDefaults
func Load(opt ...Option) (*Config, error) {
	const op = "config.Load"
	opts := getLoadOpts(opt...)

	k := koanf.New(".")
	if opts.withFile != "" {
		if err := k.Load(file.Provider(opts.withFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%s: file %s: %w: %w", op, opts.withFile, ErrLoad, err)
		}
	}
	if opts.withEnvPrefix != "" {
		prefix := opts.withEnvPrefix
		if err := k.Load(env.Provider(prefix, ".", func(s string) string {
			return envKey(prefix, s)
		}), nil); err != nil {
			return nil, fmt.Errorf("%s: env: %w: %w", op, ErrLoad, err)
		}
	}

	cfg := Default()
	if opts.withDefaults != nil {
		cfg = opts.withDefaults.clone()
	}
	// lists are replaced, not merged element by element
	if k.Exists("oidc.scopes") {
		cfg.OIDC.Scopes = nil
	}
	if k.Exists("oidc.supported_signing_algs") {
		cfg.OIDC.SupportedSigningAlgs = nil
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrLoad, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cfg, nil
}

// envKey maps PORTAL_OIDC__CLIENT_ID to oidc.client_id.
func envKey(prefix, name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, prefix))
	return strings.ReplaceAll(name, EnvNestingSeparator, ".")
}

// Validate the configuration. Every problem found is reported.
func (c *Config) Validate() error {
	const op = "config.(Config).Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if _, err := c.OIDC.ProviderConfig(); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: oidc: %w", op, err))
	}
	if c.Directory.Enabled() {
		if _, err := c.Directory.DirectoryConfig(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: directory: %w", op, err))
		}
	}
	if c.API.BaseURL == "" {
		result = multierror.Append(result, fmt.Errorf("%s: api base URL is empty: %w", op, ErrInvalidParameter))
	} else if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		result = multierror.Append(result, fmt.Errorf("%s: api base URL %q is invalid: %w", op, c.API.BaseURL, ErrInvalidParameter))
	}
	if c.API.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("%s: api timeout is negative: %w", op, ErrInvalidParameter))
	}
	if c.Session.CheckInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("%s: session check interval must be positive: %w", op, ErrInvalidParameter))
	}
	if !c.Storage.InMemory && c.Storage.Dir == "" {
		result = multierror.Append(result, fmt.Errorf("%s: storage dir is empty: %w", op, ErrInvalidParameter))
	}
	if hclog.LevelFromString(c.Log.Level) == hclog.NoLevel {
		result = multierror.Append(result, fmt.Errorf("%s: unknown log level %q: %w", op, c.Log.Level, ErrInvalidParameter))
	}
	return result.ErrorOrNil()
}

// ProviderConfig converts the section to an oidcauth.Config.
func (o OIDC) ProviderConfig() (*oidcauth.Config, error) {
	const op = "config.(OIDC).ProviderConfig"
	locales, err := oidcauth.ParseUILocales(o.UILocales)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	algs := make([]oidcauth.Alg, 0, len(o.SupportedSigningAlgs))
	for _, a := range o.SupportedSigningAlgs {
		algs = append(algs, oidcauth.Alg(a))
	}
	opts := []oidcauth.Option{
		oidcauth.WithScopes(o.Scopes...),
		oidcauth.WithUILocales(locales...),
		oidcauth.WithSupportedSigningAlgs(algs...),
		oidcauth.WithProviderCA(o.ProviderCA),
		oidcauth.WithPostLogoutRedirectURL(o.PostLogoutRedirectURL),
	}
	if !o.LoadUserInfo {
		opts = append(opts, oidcauth.WithoutUserInfo())
	}
	c, err := oidcauth.NewConfig(o.Issuer, o.ClientID, oidcauth.ClientSecret(o.ClientSecret), o.RedirectURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// Enabled reports whether organization metadata lookups are configured.
func (d Directory) Enabled() bool {
	return d.URL != ""
}

// DirectoryConfig converts the section to a directory.Config.
func (d Directory) DirectoryConfig() (*directory.Config, error) {
	const op = "config.(Directory).DirectoryConfig"
	c, err := directory.NewConfig(d.URL, d.Realm, d.ClientID, directory.ClientSecret(d.ClientSecret), d.ProviderCA)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// DirectoryOptions returns the cache settings as directory options.
func (d Directory) DirectoryOptions() []directory.Option {
	return []directory.Option{
		directory.WithCacheTTL(d.CacheTTL),
		directory.WithExpirySkew(d.ExpirySkew),
	}
}

// ClientOptions returns the section as apiclient options.
func (a API) ClientOptions() []apiclient.Option {
	opts := []apiclient.Option{
		apiclient.WithTimeout(a.Timeout),
		apiclient.WithCACert(a.CACert),
	}
	if a.OrganizationsPath != "" {
		opts = append(opts, apiclient.WithOrganizationsPath(a.OrganizationsPath))
	}
	return opts
}

// ExpiryOptions returns the section as session options.
func (s Session) ExpiryOptions() []session.Option {
	return []session.Option{
		session.WithWarnWindow(s.WarnWindow),
		session.WithWarnThrottle(s.WarnThrottle),
	}
}

// Logger creates the process logger.
func (l Log) Logger(name string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(l.Level),
		JSONFormat: l.JSON,
		Output:     os.Stderr,
	})
}

func (c *Config) clone() *Config {
	cp := *c
	cp.OIDC.Scopes = append([]string(nil), c.OIDC.Scopes...)
	cp.OIDC.SupportedSigningAlgs = append([]string(nil), c.OIDC.SupportedSigningAlgs...)
	return &cp
}
