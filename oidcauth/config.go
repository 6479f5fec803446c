// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidcauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-multierror"
	sdkHttp "github.com/webdiario/portalauth/sdk/http"
	"golang.org/x/text/language"
)

// ClientSecret is an oauth client Secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret.
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret.
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret.
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// DefaultScopes are requested when no scopes are configured. The
// organization scope asks Keycloak to include the user's organizations.
var DefaultScopes = []string{oidc.ScopeOpenID, "profile", "email", "organization"}

// Config represents the configuration for the portal's OIDC client.
type Config struct {
	// Issuer is the realm issuer, e.g. https://sso.example.com/realms/webdiario.
	// It is used for discovery.
	Issuer string

	// ClientID is the public or confidential client registered for the portal.
	ClientID string

	// ClientSecret is optional and only used by confidential clients.
	ClientSecret ClientSecret

	// RedirectURL is where the provider returns the authorization response.
	RedirectURL string

	// PostLogoutRedirectURL is optional and sent to the end session endpoint.
	PostLogoutRedirectURL string

	// Scopes requested on sign-in. "openid" is always required.
	Scopes []string

	// UILocales are the preferred languages for the provider's login pages.
	UILocales []language.Tag

	// SupportedSigningAlgs restricts id_token algorithms. When empty the
	// algorithms advertised by discovery are accepted.
	SupportedSigningAlgs []Alg

	// LoadUserInfo fetches the userinfo endpoint into the user's profile.
	LoadUserInfo bool

	// ProviderCA is an optional PEM encoded CA cert used when calling the
	// provider.
	ProviderCA string
}

// NewConfig composes a new config for the portal's OIDC client.
//
// Supported options: WithScopes, WithUILocales, WithSupportedSigningAlgs,
// WithProviderCA, WithPostLogoutRedirectURL, WithoutUserInfo
func NewConfig(issuer, clientID string, clientSecret ClientSecret, redirectURL string, opt ...Option) (*Config, error) {
	const op = "oidcauth.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		Issuer:                issuer,
		ClientID:              clientID,
		ClientSecret:          clientSecret,
		RedirectURL:           redirectURL,
		PostLogoutRedirectURL: opts.withPostLogoutRedirectURL,
		Scopes:                opts.withScopes,
		UILocales:             opts.withUILocales,
		SupportedSigningAlgs:  opts.withSupportedSigningAlgs,
		LoadUserInfo:          !opts.withoutUserInfo,
		ProviderCA:            opts.withProviderCA,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid provider config: %w", op, err)
	}
	return c, nil
}

// Validate the configuration. Every problem found is reported.
func (c *Config) Validate() error {
	const op = "oidcauth.(Config).Validate"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter))
	}
	if c.Issuer == "" {
		result = multierror.Append(result, fmt.Errorf("%s: issuer is empty: %w", op, ErrInvalidParameter))
	} else if !isHTTPURL(c.Issuer) {
		result = multierror.Append(result, fmt.Errorf("%s: issuer %q is not an http or https URL: %w", op, c.Issuer, ErrInvalidParameter))
	}
	if c.RedirectURL == "" {
		result = multierror.Append(result, fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter))
	} else if !isHTTPURL(c.RedirectURL) {
		result = multierror.Append(result, fmt.Errorf("%s: redirect URL %q is not an http or https URL: %w", op, c.RedirectURL, ErrInvalidParameter))
	}
	if c.PostLogoutRedirectURL != "" && !isHTTPURL(c.PostLogoutRedirectURL) {
		result = multierror.Append(result, fmt.Errorf("%s: post logout redirect URL %q is not an http or https URL: %w", op, c.PostLogoutRedirectURL, ErrInvalidParameter))
	}
	if len(c.Scopes) > 0 && !containsScope(c.Scopes, oidc.ScopeOpenID) {
		result = multierror.Append(result, fmt.Errorf("%s: scopes must include %q: %w", op, oidc.ScopeOpenID, ErrInvalidParameter))
	}
	for _, a := range c.SupportedSigningAlgs {
		if !supportedAlgorithms[a] {
			result = multierror.Append(result, fmt.Errorf("%s: %q: %w", op, a, ErrUnsupportedAlg))
		}
	}
	return result.ErrorOrNil()
}

// scopes returns the configured scopes or DefaultScopes.
func (c *Config) scopes() []string {
	if len(c.Scopes) == 0 {
		return append([]string(nil), DefaultScopes...)
	}
	return append([]string(nil), c.Scopes...)
}

// uiLocales returns the space separated ui_locales value.
func (c *Config) uiLocales() string {
	tags := make([]string, 0, len(c.UILocales))
	for _, t := range c.UILocales {
		if t == language.Und {
			continue
		}
		tags = append(tags, t.String())
	}
	return strings.Join(tags, " ")
}

// HTTPClient creates an http client which trusts ProviderCA when set.
func (c *Config) HTTPClient() (*http.Client, error) {
	const op = "oidcauth.(Config).HTTPClient"
	client, err := sdkHttp.NewClient(sdkHttp.WithCACert(c.ProviderCA))
	if err != nil {
		if errors.Is(err, sdkHttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}

// ParseUILocales parses a comma or space separated list of BCP 47 tags,
// e.g. "pt-BR, en".
func ParseUILocales(s string) ([]language.Tag, error) {
	const op = "oidcauth.ParseUILocales"
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	tags := make([]language.Tag, 0, len(fields))
	for _, f := range fields {
		t, err := language.Parse(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %q: %w", op, f, ErrInvalidParameter)
		}
		tags = append(tags, t)
	}
	return tags, nil
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func containsScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
