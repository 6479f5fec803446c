// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package directory

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-multierror"
	sdkHttp "github.com/webdiario/portalauth/sdk/http"
)

// ClientSecret is the secret of the service account client.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for a client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// Config locates the identity provider's admin API and the service account
// used to call it.
type Config struct {
	// URL is the base URL of the Keycloak server, e.g. https://sso.example.com
	URL string

	// Realm is the realm that owns the organizations.
	Realm string

	// ClientID is the service account client.
	ClientID string

	// ClientSecret is the service account secret.
	ClientSecret ClientSecret

	// ProviderCA is an optional PEM encoded CA cert used when calling the
	// server.
	ProviderCA string
}

// NewConfig composes and validates a Config.
func NewConfig(serverURL, realm, clientID string, secret ClientSecret, providerCA string) (*Config, error) {
	const op = "directory.NewConfig"
	c := &Config{
		URL:          strings.TrimSuffix(serverURL, "/"),
		Realm:        realm,
		ClientID:     clientID,
		ClientSecret: secret,
		ProviderCA:   providerCA,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid directory config: %w", op, err)
	}
	return c, nil
}

// Validate the configuration. Every problem found is reported.
func (c *Config) Validate() error {
	const op = "directory.(Config).Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.URL == "" {
		result = multierror.Append(result, fmt.Errorf("%s: server URL is empty: %w", op, ErrInvalidParameter))
	} else if u, err := url.Parse(c.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		result = multierror.Append(result, fmt.Errorf("%s: server URL %q is invalid: %w", op, c.URL, ErrInvalidParameter))
	}
	if c.Realm == "" {
		result = multierror.Append(result, fmt.Errorf("%s: realm is empty: %w", op, ErrInvalidParameter))
	}
	if c.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter))
	}
	if c.ClientSecret == "" {
		result = multierror.Append(result, fmt.Errorf("%s: client secret is empty: %w", op, ErrInvalidParameter))
	}
	return result.ErrorOrNil()
}

// TokenURL is the realm's token endpoint.
func (c *Config) TokenURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", strings.TrimSuffix(c.URL, "/"), url.PathEscape(c.Realm))
}

// OrganizationsURL is the realm's admin organizations endpoint.
func (c *Config) OrganizationsURL() string {
	return fmt.Sprintf("%s/admin/realms/%s/organizations", strings.TrimSuffix(c.URL, "/"), url.PathEscape(c.Realm))
}

// HTTPClient creates an http client which trusts ProviderCA when set.
func (c *Config) HTTPClient() (*http.Client, error) {
	const op = "directory.(Config).HTTPClient"
	client, err := sdkHttp.NewClient(sdkHttp.WithCACert(c.ProviderCA))
	if err != nil {
		if errors.Is(err, sdkHttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}
