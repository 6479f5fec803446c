// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"github.com/webdiario/portalauth/metrics"
	sdkHttp "github.com/webdiario/portalauth/sdk/http"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultExpirySkew is subtracted from an admin token's lifetime.
const DefaultExpirySkew = 30 * time.Second

// AdminTokenCache obtains the directory service token with a client
// credentials exchange and reuses it while now < expiresAt, where expiresAt
// is the exchange time plus the token lifetime minus the expiry skew.
//
// Concurrent callers share a single exchange.
type AdminTokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time

	cc     *clientcredentials.Config
	client *http.Client
	clock  clockwork.Clock
	skew   time.Duration
	logger hclog.Logger
}

// NewAdminTokenCache creates an empty cache for the service account in c.
//
// Supported options: WithLogger, WithClock, WithExpirySkew, WithHTTPClient
func NewAdminTokenCache(c *Config, opt ...Option) (*AdminTokenCache, error) {
	const op = "directory.NewAdminTokenCache"
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getTokenCacheOpts(opt...)
	client := opts.withHTTPClient
	if client == nil {
		var err error
		if client, err = c.HTTPClient(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return &AdminTokenCache{
		cc: &clientcredentials.Config{
			ClientID:     c.ClientID,
			ClientSecret: string(c.ClientSecret),
			TokenURL:     c.TokenURL(),
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		client: client,
		clock:  opts.withClock,
		skew:   opts.withExpirySkew,
		logger: opts.withLogger.Named("admin-token"),
	}, nil
}

// Token returns the cached service token or performs a new exchange.
func (a *AdminTokenCache) Token(ctx context.Context) (string, error) {
	const op = "directory.(AdminTokenCache).Token"
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	if a.token != "" && now.Before(a.expiresAt) {
		metrics.AdminTokenExchanges.WithLabelValues("cached").Inc()
		return a.token, nil
	}

	tok, err := a.cc.Token(sdkHttp.ClientContext(ctx, a.client))
	if err != nil {
		metrics.AdminTokenExchanges.WithLabelValues("failed").Inc()
		a.logger.Error("client credentials exchange failed", "error", err)
		return "", fmt.Errorf("%s: %w: %w", op, ErrAdminToken, err)
	}
	metrics.AdminTokenExchanges.WithLabelValues("exchanged").Inc()

	a.token = tok.AccessToken
	a.expiresAt = now.Add(lifetime(tok, now) - a.skew)
	a.logger.Debug("admin token obtained", "expires_at", a.expiresAt)
	return a.token, nil
}

// Invalidate drops the cached token.
func (a *AdminTokenCache) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = ""
	a.expiresAt = time.Time{}
}

// lifetime prefers the server's expires_in over the token's computed Expiry,
// which is derived from the wall clock.
func lifetime(tok *oauth2.Token, now time.Time) time.Duration {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return time.Duration(v) * time.Second
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return time.Duration(n) * time.Second
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	if !tok.Expiry.IsZero() {
		return tok.Expiry.Sub(now)
	}
	return 0
}
