// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package directory looks up organizations in the identity provider's admin
// API using a service account token.
//
// Authorization denials (401/403), empty results and unknown ids are reported
// as an absent organization, never as an error. Transport failures, other
// non-2xx responses and undecodable bodies are logged and returned wrapped in
// ErrTransport, and a failed service account login in ErrAdminToken. Callers
// that only need best-effort metadata treat any error as absent.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"
	gocache "github.com/patrickmn/go-cache"
	"github.com/webdiario/portalauth/metrics"
)

// DefaultCacheTTL is how long a resolved alias is cached.
const DefaultCacheTTL = 5 * time.Minute

// Directory is the organization directory client.
type Directory struct {
	cfg    *Config
	tokens *AdminTokenCache
	client *http.Client
	cache  *gocache.Cache
	logger hclog.Logger
}

// New creates a Directory.
//
// Supported options: WithLogger, WithClock, WithExpirySkew, WithHTTPClient,
// WithCacheTTL, WithAdminTokenCache
func New(c *Config, opt ...Option) (*Directory, error) {
	const op = "directory.New"
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getDirectoryOpts(opt...)
	client := opts.withHTTPClient
	if client == nil {
		var err error
		if client, err = c.HTTPClient(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	tokens := opts.withTokenCache
	if tokens == nil {
		var err error
		o := opts.tokenCacheOpts()
		o = append(o, WithHTTPClient(client))
		if tokens, err = NewAdminTokenCache(c, o...); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	d := &Directory{
		cfg:    c,
		tokens: tokens,
		client: client,
		logger: opts.withLogger.Named("directory"),
	}
	if opts.withCacheTTL > 0 {
		d.cache = gocache.New(opts.withCacheTTL, 2*opts.withCacheTTL)
	}
	return d, nil
}

// ResolveByAlias returns the organization with the exact alias, or nil when
// there is none or access is denied. Any other failure is returned wrapped in
// ErrTransport or ErrAdminToken with a nil organization.
func (d *Directory) ResolveByAlias(ctx context.Context, alias string) (*Metadata, error) {
	const op = "directory.(Directory).ResolveByAlias"
	if alias == "" {
		return nil, fmt.Errorf("%s: missing alias: %w", op, ErrInvalidParameter)
	}
	if d.cache != nil {
		if v, ok := d.cache.Get(alias); ok {
			metrics.DirectoryLookups.WithLabelValues("alias", "cached").Inc()
			return v.(*Metadata).Clone(), nil
		}
	}
	q := url.Values{}
	q.Set("q", "alias:"+alias)
	q.Set("exact", "true")
	q.Set("briefRepresentation", "false")

	var found []Metadata
	ok, err := d.get(ctx, "alias", d.cfg.OrganizationsURL()+"?"+q.Encode(), &found)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok || len(found) == 0 {
		d.logger.Warn("no organization found", "alias", alias)
		metrics.DirectoryLookups.WithLabelValues("alias", "absent").Inc()
		return nil, nil
	}
	m := found[0]
	metrics.DirectoryLookups.WithLabelValues("alias", "found").Inc()
	if d.cache != nil {
		d.cache.SetDefault(alias, m.Clone())
	}
	return &m, nil
}

// ResolveByID returns the organization with the given id, or nil when it
// does not exist or access is denied. Other failures are returned as with
// ResolveByAlias.
func (d *Directory) ResolveByID(ctx context.Context, id string) (*Metadata, error) {
	const op = "directory.(Directory).ResolveByID"
	if id == "" {
		return nil, fmt.Errorf("%s: missing id: %w", op, ErrInvalidParameter)
	}
	var m Metadata
	ok, err := d.get(ctx, "id", d.cfg.OrganizationsURL()+"/"+url.PathEscape(id), &m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		metrics.DirectoryLookups.WithLabelValues("id", "absent").Inc()
		return nil, nil
	}
	metrics.DirectoryLookups.WithLabelValues("id", "found").Inc()
	return &m, nil
}

// ListOrganizations returns a page of organizations. Denied access yields an
// empty page. Other failures are returned as with ResolveByAlias.
func (d *Directory) ListOrganizations(ctx context.Context, f Filter) ([]Metadata, error) {
	const op = "directory.(Directory).ListOrganizations"
	if f.First < 0 || f.Max < 0 {
		return nil, fmt.Errorf("%s: negative paging: %w", op, ErrInvalidParameter)
	}
	size := f.Max
	if size == 0 {
		size = DefaultPageSize
	}
	q := url.Values{}
	q.Set("briefRepresentation", strconv.FormatBool(f.Brief))
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	q.Set("first", strconv.Itoa(f.First))
	q.Set("max", strconv.Itoa(size))

	var found []Metadata
	ok, err := d.get(ctx, "list", d.cfg.OrganizationsURL()+"?"+q.Encode(), &found)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		metrics.DirectoryLookups.WithLabelValues("list", "absent").Inc()
		return []Metadata{}, nil
	}
	metrics.DirectoryLookups.WithLabelValues("list", "found").Inc()
	if found == nil {
		found = []Metadata{}
	}
	return found, nil
}

// get performs an authorized GET and decodes into out. It returns false when
// the result is absent: 401, 403 or 404.
func (d *Directory) get(ctx context.Context, kind, target string, out interface{}) (bool, error) {
	const op = "directory.(Directory).get"
	tk, err := d.tokens.Token(ctx)
	if err != nil {
		metrics.DirectoryLookups.WithLabelValues(kind, "error").Inc()
		return false, fmt.Errorf("%s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, fmt.Errorf("%s: unable to create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+tk)
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		metrics.DirectoryLookups.WithLabelValues(kind, "error").Inc()
		d.logger.Error("directory request failed", "lookup", kind, "error", err)
		return false, fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		d.logger.Warn("directory access denied", "lookup", kind, "status", resp.StatusCode)
		if resp.StatusCode == http.StatusUnauthorized {
			d.tokens.Invalidate()
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	case resp.StatusCode == http.StatusNotFound && kind == "id":
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		metrics.DirectoryLookups.WithLabelValues(kind, "error").Inc()
		d.logger.Error("directory request failed", "lookup", kind, "status", resp.StatusCode, "body", string(b))
		return false, fmt.Errorf("%s: status %d: %w", op, resp.StatusCode, ErrTransport)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.DirectoryLookups.WithLabelValues(kind, "error").Inc()
		return false, fmt.Errorf("%s: unable to decode response: %w: %w", op, ErrTransport, err)
	}
	return true, nil
}
