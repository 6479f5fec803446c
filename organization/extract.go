// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package organization

import (
	"fmt"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/webdiario/portalauth/session"
)

const (
	claimOrganization = "organization"
)

var (
	idClaims      = []string{"organization_id", "org_id"}
	nameClaims    = []string{"organization_name", "org_name"}
	displayClaims = []string{"organization_display_name", "org_display_name"}

	// signatureAlgs are accepted when decoding an access token payload. The
	// signature itself is not verified.
	signatureAlgs = []jose.SignatureAlgorithm{
		jose.RS256, jose.RS384, jose.RS512,
		jose.ES256, jose.ES384, jose.ES512,
		jose.PS256, jose.PS384, jose.PS512,
		jose.EdDSA,
	}
)

// Source is where organization claims are looked up.
type Source struct {
	Profile     session.Claims
	Claims      session.Claims
	AccessToken string
}

// SourceOf returns the Source of u.
func SourceOf(u *session.User) Source {
	if u == nil {
		return Source{}
	}
	return Source{Profile: u.Profile, Claims: u.Claims, AccessToken: u.AccessToken}
}

// Strategy locates a set of claims within a Source. A nil set means the
// location is absent.
type Strategy func(src Source) (session.Claims, error)

// FromProfile locates the profile claims.
func FromProfile(src Source) (session.Claims, error) {
	return src.Profile, nil
}

// FromClaims locates the claims exposed directly on the user.
func FromClaims(src Source) (session.Claims, error) {
	return src.Claims, nil
}

// FromAccessToken locates the payload of the access token. The token is
// decoded without verifying its signature; it is only used to read claims.
func FromAccessToken(src Source) (session.Claims, error) {
	const op = "organization.FromAccessToken"
	if src.AccessToken == "" {
		return nil, nil
	}
	tk, err := jwt.ParseSigned(src.AccessToken, signatureAlgs)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to parse access token: %w", op, err)
	}
	var claims session.Claims
	if err := tk.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return nil, fmt.Errorf("%s: unable to decode access token claims: %w", op, err)
	}
	return claims, nil
}

// DefaultStrategies returns the profile, user and access token locations in
// that order.
func DefaultStrategies() []Strategy {
	return []Strategy{FromProfile, FromClaims, FromAccessToken}
}

// Extract returns the organizations found in src. The first location with a
// non-empty organization array wins. Otherwise a single organization is built
// from the organization id and name claims, both of which are required.
// Locations that fail to decode are logged and skipped.
//
// Supported options: WithLogger, WithStrategies
func Extract(src Source, opt ...Option) []Organization {
	opts := getExtractOpts(opt...)
	return extract(src, opts)
}

func extract(src Source, opts extractOptions) []Organization {
	locations := make([]session.Claims, 0, len(opts.withStrategies))
	for _, s := range opts.withStrategies {
		c, err := s(src)
		if err != nil {
			opts.withLogger.Warn("unable to read organization claims", "error", err)
			continue
		}
		if c != nil {
			locations = append(locations, c)
		}
	}

	for _, c := range locations {
		if names := stringList(c[claimOrganization]); len(names) > 0 {
			orgs := make([]Organization, 0, len(names))
			for _, n := range names {
				orgs = append(orgs, FromName(n))
			}
			return orgs
		}
	}

	id := firstString(locations, idClaims)
	name := firstString(locations, nameClaims)
	if id == "" || name == "" {
		return []Organization{}
	}
	display := firstString(locations, displayClaims)
	if display == "" {
		display = name
	}
	return []Organization{{ID: id, Name: name, DisplayName: display}}
}

// stringList returns the non-empty strings of an array claim.
func stringList(v interface{}) []string {
	var out []string
	switch l := v.(type) {
	case []string:
		for _, s := range l {
			if s != "" {
				out = append(out, s)
			}
		}
	case []interface{}:
		for _, e := range l {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func firstString(locations []session.Claims, keys []string) string {
	for _, c := range locations {
		for _, k := range keys {
			switch v := c[k].(type) {
			case string:
				if v != "" {
					return v
				}
			case float64:
				return fmt.Sprintf("%v", v)
			}
		}
	}
	return ""
}
