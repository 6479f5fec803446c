// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package keycloaktest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

func TestServer_Discovery(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	s := Start(t)

	resp, err := s.HTTPClient().Get(s.Issuer() + "/.well-known/openid-configuration")
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusOK, resp.StatusCode)

	var got map[string]interface{}
	require.NoError(json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(s.Issuer(), got["issuer"])
	assert.Equal(s.Issuer()+"/protocol/openid-connect/logout", got["end_session_endpoint"])
	assert.NotEmpty(s.CACert())
}

func TestServer_ClientCredentials(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	s := Start(t)
	s.AddOrganization(Organization{ID: "1", Name: "Acme", Alias: "acme", Enabled: true})
	s.AddOrganization(Organization{ID: "2", Name: "Globex", Alias: "globex", Enabled: true})

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, s.HTTPClient())
	cc := &clientcredentials.Config{
		ClientID:     DefaultClientID,
		ClientSecret: DefaultClientSecret,
		TokenURL:     s.Issuer() + "/protocol/openid-connect/token",
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tok, err := cc.Token(ctx)
	require.NoError(err)
	assert.Equal(1, s.ClientCredentialsExchanges())
	assert.EqualValues(300, tok.Extra("expires_in"))

	get := func(path string) (int, []Organization) {
		req, err := http.NewRequest(http.MethodGet, s.Addr()+path, nil)
		require.NoError(err)
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
		resp, err := s.HTTPClient().Do(req)
		require.NoError(err)
		defer resp.Body.Close()
		var orgs []Organization
		if resp.StatusCode == http.StatusOK && !strings.Contains(path, "/organizations/") {
			require.NoError(json.NewDecoder(resp.Body).Decode(&orgs))
		}
		return resp.StatusCode, orgs
	}

	q := url.Values{"q": {"alias:globex"}, "exact": {"true"}}
	status, orgs := get("/admin/realms/" + DefaultRealm + "/organizations?" + q.Encode())
	require.Equal(http.StatusOK, status)
	require.Len(orgs, 1)
	assert.Equal("2", orgs[0].ID)

	status, orgs = get("/admin/realms/" + DefaultRealm + "/organizations?first=1&max=10")
	require.Equal(http.StatusOK, status)
	require.Len(orgs, 1)
	assert.Equal("Globex", orgs[0].Name)

	status, _ = get("/admin/realms/" + DefaultRealm + "/organizations/missing")
	assert.Equal(http.StatusNotFound, status)

	s.SetAdminStatus(http.StatusForbidden)
	status, _ = get("/admin/realms/" + DefaultRealm + "/organizations")
	assert.Equal(http.StatusForbidden, status)

	cc.ClientSecret = "wrong"
	_, err = cc.Token(ctx)
	require.Error(err)
	assert.Equal(1, s.ClientCredentialsExchanges())
}

func TestServer_AccessToken(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	s := Start(t)
	s.SetCustomClaims(map[string]interface{}{"organization": []string{"acme"}})

	raw := s.AccessToken(t)
	tk, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.ES256})
	require.NoError(err)
	var std jwt.Claims
	var private struct {
		Organization []string `json:"organization"`
	}
	require.NoError(tk.Claims(&s.SigningKey().PublicKey, &std, &private))
	assert.Equal(s.Issuer(), std.Issuer)
	assert.Equal([]string{"acme"}, private.Organization)
}
