// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package keycloaktest provides a disposable Keycloak realm for tests. It
// serves OIDC discovery, a JWKS, the authorization, token, userinfo and logout
// endpoints, and the admin organization API.
package keycloaktest

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"
)

const (
	// DefaultRealm is the realm served by a new Server.
	DefaultRealm = "webdiario"

	// DefaultClientID is the client accepted by a new Server.
	DefaultClientID = "portal"

	// DefaultClientSecret is the secret of DefaultClientID.
	DefaultClientSecret = "portal-secret"

	// DefaultAuthCode is the code issued by /auth.
	DefaultAuthCode = "test-auth-code"

	// DefaultSubject is the subject of issued tokens.
	DefaultSubject = "5b2f9ac1-0d1e-4a53-9e1f-0c7d1f1a2b3c"

	keyID = "test-key"
)

// Organization is the admin API representation of an organization.
type Organization struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Alias       string              `json:"alias,omitempty"`
	Enabled     bool                `json:"enabled"`
	Description string              `json:"description,omitempty"`
	Attributes  map[string][]string `json:"attributes,omitempty"`
	Domains     []Domain            `json:"domains,omitempty"`
}

// Domain is an organization domain.
type Domain struct {
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

// Server is a local Keycloak realm that makes writing tests much easier.
type Server struct {
	httpServer *httptest.Server
	caCert     string
	realm      string
	key        *ecdsa.PrivateKey
	jwks       *jose.JSONWebKeySet

	mu                  sync.Mutex
	clientID            string
	clientSecret        string
	expectedAuthCode    string
	lastNonce           string
	allowedRedirectURIs []string
	subject             string
	customClaims        map[string]interface{}
	replyUserinfo       map[string]interface{}
	tokenTTL            time.Duration
	adminStatus         int
	organizations       map[string]Organization
	adminTokens         map[string]bool
	refreshTokens       map[string]bool
	ccExchanges         int
	logouts             int
	issued              int
	disableUserInfo     bool
}

// Start creates a disposable Server listening with TLS on a random local
// port. It is stopped when the test completes.
func Start(t testing.TB) *Server {
	t.Helper()
	require := require.New(t)

	s := &Server{
		realm:            DefaultRealm,
		clientID:         DefaultClientID,
		clientSecret:     DefaultClientSecret,
		expectedAuthCode: DefaultAuthCode,
		subject:          DefaultSubject,
		replyUserinfo: map[string]interface{}{
			"email":              "student@example.com",
			"preferred_username": "student",
		},
		tokenTTL:      5 * time.Minute,
		organizations: map[string]Organization{},
		adminTokens:   map[string]bool{},
		refreshTokens: map[string]bool{},
	}
	s.key = GenerateKey(t)
	s.jwks = keySet(s.key, keyID)

	s.httpServer = httptest.NewUnstartedServer(s)
	s.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	s.httpServer.StartTLS()
	t.Cleanup(s.httpServer.Close)

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: s.httpServer.Certificate().Raw})
	require.NoError(err)
	s.caCert = buf.String()
	return s
}

// Stop stops the running Server.
func (s *Server) Stop() {
	s.httpServer.Close()
}

// Addr returns the base URL of the server, the equivalent of KEYCLOAK_URL.
func (s *Server) Addr() string { return s.httpServer.URL }

// Realm returns the served realm.
func (s *Server) Realm() string { return s.realm }

// Issuer returns the realm issuer URL.
func (s *Server) Issuer() string { return s.Addr() + "/realms/" + s.realm }

// CACert returns the pem-encoded CA certificate of the server.
func (s *Server) CACert() string { return s.caCert }

// HTTPClient returns a client which trusts the server.
func (s *Server) HTTPClient() *http.Client { return s.httpServer.Client() }

// SigningKey returns the key used to sign issued tokens.
func (s *Server) SigningKey() *ecdsa.PrivateKey { return s.key }

// SetClientCreds configures the accepted client for every grant.
func (s *Server) SetClientCreds(clientID, clientSecret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientID = clientID
	s.clientSecret = clientSecret
}

// ClientCreds returns the accepted client.
func (s *Server) ClientCreds() (clientID, clientSecret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientID, s.clientSecret
}

// SetExpectedAuthCode configures the code issued by /auth and accepted by the
// token endpoint. An empty code makes /auth deny access.
func (s *Server) SetExpectedAuthCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expectedAuthCode = code
}

// SetAllowedRedirectURIs restricts the redirect URIs accepted by /auth and
// the token endpoint. By default any redirect URI is accepted.
func (s *Server) SetAllowedRedirectURIs(uris []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowedRedirectURIs = uris
}

// SetCustomClaims sets claims added to every issued id_token, access_token
// and userinfo response, e.g. {"organization": []string{"acme"}}.
func (s *Server) SetCustomClaims(claims map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customClaims = claims
}

// SetUserInfo replaces the userinfo reply. "sub" is always set.
func (s *Server) SetUserInfo(info map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replyUserinfo = info
}

// DisableUserInfo makes the userinfo endpoint return 404 and omits it from
// discovery.
func (s *Server) DisableUserInfo() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disableUserInfo = true
}

// SetTokenTTL sets the lifetime of every issued token.
func (s *Server) SetTokenTTL(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = d
}

// SetAdminStatus forces every admin API response to the given status. Zero
// restores normal behavior.
func (s *Server) SetAdminStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminStatus = status
}

// AddOrganization registers an organization in the admin API.
func (s *Server) AddOrganization(o Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.organizations[o.ID] = o
}

// RevokeRefreshTokens invalidates every issued refresh token.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens = map[string]bool{}
}

// ClientCredentialsExchanges returns how many client credentials exchanges
// were granted.
func (s *Server) ClientCredentialsExchanges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ccExchanges
}

// Logouts returns how many times the logout endpoint was called.
func (s *Server) Logouts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logouts
}

// LastNonce returns the nonce of the last authorization request.
func (s *Server) LastNonce() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastNonce
}

// AccessToken issues a signed access token carrying the custom claims, as the
// token endpoint would.
func (s *Server) AccessToken(t testing.TB) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	tk, err := s.signLocked(s.clientID, "")
	require.NoError(t, err)
	return tk
}

func (s *Server) realmPath(p string) string {
	return "/realms/" + s.realm + p
}

// ServeHTTP implements the server's http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	adminPrefix := "/admin/realms/" + s.realm + "/organizations"
	switch p := req.URL.Path; {
	case p == s.realmPath("/.well-known/openid-configuration"):
		s.serveDiscovery(w, req)
	case p == s.realmPath("/protocol/openid-connect/auth"):
		s.serveAuth(w, req)
	case p == s.realmPath("/protocol/openid-connect/certs"):
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = writeJSON(w, s.jwks)
	case p == s.realmPath("/protocol/openid-connect/token"):
		s.serveToken(w, req)
	case p == s.realmPath("/protocol/openid-connect/userinfo"):
		s.serveUserinfo(w, req)
	case p == s.realmPath("/protocol/openid-connect/logout"):
		s.logouts++
		if target := req.URL.Query().Get("post_logout_redirect_uri"); target != "" {
			http.Redirect(w, req, target, http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case p == adminPrefix || strings.HasPrefix(p, adminPrefix+"/"):
		s.serveAdmin(w, req, strings.TrimPrefix(strings.TrimPrefix(p, adminPrefix), "/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) serveDiscovery(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	base := s.Issuer() + "/protocol/openid-connect"
	reply := struct {
		Issuer             string   `json:"issuer"`
		AuthEndpoint       string   `json:"authorization_endpoint"`
		TokenEndpoint      string   `json:"token_endpoint"`
		JWKSURI            string   `json:"jwks_uri"`
		UserinfoEndpoint   string   `json:"userinfo_endpoint,omitempty"`
		EndSessionEndpoint string   `json:"end_session_endpoint"`
		Algs               []string `json:"id_token_signing_alg_values_supported"`
		GrantTypes         []string `json:"grant_types_supported"`
	}{
		Issuer:             s.Issuer(),
		AuthEndpoint:       base + "/auth",
		TokenEndpoint:      base + "/token",
		JWKSURI:            base + "/certs",
		UserinfoEndpoint:   base + "/userinfo",
		EndSessionEndpoint: base + "/logout",
		Algs:               []string{string(jose.ES256)},
		GrantTypes:         []string{"authorization_code", "refresh_token", "client_credentials"},
	}
	if s.disableUserInfo {
		reply.UserinfoEndpoint = ""
	}
	_ = writeJSON(w, &reply)
}

func (s *Server) redirectAllowed(uri string) bool {
	if len(s.allowedRedirectURIs) == 0 {
		return true
	}
	for _, u := range s.allowedRedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

func (s *Server) serveAuth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	qv := req.URL.Query()
	redirectURI := qv.Get("redirect_uri")
	if redirectURI == "" || !s.redirectAllowed(redirectURI) {
		w.WriteHeader(http.StatusBadRequest)
		_ = writeJSON(w, map[string]string{"error": "invalid_redirect_uri"})
		return
	}
	state := qv.Get("state")
	reply := url.Values{}
	reply.Set("state", state)
	reply.Set("iss", s.Issuer())
	switch {
	case qv.Get("response_type") != "code":
		reply.Set("error", "unsupported_response_type")
	case !strings.Contains(" "+qv.Get("scope")+" ", " openid "):
		reply.Set("error", "invalid_scope")
	case qv.Get("client_id") != s.clientID:
		reply.Set("error", "unauthorized_client")
	case state == "":
		reply.Set("error", "invalid_request")
		reply.Set("error_description", "missing state parameter")
	case s.expectedAuthCode == "":
		reply.Set("error", "access_denied")
	default:
		s.lastNonce = qv.Get("nonce")
		reply.Set("code", s.expectedAuthCode)
		reply.Set("session_state", "test-session-state")
	}
	sep := "?"
	if strings.Contains(redirectURI, "?") {
		sep = "&"
	}
	http.Redirect(w, req, redirectURI+sep+reply.Encode(), http.StatusFound)
}

func (s *Server) clientAuthenticated(req *http.Request) bool {
	id, secret, ok := req.BasicAuth()
	if !ok {
		id, secret = req.FormValue("client_id"), req.FormValue("client_secret")
	}
	return id == s.clientID && secret == s.clientSecret
}

func (s *Server) serveToken(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := req.ParseForm(); err != nil {
		_ = writeTokenError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if !s.clientAuthenticated(req) {
		_ = writeTokenError(w, http.StatusUnauthorized, "invalid_client", "Invalid client or Invalid client credentials")
		return
	}
	ttl := int64(s.tokenTTL / time.Second)

	switch req.FormValue("grant_type") {
	case "client_credentials":
		s.ccExchanges++
		s.issued++
		tk := fmt.Sprintf("admin-token-%d", s.issued)
		s.adminTokens[tk] = true
		_ = writeJSON(w, map[string]interface{}{
			"access_token":       tk,
			"expires_in":         ttl,
			"refresh_expires_in": 0,
			"token_type":         "Bearer",
			"scope":              "profile email",
		})
		return

	case "authorization_code":
		switch {
		case !s.redirectAllowed(req.FormValue("redirect_uri")):
			_ = writeTokenError(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
			return
		case s.expectedAuthCode == "" || req.FormValue("code") != s.expectedAuthCode:
			_ = writeTokenError(w, http.StatusBadRequest, "invalid_grant", "Code not valid")
			return
		}
		s.writeUserTokens(w, ttl, s.lastNonce)

	case "refresh_token":
		rt := req.FormValue("refresh_token")
		if !s.refreshTokens[rt] {
			_ = writeTokenError(w, http.StatusBadRequest, "invalid_grant", "Invalid refresh token")
			return
		}
		delete(s.refreshTokens, rt)
		s.writeUserTokens(w, ttl, "")

	default:
		_ = writeTokenError(w, http.StatusBadRequest, "unsupported_grant_type", "")
	}
}

func (s *Server) writeUserTokens(w http.ResponseWriter, ttl int64, nonce string) {
	access, err := s.signLocked("account", "")
	if err != nil {
		_ = writeTokenError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	idToken, err := s.signLocked(s.clientID, nonce)
	if err != nil {
		_ = writeTokenError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	s.issued++
	rt := fmt.Sprintf("refresh-token-%d", s.issued)
	s.refreshTokens[rt] = true
	_ = writeJSON(w, map[string]interface{}{
		"access_token":  access,
		"id_token":      idToken,
		"refresh_token": rt,
		"expires_in":    ttl,
		"token_type":    "Bearer",
		"scope":         "openid profile email organization",
	})
}

func (s *Server) signLocked(audience, nonce string) (string, error) {
	now := time.Now()
	std := jwt.Claims{
		Subject:   s.subject,
		Issuer:    s.Issuer(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
		Expiry:    jwt.NewNumericDate(now.Add(s.tokenTTL)),
		Audience:  jwt.Audience{audience},
	}
	private := map[string]interface{}{
		"azp": s.clientID,
	}
	for k, v := range s.customClaims {
		private[k] = v
	}
	if nonce != "" {
		private["nonce"] = nonce
	}
	return signJWT(s.key, keyID, std, private)
}

func (s *Server) serveUserinfo(w http.ResponseWriter, req *http.Request) {
	if s.disableUserInfo {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if !strings.HasPrefix(req.Header.Get("Authorization"), "Bearer ") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	reply := map[string]interface{}{}
	for k, v := range s.replyUserinfo {
		reply[k] = v
	}
	for k, v := range s.customClaims {
		reply[k] = v
	}
	reply["sub"] = s.subject
	_ = writeJSON(w, reply)
}

func (s *Server) serveAdmin(w http.ResponseWriter, req *http.Request, id string) {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.adminStatus != 0 {
		w.WriteHeader(s.adminStatus)
		return
	}
	bearer := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !s.adminTokens[bearer] {
		w.WriteHeader(http.StatusUnauthorized)
		_ = writeJSON(w, map[string]string{"error": "HTTP 401 Unauthorized"})
		return
	}
	if id != "" {
		o, ok := s.organizations[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = writeJSON(w, map[string]string{"error": "Organization not found"})
			return
		}
		_ = writeJSON(w, o)
		return
	}

	qv := req.URL.Query()
	all := make([]Organization, 0, len(s.organizations))
	for _, o := range s.organizations {
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	matched := make([]Organization, 0, len(all))
	alias := strings.TrimPrefix(qv.Get("q"), "alias:")
	exact := qv.Get("exact") == "true"
	search := strings.ToLower(qv.Get("search"))
	for _, o := range all {
		switch {
		case qv.Get("q") != "" && exact && o.Alias != alias:
			continue
		case qv.Get("q") != "" && !exact && !strings.Contains(o.Alias, alias):
			continue
		case search != "" && !strings.Contains(strings.ToLower(o.Name), search):
			continue
		}
		if qv.Get("briefRepresentation") == "true" {
			o = Organization{ID: o.ID, Name: o.Name, Alias: o.Alias, Enabled: o.Enabled}
		}
		matched = append(matched, o)
	}

	first, _ := strconv.Atoi(qv.Get("first"))
	size, err := strconv.Atoi(qv.Get("max"))
	if err != nil || size <= 0 {
		size = 100
	}
	switch {
	case first >= len(matched):
		matched = matched[:0]
	case first+size < len(matched):
		matched = matched[first : first+size]
	default:
		matched = matched[first:]
	}
	_ = writeJSON(w, matched)
}

func writeJSON(w http.ResponseWriter, out interface{}) error {
	return json.NewEncoder(w).Encode(out)
}

func writeTokenError(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) error {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}
	w.WriteHeader(statusCode)
	return writeJSON(w, &body)
}
