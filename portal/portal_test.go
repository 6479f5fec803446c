// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webdiario/portalauth/apiclient"
	"github.com/webdiario/portalauth/config"
	"github.com/webdiario/portalauth/keycloaktest"
	"github.com/webdiario/portalauth/oidcauth"
	"github.com/webdiario/portalauth/organization"
	"github.com/webdiario/portalauth/session"
	"github.com/webdiario/portalauth/storage"
	"github.com/webdiario/portalauth/token"
)

// backend records the headers of every request it serves.
type backend struct {
	*httptest.Server
	mu       sync.Mutex
	requests []http.Header
}

func startBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, r.Header.Clone())
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"path": r.URL.Path})
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *backend) last() http.Header {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.requests) == 0 {
		return nil
	}
	return b.requests[len(b.requests)-1]
}

func testConfig(apiURL string) *config.Config {
	c := config.Default()
	c.OIDC.Issuer = "https://sso.example.com/realms/webdiario"
	c.OIDC.ClientID = "portal"
	c.OIDC.RedirectURL = "http://127.0.0.1:8400/callback"
	c.API.BaseURL = apiURL
	c.Storage.InMemory = true
	return c
}

func orgProfile(names ...string) session.Claims {
	orgs := make([]interface{}, 0, len(names))
	for _, n := range names {
		orgs = append(orgs, n)
	}
	return session.Claims{"organization": orgs}
}

func TestNew(t *testing.T) {
	t.Parallel()
	cfg := testConfig("https://api.example.com")
	tc := session.NewTestCapability()
	st := storage.NewMemory()

	tests := []struct {
		name    string
		cfg     *config.Config
		tc      session.Capability
		storage storage.Storage
		wantErr error
	}{
		{name: "nil-config", tc: tc, storage: st, wantErr: ErrNilParameter},
		{name: "nil-capability", cfg: cfg, storage: st, wantErr: ErrNilParameter},
		{name: "nil-storage", cfg: cfg, tc: tc, wantErr: ErrNilParameter},
		{name: "valid", cfg: cfg, tc: tc, storage: st},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			p, err := New(tt.cfg, tt.tc, tt.storage)
			if tt.wantErr != nil {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantErr), "wanted %q but got %q", tt.wantErr, err)
				return
			}
			require.NoError(err)
			assert.NotNil(p.API())
			assert.NotNil(p.Tokens())
			assert.NotNil(p.Organizations())
			assert.NotNil(p.Recoverer())
			assert.Nil(p.Directory())
			assert.Same(tt.tc, p.Capability())
		})
	}
}

func TestPortal_SingleOrganization(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	api := startBackend(t)
	tc := session.NewTestCapability()
	st := storage.NewMemory()

	p, err := New(testConfig(api.URL), tc, st)
	require.NoError(err)
	stop, err := p.Start(ctx)
	require.NoError(err)
	defer stop()

	assert.Equal(session.ReadinessLoading, p.Readiness().Phase)

	tc.Publish(session.TestReadySession(session.TestUser("tok-1", time.Now().Add(time.Hour), orgProfile("acme"))))

	assert.Equal(session.Readiness{Phase: session.ReadinessReady, Ready: true}, p.Readiness())
	tk, ok := p.Tokens().Token()
	assert.True(ok)
	assert.Equal("tok-1", tk)

	orgs := p.Organizations()
	require.Len(orgs.Available(), 1)
	assert.Equal("acme", orgs.Available()[0].ID)
	require.NotNil(orgs.Current())
	assert.Equal("acme", orgs.Current().ID)
	assert.Equal(organization.Initialized, orgs.InitState())

	raw, err := st.Get(organization.StorageKey)
	require.NoError(err)
	var persisted organization.Organization
	require.NoError(json.Unmarshal(raw, &persisted))
	assert.Equal("acme", persisted.ID)

	raw, err = st.Get(token.DefaultStorageKey)
	require.NoError(err)
	assert.Equal("tok-1", string(raw))

	var out map[string]string
	require.NoError(p.API().Get(ctx, "/students", &out))
	assert.Equal("/students", out["path"])
	assert.Equal("Bearer tok-1", api.last().Get("Authorization"))
	assert.Equal("acme", api.last().Get(apiclient.OrganizationHeader))

	require.NoError(p.API().Get(ctx, "/organizations", &out))
	assert.Equal("Bearer tok-1", api.last().Get("Authorization"))
	assert.Empty(api.last().Get(apiclient.OrganizationHeader))
}

func TestPortal_ReadinessWaitsForTokenStore(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	api := startBackend(t)
	tc := session.NewTestCapability()

	p, err := New(testConfig(api.URL), tc, storage.NewMemory())
	require.NoError(err)
	tc.Publish(session.TestReadySession(session.TestUser("tok-1", time.Now().Add(time.Hour), orgProfile("acme"))))

	assert.Equal(session.Readiness{Phase: session.ReadinessLoading}, p.Readiness())
	_, ok := p.Tokens().Token()
	assert.False(ok)

	stop, err := p.Start(ctx)
	require.NoError(err)
	defer stop()

	assert.Equal(session.Readiness{Phase: session.ReadinessReady, Ready: true}, p.Readiness())
	tk, ok := p.Tokens().Token()
	assert.True(ok)
	assert.Equal("tok-1", tk)
}

func TestPortal_Logout(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	api := startBackend(t)
	tc := session.NewTestCapability()
	st := storage.NewMemory()

	p, err := New(testConfig(api.URL), tc, st)
	require.NoError(err)
	stop, err := p.Start(ctx)
	require.NoError(err)
	defer stop()

	tc.Publish(session.TestReadySession(session.TestUser("tok-1", time.Now().Add(time.Hour), orgProfile("acme"))))
	require.NotNil(p.Organizations().Current())

	tc.Publish(session.Session{})
	assert.Equal(session.ReadinessUnauthenticated, p.Readiness().Phase)
	_, ok := p.Tokens().Token()
	assert.False(ok)
	assert.Nil(p.Organizations().Current())
	assert.Empty(p.Organizations().Available())
	assert.Equal(organization.Uninitialized, p.Organizations().InitState())

	_, err = st.Get(token.DefaultStorageKey)
	assert.Truef(errors.Is(err, storage.ErrNotFound), "wanted %q but got %q", storage.ErrNotFound, err)
	_, err = st.Get(organization.StorageKey)
	assert.Truef(errors.Is(err, storage.ErrNotFound), "wanted %q but got %q", storage.ErrNotFound, err)

	var out map[string]string
	require.NoError(p.API().Get(ctx, "/public", &out))
	assert.Empty(api.last().Get("Authorization"))
	assert.Empty(api.last().Get(apiclient.OrganizationHeader))
}

func TestPortal_RestoresPersistedState(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	st := storage.NewMemory()
	require.NoError(st.Set(token.DefaultStorageKey, []byte("tok-old")))
	rec, err := json.Marshal(organization.FromName("globex"))
	require.NoError(err)
	require.NoError(st.Set(organization.StorageKey, rec))

	tc := session.NewTestCapability()
	p, err := New(testConfig("https://api.example.com"), tc, st)
	require.NoError(err)
	stop, err := p.Start(ctx)
	require.NoError(err)
	defer stop()

	tk, ok := p.Tokens().Token()
	assert.True(ok)
	assert.Equal("tok-old", tk)

	tc.Publish(session.TestReadySession(session.TestUser("tok-new", time.Now().Add(time.Hour), orgProfile("acme", "globex"))))
	require.NotNil(p.Organizations().Current())
	assert.Equal("globex", p.Organizations().Current().ID)
	tk, _ = p.Tokens().Token()
	assert.Equal("tok-new", tk)

	// a restored token is cleared by a sign-out observed before any sign-in
	other := session.NewTestCapability()
	st2 := storage.NewMemory()
	require.NoError(st2.Set(token.DefaultStorageKey, []byte("tok-stale")))
	p2, err := New(testConfig("https://api.example.com"), other, st2)
	require.NoError(err)
	stop2, err := p2.Start(ctx)
	require.NoError(err)
	defer stop2()
	other.Publish(session.Session{})
	_, ok = p2.Tokens().Token()
	assert.False(ok)
}

func TestPortal_Recovery(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	tc := session.NewTestCapability()
	st := storage.NewMemory()

	p, err := New(testConfig("https://api.example.com"), tc, st)
	require.NoError(err)
	stop, err := p.Start(ctx)
	require.NoError(err)
	defer stop()

	tc.Publish(session.TestReadySession(session.TestUser("tok-1", time.Now().Add(time.Hour), orgProfile("acme"))))
	tc.Publish(session.Session{Err: fmt.Errorf("callback: %w", session.ErrStateMismatch)})

	assert.Equal(session.ReadinessErrored, p.Readiness().Phase)
	signins, _, resets := tc.Calls()
	assert.Equal(1, signins)
	assert.Equal(1, resets)
	_, err = st.Get(token.DefaultStorageKey)
	assert.Truef(errors.Is(err, storage.ErrNotFound), "wanted %q but got %q", storage.ErrNotFound, err)
	_, err = st.Get(organization.StorageKey)
	assert.Truef(errors.Is(err, storage.ErrNotFound), "wanted %q but got %q", storage.ErrNotFound, err)

	// other errors are surfaced without recovery
	tc.Publish(session.Session{Err: errors.New("network unreachable")})
	signins, _, _ = tc.Calls()
	assert.Equal(1, signins)
}

func TestPortal_ExpiryNotifications(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	tc := session.NewTestCapability()

	var mu sync.Mutex
	var got []session.Notification
	notifier := session.NotifierFunc(func(n session.Notification) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, n)
	})

	p, err := New(testConfig("https://api.example.com"), tc, storage.NewMemory(), WithClock(clock), WithNotifier(notifier))
	require.NoError(err)
	stop, err := p.Start(ctx)
	require.NoError(err)
	defer stop()

	u := session.TestUser("tok-1", clock.Now().Add(4*time.Minute), orgProfile("acme"))
	tc.Publish(session.TestReadySession(u))
	tc.Emitter().UserLoaded(u)
	tc.Emitter().UserUnloaded()

	mu.Lock()
	defer mu.Unlock()
	require.Len(got, 3)
	assert.Equal(session.ExpiringSoon, got[0].Kind)
	assert.Equal("Your session expires in 4m 0s. Renewing automatically...", got[0].Message)
	assert.Equal(session.Renewed, got[1].Kind)
	assert.Equal(session.RenewalFailed, got[2].Kind)
}

func TestPortal_StartTwice(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	p, err := New(testConfig("https://api.example.com"), session.NewTestCapability(), storage.NewMemory())
	require.NoError(err)
	stop, err := p.Start(context.Background())
	require.NoError(err)
	_, err = p.Start(context.Background())
	require.Error(err)
	assert.Truef(errors.Is(err, ErrAlreadyStarted), "wanted %q but got %q", ErrAlreadyStarted, err)
	stop()
	stop()
}

func TestPortal_EndToEnd(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	kc := keycloaktest.Start(t)
	kc.SetCustomClaims(map[string]interface{}{"organization": []string{"acme"}})
	kc.AddOrganization(keycloaktest.Organization{
		ID:      "8c1f1e0a-acme",
		Name:    "Acme School",
		Alias:   "acme",
		Enabled: true,
		Domains: []keycloaktest.Domain{{Name: "acme.example.com", Verified: true}},
	})
	api := startBackend(t)

	cfg := testConfig(api.URL)
	cfg.OIDC.Issuer = kc.Issuer()
	cfg.OIDC.ClientID = keycloaktest.DefaultClientID
	cfg.OIDC.ClientSecret = keycloaktest.DefaultClientSecret
	cfg.OIDC.ProviderCA = kc.CACert()
	cfg.Directory.URL = kc.Addr()
	cfg.Directory.Realm = kc.Realm()
	cfg.Directory.ClientID = keycloaktest.DefaultClientID
	cfg.Directory.ClientSecret = keycloaktest.DefaultClientSecret
	cfg.Directory.ProviderCA = kc.CACert()
	require.NoError(cfg.Validate())

	pc, err := cfg.OIDC.ProviderConfig()
	require.NoError(err)
	nav := &oidcauth.RecordingNavigator{}
	provider, err := oidcauth.NewProvider(ctx, pc, oidcauth.WithNavigator(nav))
	require.NoError(err)

	addr := session.NewMemoryAddressBar(mustParse(t, "http://127.0.0.1:8400/callback"))
	p, err := New(cfg, provider, storage.NewMemory(), WithAddressBar(addr))
	require.NoError(err)
	require.NotNil(p.Directory())
	stop, err := p.Start(ctx)
	require.NoError(err)
	defer stop()
	assert.Equal(session.ReadinessUnauthenticated, p.Readiness().Phase)

	require.NoError(provider.SigninRedirect(ctx))
	callback := follow(t, kc, nav.Last())
	addr.Replace(callback)
	_, err = provider.HandleCallback(ctx, callback)
	require.NoError(err)

	assert.True(p.Readiness().Ready)
	assert.Empty(addr.URL().Query().Get("code"))
	assert.Empty(addr.URL().Query().Get("state"))

	current := p.Organizations().Current()
	require.NotNil(current)
	assert.Equal("acme", current.ID)
	require.NotNil(current.Metadata)
	assert.Equal("8c1f1e0a-acme", current.Metadata.ID)
	assert.Equal("Acme School", current.Metadata.Name)
	assert.Equal(1, kc.ClientCredentialsExchanges())

	var out map[string]string
	require.NoError(p.API().Get(ctx, "/classes", &out))
	tk, _ := p.Tokens().Token()
	assert.Equal("Bearer "+tk, api.last().Get("Authorization"))
	assert.Equal("acme", api.last().Get(apiclient.OrganizationHeader))

	require.NoError(provider.Renew(ctx))
	assert.True(p.Readiness().Ready)
	assert.Equal("acme", p.Organizations().Current().ID)

	require.NoError(provider.SignoutRedirect(ctx))
	assert.Equal(session.ReadinessUnauthenticated, p.Readiness().Phase)
	_, ok := p.Tokens().Token()
	assert.False(ok)
	assert.Nil(p.Organizations().Current())
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

// follow requests the authorization URL and returns the authorization
// response the provider redirects to.
func follow(t *testing.T, kc *keycloaktest.Server, authURL string) *url.URL {
	t.Helper()
	require := require.New(t)
	client := &http.Client{
		Transport: kc.HTTPClient().Transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(authURL)
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusFound, resp.StatusCode)
	return mustParse(t, resp.Header.Get("Location"))
}
