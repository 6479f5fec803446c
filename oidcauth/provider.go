// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidcauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	sdkHttp "github.com/webdiario/portalauth/sdk/http"
	"github.com/webdiario/portalauth/session"
	"golang.org/x/oauth2"
)

// Provider is the portal's OIDC client. It runs the authorization code flow
// (with PKCE) against a discovered provider and publishes the result as
// session.Session values.
type Provider struct {
	config     *Config
	client     *http.Client
	provider   *oidc.Provider
	verifier   *oidc.IDTokenVerifier
	oauth      oauth2.Config
	endSession string
	events     *session.Events
	logger     hclog.Logger
	navigator  Navigator
	clock      clockwork.Clock
	stateTTL   time.Duration

	mu          sync.Mutex
	pending     map[string]*signinState
	current     session.Session
	token       *oauth2.Token
	rawIDToken  string
	subscribers map[int]func(session.Session)
	next        int
}

var (
	_ session.Capability    = (*Provider)(nil)
	_ session.StateResetter = (*Provider)(nil)
	_ session.PendingSigner = (*Provider)(nil)
)

// NewProvider creates a Provider. Initializing the provider includes making
// an http request to the issuer for discovery.
//
// Supported options: WithLogger, WithNavigator, WithClock, WithStateTTL
func NewProvider(ctx context.Context, c *Config, opt ...Option) (*Provider, error) {
	const op = "oidcauth.NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}
	opts := getProviderOpts(opt...)

	client, err := c.HTTPClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	provider, err := oidc.NewProvider(sdkHttp.ClientContext(ctx, client), c.Issuer) // makes http req to issuer for discovery
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create provider: %w", op, err)
	}

	var discovered struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&discovered); err != nil {
		return nil, fmt.Errorf("%s: unable to read discovery document: %w", op, err)
	}

	p := &Provider{
		config:   c,
		client:   client,
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{
			ClientID:             c.ClientID,
			SupportedSigningAlgs: algStrings(c.SupportedSigningAlgs),
		}),
		oauth: oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: string(c.ClientSecret),
			RedirectURL:  c.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       c.scopes(),
		},
		endSession:  discovered.EndSessionEndpoint,
		events:      session.NewEvents(),
		logger:      opts.withLogger.Named("oidcauth"),
		navigator:   opts.withNavigator,
		clock:       opts.withClock,
		stateTTL:    opts.withStateTTL,
		pending:     map[string]*signinState{},
		subscribers: map[int]func(session.Session){},
	}
	return p, nil
}

// Session implements session.Capability.
func (p *Provider) Session() session.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Subscribe implements session.Capability. Subscribers are called
// synchronously, in registration order, after every state change.
func (p *Provider) Subscribe(fn func(session.Session)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.next
	p.next++
	p.subscribers[i] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subscribers, i)
	}
}

// Events implements session.Capability.
func (p *Provider) Events() session.EventSource {
	return p.events
}

// AuthURL starts a sign-in and returns the provider URL the user agent must
// open. The state, nonce and PKCE verifier are kept until the authorization
// response arrives or the state expires.
func (p *Provider) AuthURL(ctx context.Context) (string, error) {
	const op = "oidcauth.(Provider).AuthURL"
	now := p.clock.Now()
	st, err := newSigninState(now, p.stateTTL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	p.mu.Lock()
	p.pruneLocked(now)
	p.pending[st.id] = st
	p.mu.Unlock()

	authOpts := []oauth2.AuthCodeOption{
		oidc.Nonce(st.nonce),
		oauth2.S256ChallengeOption(st.verifier),
	}
	if locales := p.config.uiLocales(); locales != "" {
		authOpts = append(authOpts, oauth2.SetAuthURLParam("ui_locales", locales))
	}
	return p.oauth.AuthCodeURL(st.id, authOpts...), nil
}

// SigninRedirect implements session.Capability by handing AuthURL to the
// configured Navigator.
func (p *Provider) SigninRedirect(ctx context.Context) error {
	const op = "oidcauth.(Provider).SigninRedirect"
	authURL, err := p.AuthURL(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := p.navigate(ctx, authURL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// HandleCallback completes a sign-in from the authorization response in
// callback. The code is exchanged, the id_token and its nonce verified and
// the userinfo loaded, then a ready session is published and UserLoaded
// emitted. Provider errors and mismatched states publish an errored session.
func (p *Provider) HandleCallback(ctx context.Context, callback *url.URL) (*session.User, error) {
	const op = "oidcauth.(Provider).HandleCallback"
	if callback == nil {
		return nil, fmt.Errorf("%s: callback URL is nil: %w", op, ErrNilParameter)
	}
	q := callback.Query()

	p.mu.Lock()
	st, ok := p.pending[q.Get("state")]
	delete(p.pending, q.Get("state"))
	p.mu.Unlock()

	if e := q.Get("error"); e != "" {
		return nil, p.fail(fmt.Errorf("%s: %s: %s: %w", op, e, q.Get("error_description"), ErrProviderError))
	}
	switch {
	case !ok:
		return nil, p.fail(fmt.Errorf("%s: no matching state found: %w", op, session.ErrStateMismatch))
	case st.isExpired(p.clock.Now()):
		return nil, p.fail(fmt.Errorf("%s: authentication state has expired: %w", op, session.ErrStateMismatch))
	case q.Get("code") == "":
		return nil, p.fail(fmt.Errorf("%s: %w", op, ErrMissingCode))
	}

	p.publish(session.Session{Loading: true})

	ctx = sdkHttp.ClientContext(ctx, p.client)
	tok, err := p.oauth.Exchange(ctx, q.Get("code"), oauth2.VerifierOption(st.verifier))
	if err != nil {
		return nil, p.fail(fmt.Errorf("%s: unable to exchange auth code with provider: %w", op, err))
	}
	u, rawIDToken, err := p.userFromToken(ctx, tok, st.nonce, nil)
	if err != nil {
		return nil, p.fail(fmt.Errorf("%s: %w", op, err))
	}

	p.mu.Lock()
	p.token = tok
	p.rawIDToken = rawIDToken
	p.mu.Unlock()

	p.logger.Debug("signed in", "expires_at", u.ExpiresAt)
	p.publish(session.Session{Authenticated: true, User: u})
	p.events.UserLoaded(u)
	return u, nil
}

// Renew silently renews the user with the refresh token. On success a ready
// session is published and UserLoaded emitted; on failure the user is
// unloaded and an unauthenticated session published.
func (p *Provider) Renew(ctx context.Context) error {
	const op = "oidcauth.(Provider).Renew"
	p.mu.Lock()
	tok, prev := p.token, p.current.User
	p.mu.Unlock()

	if tok == nil || tok.RefreshToken == "" {
		p.unload()
		return fmt.Errorf("%s: %w: %w", op, ErrNoRefreshToken, session.ErrTokenExpired)
	}
	return p.refresh(ctx, tok.RefreshToken, prev)
}

// Resume signs the user back in from a refresh token kept by a previous
// process.
func (p *Provider) Resume(ctx context.Context, refreshToken string) error {
	const op = "oidcauth.(Provider).Resume"
	if refreshToken == "" {
		return fmt.Errorf("%s: refresh token is empty: %w", op, ErrInvalidParameter)
	}
	if err := p.refresh(ctx, refreshToken, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RefreshToken returns the current refresh token, if any.
func (p *Provider) RefreshToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == nil {
		return ""
	}
	return p.token.RefreshToken
}

func (p *Provider) refresh(ctx context.Context, refreshToken string, prev *session.User) error {
	const op = "oidcauth.(Provider).refresh"
	ctx = sdkHttp.ClientContext(ctx, p.client)
	tok, err := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		p.logger.Warn("renewal failed", "error", err)
		p.unload()
		return fmt.Errorf("%s: unable to refresh token: %w: %w", op, err, session.ErrTokenExpired)
	}
	u, rawIDToken, err := p.userFromToken(ctx, tok, "", prev)
	if err != nil {
		p.unload()
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	p.token = tok
	if rawIDToken != "" {
		p.rawIDToken = rawIDToken
	}
	p.mu.Unlock()

	p.logger.Debug("renewed", "expires_at", u.ExpiresAt)
	p.publish(session.Session{Authenticated: true, User: u})
	p.events.UserLoaded(u)
	return nil
}

// SignoutRedirect implements session.Capability. The local user is cleared
// and UserUnloaded emitted, then the end session endpoint is opened when the
// provider advertises one.
func (p *Provider) SignoutRedirect(ctx context.Context) error {
	const op = "oidcauth.(Provider).SignoutRedirect"
	p.mu.Lock()
	idTokenHint := p.rawIDToken
	p.mu.Unlock()

	p.unload()

	if p.endSession == "" {
		return nil
	}
	logoutURL, err := p.LogoutURL(idTokenHint)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := p.navigate(ctx, logoutURL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// LogoutURL builds the end session URL. It returns "" when the provider does
// not advertise an end session endpoint.
func (p *Provider) LogoutURL(idTokenHint string) (string, error) {
	const op = "oidcauth.(Provider).LogoutURL"
	if p.endSession == "" {
		return "", nil
	}
	u, err := url.Parse(p.endSession)
	if err != nil {
		return "", fmt.Errorf("%s: invalid end session endpoint %q: %w", op, p.endSession, err)
	}
	q := u.Query()
	q.Set("client_id", p.config.ClientID)
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	if p.config.PostLogoutRedirectURL != "" {
		q.Set("post_logout_redirect_uri", p.config.PostLogoutRedirectURL)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ResetState implements session.StateResetter. Pending sign-ins and tokens
// are discarded.
func (p *Provider) ResetState() {
	p.mu.Lock()
	p.pending = map[string]*signinState{}
	cur := p.current
	p.mu.Unlock()

	clean := !cur.Loading && !cur.Authenticated && cur.Err == nil && cur.User == nil

	if !clean {
		p.unload()
	}
}

// PendingSignin implements session.PendingSigner.
func (p *Provider) PendingSignin() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pruneLocked(p.clock.Now())
	return len(p.pending) > 0
}

// userFromToken verifies the id_token in tok and builds the user. A refresh
// response without an id_token keeps the claims of prev.
func (p *Provider) userFromToken(ctx context.Context, tok *oauth2.Token, nonce string, prev *session.User) (*session.User, string, error) {
	const op = "oidcauth.(Provider).userFromToken"
	rawIDToken, _ := tok.Extra("id_token").(string)

	claims := session.Claims{}
	subject := ""
	switch {
	case rawIDToken != "":
		idToken, err := p.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return nil, "", fmt.Errorf("%s: id_token failed verification: %w", op, err)
		}
		if nonce != "" && idToken.Nonce != nonce {
			return nil, "", fmt.Errorf("%s: %w", op, ErrInvalidNonce)
		}
		if err := idToken.Claims(&claims); err != nil {
			return nil, "", fmt.Errorf("%s: unable to decode id_token claims: %w", op, err)
		}
		subject = idToken.Subject
	case prev != nil:
		for k, v := range prev.Claims {
			claims[k] = v
		}
		subject, _ = claims["sub"].(string)
	default:
		return nil, "", fmt.Errorf("%s: %w", op, ErrMissingIDToken)
	}

	profile := session.Claims{}
	for k, v := range claims {
		profile[k] = v
	}
	if p.config.LoadUserInfo && p.provider.UserInfoEndpoint() != "" {
		info, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
		if err != nil {
			return nil, "", fmt.Errorf("%s: unable to load userinfo: %w", op, err)
		}
		if subject != "" && info.Subject != subject {
			return nil, "", fmt.Errorf("%s: %w", op, ErrSubjectMismatch)
		}
		extra := session.Claims{}
		if err := info.Claims(&extra); err != nil {
			return nil, "", fmt.Errorf("%s: unable to decode userinfo claims: %w", op, err)
		}
		for k, v := range extra {
			profile[k] = v
		}
	}

	return &session.User{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.Expiry,
		Profile:     profile,
		Claims:      claims,
	}, rawIDToken, nil
}

// fail publishes an errored session and returns err.
func (p *Provider) fail(err error) error {
	p.logger.Error("sign-in failed", "error", err)
	p.mu.Lock()
	p.token = nil
	p.rawIDToken = ""
	p.mu.Unlock()
	p.publish(session.Session{Err: err})
	return err
}

// unload clears the user, publishes an unauthenticated session and emits
// UserUnloaded when a user was loaded.
func (p *Provider) unload() {
	p.mu.Lock()
	hadUser := p.current.User != nil
	p.token = nil
	p.rawIDToken = ""
	p.mu.Unlock()

	p.publish(session.Session{})
	if hadUser {
		p.events.UserUnloaded()
	}
}

func (p *Provider) publish(s session.Session) {
	p.mu.Lock()
	p.current = s
	subs := make([]func(session.Session), 0, len(p.subscribers))
	for i := 0; i < p.next; i++ {
		if fn, ok := p.subscribers[i]; ok {
			subs = append(subs, fn)
		}
	}
	p.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

func (p *Provider) navigate(ctx context.Context, target string) error {
	if p.navigator == nil {
		return fmt.Errorf("no navigator configured: %w", ErrNavigationFailure)
	}
	if err := p.navigator.Navigate(ctx, target); err != nil {
		return fmt.Errorf("%w: %w", ErrNavigationFailure, err)
	}
	return nil
}

func (p *Provider) pruneLocked(now time.Time) {
	for k, st := range p.pending {
		if st.isExpired(now) {
			delete(p.pending, k)
		}
	}
}
