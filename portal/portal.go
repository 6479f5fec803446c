// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package portal wires the session, token, organization, directory and API
// components into one unit driven by an OIDC capability.
package portal

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/webdiario/portalauth/apiclient"
	"github.com/webdiario/portalauth/config"
	"github.com/webdiario/portalauth/directory"
	"github.com/webdiario/portalauth/organization"
	"github.com/webdiario/portalauth/session"
	"github.com/webdiario/portalauth/storage"
	"github.com/webdiario/portalauth/token"
)

// Portal is the composition root. It keeps the token store and organization
// selection in step with the capability's sessions and exposes a backend
// client that carries both.
type Portal struct {
	cfg       *config.Config
	cap       session.Capability
	tokens    *token.Store
	persisted *organization.Persisted
	directory *directory.Directory
	resolver  *organization.Resolver
	watcher   *session.Watcher
	expiry    *session.ExpiryMonitor
	recoverer *session.Recoverer
	api       *apiclient.Client
	gate      session.Gate
	logger    hclog.Logger

	mu      sync.Mutex
	started bool
}

// New creates a Portal. The directory is only created when cfg enables it.
//
// Supported options: WithLogger, WithClock, WithNotifier, WithAddressBar,
// WithMetadataSource
func New(cfg *config.Config, c session.Capability, s storage.Storage, opt ...Option) (*Portal, error) {
	const op = "portal.New"
	switch {
	case cfg == nil:
		return nil, fmt.Errorf("%s: missing config: %w", op, ErrNilParameter)
	case c == nil:
		return nil, fmt.Errorf("%s: missing capability: %w", op, ErrNilParameter)
	case s == nil:
		return nil, fmt.Errorf("%s: missing storage: %w", op, ErrNilParameter)
	}
	opts := getPortalOpts(opt...)
	logger := opts.withLogger

	tokens, err := token.NewStore(s, token.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	persisted, err := organization.NewPersisted(s, organization.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p := &Portal{
		cfg:       cfg,
		cap:       c,
		tokens:    tokens,
		persisted: persisted,
		gate:      session.Gate{Tokens: tokens},
		logger:    logger.Named("portal"),
	}

	metadata := opts.withMetadataSource
	if metadata == nil && cfg.Directory.Enabled() {
		dc, err := cfg.Directory.DirectoryConfig()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		dirOpts := append(cfg.Directory.DirectoryOptions(), directory.WithLogger(logger), directory.WithClock(opts.withClock))
		p.directory, err = directory.New(dc, dirOpts...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		metadata = p.directory
	}

	resolverOpts := []organization.Option{organization.WithLogger(logger)}
	if metadata != nil {
		resolverOpts = append(resolverOpts, organization.WithMetadataSource(metadata))
	}
	if p.resolver, err = organization.NewResolver(persisted, resolverOpts...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if p.recoverer, err = session.NewRecoverer(s, c,
		session.WithLogger(logger),
		session.WithStateKeys(tokens.Key(), persisted.Key()),
	); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if p.watcher, err = session.NewWatcher(tokens,
		session.WithLogger(logger),
		session.WithAddressBar(opts.withAddressBar),
		session.WithObservers(p.resolver, p.recoverer),
	); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	notifier := opts.withNotifier
	if notifier == nil {
		notifier = session.NotifierFunc(func(n session.Notification) {
			p.logger.Info(n.Message, "kind", n.Kind.String())
		})
	}
	expiryOpts := append(cfg.Session.ExpiryOptions(), session.WithLogger(logger), session.WithClock(opts.withClock))
	if p.expiry, err = session.NewExpiryMonitor(notifier, expiryOpts...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	apiOpts := append(cfg.API.ClientOptions(), apiclient.WithLogger(logger))
	if p.api, err = apiclient.NewClient(cfg.API.BaseURL, tokens, persisted, apiOpts...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Start subscribes to the capability, replays its current session and runs
// the expiry checks until the returned stop function is called or ctx is
// done. A Portal can only be started once.
func (p *Portal) Start(ctx context.Context) (stop func(), err error) {
	const op = "portal.(Portal).Start"
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", op, ErrAlreadyStarted)
	}
	p.started = true
	p.mu.Unlock()

	stopWatch, err := p.expiry.Watch(p.cap.Events())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	unsubscribe := p.cap.Subscribe(func(s session.Session) {
		p.Observe(ctx, s)
	})
	p.Observe(ctx, p.cap.Session())

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.expiry.Run(runCtx, p.cap, p.cfg.Session.CheckInterval); err != nil {
			p.logger.Error("expiry checks stopped", "error", err)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			stopWatch()
			cancel()
			<-done
		})
	}, nil
}

// Observe applies one session: the token store, organizations and recovery
// follow it, and its expiry is checked.
func (p *Portal) Observe(ctx context.Context, s session.Session) session.Phase {
	phase := p.watcher.Observe(ctx, s)
	p.expiry.Check(s)
	return phase
}

// Readiness reports whether the portal can render authenticated content.
// A ready session whose token has not reached the token store yet is
// reported as loading.
func (p *Portal) Readiness() session.Readiness {
	return p.gate.Evaluate(p.cap.Session())
}

// API returns the backend client.
func (p *Portal) API() *apiclient.Client {
	return p.api
}

// Organizations returns the organization resolver.
func (p *Portal) Organizations() *organization.Resolver {
	return p.resolver
}

// Tokens returns the token store.
func (p *Portal) Tokens() *token.Store {
	return p.tokens
}

// Directory returns the organization directory, or nil when it is not
// configured.
func (p *Portal) Directory() *directory.Directory {
	return p.directory
}

// Recoverer returns the component that recovers from corrupted sign-in
// state.
func (p *Portal) Recoverer() *session.Recoverer {
	return p.recoverer
}

// Capability returns the OIDC capability the portal follows.
func (p *Portal) Capability() session.Capability {
	return p.cap
}
