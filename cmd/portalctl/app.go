// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/webdiario/portalauth/config"
	"github.com/webdiario/portalauth/oidcauth"
	"github.com/webdiario/portalauth/portal"
	"github.com/webdiario/portalauth/storage"
)

// refreshTokenKey is the storage key of the refresh token that lets a later
// command resume the session.
const refreshTokenKey = "portalctl.refresh_token"

// app holds everything a command needs. It is opened per command and must
// be closed to persist the session.
type app struct {
	cfg      *config.Config
	store    storage.Storage
	provider *oidcauth.Provider
	portal   *portal.Portal
	logger   hclog.Logger
	out      io.Writer

	stop    func()
	closers []io.Closer
}

type appOptions struct {
	withNavigator oidcauth.Navigator
	withOutput    io.Writer
	withConfig    *config.Config
}

type appOption func(*appOptions)

func withNavigator(n oidcauth.Navigator) appOption {
	return func(o *appOptions) { o.withNavigator = n }
}

func withOutput(w io.Writer) appOption {
	return func(o *appOptions) { o.withOutput = w }
}

func withConfig(c *config.Config) appOption {
	return func(o *appOptions) { o.withConfig = c }
}

// openApp loads the configuration, opens storage and the provider, starts
// the portal and resumes a previously persisted session when there is one.
func openApp(ctx context.Context, flags *rootFlags, out io.Writer) (*app, error) {
	const op = "portalctl.openApp"
	opts := appOptions{withOutput: out}
	for _, o := range flags.appOpts {
		o(&opts)
	}

	loadOpts := []config.Option{}
	if flags.configFile != "" {
		loadOpts = append(loadOpts, config.WithFile(flags.configFile))
	}
	if opts.withConfig != nil {
		loadOpts = append(loadOpts, config.WithDefaults(opts.withConfig))
	}
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if flags.dataDir != "" {
		cfg.Storage.Dir = flags.dataDir
		cfg.Storage.InMemory = false
	}

	a := &app{
		cfg:    cfg,
		logger: cfg.Log.Logger("portalctl"),
		out:    opts.withOutput,
	}
	if err := a.open(ctx, opts); err != nil {
		if cerr := a.close(); cerr != nil {
			err = multierror.Append(err, cerr)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

func (a *app) open(ctx context.Context, opts appOptions) error {
	if a.cfg.Storage.InMemory {
		a.store = storage.NewMemory()
	} else {
		b, err := storage.NewBadger(a.cfg.Storage.Dir, storage.WithLogger(a.logger))
		if err != nil {
			return err
		}
		a.store = b
		a.closers = append(a.closers, b)
	}

	pc, err := a.cfg.OIDC.ProviderConfig()
	if err != nil {
		return err
	}
	nav := opts.withNavigator
	if nav == nil {
		nav = printNavigator(a.out)
	}
	if a.provider, err = oidcauth.NewProvider(ctx, pc,
		oidcauth.WithLogger(a.logger),
		oidcauth.WithNavigator(nav),
	); err != nil {
		return err
	}

	if a.portal, err = portal.New(a.cfg, a.provider, a.store, portal.WithLogger(a.logger)); err != nil {
		return err
	}
	if a.stop, err = a.portal.Start(ctx); err != nil {
		return err
	}
	return a.resume(ctx)
}

// resume signs back in with the persisted refresh token. A token the
// provider no longer accepts is discarded.
func (a *app) resume(ctx context.Context) error {
	raw, err := a.store.Get(refreshTokenKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil
	case err != nil:
		return err
	}
	if err := a.provider.Resume(ctx, string(raw)); err != nil {
		a.logger.Warn("stored session could not be resumed", "error", err)
		return a.store.Delete(refreshTokenKey)
	}
	a.logger.Debug("session resumed")
	return nil
}

// close persists the current refresh token, stops the portal and closes
// storage.
func (a *app) close() error {
	var result *multierror.Error
	if a.provider != nil && a.store != nil {
		var err error
		if rt := a.provider.RefreshToken(); rt != "" {
			err = a.store.Set(refreshTokenKey, []byte(rt))
		} else {
			err = a.store.Delete(refreshTokenKey)
		}
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	if a.stop != nil {
		a.stop()
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// printNavigator asks the user to open the URL, since a terminal has no
// address bar to navigate.
func printNavigator(w io.Writer) oidcauth.Navigator {
	return oidcauth.NavigatorFunc(func(_ context.Context, u string) error {
		_, err := fmt.Fprintf(w, "Open the following URL in your browser:\n\n    %s\n\n", u)
		return err
	})
}

// withApp opens the app, runs fn and closes the app, reporting every error.
func withApp(ctx context.Context, flags *rootFlags, out io.Writer, fn func(*app) error) error {
	a, err := openApp(ctx, flags, out)
	if err != nil {
		return err
	}
	var result *multierror.Error
	if err := fn(a); err != nil {
		result = multierror.Append(result, err)
	}
	if err := a.close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
