// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"github.com/webdiario/portalauth/session"
)

const defaultLoginTimeout = 2 * time.Minute

const successHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Signed in</title></head>
<body><p>Signed in. You can close this window and return to the terminal.</p></body>
</html>
`

const failureHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Sign-in failed</title></head>
<body><p>Sign-in failed. Return to the terminal for details.</p></body>
</html>
`

func newLoginCmd(flags *rootFlags) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with the identity provider",
		Long: `Sign in with the identity provider.

A callback server is started on the host and port of oidc.redirect_url and the
authorization URL is printed. The command waits until the browser returns to
the callback or the timeout expires.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, cmd.OutOrStdout(), func(a *app) error {
				if a.portal.Readiness().Ready {
					fmt.Fprintln(a.out, "Already signed in.")
					return nil
				}
				ln, path, err := listenCallback(a.cfg.OIDC.RedirectURL)
				if err != nil {
					return err
				}
				return login(cmd.Context(), a, ln, path, timeout)
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultLoginTimeout, "how long to wait for the browser to return")
	return cmd
}

// listenCallback listens on the loopback address of the redirect URL.
func listenCallback(redirectURL string) (net.Listener, string, error) {
	const op = "portalctl.listenCallback"
	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	if u.Scheme != "http" || u.Port() == "" {
		return nil, "", fmt.Errorf("%s: redirect URL %q must be http with an explicit port", op, redirectURL)
	}
	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return ln, path, nil
}

// login serves the callback on ln, starts the sign-in and waits for it to
// complete.
func login(ctx context.Context, a *app, ln net.Listener, path string, timeout time.Duration) error {
	const op = "portalctl.login"
	done := make(chan error, 1)
	srv := &http.Server{
		Handler:           callbackHandler(a, path, done),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srvCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvCh <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := a.provider.SigninRedirect(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	case err := <-srvCh:
		return fmt.Errorf("%s: callback server: %w", op, err)
	case <-timer.C:
		abandon(a)
		return fmt.Errorf("%s: timed out waiting for the identity provider", op)
	case <-ctx.Done():
		abandon(a)
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}

	s := a.provider.Session()
	fmt.Fprintf(a.out, "Signed in as %s.\n", displayName(s.User))
	if o := a.portal.Organizations().Current(); o != nil {
		fmt.Fprintf(a.out, "Organization: %s (%s)\n", o.Label(), o.ID)
	}
	return nil
}

// abandon discards a sign-in the browser never completed.
func abandon(a *app) {
	r := a.portal.Recoverer()
	if !r.HasCorruptedState() {
		return
	}
	if err := r.ClearState(); err != nil {
		a.logger.Error("unable to clear sign-in state", "error", err)
	}
}

// callbackHandler completes the sign-in from the authorization response and
// reports the outcome on done.
func callbackHandler(a *app, path string, done chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != path {
			http.NotFound(w, req)
			return
		}
		_, err := a.provider.HandleCallback(req.Context(), req.URL)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err != nil {
			a.logger.Error("sign-in failed", "error", err)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, failureHTML)
		} else {
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, successHTML)
		}
		select {
		case done <- err:
		default:
		}
	})
}

// displayName picks the most readable identifier from the user's profile.
func displayName(u *session.User) string {
	if u == nil {
		return "unknown user"
	}
	for _, k := range []string{"preferred_username", "email", "name", "sub"} {
		if v, ok := u.Profile[k].(string); ok && v != "" {
			return v
		}
	}
	return "unknown user"
}
