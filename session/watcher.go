// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/webdiario/portalauth/metrics"
	"github.com/webdiario/portalauth/token"
)

// TokenSink receives the bearer token of the current session.
type TokenSink interface {
	Set(token string) error
	Clear() error
}

// Observer is notified of every session the Watcher acts on.
type Observer interface {
	Observe(ctx context.Context, s Session)
}

// ObserverFunc is an adapter to allow the use of ordinary functions as
// Observers.
type ObserverFunc func(ctx context.Context, s Session)

// Observe calls f(ctx, s).
func (f ObserverFunc) Observe(ctx context.Context, s Session) { f(ctx, s) }

// Watcher keeps the token sink in step with the capability's sessions.
//
// Only a change of token value writes the sink, and an errored session or a
// sign-out clears it before any observer runs.
type Watcher struct {
	mu        sync.Mutex
	lastSeen  string
	tokens    TokenSink
	addr      AddressBar
	observers []Observer
	logger    hclog.Logger
}

// NewWatcher creates a Watcher writing to tokens.
//
// Supported options: WithLogger, WithAddressBar, WithObservers
func NewWatcher(tokens TokenSink, opt ...Option) (*Watcher, error) {
	const op = "session.NewWatcher"
	if tokens == nil {
		return nil, fmt.Errorf("%s: missing token sink: %w", op, ErrNilParameter)
	}
	opts := getWatcherOpts(opt...)
	w := &Watcher{
		tokens:    tokens,
		addr:      opts.withAddressBar,
		observers: opts.withObservers,
		logger:    opts.withLogger.Named("watcher"),
	}
	// a token restored from storage is tracked so that a sign-out clears it
	if src, ok := tokens.(token.Source); ok {
		w.lastSeen, _ = src.Token()
	}
	return w, nil
}

// AddObserver registers o. Observers run in registration order.
func (w *Watcher) AddObserver(o Observer) {
	if o == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observers = append(w.observers, o)
}

// LastSeen returns the last token written to the sink.
func (w *Watcher) LastSeen() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

// Observe applies s and returns its phase. Loading sessions are ignored and
// not forwarded.
func (w *Watcher) Observe(ctx context.Context, s Session) Phase {
	phase := PhaseOf(s)
	metrics.SessionTransitions.WithLabelValues(phase.String()).Inc()
	if phase == PhaseLoading {
		return phase
	}

	w.mu.Lock()
	switch phase {
	case PhaseErroring:
		w.logger.Warn("session error, clearing token", "error", s.Err)
		w.clearLocked()
	case PhaseUnauthenticated:
		if w.lastSeen != "" {
			w.logger.Debug("signed out, clearing token")
			w.clearLocked()
		}
	case PhaseReady:
		tk, _ := s.Token()
		if tk != w.lastSeen {
			if err := w.tokens.Set(tk); err != nil {
				w.logger.Error("unable to persist token", "error", err)
			}
			w.lastSeen = tk
			w.logger.Debug("token synchronized")
			w.cleanAddressLocked()
		}
	}
	observers := append([]Observer(nil), w.observers...)
	w.mu.Unlock()

	for _, o := range observers {
		o.Observe(ctx, s)
	}
	return phase
}

func (w *Watcher) clearLocked() {
	if err := w.tokens.Clear(); err != nil {
		w.logger.Error("unable to clear token", "error", err)
	}
	w.lastSeen = ""
}

func (w *Watcher) cleanAddressLocked() {
	if w.addr == nil {
		return
	}
	if clean, ok := StripAuthParams(w.addr.URL()); ok {
		w.addr.Replace(clean)
		w.logger.Debug("removed callback parameters from address")
	}
}
