// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"github.com/webdiario/portalauth/metrics"
)

const (
	// DefaultWarnWindow is how long before expiry the monitor starts warning.
	DefaultWarnWindow = 300 * time.Second

	// DefaultWarnThrottle is the minimum interval between two warnings.
	DefaultWarnThrottle = 60 * time.Second
)

// NotificationKind identifies an expiry notification.
type NotificationKind int

const (
	ExpiringSoon NotificationKind = iota
	Expired
	Renewed
	RenewalFailed
)

func (k NotificationKind) String() string {
	switch k {
	case ExpiringSoon:
		return "expiring_soon"
	case Expired:
		return "expired"
	case Renewed:
		return "renewed"
	case RenewalFailed:
		return "renewal_failed"
	default:
		return "unknown"
	}
}

// Notification is a user facing message about the session lifetime.
type Notification struct {
	Kind      NotificationKind
	Message   string
	Remaining time.Duration
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc is an adapter to allow the use of ordinary functions as
// Notifiers.
type NotifierFunc func(n Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

// ExpiryMonitor warns the user before the session expires and reports
// renewal outcomes. It never modifies tokens.
type ExpiryMonitor struct {
	mu           sync.Mutex
	lastWarn     time.Time
	expiredFor   time.Time
	notifier     Notifier
	clock        clockwork.Clock
	warnWindow   time.Duration
	warnThrottle time.Duration
	logger       hclog.Logger
}

// NewExpiryMonitor creates an ExpiryMonitor delivering to n.
//
// Supported options: WithLogger, WithClock, WithWarnWindow, WithWarnThrottle
func NewExpiryMonitor(n Notifier, opt ...Option) (*ExpiryMonitor, error) {
	const op = "session.NewExpiryMonitor"
	if n == nil {
		return nil, fmt.Errorf("%s: missing notifier: %w", op, ErrNilParameter)
	}
	opts := getExpiryOpts(opt...)
	return &ExpiryMonitor{
		notifier:     n,
		clock:        opts.withClock,
		warnWindow:   opts.withWarnWindow,
		warnThrottle: opts.withWarnThrottle,
		logger:       opts.withLogger.Named("expiry"),
	}, nil
}

// Check inspects the expiry of s. A session expiring within the warn window
// produces an ExpiringSoon notification at most once per throttle interval.
// An expired session produces one Expired notification per expiry instant.
func (m *ExpiryMonitor) Check(s Session) {
	if !s.Authenticated || s.User == nil {
		return
	}
	if s.User.ExpiresAt.IsZero() {
		m.logger.Debug("session has no expiry information")
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	remaining := s.User.ExpiresAt.Sub(now).Truncate(time.Second)
	switch {
	case remaining > 0 && remaining < m.warnWindow:
		if !m.lastWarn.IsZero() && now.Sub(m.lastWarn) <= m.warnThrottle {
			return
		}
		m.lastWarn = now
		m.logger.Info("session expiring soon", "remaining", remaining)
		m.emit(Notification{
			Kind:      ExpiringSoon,
			Message:   fmt.Sprintf("Your session expires in %s. Renewing automatically...", formatRemaining(remaining)),
			Remaining: remaining,
		})
	case remaining <= 0:
		if m.expiredFor.Equal(s.User.ExpiresAt) {
			return
		}
		m.expiredFor = s.User.ExpiresAt
		m.logger.Info("session expired")
		m.emit(Notification{
			Kind:    Expired,
			Message: "Your session expired. Redirecting to sign in...",
		})
	}
}

// Watch reports renewal outcomes from src until the returned stop function is
// called.
func (m *ExpiryMonitor) Watch(src EventSource) (stop func(), err error) {
	const op = "session.(ExpiryMonitor).Watch"
	if src == nil {
		return nil, fmt.Errorf("%s: missing event source: %w", op, ErrNilParameter)
	}
	loaded, err := src.AddUserLoaded(func(*User) {
		m.logger.Debug("session renewed")
		m.emit(Notification{Kind: Renewed, Message: "Session renewed automatically"})
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	unloaded, err := src.AddUserUnloaded(func() {
		m.logger.Warn("session renewal failed")
		m.emit(Notification{Kind: RenewalFailed, Message: "Unable to renew the session. Redirecting to sign in..."})
	})
	if err != nil {
		src.Remove(loaded)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return func() {
		src.Remove(loaded)
		src.Remove(unloaded)
	}, nil
}

// Run checks the capability's session on every interval tick until ctx is
// done.
func (m *ExpiryMonitor) Run(ctx context.Context, c Capability, interval time.Duration) error {
	const op = "session.(ExpiryMonitor).Run"
	if c == nil {
		return fmt.Errorf("%s: missing capability: %w", op, ErrNilParameter)
	}
	if interval <= 0 {
		return fmt.Errorf("%s: interval must be positive: %w", op, ErrInvalidParameter)
	}
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()
	m.Check(c.Session())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			m.Check(c.Session())
		}
	}
}

func (m *ExpiryMonitor) emit(n Notification) {
	metrics.ExpiryNotifications.WithLabelValues(n.Kind.String()).Inc()
	m.notifier.Notify(n)
}

func formatRemaining(d time.Duration) string {
	minutes := int(d / time.Minute)
	seconds := int((d % time.Minute) / time.Second)
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
