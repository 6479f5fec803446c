// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/webdiario/portalauth/storage"
)

// ErrorClass groups capability errors by the recovery they need.
type ErrorClass int

const (
	ErrorClassOther ErrorClass = iota
	ErrorClassStateMismatch
	ErrorClassTokenExpired
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorClassStateMismatch:
		return "state_mismatch"
	case ErrorClassTokenExpired:
		return "token_expired"
	default:
		return "other"
	}
}

// ClassifyError returns the class of a capability error. Errors that do not
// wrap ErrStateMismatch or ErrTokenExpired are classified by their message.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassOther
	}
	switch {
	case errors.Is(err, ErrStateMismatch):
		return ErrorClassStateMismatch
	case errors.Is(err, ErrTokenExpired):
		return ErrorClassTokenExpired
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "state"):
		return ErrorClassStateMismatch
	case strings.Contains(msg, "token"), strings.Contains(msg, "expired"):
		return ErrorClassTokenExpired
	default:
		return ErrorClassOther
	}
}

// Recoverer discards corrupted local sign-in state and starts a new sign-in.
type Recoverer struct {
	mu      sync.Mutex
	lastErr error
	storage storage.Storage
	keys    []string
	cap     Capability
	logger  hclog.Logger
}

// NewRecoverer creates a Recoverer which erases its state keys from s and
// signs in again with c.
//
// Supported options: WithLogger, WithStateKeys
func NewRecoverer(s storage.Storage, c Capability, opt ...Option) (*Recoverer, error) {
	const op = "session.NewRecoverer"
	switch {
	case s == nil:
		return nil, fmt.Errorf("%s: missing storage: %w", op, ErrNilParameter)
	case c == nil:
		return nil, fmt.Errorf("%s: missing capability: %w", op, ErrNilParameter)
	}
	opts := getRecovererOpts(opt...)
	return &Recoverer{
		storage: s,
		keys:    opts.withStateKeys,
		cap:     c,
		logger:  opts.withLogger.Named("recoverer"),
	}, nil
}

// Handle recovers from err when it is a state mismatch or an expired token:
// local state is cleared and a new sign-in is started. Other errors are left
// to the caller. The class of err is returned.
func (r *Recoverer) Handle(ctx context.Context, err error) (ErrorClass, error) {
	const op = "session.(Recoverer).Handle"
	class := ClassifyError(err)
	if class == ErrorClassOther {
		return class, nil
	}
	r.logger.Warn("recovering from sign-in error", "class", class.String(), "error", err)
	var result *multierror.Error
	if err := r.ClearState(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := r.cap.SigninRedirect(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: unable to start sign-in: %w", op, err))
	}
	return class, result.ErrorOrNil()
}

// Observe handles each distinct session error once.
func (r *Recoverer) Observe(ctx context.Context, s Session) {
	if s.Err == nil {
		return
	}
	r.mu.Lock()
	if r.lastErr == s.Err {
		r.mu.Unlock()
		return
	}
	r.lastErr = s.Err
	r.mu.Unlock()
	if _, err := r.Handle(ctx, s.Err); err != nil {
		r.logger.Error("recovery failed", "error", err)
	}
}

// ClearState erases the state keys and resets the capability's local sign-in
// state when supported.
func (r *Recoverer) ClearState() error {
	const op = "session.(Recoverer).ClearState"
	var result *multierror.Error
	for _, k := range r.keys {
		if err := r.storage.Delete(k); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: unable to erase %q: %w", op, k, err))
		}
	}
	if rs, ok := r.cap.(StateResetter); ok {
		rs.ResetState()
	}
	r.logger.Debug("local sign-in state cleared")
	return result.ErrorOrNil()
}

// HasCorruptedState reports a sign-in that was started but has no user.
func (r *Recoverer) HasCorruptedState() bool {
	ps, ok := r.cap.(PendingSigner)
	if !ok {
		return false
	}
	return ps.PendingSignin() && r.cap.Session().User == nil
}
