// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package organization

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/webdiario/portalauth/directory"
	"github.com/webdiario/portalauth/session"
)

// MetadataSource fetches organization metadata by alias.
type MetadataSource interface {
	ResolveByAlias(ctx context.Context, alias string) (*directory.Metadata, error)
}

// InitState is the initialization state of a Resolver.
type InitState int

const (
	Uninitialized InitState = iota
	Initializing
	Initialized
)

func (s InitState) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Initialized:
		return "initialized"
	default:
		return "uninitialized"
	}
}

// Snapshot is a consistent view of a Resolver.
type Snapshot struct {
	State     InitState
	Available []Organization
	Current   *Organization
}

// Resolver tracks the organizations available to the signed in user and the
// one currently selected.
//
// Available is recomputed whenever the user's access token changes. The
// selection is made once per session, when the resolver is initialized, and
// afterwards only changes through Switch. A sign-out tears everything down
// and discards any switch or metadata fetch still in flight.
type Resolver struct {
	mu         sync.Mutex
	state      InitState
	user       *session.User
	identity   string
	generation uint64
	available  []Organization
	current    *Organization

	persisted *Persisted
	metadata  MetadataSource
	extract   extractOptions
	logger    hclog.Logger
}

var _ session.Observer = (*Resolver)(nil)

// NewResolver creates an uninitialized Resolver persisting its selection to
// p.
//
// Supported options: WithLogger, WithStrategies, WithMetadataSource
func NewResolver(p *Persisted, opt ...Option) (*Resolver, error) {
	const op = "organization.NewResolver"
	if p == nil {
		return nil, fmt.Errorf("%s: missing persisted record: %w", op, ErrNilParameter)
	}
	opts := getResolverOpts(opt...)
	logger := opts.withLogger.Named("organizations")
	ex := opts.extractOptions
	ex.withLogger = logger
	return &Resolver{
		persisted: p,
		metadata:  opts.withMetadataSource,
		extract:   ex,
		logger:    logger,
	}, nil
}

// Observe implements session.Observer. A signed in session initializes the
// resolver, or refreshes Available when the token changed, then attaches
// metadata to the selection. A signed out session tears the resolver down.
// An errored session never initializes or persists a selection.
func (r *Resolver) Observe(ctx context.Context, s session.Session) {
	switch {
	case s.Loading:
		return
	case !s.Authenticated:
		if r.InitState() != Uninitialized {
			r.Teardown()
		}
		return
	case s.Err != nil, s.User == nil:
		return
	}

	r.mu.Lock()
	state, identity := r.state, r.identity
	r.mu.Unlock()

	switch {
	case state == Uninitialized:
		if err := r.Initialize(ctx, s); err != nil {
			r.logger.Debug("initialize skipped", "error", err)
		}
	case identity != s.User.AccessToken:
		r.mu.Lock()
		r.user = s.User
		r.identity = s.User.AccessToken
		r.refreshLocked()
		r.mu.Unlock()
	}
	if err := r.AttachMetadata(ctx); err != nil {
		r.logger.Debug("metadata not attached", "error", err)
	}
}

// Initialize computes Available from s and makes the session's selection:
// an in-memory selection is kept, else a persisted one that is still
// available is adopted, else a stale persisted one is erased, else a single
// available organization is selected and persisted.
func (r *Resolver) Initialize(ctx context.Context, s session.Session) error {
	const op = "organization.(Resolver).Initialize"
	if !s.Authenticated || s.User == nil {
		return fmt.Errorf("%s: %w", op, ErrNotSignedIn)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Uninitialized {
		return fmt.Errorf("%s: %w", op, ErrAlreadyInitialized)
	}
	r.state = Initializing
	r.user = s.User
	r.identity = s.User.AccessToken
	r.available = extract(SourceOf(s.User), r.extract)
	r.logger.Debug("organizations loaded", "count", len(r.available))

	if r.current == nil {
		r.current = r.selectLocked()
	}
	r.state = Initialized
	return nil
}

func (r *Resolver) selectLocked() *Organization {
	saved, err := r.persisted.Load()
	if err != nil {
		r.logger.Error("unable to read organization record", "error", err)
	}
	if saved != nil {
		if o, ok := find(r.available, saved.ID); ok {
			if o.Metadata == nil {
				o.Metadata = saved.Metadata
			}
			r.logger.Info("organization restored", "id", o.ID)
			return &o
		}
		r.logger.Info("discarding unavailable organization", "id", saved.ID)
		if err := r.persisted.Erase(); err != nil {
			r.logger.Error("unable to erase organization record", "error", err)
		}
	}
	if len(r.available) == 1 {
		o := r.available[0].Clone()
		if err := r.persisted.Save(o); err != nil {
			r.logger.Error("unable to persist organization", "error", err)
		}
		r.logger.Info("organization selected automatically", "id", o.ID)
		return &o
	}
	return nil
}

// Refresh recomputes Available from the signed in user's claims. A selection
// that is no longer available is dropped.
func (r *Resolver) Refresh() error {
	const op = "organization.(Resolver).Refresh"
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.user == nil {
		return fmt.Errorf("%s: %w", op, ErrNotSignedIn)
	}
	r.refreshLocked()
	return nil
}

func (r *Resolver) refreshLocked() {
	r.available = extract(SourceOf(r.user), r.extract)
	r.logger.Debug("organizations refreshed", "count", len(r.available))
	if r.current == nil || len(r.available) == 0 {
		return
	}
	if _, ok := find(r.available, r.current.ID); !ok {
		r.logger.Info("selected organization no longer available", "id", r.current.ID)
		r.current = nil
		if err := r.persisted.Erase(); err != nil {
			r.logger.Error("unable to erase organization record", "error", err)
		}
	}
}

// Switch selects target. Metadata is fetched best-effort and merged into a
// copy of target, which is persisted whole and published as the selection.
// When the fetch fails the metadata target already carries is kept.
// Concurrent switches are not serialized: the last to complete wins.
func (r *Resolver) Switch(ctx context.Context, target Organization) (Organization, error) {
	const op = "organization.(Resolver).Switch"
	if target.ID == "" {
		return Organization{}, fmt.Errorf("%s: missing organization id: %w", op, ErrInvalidParameter)
	}
	r.mu.Lock()
	if r.user == nil {
		r.mu.Unlock()
		return Organization{}, fmt.Errorf("%s: %w", op, ErrNotSignedIn)
	}
	if len(r.available) > 0 {
		if _, ok := find(r.available, target.ID); !ok {
			r.mu.Unlock()
			return Organization{}, fmt.Errorf("%s: %q: %w", op, target.ID, ErrUnknownOrganization)
		}
	}
	gen := r.generation
	r.mu.Unlock()

	full := target.Clone()
	if meta := r.fetch(ctx, target.Name); meta != nil {
		full.Metadata = meta
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != gen {
		return Organization{}, fmt.Errorf("%s: %w", op, ErrStaleSession)
	}
	if err := r.persisted.Save(full); err != nil {
		return Organization{}, fmt.Errorf("%s: %w", op, err)
	}
	r.current = &full
	r.logger.Info("organization switched", "id", full.ID)
	return full.Clone(), nil
}

// AttachMetadata fetches metadata for the selection when it has none. The
// result is only attached if the same organization is still selected and
// still has no metadata.
func (r *Resolver) AttachMetadata(ctx context.Context) error {
	return r.loadMetadata(ctx, false)
}

// RefreshMetadata fetches metadata for the selection and replaces any
// metadata it had.
func (r *Resolver) RefreshMetadata(ctx context.Context) error {
	return r.loadMetadata(ctx, true)
}

func (r *Resolver) loadMetadata(ctx context.Context, overwrite bool) error {
	const op = "organization.(Resolver).loadMetadata"
	r.mu.Lock()
	if r.current == nil {
		r.mu.Unlock()
		return nil
	}
	if r.current.Metadata != nil && !overwrite {
		r.mu.Unlock()
		return nil
	}
	gen, cur := r.generation, *r.current
	r.mu.Unlock()

	meta := r.fetch(ctx, cur.Name)
	if meta == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.generation != gen:
		return fmt.Errorf("%s: %w", op, ErrStaleSession)
	case r.current == nil || r.current.ID != cur.ID:
		return nil
	case r.current.Metadata != nil && !overwrite:
		return nil
	}
	updated := r.current.Clone()
	updated.Metadata = meta
	r.current = &updated
	return nil
}

func (r *Resolver) fetch(ctx context.Context, alias string) *directory.Metadata {
	if r.metadata == nil || alias == "" {
		return nil
	}
	meta, err := r.metadata.ResolveByAlias(ctx, alias)
	if err != nil {
		r.logger.Warn("unable to fetch organization metadata", "alias", alias, "error", err)
		return nil
	}
	return meta
}

// Teardown clears the selection and Available, erases the persisted record
// and returns the resolver to the uninitialized state.
func (r *Resolver) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nil
	r.available = nil
	r.user = nil
	r.identity = ""
	r.state = Uninitialized
	r.generation++
	if err := r.persisted.Erase(); err != nil {
		r.logger.Error("unable to erase organization record", "error", err)
	}
	r.logger.Debug("organizations torn down")
}

// Current returns a copy of the selected organization, or nil.
func (r *Resolver) Current() *Organization {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	c := r.current.Clone()
	return &c
}

// Available returns a copy of the available organizations.
func (r *Resolver) Available() []Organization {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneAll(r.available)
}

// InitState returns the initialization state.
func (r *Resolver) InitState() InitState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Snapshot returns a consistent copy of the resolver state.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Snapshot{State: r.state, Available: cloneAll(r.available)}
	if r.current != nil {
		c := r.current.Clone()
		s.Current = &c
	}
	return s
}
