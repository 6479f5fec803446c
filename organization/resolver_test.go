// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package organization

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webdiario/portalauth/directory"
	"github.com/webdiario/portalauth/session"
	"github.com/webdiario/portalauth/storage"
)

// fakeDirectory answers ResolveByAlias from a map. When gate is set, lookups
// block until it is closed.
type fakeDirectory struct {
	mu      sync.Mutex
	byAlias map[string]*directory.Metadata
	calls   int
	err     error
	gate    chan struct{}
	started chan struct{}
}

func (f *fakeDirectory) ResolveByAlias(_ context.Context, alias string) (*directory.Metadata, error) {
	f.mu.Lock()
	f.calls++
	gate, started := f.gate, f.started
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.byAlias[alias].Clone(), nil
}

func (f *fakeDirectory) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func signedIn(token string, orgs ...string) session.Session {
	profile := session.Claims{}
	if orgs != nil {
		l := make([]interface{}, 0, len(orgs))
		for _, o := range orgs {
			l = append(l, o)
		}
		profile["organization"] = l
	}
	return session.Session{Authenticated: true, User: &session.User{AccessToken: token, Profile: profile}}
}

func testResolver(t *testing.T, opt ...Option) (*Resolver, *Persisted, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	p, err := NewPersisted(mem)
	require.NoError(t, err)
	r, err := NewResolver(p, opt...)
	require.NoError(t, err)
	return r, p, mem
}

func TestNewResolver(t *testing.T) {
	t.Parallel()
	_, err := NewResolver(nil)
	assert.Truef(t, errors.Is(err, ErrNilParameter), "wanted %q but got %q", ErrNilParameter, err)
}

func TestResolver_SingleOrganizationAutoSelected(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	r, p, _ := testResolver(t)

	r.Observe(ctx, signedIn("T", "acme"))
	assert.Equal(Initialized, r.InitState())
	assert.Equal([]Organization{FromName("acme")}, r.Available())
	require.NotNil(r.Current())
	assert.Equal("acme", r.Current().ID)

	saved, err := p.Load()
	require.NoError(err)
	require.NotNil(saved)
	assert.Equal("acme", saved.ID)
}

func TestResolver_StalePersistedSelectionDiscarded(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	r, p, _ := testResolver(t)
	require.NoError(p.Save(FromName("old")))

	r.Observe(ctx, signedIn("T", "a", "b"))
	assert.Nil(r.Current())
	assert.Len(r.Available(), 2)
	saved, err := p.Load()
	require.NoError(err)
	assert.Nil(saved)
}

func TestResolver_PersistedSelectionAdopted(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	r, p, _ := testResolver(t)
	saved := FromName("b")
	saved.Metadata = &directory.Metadata{ID: "9a2d", Name: "B"}
	require.NoError(p.Save(saved))

	r.Observe(ctx, signedIn("T", "a", "b"))
	cur := r.Current()
	require.NotNil(cur)
	assert.Equal("b", cur.ID)
	require.NotNil(cur.Metadata)
	assert.Equal("9a2d", cur.Metadata.ID)
}

func TestResolver_NoSelectionWithSeveral(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	r, p, _ := testResolver(t)
	r.Observe(context.Background(), signedIn("T", "a", "b"))
	assert.Nil(r.Current())
	saved, _ := p.Load()
	assert.Nil(saved)
}

func TestResolver_InitializeOnce(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	r, _, _ := testResolver(t)

	err := r.Initialize(ctx, session.Session{})
	assert.Truef(errors.Is(err, ErrNotSignedIn), "wanted %q but got %q", ErrNotSignedIn, err)

	require.NoError(r.Initialize(ctx, signedIn("T", "a", "b")))
	err = r.Initialize(ctx, signedIn("T", "a"))
	assert.Truef(errors.Is(err, ErrAlreadyInitialized), "wanted %q but got %q", ErrAlreadyInitialized, err)
	assert.Len(r.Available(), 2)
}

func TestResolver_NewTokenRefreshesAvailable(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	r, p, _ := testResolver(t)

	r.Observe(ctx, signedIn("T1", "a", "b"))
	_, err := r.Switch(ctx, FromName("b"))
	require.NoError(err)

	// renewal with the same claims keeps the selection
	r.Observe(ctx, signedIn("T2", "a", "b", "c"))
	assert.Len(r.Available(), 3)
	require.NotNil(r.Current())
	assert.Equal("b", r.Current().ID)

	// the selection left the claims
	r.Observe(ctx, signedIn("T3", "a"))
	assert.Nil(r.Current(), "selection is not re-made after initialization")
	saved, err := p.Load()
	require.NoError(err)
	assert.Nil(saved)
}

func TestResolver_Teardown(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	r, p, _ := testResolver(t)

	r.Observe(ctx, signedIn("T", "acme"))
	require.NotNil(r.Current())

	r.Observe(ctx, session.Session{Loading: true})
	assert.Equal(Initialized, r.InitState())

	r.Observe(ctx, session.Session{})
	snap := r.Snapshot()
	assert.Equal(Uninitialized, snap.State)
	assert.Nil(snap.Current)
	assert.Empty(snap.Available)
	saved, err := p.Load()
	require.NoError(err)
	assert.Nil(saved)

	// sign in again
	r.Observe(ctx, signedIn("T2", "acme"))
	assert.Equal(Initialized, r.InitState())
	require.NotNil(r.Current())
}

func TestResolver_ErroredSessionIgnored(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	r, p, _ := testResolver(t)

	errored := signedIn("T", "acme")
	errored.Err = errors.New("state mismatch")
	r.Observe(ctx, errored)
	assert.Equal(Uninitialized, r.InitState())
	assert.Nil(r.Current())
	saved, err := p.Load()
	require.NoError(err)
	assert.Nil(saved)

	r.Observe(ctx, signedIn("T", "acme"))
	require.NotNil(r.Current())

	// an error while signed in keeps the selection
	errored.User.AccessToken = "T2"
	r.Observe(ctx, errored)
	assert.Equal(Initialized, r.InitState())
	require.NotNil(r.Current())
	assert.Equal("acme", r.Current().ID)
}

func TestResolver_Switch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("not-signed-in", func(t *testing.T) {
		r, _, _ := testResolver(t)
		_, err := r.Switch(ctx, FromName("a"))
		assert.Truef(t, errors.Is(err, ErrNotSignedIn), "wanted %q but got %q", ErrNotSignedIn, err)
	})
	t.Run("unknown", func(t *testing.T) {
		r, _, _ := testResolver(t)
		r.Observe(ctx, signedIn("T", "a", "b"))
		_, err := r.Switch(ctx, FromName("z"))
		assert.Truef(t, errors.Is(err, ErrUnknownOrganization), "wanted %q but got %q", ErrUnknownOrganization, err)
		_, err = r.Switch(ctx, Organization{})
		assert.Truef(t, errors.Is(err, ErrInvalidParameter), "wanted %q but got %q", ErrInvalidParameter, err)
	})
	t.Run("with-metadata", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		dir := &fakeDirectory{byAlias: map[string]*directory.Metadata{
			"b": {ID: "9a2d", Name: "B School", Alias: "b"},
		}}
		r, p, _ := testResolver(t, WithMetadataSource(dir))
		r.Observe(ctx, signedIn("T", "a", "b"))

		got, err := r.Switch(ctx, FromName("b"))
		require.NoError(err)
		require.NotNil(got.Metadata)
		assert.Equal("9a2d", got.Metadata.ID)

		saved, err := p.Load()
		require.NoError(err)
		require.NotNil(saved)
		assert.Equal(got, *saved)
		assert.Equal(got, *r.Current())
	})
	t.Run("metadata-failure-is-best-effort", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		dir := &fakeDirectory{err: errors.New("unreachable")}
		r, p, _ := testResolver(t, WithMetadataSource(dir))
		r.Observe(ctx, signedIn("T", "a", "b"))

		got, err := r.Switch(ctx, FromName("a"))
		require.NoError(err)
		assert.Nil(got.Metadata)
		id, ok := p.CurrentID()
		assert.True(ok)
		assert.Equal("a", id)

		withMeta := FromName("b")
		withMeta.Metadata = &directory.Metadata{ID: "5c1e"}
		got, err = r.Switch(ctx, withMeta)
		require.NoError(err)
		require.NotNil(got.Metadata)
		assert.Equal("5c1e", got.Metadata.ID)
		saved, err := p.Load()
		require.NoError(err)
		require.NotNil(saved)
		require.NotNil(saved.Metadata)
		assert.Equal("5c1e", saved.Metadata.ID)
	})
	t.Run("claim-fallback-without-available", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, _, _ := testResolver(t)
		r.Observe(ctx, signedIn("T"))
		assert.Empty(r.Available())
		got, err := r.Switch(ctx, FromName("anything"))
		require.NoError(err)
		assert.Equal("anything", got.ID)
	})
	t.Run("discarded-after-logout", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		dir := &fakeDirectory{
			byAlias: map[string]*directory.Metadata{"b": {ID: "9a2d"}},
			gate:    make(chan struct{}),
			started: make(chan struct{}, 1),
		}
		r, p, _ := testResolver(t, WithMetadataSource(dir))
		require.NoError(r.Initialize(ctx, signedIn("T", "a", "b")))

		done := make(chan error, 1)
		go func() {
			_, err := r.Switch(ctx, FromName("b"))
			done <- err
		}()
		<-dir.started
		r.Observe(ctx, session.Session{})
		close(dir.gate)

		err := <-done
		assert.Truef(errors.Is(err, ErrStaleSession), "wanted %q but got %q", ErrStaleSession, err)
		assert.Nil(r.Current())
		saved, err := p.Load()
		require.NoError(err)
		assert.Nil(saved)
	})
}

func TestResolver_AttachMetadata(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	dir := &fakeDirectory{byAlias: map[string]*directory.Metadata{
		"acme": {ID: "8f1c", Name: "Acme School"},
	}}
	r, _, _ := testResolver(t, WithMetadataSource(dir))

	// auto-selection is followed by the lazy attach
	r.Observe(ctx, signedIn("T", "acme"))
	cur := r.Current()
	require.NotNil(cur)
	require.NotNil(cur.Metadata)
	assert.Equal("8f1c", cur.Metadata.ID)
	assert.Equal(1, dir.Calls())

	// never overwritten by the lazy attach
	dir.mu.Lock()
	dir.byAlias["acme"] = &directory.Metadata{ID: "changed"}
	dir.mu.Unlock()
	require.NoError(r.AttachMetadata(ctx))
	assert.Equal("8f1c", r.Current().Metadata.ID)
	assert.Equal(1, dir.Calls())

	// an explicit refresh replaces it
	require.NoError(r.RefreshMetadata(ctx))
	assert.Equal("changed", r.Current().Metadata.ID)
}

func TestResolver_Refresh(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	r, _, _ := testResolver(t)
	err := r.Refresh()
	assert.Truef(errors.Is(err, ErrNotSignedIn), "wanted %q but got %q", ErrNotSignedIn, err)

	r.Observe(context.Background(), signedIn("T", "a", "b"))
	require.NoError(r.Refresh())
	assert.Len(r.Available(), 2)
}

func TestResolver_PersistReloadRoundTrip(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	mem := storage.NewMemory()

	p1, err := NewPersisted(mem)
	require.NoError(err)
	r1, err := NewResolver(p1)
	require.NoError(err)
	r1.Observe(ctx, signedIn("T", "a", "b"))
	switched, err := r1.Switch(ctx, FromName("b"))
	require.NoError(err)

	// a new process reads the same storage
	p2, err := NewPersisted(mem)
	require.NoError(err)
	r2, err := NewResolver(p2)
	require.NoError(err)
	r2.Observe(ctx, signedIn("T", "a", "b"))
	require.NotNil(r2.Current())
	assert.True(r2.Current().Equal(switched))
}
