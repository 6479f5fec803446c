// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package token

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webdiario/portalauth/storage"
)

type failingStorage struct {
	storage.Storage
}

func (failingStorage) Set(string, []byte) error { return errors.New("disk full") }
func (failingStorage) Delete(string) error      { return errors.New("disk full") }

func TestNewStore(t *testing.T) {
	t.Parallel()
	t.Run("nil-storage", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s, err := NewStore(nil)
		require.Error(err)
		assert.Truef(errors.Is(err, ErrNilParameter), "wanted %q but got %q", ErrNilParameter, err)
		assert.Nil(s)
	})
	t.Run("empty", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s, err := NewStore(storage.NewMemory())
		require.NoError(err)
		tk, ok := s.Token()
		assert.False(ok)
		assert.Empty(tk)
		assert.Equal(DefaultStorageKey, s.Key())
	})
	t.Run("restores-persisted", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		mem := storage.NewMemory()
		require.NoError(mem.Set(DefaultStorageKey, []byte("persisted")))
		s, err := NewStore(mem)
		require.NoError(err)
		tk, ok := s.Token()
		assert.True(ok)
		assert.Equal("persisted", tk)
	})
	t.Run("custom-key", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		mem := storage.NewMemory()
		s, err := NewStore(mem, WithStorageKey("other"))
		require.NoError(err)
		require.NoError(s.Set("t1"))
		got, err := mem.Get("other")
		require.NoError(err)
		assert.Equal("t1", string(got))
		_, err = mem.Get(DefaultStorageKey)
		assert.Truef(errors.Is(err, storage.ErrNotFound), "wanted %q but got %q", storage.ErrNotFound, err)
	})
}

func TestStore_SetClear(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	mem := storage.NewMemory()
	s, err := NewStore(mem)
	require.NoError(err)

	require.NoError(s.Set("first"))
	tk, ok := s.Token()
	require.True(ok)
	assert.Equal("first", tk)
	got, err := mem.Get(DefaultStorageKey)
	require.NoError(err)
	assert.Equal("first", string(got))

	require.NoError(s.Set("second"))
	tk, _ = s.Token()
	assert.Equal("second", tk)

	require.NoError(s.Set(""))
	_, ok = s.Token()
	assert.False(ok)
	_, err = mem.Get(DefaultStorageKey)
	assert.Truef(errors.Is(err, storage.ErrNotFound), "wanted %q but got %q", storage.ErrNotFound, err)

	require.NoError(s.Set("third"))
	require.NoError(s.Clear())
	_, ok = s.Token()
	assert.False(ok)
}

func TestStore_PersistFailure(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	s, err := NewStore(failingStorage{Storage: storage.NewMemory()})
	require.NoError(err)

	err = s.Set("kept")
	require.Error(err)
	assert.Truef(errors.Is(err, ErrPersist), "wanted %q but got %q", ErrPersist, err)
	tk, ok := s.Token()
	assert.True(ok)
	assert.Equal("kept", tk)

	err = s.Clear()
	require.Error(err)
	_, ok = s.Token()
	assert.False(ok)
}

func TestAccessToken_Redacted(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tk := AccessToken("secret")
	assert.Equal(RedactedAccessToken, tk.String())
	b, err := json.Marshal(tk)
	require.NoError(err)
	assert.Equal(`"`+RedactedAccessToken+`"`, string(b))
}
