// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStorages(t *testing.T) map[string]Storage {
	t.Helper()
	require := require.New(t)
	inMem, err := NewBadger("", WithInMemory())
	require.NoError(err)
	t.Cleanup(func() { _ = inMem.Close() })

	onDisk, err := NewBadger(t.TempDir(), WithSyncWrites(false))
	require.NoError(err)
	t.Cleanup(func() { _ = onDisk.Close() })

	return map[string]Storage{
		"memory":           NewMemory(),
		"badger-in-memory": inMem,
		"badger-on-disk":   onDisk,
	}
}

func TestStorage(t *testing.T) {
	t.Parallel()
	for name, s := range testStorages(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			t.Run("missing", func(t *testing.T) {
				assert, require := assert.New(t), require.New(t)
				got, err := s.Get("missing")
				require.Error(err)
				assert.Nil(got)
				assert.Truef(errors.Is(err, ErrNotFound), "unexpected error: %s", err)
			})
			t.Run("set-get-delete", func(t *testing.T) {
				assert, require := assert.New(t), require.New(t)
				require.NoError(s.Set("k", []byte("v1")))
				got, err := s.Get("k")
				require.NoError(err)
				assert.Equal([]byte("v1"), got)

				require.NoError(s.Set("k", []byte("v2")))
				got, err = s.Get("k")
				require.NoError(err)
				assert.Equal([]byte("v2"), got)

				require.NoError(s.Delete("k"))
				_, err = s.Get("k")
				assert.Truef(errors.Is(err, ErrNotFound), "unexpected error: %s", err)

				require.NoError(s.Delete("k"), "deleting a missing key")
			})
			t.Run("empty-key", func(t *testing.T) {
				assert := assert.New(t)
				err := s.Set("", []byte("v"))
				assert.Truef(errors.Is(err, ErrInvalidParameter), "unexpected error: %s", err)
			})
			t.Run("returned-value-is-a-copy", func(t *testing.T) {
				assert, require := assert.New(t), require.New(t)
				require.NoError(s.Set("copy", []byte("abc")))
				got, err := s.Get("copy")
				require.NoError(err)
				got[0] = 'z'
				again, err := s.Get("copy")
				require.NoError(err)
				assert.Equal([]byte("abc"), again)
			})
		})
	}
}

func TestNewBadger(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		dir       string
		opts      []Option
		wantIsErr error
	}{
		{
			name:      "missing-dir",
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "dir-with-in-memory",
			dir:       "somewhere",
			opts:      []Option{WithInMemory()},
			wantIsErr: ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := NewBadger(tt.dir, tt.opts...)
			require.Error(err)
			assert.Nil(got)
			assert.Truef(errors.Is(err, tt.wantIsErr), "wanted %q and got %q", tt.wantIsErr, err)
		})
	}
}

func TestBadger_Persistence(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	dir := t.TempDir()

	b, err := NewBadger(dir)
	require.NoError(err)
	require.NoError(b.Set("token", []byte("abc")))
	require.NoError(b.Close())
	require.NoError(b.Close(), "second close")

	_, err = b.Get("token")
	assert.Truef(errors.Is(err, ErrClosed), "unexpected error: %s", err)

	reopened, err := NewBadger(dir)
	require.NoError(err)
	defer reopened.Close()
	got, err := reopened.Get("token")
	require.NoError(err)
	assert.Equal([]byte("abc"), got)
}
