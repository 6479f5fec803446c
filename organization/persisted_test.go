// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package organization

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webdiario/portalauth/directory"
	"github.com/webdiario/portalauth/storage"
)

func TestPersisted(t *testing.T) {
	t.Parallel()

	t.Run("nil-storage", func(t *testing.T) {
		_, err := NewPersisted(nil)
		assert.Truef(t, errors.Is(err, ErrNilParameter), "wanted %q but got %q", ErrNilParameter, err)
	})
	t.Run("round-trip", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		mem := storage.NewMemory()
		p, err := NewPersisted(mem)
		require.NoError(err)
		assert.Equal(StorageKey, p.Key())

		got, err := p.Load()
		require.NoError(err)
		assert.Nil(got)
		_, ok := p.CurrentID()
		assert.False(ok)

		enabled := true
		o := Organization{
			ID:          "acme",
			Name:        "acme",
			DisplayName: "Acme School",
			Metadata:    &directory.Metadata{ID: "8f1c", Name: "Acme School", Alias: "acme", Enabled: &enabled},
		}
		require.NoError(p.Save(o))

		raw, err := mem.Get(StorageKey)
		require.NoError(err)
		assert.JSONEq(`{"id":"acme","name":"acme","displayName":"Acme School","keycloakData":{"id":"8f1c","name":"Acme School","alias":"acme","enabled":true}}`, string(raw))

		got, err = p.Load()
		require.NoError(err)
		require.NotNil(got)
		assert.True(got.Equal(o))
		assert.Equal(o, *got)
		id, ok := p.CurrentID()
		assert.True(ok)
		assert.Equal("acme", id)

		require.NoError(p.Erase())
		got, err = p.Load()
		require.NoError(err)
		assert.Nil(got)
	})
	t.Run("corrupt-discarded", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		mem := storage.NewMemory()
		p, err := NewPersisted(mem, WithStorageKey("tenant"))
		require.NoError(err)
		for _, raw := range []string{"{not json", `{"name":"no id"}`} {
			require.NoError(mem.Set("tenant", []byte(raw)))
			got, err := p.Load()
			require.NoError(err)
			assert.Nil(got)
			_, err = mem.Get("tenant")
			assert.Truef(errors.Is(err, storage.ErrNotFound), "wanted %q but got %q", storage.ErrNotFound, err)
		}
	})
	t.Run("save-needs-id", func(t *testing.T) {
		p, err := NewPersisted(storage.NewMemory())
		require.NoError(t, err)
		err = p.Save(Organization{Name: "x"})
		assert.Truef(t, errors.Is(err, ErrInvalidParameter), "wanted %q but got %q", ErrInvalidParameter, err)
	})
}
