// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripAuthParams(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		in       string
		want     string
		stripped bool
	}{
		{
			name:     "callback",
			in:       "https://portal.example.com/dashboard?code=abc&state=xyz&session_state=s&iss=https%3A%2F%2Fsso",
			want:     "https://portal.example.com/dashboard",
			stripped: true,
		},
		{
			name:     "error-callback-keeps-others",
			in:       "https://portal.example.com/?tab=grades&error=access_denied&error_description=nope#top",
			want:     "https://portal.example.com/?tab=grades#top",
			stripped: true,
		},
		{
			name: "nothing-to-strip",
			in:   "https://portal.example.com/dashboard?tab=grades",
			want: "https://portal.example.com/dashboard?tab=grades",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			u, err := url.Parse(tt.in)
			require.NoError(err)
			got, ok := StripAuthParams(u)
			assert.Equal(tt.stripped, ok)
			assert.Equal(tt.want, got.String())
			assert.Equal(tt.in, u.String(), "input must not be modified")
		})
	}

	got, ok := StripAuthParams(nil)
	assert.Nil(t, got)
	assert.False(t, ok)
}

func TestMemoryAddressBar(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	u, _ := url.Parse("https://portal.example.com/a")
	a := NewMemoryAddressBar(u)
	got := a.URL()
	got.Path = "/changed"
	assert.Equal("/a", a.URL().Path)

	n, _ := url.Parse("https://portal.example.com/b")
	a.Replace(n)
	assert.Equal("/b", a.URL().Path)
	assert.Equal(1, a.Replaced())
}
