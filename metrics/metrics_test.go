// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	reg := prometheus.NewRegistry()
	require.NoError(Register(reg))
	require.NoError(Register(reg), "registering twice is not an error")

	APIFailures.WithLabelValues("forbidden").Inc()
	families, err := reg.Gather()
	require.NoError(err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(names, "portalauth_api_failures_total")
}
