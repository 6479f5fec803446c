// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package metrics holds the Prometheus collectors shared by the portal
// packages. They live in a standalone package so that any component can
// record without import cycles.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "portalauth"

var (
	SessionTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_transitions_total",
		Help:      "Session notifications observed, by derived phase.",
	}, []string{"phase"})

	TokenStoreWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_store_writes_total",
		Help:      "Writes to the bearer token store, by operation.",
	}, []string{"op"})

	AdminTokenExchanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admin_token_exchanges_total",
		Help:      "Client credentials exchanges for the directory service token, by result.",
	}, []string{"result"})

	DirectoryLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "directory_lookups_total",
		Help:      "Organization directory lookups, by operation and outcome.",
	}, []string{"op", "outcome"})

	APIFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_failures_total",
		Help:      "Classified API response failures.",
	}, []string{"class"})

	ExpiryNotifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expiry_notifications_total",
		Help:      "Session expiry notifications emitted, by kind.",
	}, []string{"kind"})
)

// Register registers the collectors on the given registry (or the default one
// if nil). Collectors that are already registered are ignored.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		SessionTransitions,
		TokenStoreWrites,
		AdminTokenExchanges,
		DirectoryLookups,
		APIFailures,
		ExpiryNotifications,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
