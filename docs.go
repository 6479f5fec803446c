// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// portalauth provides the authentication and multi-tenant session layer of
// the portal: an OIDC capability, a session watcher that keeps the bearer
// token and organization selection in step with it, expiry notifications,
// recovery from corrupted sign-in state, an organization directory backed by
// the identity provider's admin API, and an HTTP client that decorates
// backend requests with the token and organization.
//
// The portal package wires these together; cmd/portalctl is a command line
// front end.
package portalauth
