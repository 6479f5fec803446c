// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package apiclient

type staticTokens string

func (s staticTokens) Token() (string, bool) { return string(s), s != "" }

type staticTenant string

func (s staticTenant) CurrentID() (string, bool) { return string(s), s != "" }
