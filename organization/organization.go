// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package organization derives the organizations a user belongs to from
// their claims, and tracks which one is currently selected.
package organization

import "github.com/webdiario/portalauth/directory"

// Organization is a tenant the user can act in. Two organizations are the
// same when their ids are equal.
type Organization struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	DisplayName string              `json:"displayName,omitempty"`
	Metadata    *directory.Metadata `json:"keycloakData,omitempty"`
}

// FromName returns the organization for a claim value, which is used as id,
// name and display name.
func FromName(n string) Organization {
	return Organization{ID: n, Name: n, DisplayName: n}
}

// Equal reports whether o and other are the same organization.
func (o Organization) Equal(other Organization) bool {
	return o.ID == other.ID
}

// Clone returns a deep copy of o.
func (o Organization) Clone() Organization {
	o.Metadata = o.Metadata.Clone()
	return o
}

// Label returns the display name, or the name when there is none.
func (o Organization) Label() string {
	if o.DisplayName != "" {
		return o.DisplayName
	}
	return o.Name
}

func find(orgs []Organization, id string) (Organization, bool) {
	for _, o := range orgs {
		if o.ID == id {
			return o, true
		}
	}
	return Organization{}, false
}

func cloneAll(orgs []Organization) []Organization {
	if orgs == nil {
		return nil
	}
	c := make([]Organization, len(orgs))
	for i, o := range orgs {
		c[i] = o.Clone()
	}
	return c
}
