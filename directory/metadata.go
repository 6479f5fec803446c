// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package directory

// Metadata is the identity provider's representation of an organization.
type Metadata struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Alias       string              `json:"alias,omitempty"`
	Enabled     *bool               `json:"enabled,omitempty"`
	Description string              `json:"description,omitempty"`
	Attributes  map[string][]string `json:"attributes,omitempty"`
	Domains     []Domain            `json:"domains,omitempty"`
}

// Domain is an internet domain owned by an organization.
type Domain struct {
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

// Clone returns a deep copy of m.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	c := *m
	if m.Enabled != nil {
		e := *m.Enabled
		c.Enabled = &e
	}
	if m.Attributes != nil {
		c.Attributes = make(map[string][]string, len(m.Attributes))
		for k, v := range m.Attributes {
			c.Attributes[k] = append([]string(nil), v...)
		}
	}
	if m.Domains != nil {
		c.Domains = append([]Domain(nil), m.Domains...)
	}
	return &c
}

// Filter narrows ListOrganizations.
type Filter struct {
	// Search is an optional free text search.
	Search string

	// First is the offset of the first result.
	First int

	// Max is the page size. Zero means DefaultPageSize.
	Max int

	// Brief requests the brief representation.
	Brief bool
}

// DefaultPageSize is the page size used when Filter.Max is zero.
const DefaultPageSize = 10
