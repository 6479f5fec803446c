// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session and organization state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, cmd.OutOrStdout(), func(a *app) error {
				r := a.portal.Readiness()
				fmt.Fprintf(a.out, "Session:       %s\n", r.Phase)
				if !r.Ready {
					return nil
				}
				s := a.provider.Session()
				fmt.Fprintf(a.out, "User:          %s\n", displayName(s.User))
				if !s.User.ExpiresAt.IsZero() {
					fmt.Fprintf(a.out, "Expires:       %s\n", s.User.ExpiresAt.Format(time.RFC3339))
				}
				_, ok := a.portal.Tokens().Token()
				fmt.Fprintf(a.out, "Access token:  %s\n", presence(ok))

				snap := a.portal.Organizations().Snapshot()
				current := "none"
				if snap.Current != nil {
					current = fmt.Sprintf("%s (%s)", snap.Current.Label(), snap.Current.ID)
				}
				fmt.Fprintf(a.out, "Organization:  %s\n", current)
				fmt.Fprintf(a.out, "Available:     %d\n", len(snap.Available))
				return nil
			})
		},
	}
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "absent"
}
