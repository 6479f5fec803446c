// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/webdiario/portalauth/organization"
)

// errNotSignedIn is returned by commands that need a session.
var errNotSignedIn = errors.New("not signed in, run portalctl login")

func newOrgsCmd(flags *rootFlags) *cobra.Command {
	orgsCmd := &cobra.Command{
		Use:   "orgs",
		Short: "List and select organizations",
	}
	orgsCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the organizations of the signed in user",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), flags, cmd.OutOrStdout(), func(a *app) error {
					if !a.portal.Readiness().Ready {
						return errNotSignedIn
					}
					snap := a.portal.Organizations().Snapshot()
					if len(snap.Available) == 0 {
						fmt.Fprintln(a.out, "No organizations.")
						return nil
					}
					for _, o := range snap.Available {
						marker := " "
						if snap.Current != nil && snap.Current.Equal(o) {
							marker = "*"
						}
						fmt.Fprintf(a.out, "%s %s\t%s\n", marker, o.ID, o.Label())
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "switch <id>",
			Short: "Select the organization API calls are made for",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), flags, cmd.OutOrStdout(), func(a *app) error {
					if !a.portal.Readiness().Ready {
						return errNotSignedIn
					}
					target := organization.FromName(args[0])
					for _, o := range a.portal.Organizations().Available() {
						if o.ID == args[0] {
							target = o
							break
						}
					}
					o, err := a.portal.Organizations().Switch(cmd.Context(), target)
					if err != nil {
						return err
					}
					fmt.Fprintf(a.out, "Switched to %s (%s).\n", o.Label(), o.ID)
					return nil
				})
			},
		},
	)
	return orgsCmd
}
