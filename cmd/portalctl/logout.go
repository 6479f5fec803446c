// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the local session",
		Long: `Sign out and forget the local session.

The identity provider's logout URL is printed when it supports RP-initiated
logout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, cmd.OutOrStdout(), func(a *app) error {
				if err := a.provider.SignoutRedirect(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "Signed out.")
				return nil
			})
		},
	}
}
