// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/webdiario/portalauth/directory"
)

var errDirectoryDisabled = errors.New("directory is not configured, set directory.url")

func newDirectoryCmd(flags *rootFlags) *cobra.Command {
	directoryCmd := &cobra.Command{
		Use:   "directory",
		Short: "Query the identity provider's organization directory",
	}

	var filter directory.Filter
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the organizations registered in the realm",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(cmd, flags, func(a *app, d *directory.Directory) error {
				orgs, err := d.ListOrganizations(cmd.Context(), filter)
				if err != nil {
					return err
				}
				for _, m := range orgs {
					fmt.Fprintf(a.out, "%s\t%s\t%s\n", m.ID, m.Alias, m.Name)
				}
				return nil
			})
		},
	}
	listCmd.Flags().StringVar(&filter.Search, "search", "", "free text search")
	listCmd.Flags().IntVar(&filter.First, "first", 0, "offset of the first result")
	listCmd.Flags().IntVar(&filter.Max, "max", directory.DefaultPageSize, "page size")

	directoryCmd.AddCommand(
		&cobra.Command{
			Use:   "lookup <alias>",
			Short: "Print the directory entry of an organization by alias",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDirectory(cmd, flags, func(a *app, d *directory.Directory) error {
					m, err := d.ResolveByAlias(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					return printMetadata(a.out, args[0], m)
				})
			},
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Print the directory entry of an organization by id",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDirectory(cmd, flags, func(a *app, d *directory.Directory) error {
					m, err := d.ResolveByID(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					return printMetadata(a.out, args[0], m)
				})
			},
		},
		listCmd,
	)
	return directoryCmd
}

func withDirectory(cmd *cobra.Command, flags *rootFlags, fn func(*app, *directory.Directory) error) error {
	return withApp(cmd.Context(), flags, cmd.OutOrStdout(), func(a *app) error {
		d := a.portal.Directory()
		if d == nil {
			return errDirectoryDisabled
		}
		return fn(a, d)
	})
}

func printMetadata(w io.Writer, key string, m *directory.Metadata) error {
	if m == nil {
		return fmt.Errorf("organization %q not found", key)
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
