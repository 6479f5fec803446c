// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootFlags are the persistent flags shared by every command.
type rootFlags struct {
	configFile string
	envFile    string
	dataDir    string

	// appOpts are used by tests to replace the navigator and the output.
	appOpts []appOption
}

func newRootCmd(opt ...appOption) *cobra.Command {
	flags := &rootFlags{appOpts: opt}
	rootCmd := &cobra.Command{
		Use:   "portalctl",
		Short: "Sign in to the portal and manage the session",
		Long: `portalctl signs a user in to the portal with OIDC and keeps the session
in a local database so later commands can reuse it.

Configuration is read from the file given by --config and from PORTAL_
environment variables, e.g. PORTAL_OIDC__CLIENT_ID.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flags.envFile != "" {
				_ = godotenv.Load(flags.envFile)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "path to a .env file loaded before the configuration")
	rootCmd.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "directory of the local session database (overrides storage.dir)")

	rootCmd.AddCommand(
		newLoginCmd(flags),
		newStatusCmd(flags),
		newOrgsCmd(flags),
		newDirectoryCmd(flags),
		newLogoutCmd(flags),
	)
	return rootCmd
}
