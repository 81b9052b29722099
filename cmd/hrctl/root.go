package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:   "hrctl",
		Short: "Operator tooling for the HR backend",
		Long: `hrctl performs offline security tasks against the HR backend configuration.

It reads the same environment variables as hr-api (JWT_BASE64_SECRET, JWT_SECRET,
JWT_TOKEN_VALIDITY_SECONDS, BCRYPT_COST, ...) so tokens and hashes it produces
are accepted by a running server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				return nil
			}
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("failed to load env file %s: %w", envFile, err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file first")

	root.AddCommand(newHashPasswordCmd())
	root.AddCommand(newIssueTokenCmd())
	root.AddCommand(newVerifyTokenCmd())

	return root
}
