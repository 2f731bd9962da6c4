// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jdyer-nuvodia/lockdown/cmd/lockdown/cmd/remediate"
	"github.com/jdyer-nuvodia/lockdown/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "lockdown",
	Short: "Compromised Account Remediation Tool",
	Long: `Lockdown runs an ordered pipeline of remediation steps against a
compromised account: credential reset, session revocation, delegate and
mail-rule cleanup, forwarding shutdown, MFA enablement, and audit export.
Each step is isolated; one failing integration point never prevents the
rest of the cleanup.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version.Version, version.Commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(remediate.NewRemediateCmd())
}
