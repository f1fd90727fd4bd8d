// ABOUTME: version subcommand
// ABOUTME: Prints product, version and manufacturer
package cli

import (
	"fmt"

	"github.com/Resonate-Protocol/clocksync-go/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", version.Product, version.Version, version.Manufacturer)
		},
	}
}
