// Package essencecmder
package essencecmder

import (
	"github.com/spf13/cobra"

	initcmder "github.com/muuya/essence-logic/cmd/essence/init"
	servecmder "github.com/muuya/essence-logic/cmd/essence/serve"
	versioncmder "github.com/muuya/essence-logic/cmd/version"
)

const essenceLongDesc string = `Essence Logic is a chat backend that relays streamed model output.

Run the service using:
  essence serve        Run the HTTP server
  essence init         Write a default config.toml`

const essenceShortDesc string = "Essence Logic - streaming chat backend"

func NewEssenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "essence",
		Short: essenceShortDesc,
		Long:  essenceLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to config.toml (or a directory containing it)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
