// Package initcmder provides the init command for writing a default
// config.toml in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/muuya/essence-logic/pkg/config"
)

const configFile = "config.toml"

const initLongDesc string = `Write a default config.toml in the current working directory.

The generated file holds every supported setting with its default value.
Edit it and set a credential under [ai] before running the server, or
provide credentials through the environment (AI_BUILDER_TOKEN or
DEEPSEEK_API_KEY).

Examples:
  essence init`

const initShortDesc string = "Write a default config.toml"

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit()
		},
	}

	return cmd
}

func runInit() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	path := filepath.Join(cwd, configFile)

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Already initialized: %s\n", path)
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking for existing config: %w", err)
	}

	if err := config.Save(config.NewDefaultConfig(), path); err != nil {
		return err
	}

	fmt.Printf("Wrote default config: %s\n", path)
	return nil
}
