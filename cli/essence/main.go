package main

import (
	"os"

	essencecmder "github.com/muuya/essence-logic/cmd/essence"
)

func main() {
	cmd := essencecmder.NewEssenceCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
