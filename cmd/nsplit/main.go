package main

import (
	"os"

	"github.com/nsplit-app/nsplit/cmd/nsplit/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
