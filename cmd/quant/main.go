package main

import (
	"os"

	"github.com/kennydoit/fin-trade-craft/cmd/quant/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
