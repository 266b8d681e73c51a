package main

import (
	"os"

	"github.com/dmitrijs2005/whattodo/internal/client/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
