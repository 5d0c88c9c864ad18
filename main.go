package main

import (
	"os"

	"github.com/oakbridge/oakbridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
