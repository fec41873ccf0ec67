package main

import (
	"os"

	"github.com/plenert/ledger/ledger/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
