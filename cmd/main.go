package main

import (
	"fmt"
	"os"

	"spaceforces-client/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "spaceforces-client: %v\n", err)
		os.Exit(1)
	}
}
