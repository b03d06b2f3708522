// Command stockdash serves the stock dashboard and runs its pipeline offline.
package main

import (
	"os"

	"stockdash/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
