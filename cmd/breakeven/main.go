// Command breakeven analyzes option strategy breakevens on NSE indices.
package main

import (
	"os"

	"breakeven-analyzer/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
