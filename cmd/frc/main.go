// Command frc loads and normalizes FRC company research data.
package main

import (
	"os"

	"frc-research/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
