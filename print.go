package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// printSuccess writes a green result line to stdout. This is a command's
// primary output, so --quiet does not suppress it; --json replaces it.
func printSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stdout, "%s %s\n",
		color.New(color.FgGreen, color.Bold).Sprint("✓"),
		color.New(color.FgGreen).Sprintf(format, args...))
}

// printWarning writes a yellow warning line to stderr.
func printWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n",
		color.New(color.FgYellow, color.Bold).Sprint("⚠"),
		color.New(color.FgYellow).Sprintf(format, args...))
}
