// Package main provides the entry point for the checkline session tool.
package main

import (
	"fmt"
	"os"

	"github.com/hwcert/checkline/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
