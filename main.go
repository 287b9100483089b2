// main is the entry point for the tripcache CLI.
package main

import (
	"fmt"
	"os"

	"github.com/roamly/tripcache/cmd"
)

func main() {
	err := cmd.Execute()
	cmd.Shutdown()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
