// Command schedctl is a CLI client for the workflow scheduler API.
package main

import (
	"fmt"
	"os"

	"github.com/Jane1217/branch-aware-workflow-scheduler/cmd/schedctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
