// Command brainage trains brain-age models with nested cross-validation,
// corrects their age bias and aggregates the results.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
