// Command publisher turns a Markdown article and its images into a preview
// and, once confirmed, a draft on the publishing platform.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
