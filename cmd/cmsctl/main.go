// Command cmsctl is the operator tool for the CMS admin: it lints and seeds
// collection documents, previews how they decode, and runs migrations.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cmsctl:", err)
		os.Exit(1)
	}
}
