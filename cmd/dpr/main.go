// Command dpr runs the daily academic-paper recommendation pipeline.
package main

import (
	"os"

	"github.com/Aman-CERP/dpr-pipeline/cmd/dpr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
