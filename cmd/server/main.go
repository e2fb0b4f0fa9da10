// chartgenie API server.
//
// It serves dataset upload and analysis, automatic dashboards, chart
// rendering and conversational queries over uploaded CSV files. The
// same server is available as "chartgenie serve".
package main

import (
	"os"

	"github.com/chartgenie/chartgenie/internal/cli"
)

func main() {
	if err := cli.NewServeCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
