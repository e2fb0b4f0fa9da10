// chartgenie turns CSV files into charts and answers questions about
// them, from the command line or as an HTTP server.
package main

import "github.com/chartgenie/chartgenie/internal/cli"

func main() {
	cli.Execute()
}
