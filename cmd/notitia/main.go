// Command notitia compiles table schemas, runs queries and mutations, and
// replays subscription scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/notitia/internal/cli"

	// Registers the postgres:// and postgresql:// schemes.
	_ "github.com/roach88/notitia/internal/store/pgstore"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "notitia: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
