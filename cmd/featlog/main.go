// Command featlog captures feature timings into a local store and
// replicates local stores into a consolidated server store.
package main

import (
	"os"

	"github.com/roach88/featlog/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
