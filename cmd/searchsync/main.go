// Command searchsync indexes posts, users and comments and serves search on top of them.
package main

import (
	"context"
	"os"

	"github.com/custodia-labs/searchsync/internal/adapters/driving/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
