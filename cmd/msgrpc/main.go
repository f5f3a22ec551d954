// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command msgrpc checks schemas, serves applications and calls them.
package main

import (
	"context"
	"os"

	"github.com/luxfi/msgrpc/internal/cli"
	"github.com/luxfi/msgrpc/internal/logging"
)

func main() {
	logging.Init("msgrpc", logging.Runtime())

	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
