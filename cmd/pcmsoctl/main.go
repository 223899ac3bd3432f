// Command pcmsoctl runs PCMSO engine operations against the configured
// database and prints JSON results on stdout.
package main

import (
	"context"
	"os"

	"github.com/occhealth/pcmso-backend/internal/platform/shutdown"
)

// Version is set by build flags.
var Version = "dev"

func main() {
	ctx, stop := shutdown.NotifyContext(context.Background())
	err := getRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
