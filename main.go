// Command bidwatcher watches the CBF BID and publishes new registrations.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/JakeFAU/bidwatcher/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cmd.Execute(ctx)
}
