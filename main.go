// ./main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/xkilldash9x/logsurgeon/cmd"
	"github.com/xkilldash9x/logsurgeon/internal/observability"
)

// main wires the interrupt signals into the command context and maps the
// command outcome to an exit code. A run cut short by Ctrl-C shut down
// cleanly and exits zero.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()

	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	// GetLogger degrades to a development logger when initialization never
	// ran, so the failure is visible either way.
	observability.GetLogger().Error("Command execution failed", zap.Error(err))
	os.Exit(1)
}
