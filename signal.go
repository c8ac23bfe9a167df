package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// shutdownContext derives a context that cancels on SIGINT/SIGTERM. The
// first signal requests a clean stop so an in-flight deploy can finish;
// a second one gives up waiting and exits immediately.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigs)

		seen := 0
		for {
			select {
			case sig := <-sigs:
				seen++
				if seen == 1 {
					logger.Info("received signal, shutting down",
						slog.String("signal", sig.String()))
					cancel()
					continue
				}

				logger.Warn("received second signal, forcing exit",
					slog.String("signal", sig.String()))
				os.Exit(1)
			case <-parent.Done():
				return
			}
		}
	}()

	return ctx
}
