// Command tokenbridge runs a metrics-only bridge node. It recovers the journaled state,
// bootstraps the bridge on the first start and serves /metrics until interrupted.
// Bridge operations are not exposed by the binary, they are called on tokenbridge.Node
// by the process embedding it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/tokenbridge"
	"github.com/outofforest/tokenbridge/config"
)

func main() {
	ctx, stop := signal.NotifyContext(
		logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig)),
		os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	log := logger.Get(ctx)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	if err := tokenbridge.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("Bridge node failed", zap.Error(err))
	}
}
