// Package main is the entry point for the gateway binary.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/vnmchuo/adstream-gateway/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		slog.Default().Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}
