// Command graphengined runs the graph storage server: it recovers the
// database at startup, serves RPC requests over a Unix-domain socket,
// and optionally exposes a debug HTTP/websocket stats surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dc0d/onexit"
	"go.uber.org/zap"

	"github.com/cuemby/graphengine/internal/config"
	"github.com/cuemby/graphengine/internal/debughttp"
	"github.com/cuemby/graphengine/internal/engine"
	"github.com/cuemby/graphengine/internal/logging"
	"github.com/cuemby/graphengine/internal/rpc"
)

func main() {
	configPath := flag.String("config", "./graphengine.yaml", "path to the server's YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "graphengined:", err)
		os.Exit(1)
	}

	logger, atomLevel, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "graphengined:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	watcher, err := config.NewWatcher(*configPath, cfg, func(updated *config.Config) {
		atomLevel.UnmarshalText([]byte(updated.LogLevel))
		logger.Info("config reloaded", zap.String("log_level", updated.LogLevel))
	})
	if err != nil {
		logger.Warn("config hot-reload disabled", zap.Error(err))
	} else {
		defer watcher.Close()
	}

	eng, err := engine.Recover(engine.Config{
		DatabasePath:         cfg.DatabasePath,
		ShardCount:           cfg.ShardCount,
		EnrichmentShardCount: cfg.EnrichmentShardCount,
		FlushNodeThreshold:   cfg.FlushNodeThreshold,
		Compress:             cfg.CompressColumns,
	})
	if err != nil {
		logger.Fatal("failed to recover database", zap.Error(err))
	}

	server := rpc.NewServer(cfg.SocketPath, eng, logger)

	var debug *debughttp.Server
	if cfg.DebugHTTPAddr != "" {
		debug = debughttp.New(cfg.DebugHTTPAddr, eng, logger)
		go func() {
			if err := debug.Serve(); err != nil {
				logger.Warn("debug http server stopped", zap.Error(err))
			}
		}()
	}

	onexit.Register(func() {
		logger.Info("shutting down")
		server.Shutdown()
		if debug != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			debug.Close(ctx)
		}
		if err := eng.Close(); err != nil {
			logger.Warn("error closing engine", zap.Error(err))
		}
	})

	logger.Info("graphengined listening",
		zap.String("socket", cfg.SocketPath),
		zap.String("database", cfg.DatabasePath))

	if err := server.Serve(); err != nil {
		logger.Fatal("rpc server stopped", zap.Error(err))
	}
}
