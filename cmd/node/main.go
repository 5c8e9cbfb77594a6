package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"PastryDHT/internal/bootstrap"
	"PastryDHT/internal/config"
	"PastryDHT/internal/domain"
	"PastryDHT/internal/logger"
	zapfactory "PastryDHT/internal/logger/zap"
	"PastryDHT/internal/node"
	"PastryDHT/internal/telemetry"
)

var defaultConfigPath = "config/node/config.yaml"

func main() {
	// Parse command-line flags
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %q: %v", *configPath, err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.ValidateConfig(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Initialize logger
	var lgr logger.Logger
	if cfg.Logger.Active {
		zapLog, err := zapfactory.New(cfg.Logger)
		if err != nil {
			log.Fatalf("failed to initialize logger: %v", err)
		}
		defer func() { _ = zapLog.Sync() }() // flush logger buffers before exit
		lgr = zapfactory.NewZapAdapter(zapLog)
	} else {
		lgr = &logger.NopLogger{}
	}
	cfg.LogConfig(lgr)

	// The identifier-space geometry is fixed at init time; every node of
	// a deployment shares it.
	space := domain.DefaultSpace()

	// Telemetry uses the node's future identity; derive it the same way
	// the node will. With port 0 the listener picks the port, so the id
	// is only known once the node is up; tracing then attaches per-span
	// attributes anyway.
	selfID := space.NewIDFromString(
		cfg.Node.Host + ":" + strconv.Itoa(cfg.Node.Port))
	shutdownTracer := telemetry.InitTracer(cfg.Telemetry, "PastryDHT-Node", selfID)
	defer func() { _ = shutdownTracer(context.Background()) }()

	// Resolve the bootstrap entry point
	var entry string
	if cfg.DHT.Bootstrap.Mode == "static" {
		register := bootstrap.NewStaticBootstrap(cfg.DHT.Bootstrap.Peers)
		peers, err := register.Discover(context.Background())
		if err != nil {
			lgr.Error("failed to resolve bootstrap peers", logger.F("err", err.Error()))
			os.Exit(1)
		}
		if len(peers) > 0 {
			entry = peers[0]
		}
	}

	opts := []node.Option{
		node.WithLogger(lgr.Named("node")),
		node.WithSpace(space),
		node.WithRPCTimeouts(cfg.DHT.Timeout.Connect.Std(), cfg.DHT.Timeout.Read.Std()),
	}
	if entry != "" {
		opts = append(opts, node.WithBootstrap(entry))
	}
	if cfg.DHT.Gossip.Interval > 0 {
		opts = append(opts, node.WithGossipInterval(cfg.DHT.Gossip.Interval.Std()))
	}

	n, err := node.New(cfg.Node.Host, cfg.Node.Port, opts...)
	if err != nil {
		lgr.Error("failed to start node", logger.F("err", err.Error()))
		os.Exit(1)
	}
	lgr.Info("node running",
		logger.F("addr", n.Addr()),
		logger.F("id", uint32(n.Self().ID)))

	// Wait for a shutdown signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	lgr.Info("shutdown signal received, stopping node")
	n.Shutdown()
}
