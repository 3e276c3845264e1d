// Blockbench service entry point. Runs the HTTP control plane for
// browser-driven block editor sessions.
//
// Usage:
//
//	blockbench serve                        # start the service
//	blockbench serve --config config.yaml   # with a config file
//	blockbench version                      # show version info
//	blockbench health                       # probe a running service
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/blockbench/config"
	"github.com/BaSui01/blockbench/engine/cdp"
	"github.com/BaSui01/blockbench/internal/metrics"
	"github.com/BaSui01/blockbench/internal/server"
	"github.com/BaSui01/blockbench/perception"
	"github.com/BaSui01/blockbench/session"
)

// Version information injected at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting blockbench",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	eng, err := cdp.NewEngine(cdp.Config{Headless: cfg.Browser.Headless}, logger)
	if err != nil {
		logger.Fatal("Failed to start browser engine", zap.Error(err))
	}

	collector := metrics.NewCollector("blockbench", prometheus.DefaultRegisterer)

	manager := session.NewManager(eng, session.Options{
		MaxSessions:    cfg.Sessions.MaxSessions,
		TTL:            cfg.Sessions.TTL,
		SweepInterval:  cfg.Sessions.SweepInterval,
		EditorURL:      cfg.Browser.EditorURL,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		RecordingDir:   cfg.Recording.Dir,
	}, collector, logger)
	manager.StartSweeper()

	var detector *perception.Detector
	if cfg.Perception.OCRServiceURL != "" {
		detector = perception.NewDetector(
			cfg.Perception.OCRServiceURL,
			cfg.Perception.MinConfidence,
			cfg.Perception.OCRTimeout,
			logger,
		)
	}
	fuser := perception.NewFuser(perception.FuserOptions{
		EnableOCR:              detector != nil,
		MinConfidence:          cfg.Perception.MinConfidence,
		HideCoveredOCROnCanvas: cfg.Perception.HideCoveredOCROnCanvas,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := newRouter(ctx, cfg, manager, collector, detector, fuser, logger)

	srv := server.NewManager(handler, server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	if err := srv.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	srv.WaitForShutdown()

	// Listener is drained; tear down sessions and the browser.
	manager.StopSweeper()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	result := manager.DeleteAll(shutdownCtx)
	if len(result.Errors) > 0 {
		logger.Warn("some sessions failed to close",
			zap.Int("closed", result.Closed),
			zap.Int("failed", len(result.Errors)),
		)
	}
	if err := eng.Close(shutdownCtx); err != nil {
		logger.Warn("engine close failed", zap.Error(err))
	}

	logger.Info("blockbench stopped")
}

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8000", "Server address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

func printVersion() {
	fmt.Printf("blockbench %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`blockbench - block editor automation service

Usage:
  blockbench <command> [options]

Commands:
  serve     Start the blockbench server
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Examples:
  blockbench serve
  blockbench serve --config /etc/blockbench/config.yaml
  blockbench health --addr http://localhost:8000
  blockbench version`)
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoding = "console"
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
