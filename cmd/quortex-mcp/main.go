package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	mcp "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/quortexio/quortex-mcp/internal/config"
	"github.com/quortexio/quortex-mcp/internal/diag"
	"github.com/quortexio/quortex-mcp/internal/inject"
	"github.com/quortexio/quortex-mcp/internal/logging"
	"github.com/quortexio/quortex-mcp/internal/mcpserver"
	"github.com/quortexio/quortex-mcp/internal/metrics"
	"github.com/quortexio/quortex-mcp/internal/route"
	"github.com/quortexio/quortex-mcp/internal/spec"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/quortex-mcp.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validateOnly := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Quortex MCP %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// Load configuration
	loader := config.NewLoader()
	cfg, err := loader.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *validateOnly {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	// Initialize structured logger. Stdout belongs to the stdio transport,
	// so logs go to stderr or a file.
	logger, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.Rotation.MaxSize,
		MaxBackups: cfg.Logging.Rotation.MaxBackups,
		MaxAgeDays: cfg.Logging.Rotation.MaxAge,
		Compress:   cfg.Logging.Rotation.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	logging.Info("Starting Quortex MCP server",
		zap.String("version", version),
		zap.String("config", *configPath),
		zap.String("transport", cfg.Server.Transport),
		zap.String("specs_dir", cfg.Specs.Dir),
	)

	ctx := context.Background()

	// Load and merge the specification documents
	docs, loadRecords, err := spec.LoadDir(ctx, cfg.Specs.Dir)
	if err != nil {
		logging.Error("Failed to load specification documents", zap.Error(err))
		os.Exit(1)
	}
	unified, err := spec.Merge(docs)
	if err != nil {
		logging.Error("Failed to merge specification documents", zap.Error(err))
		os.Exit(1)
	}

	records := append(loadRecords, unified.Conflicts...)
	reportDiagnostics(records)

	// Classify operations and validate hidden parameter sources up front
	policies, err := route.Classify(unified, route.Config{
		AdminPrefixes: cfg.Classifier.AdminPrefixes,
		ExcludeTags:   cfg.Classifier.ExcludeTags,
		Hidden:        hiddenParameters(cfg.Classifier.HiddenParameters),
	})
	if err != nil {
		logging.Error("Operation classification failed", zap.Error(err))
		os.Exit(1)
	}
	logging.Info("Specification documents merged",
		zap.Int("documents", len(docs)),
		zap.Int("operations", len(unified.Operations())),
		zap.Int("diagnostics", len(records)),
	)

	if cfg.Upstream.AuthToken == "" {
		logging.Warn("No upstream auth token configured; requests go out unauthenticated")
	}

	collector := metrics.NewCollector()
	collector.RecordDiagnostics(records)

	srv := mcpserver.New(unified, policies, inject.New(), collector, mcpserver.Options{
		Name:      cfg.Server.Name,
		Version:   version,
		BaseURL:   cfg.Upstream.BaseURL,
		AuthToken: cfg.Upstream.AuthToken,
	})

	if cfg.Admin.Enabled {
		go serveAdmin(cfg.Admin.Port, collector)
	}

	switch cfg.Server.Transport {
	case "http":
		logging.Info("Serving MCP over streamable HTTP", zap.String("listen", cfg.Server.Listen))
		httpSrv := mcp.NewStreamableHTTPServer(srv)
		if err := httpSrv.Start(cfg.Server.Listen); err != nil {
			logging.Error("Server error", zap.Error(err))
			os.Exit(1)
		}
	default:
		logging.Info("Serving MCP over stdio")
		if err := mcp.ServeStdio(srv); err != nil {
			logging.Error("Server error", zap.Error(err))
			os.Exit(1)
		}
	}
}

// reportDiagnostics logs every load- and merge-time diagnostic once, at
// startup, so a collision is never discovered from a confused agent.
func reportDiagnostics(records []diag.Record) {
	for _, r := range records {
		logging.Warn("Specification diagnostic",
			zap.String("kind", string(r.Kind)),
			zap.String("subject", r.Subject),
			zap.String("source", r.Source),
			zap.String("discarded", r.Discarded),
			zap.String("detail", r.Detail),
		)
	}
}

func hiddenParameters(cfgs []config.HiddenParameterConfig) []route.HiddenParameter {
	out := make([]route.HiddenParameter, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, route.HiddenParameter{Name: c.Name, Env: c.Env})
	}
	return out
}

func serveAdmin(port int, collector *metrics.Collector) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf(":%d", port)
	logging.Info("Admin endpoints listening", zap.String("addr", addr))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Error("Admin server error", zap.Error(err))
	}
}
