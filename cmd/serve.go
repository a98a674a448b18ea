package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/calendar-mcp/internal/adapter"
	"github.com/teemow/calendar-mcp/internal/audit"
	"github.com/teemow/calendar-mcp/internal/calendar"
	"github.com/teemow/calendar-mcp/internal/google"
	"github.com/teemow/calendar-mcp/internal/idempotency"
	"github.com/teemow/calendar-mcp/internal/instrumentation"
	"github.com/teemow/calendar-mcp/internal/logging"
	"github.com/teemow/calendar-mcp/internal/retry"
	"github.com/teemow/calendar-mcp/internal/router"
	"github.com/teemow/calendar-mcp/internal/server"
	"github.com/teemow/calendar-mcp/internal/tools/calendar_tools"
	"github.com/teemow/calendar-mcp/internal/workers"
)

// Storage backend types for the idempotency cache.
const (
	storageTypeMemory = "memory"
	storageTypeValkey = "valkey"
)

// ServeConfig collects every serve-time setting. Flags take precedence;
// environment variables fill in whatever was not set explicitly.
type ServeConfig struct {
	Transport string
	HTTPAddr  string
	LogFormat string
	LogLevel  string

	// Google identity
	Account            string
	User               string
	ServiceAccountFile string

	// HTTP transport security
	BearerToken     string
	ProtocolVersion string

	// Worker pool
	Workers           int
	QueueSize         int
	RequestsPerSecond float64

	// Retry schedule
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Idempotency cache
	IdempotencyTTL time.Duration
	StorageType    string
	ValkeyURL      string
	ValkeyPassword string
	ValkeyDB       int

	// Audit trail
	AuditLogFile string

	// Metrics
	MetricsEnabled bool
	MetricsAddr    string
}

// Validate rejects configurations the server cannot run with.
func (c *ServeConfig) Validate() error {
	switch c.Transport {
	case "stdio", "streamable-http":
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", c.Transport)
	}

	switch c.StorageType {
	case storageTypeMemory:
	case storageTypeValkey:
		if c.ValkeyURL == "" {
			return fmt.Errorf("valkey storage requires --valkey-url or VALKEY_URL")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s (supported: %s, %s)", c.StorageType, storageTypeMemory, storageTypeValkey)
	}

	if c.Workers < 0 || c.QueueSize < 0 || c.MaxRetries < 0 {
		return fmt.Errorf("workers, queue size and max retries must not be negative")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must not be negative")
	}
	return nil
}

func newServeCmd() *cobra.Command {
	cfg := &ServeConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing Google Calendar
mutation tools for AI assistants.

Supports two transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport with bearer authentication

Authentication against Google uses either a stored OAuth token (see the
auth command) or a service account credentials file.

Most flags can also be set through environment variables; flags win when
both are present.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loadServeEnvVars(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Transport, "transport", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&cfg.HTTPAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().StringVar(&cfg.LogFormat, "log-format", "json", "Log format: json or text")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn or error")

	cmd.Flags().StringVar(&cfg.Account, "account", "default", "Google account name whose stored token is used")
	cmd.Flags().StringVar(&cfg.User, "user", "", "Identity recorded in audit logs and idempotency keys. Defaults to the account name.")
	cmd.Flags().StringVar(&cfg.ServiceAccountFile, "service-account-file", "", "Path to a service account credentials JSON file. Can also use GOOGLE_SERVICE_ACCOUNT_FILE env var.")

	cmd.Flags().StringVar(&cfg.BearerToken, "bearer-token", "", "Shared bearer token required on the HTTP transport. Can also use BEARER_TOKEN env var.")
	cmd.Flags().StringVar(&cfg.ProtocolVersion, "protocol-version", server.DefaultProtocolVersion, "Accepted MCP protocol version. Can also use MCP_PROTOCOL_VERSION env var.")

	cmd.Flags().IntVar(&cfg.Workers, "max-workers", 5, "Number of concurrent calendar API executors. Can also use MAX_WORKERS env var.")
	cmd.Flags().IntVar(&cfg.QueueSize, "queue-size", 100, "Bound on queued mutations before backpressure. Can also use WORKER_QUEUE_SIZE env var.")
	cmd.Flags().Float64Var(&cfg.RequestsPerSecond, "requests-per-second", 10, "Rate limit across all workers. Can also use MAX_REQUESTS_PER_SECOND env var.")

	cmd.Flags().IntVar(&cfg.MaxRetries, "max-retries", 3, "Retries per calendar API call after the first attempt. Can also use MAX_RETRIES env var.")
	cmd.Flags().DurationVar(&cfg.RetryBaseDelay, "retry-base-delay", time.Second, "First backoff delay. Can also use RETRY_BASE_DELAY env var.")
	cmd.Flags().DurationVar(&cfg.RetryMaxDelay, "retry-max-delay", 60*time.Second, "Upper bound on a single backoff delay. Can also use RETRY_MAX_DELAY env var.")

	cmd.Flags().DurationVar(&cfg.IdempotencyTTL, "idempotency-ttl", idempotency.DefaultTTL, "Deduplication window for repeated tool calls. Can also use IDEMPOTENCY_TTL env var.")
	cmd.Flags().StringVar(&cfg.StorageType, "storage-type", storageTypeMemory, "Idempotency cache backend: memory or valkey. Can also use CACHE_STORAGE_TYPE env var.")
	cmd.Flags().StringVar(&cfg.ValkeyURL, "valkey-url", "", "Valkey server address (e.g., valkey.namespace.svc:6379). Can also use VALKEY_URL env var.")
	cmd.Flags().StringVar(&cfg.ValkeyPassword, "valkey-password", "", "Valkey authentication password. Can also use VALKEY_PASSWORD env var.")
	cmd.Flags().IntVar(&cfg.ValkeyDB, "valkey-db", 0, "Valkey database number. Can also use VALKEY_DB env var.")

	cmd.Flags().StringVar(&cfg.AuditLogFile, "audit-log-file", "", "File receiving audit records as JSON lines. Defaults to stderr. Can also use AUDIT_LOG_FILE env var.")

	cmd.Flags().BoolVar(&cfg.MetricsEnabled, "metrics-enabled", true, "Enable Prometheus metrics on a dedicated port (HTTP transport only). Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// loadServeEnvVars overlays environment variables onto the config.
// Environment variables only apply when the flag was not explicitly set.
func loadServeEnvVars(cmd *cobra.Command, cfg *ServeConfig) {
	setString := func(flag, envVar string, dst *string) {
		if !cmd.Flags().Changed(flag) {
			if v := os.Getenv(envVar); v != "" {
				*dst = v
			}
		}
	}
	setInt := func(flag, envVar string, dst *int) {
		if !cmd.Flags().Changed(flag) {
			if v := os.Getenv(envVar); v != "" {
				if n, err := strconv.Atoi(v); err == nil {
					*dst = n
				}
			}
		}
	}
	setDuration := func(flag, envVar string, dst *time.Duration) {
		if !cmd.Flags().Changed(flag) {
			if v := os.Getenv(envVar); v != "" {
				if d, err := time.ParseDuration(v); err == nil {
					*dst = d
				}
			}
		}
	}

	setString("bearer-token", "BEARER_TOKEN", &cfg.BearerToken)
	setString("protocol-version", "MCP_PROTOCOL_VERSION", &cfg.ProtocolVersion)
	setString("service-account-file", "GOOGLE_SERVICE_ACCOUNT_FILE", &cfg.ServiceAccountFile)
	setString("storage-type", "CACHE_STORAGE_TYPE", &cfg.StorageType)
	setString("valkey-url", "VALKEY_URL", &cfg.ValkeyURL)
	setString("valkey-password", "VALKEY_PASSWORD", &cfg.ValkeyPassword)
	setString("audit-log-file", "AUDIT_LOG_FILE", &cfg.AuditLogFile)
	setString("metrics-addr", "METRICS_ADDR", &cfg.MetricsAddr)

	setInt("max-workers", "MAX_WORKERS", &cfg.Workers)
	setInt("queue-size", "WORKER_QUEUE_SIZE", &cfg.QueueSize)
	setInt("max-retries", "MAX_RETRIES", &cfg.MaxRetries)
	setInt("valkey-db", "VALKEY_DB", &cfg.ValkeyDB)

	setDuration("retry-base-delay", "RETRY_BASE_DELAY", &cfg.RetryBaseDelay)
	setDuration("retry-max-delay", "RETRY_MAX_DELAY", &cfg.RetryMaxDelay)
	setDuration("idempotency-ttl", "IDEMPOTENCY_TTL", &cfg.IdempotencyTTL)

	if !cmd.Flags().Changed("requests-per-second") {
		if v := os.Getenv("MAX_REQUESTS_PER_SECOND"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				cfg.RequestsPerSecond = f
			}
		}
	}
	if !cmd.Flags().Changed("metrics-enabled") {
		if v := os.Getenv("METRICS_ENABLED"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				cfg.MetricsEnabled = b
			}
		}
	}
	if cfg.User == "" {
		cfg.User = cfg.Account
	}
}

func runServe(cfg *ServeConfig) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logging.Setup(cfg.LogFormat, cfg.LogLevel)

	// Instrumentation: metrics only make sense on the HTTP transport where
	// a scrape endpoint can be served.
	instrConfig := instrumentation.DefaultConfig().FromEnv()
	instrConfig.ServiceVersion = version
	instrConfig.Enabled = cfg.Transport != "stdio" && cfg.MetricsEnabled

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	metrics := provider.Metrics()

	// Audit trail
	var auditLogger *audit.Logger
	if cfg.AuditLogFile != "" {
		auditLogger, err = audit.NewFileLogger(cfg.AuditLogFile, logger)
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
	} else {
		auditLogger = audit.NewLogger(os.Stderr, logger)
	}

	// Idempotency cache
	var store idempotency.Store
	switch cfg.StorageType {
	case storageTypeValkey:
		store, err = idempotency.NewValkeyStore(shutdownCtx, idempotency.ValkeyConfig{
			Address:  cfg.ValkeyURL,
			Password: cfg.ValkeyPassword,
			DB:       cfg.ValkeyDB,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to valkey: %w", err)
		}
		logger.Info("idempotency cache using valkey", "address", cfg.ValkeyURL)
	default:
		store = idempotency.NewMemoryStore(cfg.IdempotencyTTL)
	}
	cache := idempotency.NewCache(store, cfg.IdempotencyTTL, logger)

	// Worker pool
	pool := workers.NewPool(workers.Config{
		Workers:           cfg.Workers,
		QueueSize:         cfg.QueueSize,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, logger)
	pool.SetMetrics(metrics)

	// Calendar client
	var tokenProvider google.TokenProvider
	if cfg.ServiceAccountFile != "" {
		tokenProvider = google.NewServiceAccountTokenProvider(cfg.ServiceAccountFile)
	} else {
		tokenProvider = google.NewFileTokenProvider()
	}
	client, err := calendar.NewClientForAccountWithProvider(shutdownCtx, cfg.Account, tokenProvider)
	if err != nil {
		return fmt.Errorf("failed to create calendar client for account %s (run 'calendar-mcp auth' to authorize): %w", cfg.Account, err)
	}

	// Mutation pipeline
	exec := adapter.New(client, pool, retry.Config{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryBaseDelay,
		MaxDelay:   cfg.RetryMaxDelay,
	}, auditLogger, logger)
	exec.SetMetrics(metrics)

	dispatch := router.New(exec, cache, logger)
	dispatch.SetMetrics(metrics)

	serverContext := server.NewServerContext(shutdownCtx, server.Dependencies{
		Logger:      logger,
		Provider:    provider,
		Pool:        pool,
		Cache:       cache,
		AuditLogger: auditLogger,
		Router:      dispatch,
	})
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Error("server context shutdown failed", "error", err)
		}
	}()

	mcpSrv := mcpserver.NewMCPServer("calendar-mcp", version,
		mcpserver.WithToolCapabilities(true),
	)
	if err := calendar_tools.RegisterCalendarTools(mcpSrv, serverContext, calendar_tools.Config{
		User: cfg.User,
	}); err != nil {
		return fmt.Errorf("failed to register calendar tools: %w", err)
	}

	switch cfg.Transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	default:
		return runHTTPServer(shutdownCtx, mcpSrv, serverContext, provider, cfg, logger)
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, serverContext *server.ServerContext, provider *instrumentation.Provider, cfg *ServeConfig, logger *slog.Logger) error {
	if cfg.BearerToken == "" {
		logger.Warn("no bearer token configured, the MCP endpoint is unauthenticated")
	}

	healthChecker := server.NewHealthChecker(serverContext)

	httpSrv := server.NewHTTPServer(mcpSrv, healthChecker, server.HTTPServerConfig{
		Addr:            cfg.HTTPAddr,
		BearerToken:     cfg.BearerToken,
		ProtocolVersion: cfg.ProtocolVersion,
		Metrics:         serverContext.Metrics(),
	})

	var metricsServer *server.MetricsServer
	if cfg.MetricsEnabled && provider.Enabled() {
		var err error
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.MetricsAddr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpSrv.Start(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	logger.Info("MCP server listening",
		"transport", cfg.Transport, "addr", cfg.HTTPAddr, "user", logging.AnonymizeEmail(cfg.User))

	select {
	case <-ctx.Done():
		healthChecker.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown failed", "error", err)
			}
		}
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}
	return nil
}
