package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mvollmer/tablebook/internal/booking"
	"github.com/mvollmer/tablebook/internal/gateway"
	"github.com/mvollmer/tablebook/internal/google"
	"github.com/mvollmer/tablebook/internal/instrumentation"
	"github.com/mvollmer/tablebook/internal/server"
	"github.com/mvollmer/tablebook/internal/tools/common"
	"github.com/mvollmer/tablebook/internal/tools/reservation_tools"
)

// AccountHeader lets HTTP callers pin the backend account the server
// should use for their session.
const AccountHeader = "X-Tablebook-Account"

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

// BookingConfig holds the reservation policy settings fixed at startup.
type BookingConfig struct {
	// CalendarID is the shared booking calendar all reservations live in.
	CalendarID string

	// SlotMinutes is the fixed reservation length in minutes.
	SlotMinutes int

	// TimeZone is the restaurant's IANA time zone. Incoming date/time
	// pairs are interpreted in this zone.
	TimeZone string

	// Accounts are backend accounts to warm up at startup so credential
	// problems surface before the first invocation.
	Accounts []string
}

func newServeCmd() *cobra.Command {
	var (
		debugMode bool
		transport string
		httpAddr  string
		// Booking policy
		calendarID  string
		slotMinutes int
		timeZone    string
		accounts    string
		// Metrics server configuration
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the reservation server",
		Long: `Start the reservation server that exposes the booking tools
(create_reservation, check_availability, cancel_reservation) to clients.

Supports multiple transport types:
  - stdio: Standard input/output MCP server (default)
  - streamable-http: Streamable HTTP MCP transport
  - http: REST gateway (GET /mcp, GET /mcp/tools, POST /mcp/run/{tool})

Credentials:
  STDIO Transport:
    Reads the stored backend token for the configured account.
    Run "tablebook auth login" first to store one.

  HTTP Transports:
    The REST gateway expects the caller's backend token as a Bearer
    token on every request. The streamable MCP transport maps Bearer
    tokens to stored accounts; pin one with the ` + AccountHeader + ` header.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bookingConfig := BookingConfig{
				CalendarID:  calendarID,
				SlotMinutes: slotMinutes,
				TimeZone:    timeZone,
				Accounts:    parseCommaSeparatedList(accounts),
			}

			metricsConfig := MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    metricsAddr,
			}

			return runServe(transport, debugMode, httpAddr, bookingConfig, metricsConfig)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type: stdio, streamable-http, or http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http and http transports)")

	cmd.Flags().StringVar(&calendarID, "calendar-id", "", "Booking calendar id. Can also use TABLEBOOK_CALENDAR_ID env var. Default: primary")
	cmd.Flags().IntVar(&slotMinutes, "reservation-minutes", 0, "Reservation slot length in minutes. Can also use TABLEBOOK_RESERVATION_MINUTES env var. Default: 120")
	cmd.Flags().StringVar(&timeZone, "time-zone", "", "IANA time zone reservations are requested in. Can also use TABLEBOOK_TIME_ZONE env var. Default: UTC")
	cmd.Flags().StringVar(&accounts, "accounts", "", "Comma-separated backend accounts to warm up at startup (stdio transport)")

	// Metrics server flags
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(transport string, debugMode bool, httpAddr string, bookingConfig BookingConfig, metricsConfig MetricsConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Structured logs go to stderr; stdout belongs to the stdio transport.
	logLevel := slog.LevelInfo
	if debugMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Load metrics config from environment if not set via flags
	if !metricsConfig.Enabled {
		if os.Getenv("METRICS_ENABLED") == "true" {
			metricsConfig.Enabled = true
		}
	}
	if metricsConfig.Addr == "" || metricsConfig.Addr == ":9090" {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			metricsConfig.Addr = addr
		}
	}

	// Load booking policy from environment if not set via flags
	if bookingConfig.CalendarID == "" {
		bookingConfig.CalendarID = os.Getenv("TABLEBOOK_CALENDAR_ID")
	}
	if bookingConfig.SlotMinutes == 0 {
		if minutes := os.Getenv("TABLEBOOK_RESERVATION_MINUTES"); minutes != "" {
			if parsed, err := strconv.Atoi(minutes); err == nil && parsed > 0 {
				bookingConfig.SlotMinutes = parsed
			} else {
				log.Printf("Warning: invalid TABLEBOOK_RESERVATION_MINUTES value %q, using default", minutes)
			}
		}
	}
	if bookingConfig.TimeZone == "" {
		bookingConfig.TimeZone = os.Getenv("TABLEBOOK_TIME_ZONE")
	}

	policy, err := buildPolicy(bookingConfig)
	if err != nil {
		return err
	}

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			if transport != "stdio" {
				log.Printf("Error during instrumentation shutdown: %v", err)
			}
		}
	}()

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if transport != "stdio" && metricsConfig.Enabled && provider.Enabled() {
		var err error
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsConfig.Addr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		// Wait for metrics server to be ready or fail
		select {
		case <-metricsReady:
			log.Printf("Metrics server started on %s", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}

	// Move any pre-multi-account token into the account-scoped location.
	if err := google.MigrateDefaultToken(); err != nil && transport != "stdio" {
		log.Printf("Warning: token migration failed: %v", err)
	}

	// Create server context
	serverContext, err := server.NewServerContext(shutdownCtx, bookingConfig.CalendarID, policy, logger)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}

	// Attach metrics and audit logging for tool instrumentation
	if provider.Enabled() {
		serverContext.SetInstrumentation(provider,
			instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging))
	}
	defer func() {
		// Shutdown metrics server first
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error during metrics server shutdown: %v", err)
			}
		}
		if err := serverContext.Shutdown(); err != nil {
			if transport != "stdio" {
				log.Printf("Error during server context shutdown: %v", err)
			}
		}
	}()

	// Warm up requested accounts so stored-token problems surface now
	for _, account := range bookingConfig.Accounts {
		if serverContext.CalendarClientForAccount(account) == nil {
			logger.Warn("no stored token for account", slog.String("account", account))
		}
	}

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("tablebook", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)

	// Register all tools
	if err := registerAllTools(mcpSrv, serverContext); err != nil {
		return err
	}

	// Start the appropriate server based on transport type
	switch transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "streamable-http":
		fmt.Printf("Starting tablebook MCP server with %s transport...\n", transport)
		return runStreamableHTTPServer(mcpSrv, serverContext, httpAddr, shutdownCtx)
	case "http":
		fmt.Printf("Starting tablebook REST gateway...\n")
		return runGatewayServer(serverContext, httpAddr, shutdownCtx)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http, http)", transport)
	}
}

// buildPolicy validates the booking settings into a service policy.
func buildPolicy(cfg BookingConfig) (booking.Policy, error) {
	policy := booking.Policy{}

	if cfg.SlotMinutes < 0 {
		return policy, fmt.Errorf("reservation minutes must be positive, got %d", cfg.SlotMinutes)
	}
	if cfg.SlotMinutes > 0 {
		policy.SlotDuration = time.Duration(cfg.SlotMinutes) * time.Minute
	}

	if cfg.TimeZone != "" {
		loc, err := time.LoadLocation(cfg.TimeZone)
		if err != nil {
			return policy, fmt.Errorf("invalid time zone %q: %w", cfg.TimeZone, err)
		}
		policy.Location = loc
	}

	return policy, nil
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

// registerAllTools registers all MCP tools
func registerAllTools(mcpSrv *mcpserver.MCPServer, ctx *server.ServerContext) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Reservation",
			register: func() error {
				return reservation_tools.RegisterReservationTools(mcpSrv, ctx)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}

	return nil
}

// accountResolvingHandler lets HTTP callers bind their session to a
// stored backend account. The account travels on the request context so
// tool handlers pick the matching credential.
func accountResolvingHandler(sessions *server.SessionIDManager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if sessionID, err := sessions.ResolveSessionID(r); err == nil {
			if account := r.Header.Get(AccountHeader); account != "" {
				sessions.SetAccountForSession(sessionID, account)
			}
			ctx = common.ContextWithAccount(ctx, sessions.GetAccountForSession(sessionID))
		} else if account := r.Header.Get(AccountHeader); account != "" {
			ctx = common.ContextWithAccount(ctx, account)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func runStreamableHTTPServer(mcpSrv *mcpserver.MCPServer, serverContext *server.ServerContext, addr string, ctx context.Context) error {
	streamableServer := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath("/mcp"),
	)

	sessions := server.NewSessionIDManagerWithLogger(server.DefaultSessionTimeout, serverContext.Logger())
	defer sessions.Stop()

	health := server.NewHealthChecker(serverContext)

	mux := http.NewServeMux()
	mux.Handle("/mcp", accountResolvingHandler(sessions, streamableServer))
	health.RegisterHealthEndpoints(mux)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	log.Printf("MCP server listening on %s (endpoint /mcp)", addr)

	select {
	case <-ctx.Done():
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-serverDone:
		return err
	}
}

func runGatewayServer(serverContext *server.ServerContext, addr string, ctx context.Context) error {
	gw, err := gateway.New(serverContext, "tablebook", version)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}
	defer gw.Close()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           gw.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	log.Printf("REST gateway listening on %s", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-serverDone:
		return err
	}
}

// parseCommaSeparatedList splits a comma-separated string into a slice,
// trimming whitespace and skipping empty entries. Returns nil for an
// empty input.
func parseCommaSeparatedList(input string) []string {
	if input == "" {
		return nil
	}

	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
