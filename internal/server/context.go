package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mvollmer/tablebook/internal/booking"
	"github.com/mvollmer/tablebook/internal/calendar"
	"github.com/mvollmer/tablebook/internal/google"
	"github.com/mvollmer/tablebook/internal/instrumentation"
)

// ServerContext holds the context for the reservation server
type ServerContext struct {
	ctx             context.Context
	cancel          context.CancelFunc
	calendarClients map[string]*calendar.Client // Maps account name to Calendar client
	services        map[string]*booking.Service // Maps account name to booking service
	calendarID      string
	policy          booking.Policy
	logger          *slog.Logger
	provider        *instrumentation.Provider
	metrics         *instrumentation.Metrics
	audit           *instrumentation.AuditLogger
	mu              sync.RWMutex
	shutdown        bool
}

// NewServerContext creates a new server context. The booking calendar id
// and slot policy apply to every account-scoped service created from it.
func NewServerContext(ctx context.Context, calendarID string, policy booking.Policy, logger *slog.Logger) (*ServerContext, error) {
	shutdownCtx, cancel := context.WithCancel(ctx)

	if logger == nil {
		logger = slog.Default()
	}
	if calendarID == "" {
		calendarID = calendar.DefaultCalendarID
	}

	return &ServerContext{
		ctx:             shutdownCtx,
		cancel:          cancel,
		calendarClients: make(map[string]*calendar.Client),
		services:        make(map[string]*booking.Service),
		calendarID:      calendarID,
		policy:          policy,
		logger:          logger,
		audit:           instrumentation.NewAuditLogger(logger),
		shutdown:        false,
	}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Logger returns the server's structured logger
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// CalendarID returns the booking calendar id
func (sc *ServerContext) CalendarID() string {
	return sc.calendarID
}

// Policy returns the booking policy shared by every service built from
// this context.
func (sc *ServerContext) Policy() booking.Policy {
	return sc.policy
}

// SetInstrumentation attaches an instrumentation provider. The audit
// logger is reconfigured from the provider's config.
func (sc *ServerContext) SetInstrumentation(provider *instrumentation.Provider, audit *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.provider = provider
	if audit != nil {
		sc.audit = audit
	}
}

// SetMetrics attaches a metrics recorder directly, bypassing the
// provider. Used by tests and by transports that build their own meter.
func (sc *ServerContext) SetMetrics(metrics *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = metrics
}

// Metrics returns the metrics recorder, or nil when instrumentation is
// not attached.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	if sc.metrics != nil {
		return sc.metrics
	}
	if sc.provider == nil {
		return nil
	}
	return sc.provider.Metrics()
}

// AuditLogger returns the audit logger
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.audit
}

// CalendarClientForAccount returns the Calendar client for a specific account
// Creates and caches the client if it doesn't exist yet
// Returns nil if the account has no token
func (sc *ServerContext) CalendarClientForAccount(account string) *calendar.Client {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	// Check if client already exists
	if client, ok := sc.calendarClients[account]; ok {
		return client
	}

	// Try to create client if token exists
	if !calendar.HasTokenForAccount(account) {
		return nil
	}

	client, err := calendar.NewClientForAccount(sc.ctx, account, sc.calendarID, google.NewFileTokenProvider())
	if err != nil {
		sc.logger.Warn("failed to create Calendar client", "account", account, "error", err)
		return nil
	}

	sc.calendarClients[account] = client
	return client
}

// CalendarClient returns the Calendar client for the default account
func (sc *ServerContext) CalendarClient() *calendar.Client {
	return sc.CalendarClientForAccount(google.DefaultAccount)
}

// SetCalendarClientForAccount sets the Calendar client for a specific account
func (sc *ServerContext) SetCalendarClientForAccount(account string, client *calendar.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.calendarClients[account] = client
	delete(sc.services, account)
}

// ServiceForAccount returns the booking service for a specific account.
// A credential_missing error is returned when the account has no usable
// OAuth token.
func (sc *ServerContext) ServiceForAccount(account string) (*booking.Service, error) {
	sc.mu.RLock()
	if svc, ok := sc.services[account]; ok {
		sc.mu.RUnlock()
		return svc, nil
	}
	sc.mu.RUnlock()

	client := sc.CalendarClientForAccount(account)
	if client == nil {
		return nil, booking.NewError(booking.KindCredentialMissing,
			"%s", google.GetAuthenticationErrorMessage(account))
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if svc, ok := sc.services[account]; ok {
		return svc, nil
	}
	svc := booking.NewService(client, sc.policy, sc.logger)
	sc.services[account] = svc
	return svc, nil
}

// Service returns the booking service for the default account
func (sc *ServerContext) Service() (*booking.Service, error) {
	return sc.ServiceForAccount(google.DefaultAccount)
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
