package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mvollmer/tablebook/internal/booking"
	"github.com/mvollmer/tablebook/internal/calendar"
	"github.com/mvollmer/tablebook/internal/dispatch"
	"github.com/mvollmer/tablebook/internal/schema"
	"github.com/mvollmer/tablebook/internal/server"
)

type tokenKey struct{}

// ServiceFactory builds the reservation service for one request from
// its Bearer token. Swappable in tests.
type ServiceFactory func(ctx context.Context, token string) (dispatch.ReservationService, error)

// Gateway is the REST transport over the shared dispatcher.
type Gateway struct {
	sc         *server.ServerContext
	sessions   *server.SessionIDManager
	registry   *schema.Registry
	dispatcher *dispatch.Dispatcher
	health     *server.HealthChecker
	logger     *slog.Logger
	name       string
	version    string
	newService ServiceFactory
}

// New creates a Gateway bound to the server context. The tool catalogue
// and dispatch semantics come from the shared registry, so the REST
// surface can never drift from the MCP one.
func New(sc *server.ServerContext, name, version string) (*Gateway, error) {
	registry, err := schema.NewRegistry()
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		sc:       sc,
		sessions: server.NewSessionIDManagerWithLogger(server.DefaultSessionTimeout, sc.Logger()),
		registry: registry,
		health:   server.NewHealthChecker(sc),
		logger:   sc.Logger(),
		name:     name,
		version:  version,
	}
	g.newService = g.defaultServiceFactory
	g.dispatcher = dispatch.New(registry, g.resolveService, sc.Logger())
	g.dispatcher.SetMetrics(sc.Metrics())
	return g, nil
}

// SetServiceFactory replaces the per-request service constructor.
func (g *Gateway) SetServiceFactory(factory ServiceFactory) {
	g.newService = factory
}

// Close releases gateway resources.
func (g *Gateway) Close() {
	g.health.SetReady(false)
	g.sessions.Stop()
}

// defaultServiceFactory builds a booking service over a calendar client
// authorized by the request's token. The client lives only as long as
// the request.
func (g *Gateway) defaultServiceFactory(ctx context.Context, token string) (dispatch.ReservationService, error) {
	client, err := calendar.NewClientFromToken(ctx, token, g.sc.CalendarID())
	if err != nil {
		return nil, err
	}
	return booking.NewService(client, g.sc.Policy(), g.logger), nil
}

// resolveService is the dispatcher's ServiceResolver: it reads the token
// the run handler stored on the context.
func (g *Gateway) resolveService(ctx context.Context) (dispatch.ReservationService, error) {
	token, _ := ctx.Value(tokenKey{}).(string)
	if token == "" {
		return nil, booking.NewError(booking.KindCredentialMissing,
			"missing Authorization header; pass the calendar backend token as a Bearer token")
	}
	return g.newService(ctx, token)
}

// Router assembles the chi router with the gateway middleware chain.
func (g *Gateway) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(withRecovery(g.logger))
	r.Use(withCORS)
	r.Use(withRequestID)
	r.Use(withLogging(g.logger))
	r.Use(withMetrics(g.sc.Metrics()))

	r.Get("/mcp", g.handleInfo)
	r.Get("/mcp/tools", g.handleListTools)
	r.Post("/mcp/run/{tool}", g.handleRunTool)

	r.Method(http.MethodGet, "/healthz", g.health.LivenessHandler())
	r.Method(http.MethodGet, "/readyz", g.health.ReadinessHandler())

	return r
}

func (g *Gateway) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    g.name,
		"version": g.version,
		"endpoints": map[string]string{
			"tools": "/mcp/tools",
			"run":   "/mcp/run/{tool}",
		},
	})
}

func (g *Gateway) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tools": g.registry.List(),
	})
}

func (g *Gateway) handleRunTool(w http.ResponseWriter, r *http.Request) {
	toolName := chi.URLParam(r, "tool")

	payload, err := decodePayload(r.Body)
	if err != nil {
		res := dispatch.Fail(booking.NewError(booking.KindValidation,
			"request body must be a JSON object: %v", err))
		writeJSON(w, res.HTTPStatus(), res.Envelope())
		return
	}

	ctx := r.Context()
	if token := bearerToken(r); token != "" {
		ctx = context.WithValue(ctx, tokenKey{}, token)

		// Track the caller's session for operational visibility. The
		// session id is a hash of the token, never the token itself.
		if sessionID, serr := g.sessions.ResolveSessionID(r); serr == nil {
			g.logger.Debug("session resolved",
				slog.String("session_id", sessionID),
				slog.String("tool", toolName))
		}
	}

	res := g.dispatcher.Dispatch(ctx, toolName, payload)
	writeJSON(w, res.HTTPStatus(), res.Envelope())
}

// decodePayload parses the request body as a JSON object. An empty body
// is an empty payload; required-field validation happens downstream.
func decodePayload(body io.Reader) (map[string]interface{}, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]interface{}{}, nil
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, errors.New("body decodes to null")
	}
	return payload, nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
