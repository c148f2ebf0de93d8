package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/joshp123/godaikin/internal/bridge"
	"github.com/joshp123/godaikin/internal/logging"
	"github.com/joshp123/godaikin/plugins/daikin"
)

const maxCommandBytes = 1 << 10

// Bridge is what the HTTP API needs from the controller.
type Bridge interface {
	Status() bridge.Status
	Views() []bridge.UnitView
	View(uniqueID string) (bridge.UnitView, bool)
	SendCommand(ctx context.Context, unitID, key, value string) error
}

type Deps struct {
	Bridge Bridge
	// Cloud is optional; when set /api/status includes the cloud session.
	Cloud      daikin.HealthSource
	Registry   *prometheus.Registry
	Dashboards map[string][]byte
	Logger     *zap.Logger
}

type api struct {
	bridge Bridge
	cloud  daikin.HealthSource
	logger *zap.Logger
}

// NewRouter wires health, metrics, the unit API and dashboards.
func NewRouter(deps Deps) http.Handler {
	logger := logging.OrNop(deps.Logger).Named("http")
	a := &api{bridge: deps.Bridge, cloud: deps.Cloud, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(20 * time.Second))

	r.Get("/health", a.health)
	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", MetricsHandler(deps.Registry))
	}
	r.Route("/api", func(apiRouter chi.Router) {
		apiRouter.Get("/status", a.status)
		apiRouter.Get("/units", a.listUnits)
		apiRouter.Get("/units/{id}", a.getUnit)
		apiRouter.Post("/units/{id}/set/{key}", a.sendCommand)
	})
	r.Method(http.MethodGet, "/dashboards/*", DashboardsHandler(deps.Dashboards))
	return r
}

// health is ready only once the bridge polls steadily.
func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	state := a.bridge.Status().State
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if state != bridge.StateSteady {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(state.String()))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *api) status(w http.ResponseWriter, _ *http.Request) {
	st := a.bridge.Status()
	body := map[string]any{
		"state": st.State.String(),
		"units": st.Units,
	}
	if !st.LastPoll.IsZero() {
		body["last_poll"] = st.LastPoll.UTC().Format(time.RFC3339)
	}
	if a.cloud != nil {
		body["cloud"] = a.cloud.Health()
	}
	writeJSON(w, http.StatusOK, body)
}

func (a *api) listUnits(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"units": a.bridge.Views()})
}

func (a *api) getUnit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, ok := a.bridge.View(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unit_not_found", "unknown unit "+strconv.Quote(id))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// sendCommand takes the raw request body as the value, the same as an MQTT
// set payload.
func (a *api) sendCommand(w http.ResponseWriter, r *http.Request) {
	id, key := chi.URLParam(r, "id"), chi.URLParam(r, "key")
	if _, ok := a.bridge.View(id); !ok {
		writeError(w, http.StatusNotFound, "unit_not_found", "unknown unit "+strconv.Quote(id))
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCommandBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	err = a.bridge.SendCommand(r.Context(), id, key, string(body))
	var decodeErr *bridge.DecodeError
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
	case errors.As(err, &decodeErr):
		writeError(w, http.StatusBadRequest, "invalid_command", decodeErr.Reason)
	default:
		a.logger.Warn("command failed", zap.String("unit", id), zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
	}
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
