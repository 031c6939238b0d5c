package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oshokin/mova-viewer/internal/domain/alarm"
	"github.com/oshokin/mova-viewer/internal/domain/mova"
	"github.com/oshokin/mova-viewer/internal/logger"
	"github.com/oshokin/mova-viewer/internal/repository/archive"
)

// Service abstracts the viewer operations the HTTP layer depends on.
type Service interface {
	Status(ctx context.Context) *mova.Status
	CurrentSnapshot(ctx context.Context, display bool) *mova.Snapshot
	Snapshot(ctx context.Context, seq int64) (*mova.Snapshot, bool)
	History(ctx context.Context, n int) []*mova.Snapshot
	ActiveAlerts(ctx context.Context) []*alarm.Alert
	AlertHistory(ctx context.Context, limit int) []*alarm.Alert
	Acknowledge(ctx context.Context, id int64) bool
	ClearAlerts(ctx context.Context)
	Pin(ctx context.Context, seq int64) *mova.Snapshot
	Unpin(ctx context.Context)
	Reset(ctx context.Context)
	DrainEvents(ctx context.Context) []mova.Event
	DrainRawLines(ctx context.Context) []string
	SetRecording(ctx context.Context, path string) error
	ControlReplay(ctx context.Context, control mova.ReplayControl) error
	Archived(ctx context.Context) ([]archive.Entry, error)
	ArchivedSnapshot(ctx context.Context, seq int64) (*mova.Snapshot, error)
}

// Handler serves the JSON API.
type Handler struct {
	service Service
	router  chi.Router
}

// requestTimeout bounds every API request.
const requestTimeout = 10 * time.Second

// NewHandler builds the router. metrics is mounted at /metrics when not nil.
func NewHandler(ctx context.Context, service Service, metrics http.Handler) *Handler {
	h := &Handler{
		service: service,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger.WithName(ctx, "http")))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Use(middleware.SetHeader("Cache-Control", "no-store"))

		r.Get("/status", h.handleStatus)

		r.Get("/snapshot", h.handleSnapshot)
		r.Get("/snapshots/{seq}", h.handleFindSnapshot)
		r.Get("/history", h.handleHistory)

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.handleAlerts)
			r.Delete("/", h.handleClearAlerts)
			r.Get("/history", h.handleAlertHistory)
			r.Post("/{id}/ack", h.handleAcknowledge)
		})

		r.Post("/pin", h.handlePin)
		r.Delete("/pin", h.handleUnpin)
		r.Post("/reset", h.handleReset)

		r.Get("/events", h.handleEvents)
		r.Get("/raw", h.handleRawLines)

		r.Put("/recording", h.handleStartRecording)
		r.Delete("/recording", h.handleStopRecording)
		r.Post("/replay", h.handleReplay)

		r.Get("/archive", h.handleArchive)
		r.Get("/archive/{seq}", h.handleArchivedSnapshot)
	})

	h.router = r

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// requestLogger logs one line per request through the context logger.
func requestLogger(ctx context.Context) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				ww      = middleware.NewWrapResponseWriter(w, r.ProtoMajor)
				started = time.Now()
			)

			defer func() {
				logger.DebugKV(ctx, "Request served",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(started),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
