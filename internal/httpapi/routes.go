package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DoyleJ11/connect-four-backend/internal/ai"
	"github.com/DoyleJ11/connect-four-backend/internal/hub"
	"github.com/DoyleJ11/connect-four-backend/internal/logging"
	"github.com/DoyleJ11/connect-four-backend/internal/store"
	"github.com/DoyleJ11/connect-four-backend/internal/ws"
)

type Deps struct {
	Hub      *hub.Hub
	Recorder store.Recorder
	Chooser  *ai.Chooser
	// Gatherer backs /metrics; the route is left out when nil.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
	WS       ws.Options
}

func SetupRoutes(d Deps) http.Handler {
	log := logging.OrNop(d.Logger)
	if d.Chooser == nil {
		d.Chooser = ai.NewChooser(nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", Healthz)
	r.Get("/rooms", Rooms(d.Hub))
	r.Get("/matches", Matches(d.Recorder))
	r.Post("/solo/move", SoloMove(d.Chooser))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	if d.WS.Logger == nil {
		d.WS.Logger = log
	}
	r.Get("/ws", ws.Handler(d.Hub, d.WS))
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
