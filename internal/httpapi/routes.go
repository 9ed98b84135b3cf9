package httpapi

import (
	"net/http"
	"strconv"

	"github.com/DoyleJ11/crash-backend/internal/hub"
	"github.com/DoyleJ11/crash-backend/internal/metrics"
	"github.com/DoyleJ11/crash-backend/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Deps struct {
	Hub     *hub.Hub
	Metrics *metrics.Recorder
	Rounds  RoundLister // nil when the archive is off
	Origins []string
	Logger  *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.Origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         60 * 15,
	}))
	if d.Metrics != nil {
		r.Use(countRequests(d.Metrics))
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(d.Hub, d.Origins, log))
	r.Post("/tables", CreateTable(d.Hub, log))
	r.Route("/tables/{code}", func(rr chi.Router) {
		rr.Get("/", GetTable(d.Hub))
		rr.Post("/bets", PlaceBet(d.Hub))
		rr.Post("/cashout", Cashout(d.Hub))
		rr.Get("/rounds", Rounds(d.Rounds, log))
	})
	return r
}

// countRequests labels by route pattern so table codes don't blow up the
// label set.
func countRequests(m *metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		})
	}
}
