// Package server assembles the HTTP router that hosts the billing RPCs.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/billtx/internal/api"
	"github.com/mmynk/billtx/internal/auth"
	"github.com/mmynk/billtx/internal/metrics"
	"github.com/mmynk/billtx/internal/middleware"
)

type RouterConfig struct {
	Billing *api.BillingHandler
	Metrics *metrics.Metrics
	// JWT enables bearer token checks on every RPC when set.
	JWT    *auth.JWTManager
	Logger *slog.Logger
}

// NewRouter mounts the billing service, /healthz and /metrics on a chi router.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interceptors := []connect.Interceptor{middleware.MetricsInterceptor(cfg.Metrics)}
	if cfg.JWT != nil {
		interceptors = append(interceptors, middleware.RequireAuth(cfg.JWT))
	}
	interceptors = append(interceptors, middleware.LoggingInterceptor(logger))

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(accessLog(logger))
	r.Use(cors)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", cfg.Metrics.Handler())

	path, handler := api.NewBillingServiceHandler(cfg.Billing, connect.WithInterceptors(interceptors...))
	r.Handle(path+"*", handler)

	return r
}

// H2C wraps h so Connect clients can use HTTP/2 without TLS.
func H2C(h http.Handler) http.Handler {
	return h2c.NewHandler(h, &http2.Server{})
}

// accessLog logs all incoming requests
func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("Request completed",
				"request_id", chimw.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"remote_addr", r.RemoteAddr,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// cors adds CORS headers for browser access
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
