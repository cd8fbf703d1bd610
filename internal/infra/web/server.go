package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"cover-studio/internal/infra/logging"
	red "cover-studio/internal/infra/redis"
	"cover-studio/internal/usecase"
)

// Submission endpoints share one fixed-window budget per user; reads get
// a looser one.
const (
	submitRateLimit = 10
	readRateLimit   = 120
	rateWindow      = time.Minute
)

type Server struct {
	genUC   usecase.GenerationUseCase
	assetUC usecase.AssetUseCase
	quotaUC usecase.QuotaUseCase
	limiter *red.RateLimiter
	apiKey  string
	log     *zerolog.Logger
	srv     *http.Server
}

func NewServer(
	genUC usecase.GenerationUseCase,
	assetUC usecase.AssetUseCase,
	quotaUC usecase.QuotaUseCase,
	limiter *red.RateLimiter,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		genUC:   genUC,
		assetUC: assetUC,
		quotaUC: quotaUC,
		limiter: limiter,
		apiKey:  apiKey,
		log:     logger,
	}
}

// Router builds the full route tree. Exposed separately from Start so
// tests can drive it with httptest.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(s.authMiddleware)
		api.Use(s.traceMiddleware)

		api.Group(func(rw chi.Router) {
			rw.Use(s.rateLimitMiddleware("submit", submitRateLimit))
			rw.Post("/subjects/{subjectID}/generations", s.submitHandler())
			rw.Post("/subjects/{subjectID}/generations/regenerate", s.regenerateHandler())
			rw.Post("/assets/{assetID}/refine", s.refineHandler())
		})

		api.Group(func(ro chi.Router) {
			ro.Use(s.rateLimitMiddleware("read", readRateLimit))
			ro.Get("/jobs/{jobID}", s.jobStatusHandler())
			ro.Get("/subjects/{subjectID}/assets", s.assetsListHandler())
			ro.Post("/assets/{assetID}/select", s.selectHandler())
			ro.Delete("/assets/{assetID}", s.deleteHandler())
			ro.Get("/usage", s.usageHandler())
		})
	})

	return r
}

func (s *Server) Start(port int) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", port).Msg("HTTP server listening")
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// authMiddleware checks the static bearer key and requires the caller
// identity header. Session handling lives upstream; by the time a request
// reaches this service the gateway has already authenticated the user.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}
		if tokenParts[1] != s.apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if userID == "" {
			http.Error(w, "X-User-ID header is required", http.StatusBadRequest)
			return
		}

		next.ServeHTTP(w, r.WithContext(logging.WithUserID(r.Context(), userID)))
	})
}

func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		w.Header().Set("X-Trace-ID", traceID)
		next.ServeHTTP(w, r.WithContext(logging.WithTraceID(r.Context(), traceID)))
	})
}

// rateLimitMiddleware protects the process from a single flooding caller.
// Redis trouble lets the request through; admission control is the quota
// layer's job, this is only backpressure.
func (s *Server) rateLimitMiddleware(route string, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			key := red.UserRouteKey(userIDFrom(r), route)
			ok, err := s.limiter.Allow(r.Context(), key, limit, rateWindow)
			if err != nil {
				s.log.Warn().Err(err).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func userIDFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-ID"))
}
