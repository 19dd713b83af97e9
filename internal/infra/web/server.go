package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"qarzdaftari/internal/domain/ports/adapter"
	"qarzdaftari/internal/infra/logging"
	"qarzdaftari/internal/usecase"
)

// Server exposes the provider webhooks and the internal payments API.
type Server struct {
	checkout  usecase.CheckoutUseCase
	providers []adapter.PaymentProvider
	auth      *AuthManager
	log       *zerolog.Logger
	srv       *http.Server
}

func NewServer(checkout usecase.CheckoutUseCase, providers []adapter.PaymentProvider, auth *AuthManager, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{checkout: checkout, providers: providers, auth: auth, log: &l}
}

// Router builds the route tree. Webhooks are mounted per provider under
// /payments/{provider}; the internal API sits behind session auth.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogContext)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	for _, p := range s.providers {
		name := string(p.Name())
		r.Post("/payments/"+name, providerLogContext(name, p.Webhook()))
	}

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/initiate", s.initiateHandler)
		r.Get("/history", s.historyHandler)
	})

	return r
}

func (s *Server) Start(port int) error {
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router(),
	}
	s.log.Info().Int("port", port).Msg("http server listening")
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// requestLogContext copies the chi request id into the log field context so
// every layer below tags its lines with it.
func requestLogContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// providerLogContext stamps the provider name into the log field context
// before handing the request to the adapter.
func providerLogContext(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next(w, r.WithContext(logging.WithProvider(r.Context(), name)))
	}
}

// authMiddleware authenticates the internal API with the session JWT and
// stashes the user id in the request and log contexts.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := withUserID(r.Context(), claims.Subject)
		ctx = logging.WithUserID(ctx, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
