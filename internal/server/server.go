package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/chorewheel/internal/auth"
	"github.com/dukerupert/chorewheel/internal/handler"
	"github.com/dukerupert/chorewheel/internal/household"
	"github.com/dukerupert/chorewheel/internal/middleware"
	"github.com/dukerupert/chorewheel/internal/store"
	ws "github.com/dukerupert/chorewheel/internal/websocket"
)

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

type Config struct {
	JWTSecret      string
	TokenTTL       time.Duration
	AllowedOrigins []string
}

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	authH          *handler.AuthHandler
	householdH     *handler.HouseholdHandler
	userStore      *store.UserStore
	tokens         *auth.TokenIssuer
	rateLimiter    *middleware.RateLimiter
	allowedOrigins []string
	logger         *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	householdStore := store.NewHouseholdStore(db)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	svc := household.NewService(householdStore, logger.With("component", "household"))

	return &Server{
		db:             db,
		hub:            hub,
		authH:          handler.NewAuthHandler(userStore, tokens, logger.With("component", "auth")),
		householdH:     handler.NewHouseholdHandler(svc, hub, logger.With("component", "household_handler")),
		userStore:      userStore,
		tokens:         tokens,
		rateLimiter:    middleware.NewRateLimiter(authRateLimit, authRateWindow),
		allowedOrigins: cfg.AllowedOrigins,
		logger:         logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.Handle("POST /api/auth/register", s.rateLimited(s.authH.Register))
	outerMux.Handle("POST /api/auth/login", s.rateLimited(s.authH.Login))
	outerMux.HandleFunc("GET /api/health", s.healthHandler)

	// Everything else requires a bearer token
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.tokens, s.userStore, s.logger.With("component", "auth_middleware"))
	outerMux.Handle("/", authMiddleware(protectedMux))

	h := middleware.CORS(s.allowedOrigins)(outerMux)
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) rateLimited(h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.RealIP)(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Household routes
	mux.HandleFunc("POST /api/households", s.householdH.Create)
	mux.HandleFunc("POST /api/households/join", s.householdH.Join)
	mux.HandleFunc("GET /api/households/mine", s.householdH.Mine)
	mux.HandleFunc("DELETE /api/households/leave", s.householdH.Leave)

	// Chore routes, scoped to the caller's household
	mux.HandleFunc("POST /api/households/chores", s.householdH.AddChore)
	mux.HandleFunc("POST /api/households/chores/rotate", s.householdH.Rotate)
	mux.HandleFunc("PATCH /api/households/chores/{id}", s.householdH.UpdateChore)
	mux.HandleFunc("DELETE /api/households/chores/{id}", s.householdH.DeleteChore)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.allowedOrigins, s.logger.With("component", "websocket")))
}
