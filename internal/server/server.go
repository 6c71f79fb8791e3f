package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"webwatch/internal/claim"
	"webwatch/internal/email"
	"webwatch/internal/handler"
	"webwatch/internal/middleware"
	"webwatch/internal/monitor"
	"webwatch/internal/probe"
	"webwatch/internal/store"
	"webwatch/internal/sweep"
	ws "webwatch/internal/websocket"
)

// Config carries the runtime knobs the server needs beyond its stores.
type Config struct {
	JWTSecret []byte
	Probe     probe.Config
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	tokenStore    *store.VisitorTokenStore
	visitorTokenH *handler.VisitorTokenHandler
	websiteH      *handler.WebsiteHandler
	userH         *handler.UserHandler
	migrateH      *handler.MigrateHandler
	sweepSched    *sweep.Scheduler
	monitorSched  *monitor.Scheduler
	rateLimiter   *middleware.RateLimiter
	jwtSecret     []byte
	logger        *slog.Logger
}

func New(db *sql.DB, emailClient *email.Client, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	tokenStore := store.NewVisitorTokenStore(db)
	websiteStore := store.NewWebsiteStore(db)
	userStore := store.NewUserStore(db)

	checker := probe.NewChecker(cfg.Probe)
	engine := claim.New(tokenStore, websiteStore, logger)
	mon := monitor.New(websiteStore, userStore, checker, hub, emailClient, logger)
	sweeper := sweep.New(tokenStore, websiteStore, logger)

	return &Server{
		db:            db,
		hub:           hub,
		tokenStore:    tokenStore,
		visitorTokenH: handler.NewVisitorTokenHandler(tokenStore, websiteStore, logger.With("component", "visitor_token")),
		websiteH:      handler.NewWebsiteHandler(websiteStore, checker, mon, hub, logger.With("component", "website")),
		userH:         handler.NewUserHandler(userStore, engine, emailClient, hub, cfg.JWTSecret, logger.With("component", "user")),
		migrateH:      handler.NewMigrateHandler(engine, hub, logger.With("component", "migrate")),
		sweepSched:    sweep.NewScheduler(sweeper),
		monitorSched:  monitor.NewScheduler(mon),
		rateLimiter:   middleware.NewRateLimiter(),
		jwtSecret:     cfg.JWTSecret,
		logger:        logger,
	}
}

// SweepScheduler returns the token expiry sweep scheduler.
func (s *Server) SweepScheduler() *sweep.Scheduler {
	return s.sweepSched
}

// MonitorScheduler returns the recurring health check scheduler.
func (s *Server) MonitorScheduler() *monitor.Scheduler {
	return s.monitorSched
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("POST /visitor/token", s.visitorTokenH.Issue)
	mux.HandleFunc("GET /visitor/token/{token}", s.visitorTokenH.Validate)
	mux.HandleFunc("GET /visitor/token/{token}/stats", s.visitorTokenH.Stats)
	mux.HandleFunc("POST /user/signup", s.rateLimitedHandler(s.userH.Signup))
	mux.HandleFunc("POST /user/login", s.rateLimitedHandler(s.userH.Login))
	mux.HandleFunc("POST /user/refresh-token", s.userH.Refresh)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /ws", ws.HandleWebSocket(s.hub))

	// Guest routes
	optionalVisitor := middleware.OptionalVisitorToken(s.tokenStore)
	requireVisitor := middleware.RequireVisitorToken(s.tokenStore)
	mux.Handle("POST /guest", optionalVisitor(http.HandlerFunc(s.websiteH.GuestCreate)))
	mux.Handle("GET /guest/websites", requireVisitor(http.HandlerFunc(s.websiteH.GuestList)))
	mux.Handle("DELETE /guest/website/{id}", requireVisitor(http.HandlerFunc(s.websiteH.GuestDelete)))

	// Account routes
	requireAuth := middleware.RequireAuth(s.jwtSecret)
	mux.Handle("POST /website", requireAuth(http.HandlerFunc(s.websiteH.Create)))
	mux.Handle("GET /website", requireAuth(http.HandlerFunc(s.websiteH.List)))
	mux.Handle("DELETE /website/{id}", requireAuth(http.HandlerFunc(s.websiteH.Delete)))
	mux.Handle("POST /migrate", requireAuth(http.HandlerFunc(s.migrateH.Migrate)))

	// Either identity works for a forced recheck
	requireIdentity := middleware.RequireIdentity(s.jwtSecret, s.tokenStore)
	mux.Handle("POST /website/{id}/recheck", requireIdentity(http.HandlerFunc(s.websiteH.Recheck)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(h).ServeHTTP(w, r)
	}
}
