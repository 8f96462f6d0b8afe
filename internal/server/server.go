package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/flatmate/internal/handler"
	"github.com/dukerupert/flatmate/internal/middleware"
	"github.com/dukerupert/flatmate/internal/notify"
	"github.com/dukerupert/flatmate/internal/store"
	ws "github.com/dukerupert/flatmate/internal/websocket"
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	apartmentH   *handler.ApartmentHandler
	invitationH  *handler.InvitationHandler
	taskH        *handler.TaskHandler
	taskRequestH *handler.TaskRequestHandler
	sessionStore *store.SessionStore
	accountStore *store.AccountStore
	rateLimiter  *middleware.RateLimiter
	secret       []byte
	logger       *slog.Logger
}

func New(db *sql.DB, secret []byte, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	notifier := notify.New(hub, logger.With("component", "notify"))

	accountStore := store.NewAccountStore(db)
	apartmentStore := store.NewApartmentStore(db)
	invitationStore := store.NewInvitationStore(db)
	taskStore := store.NewTaskStore(db)
	sessionStore := store.NewSessionStore(db)

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(accountStore, sessionStore, secret, logger.With("component", "auth")),
		apartmentH:   handler.NewApartmentHandler(apartmentStore, accountStore, notifier, logger.With("component", "apartment")),
		invitationH:  handler.NewInvitationHandler(invitationStore, apartmentStore, accountStore, notifier, logger.With("component", "invitation")),
		taskH:        handler.NewTaskHandler(taskStore, apartmentStore, accountStore, notifier, logger.With("component", "task")),
		taskRequestH: handler.NewTaskRequestHandler(taskStore, apartmentStore, notifier, logger.With("component", "task_request")),
		sessionStore: sessionStore,
		accountStore: accountStore,
		rateLimiter:  middleware.NewRateLimiter(),
		secret:       secret,
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.secret, s.sessionStore, s.accountStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
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
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)
	mux.HandleFunc("GET /api/me/apartment", s.apartmentH.GetMine)
	mux.HandleFunc("DELETE /api/me/apartment", s.apartmentH.Leave)
	mux.HandleFunc("GET /api/me/invitations", s.invitationH.ListMine)

	// Apartment routes
	mux.HandleFunc("POST /api/apartments", s.apartmentH.Create)
	mux.HandleFunc("DELETE /api/apartments/{id}", s.apartmentH.Delete)
	mux.HandleFunc("DELETE /api/apartments/members/{id}", s.apartmentH.RemoveMember)

	// Invitation routes
	mux.HandleFunc("POST /api/invitations", s.invitationH.Create)
	mux.HandleFunc("POST /api/invitations/{id}/accept", s.invitationH.Accept)
	mux.HandleFunc("POST /api/invitations/{id}/reject", s.invitationH.Reject)
	mux.HandleFunc("DELETE /api/invitations/{id}", s.invitationH.Cancel)

	// Task routes
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/tasks", s.taskH.ListMine)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PUT /api/tasks/{id}", s.taskH.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)
	mux.HandleFunc("PUT /api/tasks/{id}/order", s.taskH.Reorder)
	mux.HandleFunc("PUT /api/tasks/{id}/assignees", s.taskH.UpdateAssignees)

	// Task request routes
	mux.HandleFunc("PATCH /api/task-requests/{id}", s.taskRequestH.SetState)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
