package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/calebdunn/hearth/internal/auth"
	"github.com/calebdunn/hearth/internal/credential"
	"github.com/calebdunn/hearth/internal/events"
	"github.com/calebdunn/hearth/internal/handler"
	"github.com/calebdunn/hearth/internal/middleware"
	"github.com/calebdunn/hearth/internal/rbac"
	"github.com/calebdunn/hearth/internal/store"
	"github.com/calebdunn/hearth/internal/token"
)

// Login attempts per client IP before the limiter pushes back. Household and
// personal PINs are short; brute force has to be throttled here, not in the
// hasher.
const (
	loginRateLimit  = 10
	loginRateWindow = time.Minute
)

type Server struct {
	db          *sql.DB
	hub         *events.Hub
	authH       *handler.AuthHandler
	memberH     *handler.MemberHandler
	memberships *store.MembershipStore
	signer      *token.Signer
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, tokenSecret string, logger *slog.Logger) *Server {
	hub := events.NewHub(logger.With("component", "events"))
	signer := token.NewSigner(tokenSecret)
	hasher := credential.NewHasher(0)

	householdStore := store.NewHouseholdStore(db)
	userStore := store.NewUserStore(db)
	membershipStore := store.NewMembershipStore(db)
	sessionStore := store.NewSessionStore(db)

	sessions := auth.NewSessionManager(sessionStore, signer, logger.With("component", "sessions"))
	svc := auth.NewService(householdStore, userStore, membershipStore, sessions,
		hasher, signer, hub, logger.With("component", "auth"))

	return &Server{
		db:          db,
		hub:         hub,
		authH:       handler.NewAuthHandler(svc, logger.With("component", "auth_handler")),
		memberH:     handler.NewMemberHandler(svc, membershipStore, logger.With("component", "member_handler")),
		memberships: membershipStore,
		signer:      signer,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// Router assembles the HTTP surface: public login-protocol endpoints
// (rate-limited), authenticated member administration, and the event socket.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	limitByIP := middleware.RateLimit(s.rateLimiter, middleware.RealIP, loginRateLimit, loginRateWindow)
	requireAuth := middleware.RequireAuth(s.signer, s.memberships)
	manageMembers := middleware.RequirePermission(s.memberships, rbac.ModuleMembers, rbac.ActionManage, s.logger)
	viewMembers := middleware.RequirePermission(s.memberships, rbac.ModuleMembers, rbac.ActionView, s.logger)

	mux.Handle("POST /api/auth/household", limitByIP(http.HandlerFunc(s.authH.SelectHousehold)))
	mux.Handle("POST /api/auth/login", limitByIP(http.HandlerFunc(s.authH.Login)))
	mux.Handle("POST /api/auth/activate", limitByIP(http.HandlerFunc(s.authH.Activate)))
	mux.Handle("POST /api/auth/register", limitByIP(http.HandlerFunc(s.authH.Register)))
	mux.HandleFunc("POST /api/auth/refresh", s.authH.Refresh)
	mux.Handle("POST /api/auth/logout", requireAuth(http.HandlerFunc(s.authH.Logout)))
	mux.Handle("POST /api/auth/pin", requireAuth(http.HandlerFunc(s.authH.ChangePin)))
	mux.Handle("POST /api/household/pin", requireAuth(http.HandlerFunc(s.authH.ChangeHouseholdPin)))

	mux.Handle("GET /api/members", requireAuth(viewMembers(http.HandlerFunc(s.memberH.List))))
	mux.Handle("POST /api/members/approve", requireAuth(manageMembers(http.HandlerFunc(s.memberH.Approve))))
	mux.Handle("POST /api/members/reject", requireAuth(manageMembers(http.HandlerFunc(s.memberH.Reject))))
	mux.Handle("POST /api/members/invite", requireAuth(manageMembers(http.HandlerFunc(s.memberH.Invite))))
	mux.Handle("POST /api/members/suspend", requireAuth(manageMembers(http.HandlerFunc(s.memberH.Suspend))))
	mux.Handle("POST /api/members/resume", requireAuth(manageMembers(http.HandlerFunc(s.memberH.Resume))))
	mux.Handle("POST /api/members/remove", requireAuth(manageMembers(http.HandlerFunc(s.memberH.Remove))))
	mux.Handle("POST /api/members/role", requireAuth(manageMembers(http.HandlerFunc(s.memberH.ChangeRole))))

	mux.Handle("GET /ws", requireAuth(handler.HandleWebSocket(s.hub, s.logger.With("component", "websocket"))))

	return middleware.RequestLogger(s.logger)(mux)
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}
