package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"notedrop/internal/auth"
	"notedrop/internal/notes"
	"notedrop/internal/store"
)

const sessionCookie = "notedrop_session"

// AuthService is the owner account surface used by the handlers.
type AuthService interface {
	SetupOwner(ctx context.Context, phone, password string) (*store.Owner, error)
	Login(ctx context.Context, password, client string) (*auth.Session, error)
	Logout(ctx context.Context, sessionID string)
	OwnerConfigured(ctx context.Context) (bool, error)
	Session(ctx context.Context, sessionID string) (*auth.Session, bool)
}

type RecoveryService interface {
	RequestOTP(ctx context.Context, phone string) (string, error)
	VerifyAndReset(ctx context.Context, phone, code, newPassword string) error
}

type NotesService interface {
	UploadNote(ctx context.Context, in notes.UploadInput) (*store.Note, error)
	ListNotes(ctx context.Context) ([]store.Note, error)
	GetNote(ctx context.Context, id int64) (*store.Note, error)
	RecordDownload(ctx context.Context, in notes.DownloadInput) (*notes.Transfer, error)
	DashboardSummary(ctx context.Context) ([]store.NoteSummary, error)
	DownloadsForNote(ctx context.Context, noteID int64) ([]store.Download, error)
}

// Pinger reports database reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Addr           string // e.g. ":3000"
	Version        string
	MaxUploadBytes int64
	CookieSecure   bool
	OwnerName      string

	// FormRateLimit caps POSTs to the login, setup and recovery forms per
	// client IP within FormRateWindow. Zero disables the limit.
	FormRateLimit  int
	FormRateWindow time.Duration

	// TrustProxy makes rate limits and login lockouts key on X-Forwarded-For
	// and X-Real-IP. Leave it off unless a proxy overwrites those headers.
	TrustProxy bool
}

type Deps struct {
	Auth     AuthService
	Recovery RecoveryService
	Notes    NotesService
	DB       Pinger
	Logger   *slog.Logger
}

type Server struct {
	cfg        Config
	auth       AuthService
	recovery   RecoveryService
	notes      NotesService
	db         Pinger
	log        *slog.Logger
	pages      *renderer
	metrics    *Metrics
	limiter    *rateLimiter
	started    time.Time
	httpServer *http.Server
}

func New(cfg Config, deps Deps) (*Server, error) {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}
	if cfg.OwnerName == "" {
		cfg.OwnerName = "Owner"
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	pages, err := newRenderer()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		auth:     deps.Auth,
		recovery: deps.Recovery,
		notes:    deps.Notes,
		db:       deps.DB,
		log:      deps.Logger.With("component", "http"),
		pages:    pages,
		metrics:  &Metrics{},
		started:  time.Now(),
	}
	if cfg.FormRateLimit > 0 {
		if cfg.FormRateWindow <= 0 {
			cfg.FormRateWindow = time.Minute
		}
		s.limiter = newRateLimiter(cfg.FormRateLimit, cfg.FormRateWindow)
		s.limiter.key = s.requesterIP
	}

	// requestID -> logging -> security headers -> mux
	var handler http.Handler = s.routes()
	handler = securityHeadersMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = s.requestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("GET /static/", staticHandler())
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /upload", s.handleUploadForm)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /notes", s.handleNotes)
	mux.HandleFunc("GET /download/{id}", s.handleDownloadForm)
	mux.HandleFunc("POST /download/{id}/confirm", s.handleDownloadConfirm)
	mux.HandleFunc("GET /dashboard", s.handleDashboard)
	mux.HandleFunc("GET /note/{id}/downloads", s.handleNoteDownloads)

	mux.HandleFunc("GET /owner", s.handleOwner)
	mux.HandleFunc("POST /owner-setup", s.limited(s.handleOwnerSetup))
	mux.HandleFunc("POST /owner-login", s.limited(s.handleOwnerLogin))
	mux.HandleFunc("GET /owner-logout", s.handleOwnerLogout)
	mux.HandleFunc("POST /owner-upload", s.handleOwnerUpload)

	mux.HandleFunc("GET /owner-forgot", s.handleForgotForm)
	mux.HandleFunc("POST /owner-forgot-request", s.limited(s.handleForgotRequest))
	mux.HandleFunc("POST /owner-forgot-verify", s.limited(s.handleForgotVerify))

	return mux
}

func (s *Server) limited(h http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return h
	}
	return s.limiter.middleware(h)
}

// Handler returns the fully wrapped handler; tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Metrics exposes the live counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

// Shutdown drains in-flight requests and stops background sweepers.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.close()
	}
	return s.httpServer.Shutdown(ctx)
}
