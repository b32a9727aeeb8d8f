package router

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/linkhoard/service-auth-go/internal/guard"
	"github.com/ovaphlow/linkhoard/service-auth-go/internal/session"
	"github.com/ovaphlow/linkhoard/service-auth-go/internal/setting"
	"github.com/ovaphlow/linkhoard/service-auth-go/internal/user"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			// ensure status is set
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Pages carries the UI handlers owned by the main bookmark application.
// Nil handlers are simply not mounted; the auth service runs fine on its
// own for API consumers.
type Pages struct {
	Admin http.Handler
	Home  http.Handler
}

// RegisterRoutes mounts the auth endpoints on a stdlib http.ServeMux.
// Protected routes are wrapped by the guard; the admin and home UI routes
// additionally sit behind their secret-path gates.
func RegisterRoutes(logger *zap.SugaredLogger, users *user.Service, sessions *session.Service, settings *setting.Service, pages Pages) http.Handler {
	mux := http.NewServeMux()

	g := guard.New(sessions, settings, logger)
	userHandler := user.NewHandler(users, sessions, settings, logger)
	settingHandler := setting.NewHandler(settings, logger)

	// health
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// auth
	mux.HandleFunc("POST /login", userHandler.Login)
	mux.HandleFunc("POST /logout", userHandler.Logout)
	mux.HandleFunc("POST /register", userHandler.Register)

	// profile, session required
	mux.Handle("GET /profile", g.RequireUser(http.HandlerFunc(userHandler.Profile)))
	mux.Handle("PUT /profile", g.RequireUser(http.HandlerFunc(userHandler.UpdateProfile)))

	// security settings, admin session required
	mux.Handle("GET /settings/security", g.RequireAdmin(http.HandlerFunc(settingHandler.GetSecurity)))
	mux.Handle("PUT /settings/security", g.RequireAdmin(http.HandlerFunc(settingHandler.UpdateSecurity)))

	// UI routes owned by the main application, gated behind the secret
	// path segments when configured
	if pages.Admin != nil {
		adminGate := g.ProtectAdminPage(pages.Admin)
		mux.Handle("GET /admin.html", adminGate)
		mux.Handle("GET /{secret}/admin.html", adminGate)
	}
	if pages.Home != nil {
		homeGate := g.ProtectHomePage(pages.Home)
		mux.Handle("GET /index.html", homeGate)
		mux.Handle("GET /{secret}/index.html", homeGate)
	}

	// wrap with security headers middleware then logging middleware
	handler := LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux))
	return handler
}
