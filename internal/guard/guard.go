// Package guard gates inbound requests: an authentication/role gate and a
// secret-path gate, independent and composable. Every denial carries a
// structured reason so handlers can pick the right HTTP status.
package guard

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/linkhoard/service-auth-go/internal/httpx"
	"github.com/ovaphlow/linkhoard/service-auth-go/internal/session"
	settingentity "github.com/ovaphlow/linkhoard/service-auth-go/internal/setting/entity"
	userentity "github.com/ovaphlow/linkhoard/service-auth-go/internal/user/entity"
)

// Reason classifies a denial.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonRequireAuth Reason = "requireAuth"
	ReasonForbidden   Reason = "forbidden"
	ReasonWrongPath   Reason = "wrong path"
)

// Decision is the outcome of a gate. Never a bare boolean: the reason
// drives the HTTP status and the user rides along when authentication
// succeeded.
type Decision struct {
	Allow  bool
	Reason Reason
	User   *userentity.User
}

func allow(u *userentity.User) Decision { return Decision{Allow: true, User: u} }
func deny(r Reason) Decision            { return Decision{Reason: r} }

// SessionValidator resolves a token to a user. *session.Service satisfies
// it.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*userentity.User, error)
}

// SecurityLoader loads the per-request settings snapshot. *setting.Service
// satisfies it.
type SecurityLoader interface {
	LoadSecurity(ctx context.Context) (settingentity.Security, error)
}

// AuthGate applies the authentication and role checks under the given
// settings snapshot. When require_login is off, or settings were never
// initialized, the gate passes open so a fresh deployment stays reachable.
// A backing-store failure during validation is returned as an error, never
// converted into a deny.
func AuthGate(ctx context.Context, sec settingentity.Security, token string, sessions SessionValidator, adminOnly bool) (Decision, error) {
	if !sec.Initialized || !sec.RequireLogin {
		// bootstrap affordance: a fresh or deliberately open deployment
		// passes regardless of session state, admin routes included,
		// otherwise it could never be configured in the first place.
		// A valid token still rides along when one is present.
		if token != "" {
			if u, err := sessions.Validate(ctx, token); err == nil {
				return allow(u), nil
			}
		}
		return allow(nil), nil
	}

	u, err := sessions.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return deny(ReasonRequireAuth), nil
		}
		return Decision{}, err
	}
	if adminOnly && !u.IsAdmin() {
		return deny(ReasonForbidden), nil
	}
	return allow(u), nil
}

// PathAllowed reports whether a request path clears a configured secret
// segment. An empty secret means no protection is configured and the gate
// passes.
func PathAllowed(requestPath, secret string) bool {
	if secret == "" {
		return true
	}
	return strings.Contains(requestPath, "/"+secret+"/")
}

// AdminPathGate protects the canonical admin route behind the configured
// admin_path segment.
func AdminPathGate(sec settingentity.Security, requestPath string) Decision {
	if PathAllowed(requestPath, sec.AdminPath) {
		return allow(nil)
	}
	return deny(ReasonWrongPath)
}

// HomePathGate protects the home route behind home_path when
// enable_home_path is on.
func HomePathGate(sec settingentity.Security, requestPath string) Decision {
	if !sec.EnableHomePath {
		return allow(nil)
	}
	if PathAllowed(requestPath, sec.HomePath) {
		return allow(nil)
	}
	return deny(ReasonWrongPath)
}

type ctxKey struct{}

// UserFrom returns the authenticated user stored by the middleware, when
// one exists.
func UserFrom(ctx context.Context) (*userentity.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*userentity.User)
	return u, ok && u != nil
}

// Guard wires the gates into net/http middleware. Checks run strictly in
// order: settings snapshot, path, auth, role.
type Guard struct {
	sessions SessionValidator
	settings SecurityLoader
	logger   *zap.SugaredLogger
}

func New(sessions SessionValidator, settings SecurityLoader, logger *zap.SugaredLogger) *Guard {
	return &Guard{sessions: sessions, settings: settings, logger: logger}
}

func (g *Guard) respond(w http.ResponseWriter, d Decision) {
	switch d.Reason {
	case ReasonRequireAuth:
		httpx.Fail(w, http.StatusUnauthorized, "authentication required")
	case ReasonForbidden:
		httpx.Fail(w, http.StatusForbidden, "forbidden")
	case ReasonWrongPath:
		httpx.Fail(w, http.StatusForbidden, "forbidden")
	default:
		httpx.Fail(w, http.StatusForbidden, "forbidden")
	}
}

func (g *Guard) gate(next http.Handler, adminOnly bool, pathGate func(settingentity.Security, string) Decision) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sec, err := g.settings.LoadSecurity(r.Context())
		if err != nil {
			httpx.ServerError(w, g.logger, "guard: load settings", err)
			return
		}
		if pathGate != nil {
			if d := pathGate(sec, r.URL.Path); !d.Allow {
				g.respond(w, d)
				return
			}
		}
		token := session.ExtractToken(r)
		d, err := AuthGate(r.Context(), sec, token, g.sessions, adminOnly)
		if err != nil {
			httpx.ServerError(w, g.logger, "guard: validate session", err)
			return
		}
		if !d.Allow {
			g.respond(w, d)
			return
		}
		if d.User != nil {
			r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, d.User))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser admits only requests carrying a valid session (subject to
// the bootstrap pass-open).
func (g *Guard) RequireUser(next http.Handler) http.Handler {
	return g.gate(next, false, nil)
}

// RequireAdmin additionally demands the admin role.
func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return g.gate(next, true, nil)
}

// ProtectAdminPage combines the admin path gate with the admin auth gate,
// for the administrative UI routes the main application mounts.
func (g *Guard) ProtectAdminPage(next http.Handler) http.Handler {
	return g.gate(next, true, AdminPathGate)
}

// ProtectHomePage applies the optional home path gate plus the plain auth
// gate.
func (g *Guard) ProtectHomePage(next http.Handler) http.Handler {
	return g.gate(next, false, HomePathGate)
}
