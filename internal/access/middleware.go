package access

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/vertice-erp/vertice-erp/internal/shared"
)

// Middleware wires access-control route guards for HTTP handlers.
type Middleware struct {
	Evaluator *Evaluator
	Logger    *slog.Logger
}

// PrincipalFromRequest reconstructs the session principal. The fields were
// written at login and are immutable for the session lifetime.
func PrincipalFromRequest(r *http.Request) (Principal, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return Principal{}, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return Principal{}, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Principal{}, false
	}
	companyID, _ := strconv.ParseInt(sess.Get(shared.SessionKeyCompanyID), 10, 64)
	return Principal{
		ID:        id,
		CompanyID: companyID,
		Role:      ParseRole(sess.Get(shared.SessionKeyRole)),
	}, true
}

// RequireAuthenticated rejects requests without a logged-in session.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := PrincipalFromRequest(r); !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireModule guards a handler group behind module-level view access.
func (m Middleware) RequireModule(route string) func(http.Handler) http.Handler {
	return m.guard(func(r *http.Request, p Principal) bool {
		return m.Evaluator.HasAccess(r.Context(), p, route)
	})
}

// RequireModuleEdit guards a handler group behind module-level edit access.
func (m Middleware) RequireModuleEdit(route string) func(http.Handler) http.Handler {
	return m.guard(func(r *http.Request, p Principal) bool {
		return m.Evaluator.HasEditAccess(r.Context(), p, route)
	})
}

// RequireCrossCompanyAdmin guards the SaaS administration surface.
func (m Middleware) RequireCrossCompanyAdmin() func(http.Handler) http.Handler {
	return m.guard(func(r *http.Request, p Principal) bool {
		return m.Evaluator.CrossCompanyAdmin(r.Context(), p)
	})
}

func (m Middleware) guard(allow func(*http.Request, Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromRequest(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if !allow(r, principal) {
				if m.Logger != nil {
					m.Logger.Warn("access denied",
						slog.Int64("user_id", principal.ID),
						slog.String("path", r.URL.Path))
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
