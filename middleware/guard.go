package middleware

import (
	"context"
	"net/http"

	"github.com/ironhall/gymauth"
)

// HeaderPermissionsStale is set on guarded responses while permissions are stale.
const HeaderPermissionsStale = "X-Permissions-Stale"

// Engine is the part of [gymauth.Engine] the guards use.
type Engine interface {
	CurrentIdentity() (gymauth.Identity, bool)
	HasModuleAccess(module string) bool
	HasAllPrivileges(module string, privileges ...string) bool
	HasAnyPrivilege(module string, privileges ...string) bool
	Status() gymauth.Status
}

type identityContextKey struct{}

// IdentityFromContext returns the identity attached by a guard.
func IdentityFromContext(ctx context.Context) (gymauth.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(gymauth.Identity)
	return id, ok
}

// Guard admits a request when a user is logged in and allow returns true. A nil allow
// only requires a session.
func Guard(engine Engine, allow func() bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			identity, ok := engine.CurrentIdentity()
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if engine.Status().Stale {
				w.Header().Set(HeaderPermissionsStale, "true")
			}
			if allow != nil && !allow() {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession admits any logged-in user.
func RequireSession(engine Engine) func(http.Handler) http.Handler {
	return Guard(engine, nil)
}

// RequireModule admits users whose role may open module.
func RequireModule(engine Engine, module string) func(http.Handler) http.Handler {
	return Guard(engine, func() bool { return engine.HasModuleAccess(module) })
}

// RequireAll admits users holding every one of privileges on module.
func RequireAll(engine Engine, module string, privileges ...string) func(http.Handler) http.Handler {
	privs := append([]string(nil), privileges...)
	return Guard(engine, func() bool { return engine.HasAllPrivileges(module, privs...) })
}

// RequireAny admits users holding at least one of privileges on module.
func RequireAny(engine Engine, module string, privileges ...string) func(http.Handler) http.Handler {
	privs := append([]string(nil), privileges...)
	return Guard(engine, func() bool { return engine.HasAnyPrivilege(module, privs...) })
}
