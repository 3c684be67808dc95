package authsession

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/ironhall/gymauth/backend"
	"github.com/ironhall/gymauth/roles"
	"github.com/ironhall/gymauth/session"
)

// DefaultRoute is the redirect target when no role route is known.
const DefaultRoute = "/"

// Authenticator exchanges credentials with the backend.
type Authenticator interface {
	Login(ctx context.Context, identifier, secret string) (backend.LoginResult, error)
	Logout(ctx context.Context) error
}

// RoleResolver is the role catalog.
type RoleResolver interface {
	Load(ctx context.Context) (*roles.Collection, error)
	FindByID(id int64) (roles.Role, bool)
	RouteFor(id int64, def string) string
}

// PermissionLoader is the part of the permission cache the session drives.
type PermissionLoader interface {
	Initialize(ctx context.Context, roleID int64) error
	Clear()
}

// Options configures a [Session].
type Options struct {
	Logger       *zap.Logger
	DefaultRoute string
	// RejectExpiredTokens makes RestoreSession discard sessions whose access token is
	// a JWT with an exp in the past.
	RejectExpiredTokens bool
	Clock               clock.Clock
	Observer            func(Event)
}

// Session is the authenticated session of one embedding application.
type Session struct {
	auth         Authenticator
	roles        RoleResolver
	perms        PermissionLoader
	store        session.Store
	logger       *zap.Logger
	defaultRoute string
	rejectExp    bool
	clock        clock.Clock
	observer     func(Event)

	// op serializes Login, Logout and RestoreSession.
	op sync.Mutex

	mu       sync.RWMutex
	identity *session.Identity
	tokens   session.Tokens
}

// New creates a logged-out [Session].
func New(auth Authenticator, dir RoleResolver, perms PermissionLoader, store session.Store, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	route := opts.DefaultRoute
	if route == "" {
		route = DefaultRoute
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	return &Session{
		auth:         auth,
		roles:        dir,
		perms:        perms,
		store:        store,
		logger:       logger.Named("authsession"),
		defaultRoute: route,
		rejectExp:    opts.RejectExpiredTokens,
		clock:        clk,
		observer:     opts.Observer,
	}
}

// Login authenticates and makes the identity current. Failures are [*LoginError].
func (s *Session) Login(ctx context.Context, identifier, secret string) (session.Identity, error) {
	s.op.Lock()
	defer s.op.Unlock()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return s.fail(newLoginError(ReasonInvalidCredentials, errors.New("identifier and secret are required")))
	}

	res, err := s.auth.Login(ctx, identifier, secret)
	if err != nil {
		return s.fail(newLoginError(classifyBackendError(err), err))
	}

	tokens := session.Tokens{Access: res.AccessToken, Refresh: res.RefreshToken}
	if err := s.store.SaveTokens(ctx, tokens); err != nil {
		s.rollback(ctx)
		return s.fail(newLoginError(ReasonStorage, err))
	}
	s.mu.Lock()
	s.tokens = tokens
	s.identity = nil
	s.mu.Unlock()

	role, lerr := s.resolveLoginRole(ctx, res.User.RoleID)
	if lerr != nil {
		s.rollback(ctx)
		return s.fail(lerr)
	}

	if err := s.perms.Initialize(ctx, role.ID); err != nil {
		s.rollback(ctx)
		return s.fail(newLoginError(ReasonPermissionsUnavailable, err))
	}

	identity := session.Identity{
		ID:          res.User.ID,
		DisplayName: res.User.Name,
		LoginEmail:  res.User.Email,
		RoleID:      role.ID,
	}
	if err := s.store.SaveIdentity(ctx, identity); err != nil {
		s.rollback(ctx)
		return s.fail(newLoginError(ReasonStorage, err))
	}

	s.mu.Lock()
	s.identity = &identity
	s.mu.Unlock()

	s.logger.Info("login succeeded",
		zap.Int64("user_id", identity.ID),
		zap.Int64("role_id", identity.RoleID),
		zap.String("role", role.Name),
	)
	s.emit(Event{Kind: EventLoginSucceeded, UserID: identity.ID, RoleID: identity.RoleID})
	return identity, nil
}

func classifyBackendError(err error) Reason {
	switch {
	case errors.Is(err, backend.ErrInvalidCredentials):
		return ReasonInvalidCredentials
	case errors.Is(err, backend.ErrMissingTokens):
		return ReasonMissingTokens
	case errors.Is(err, backend.ErrMissingUserFields):
		return ReasonMissingUserFields
	case errors.Is(err, backend.ErrUnrecognizedResponse):
		return ReasonUnrecognizedResponse
	default:
		return ReasonBackendUnavailable
	}
}

// resolveLoginRole finds roleID in a source-of-truth catalog, reloading the directory
// once when the role is missing or only known from the fallback catalog.
func (s *Session) resolveLoginRole(ctx context.Context, roleID int64) (roles.Role, *LoginError) {
	role, ok := s.roles.FindByID(roleID)
	if !ok || role.Provenance == roles.Fallback {
		if _, warn := s.roles.Load(ctx); warn != nil {
			s.logger.Warn("role catalog degraded during login", zap.Error(warn))
		}
		role, ok = s.roles.FindByID(roleID)
	}

	if !ok {
		return roles.Role{}, newLoginError(ReasonRoleNotFound, fmt.Errorf("%w: %d", roles.ErrRoleNotFound, roleID))
	}
	if role.Provenance == roles.Fallback {
		return roles.Role{}, newLoginError(ReasonFallbackRole, fmt.Errorf("%w: role %d only known from fallback catalog", roles.ErrUnavailable, roleID))
	}
	return role, nil
}

func (s *Session) fail(lerr *LoginError) (session.Identity, error) {
	s.logger.Warn("login failed",
		zap.String("reason", lerr.Reason.String()),
		zap.Error(lerr.Err),
	)
	s.emit(Event{Kind: EventLoginFailed, Reason: lerr.Reason, Err: lerr})
	return session.Identity{}, lerr
}

func (s *Session) rollback(ctx context.Context) {
	s.perms.Clear()
	s.clearMemory()
	if err := s.store.Wipe(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("session wipe failed during login rollback", zap.Error(err))
	}
}

func (s *Session) clearMemory() {
	s.mu.Lock()
	s.identity = nil
	s.tokens = session.Tokens{}
	s.mu.Unlock()
}

// Logout notifies the backend, then clears the permission cache, the store and the
// in-memory identity. Backend and storage failures are logged; Logout always
// completes the local teardown.
func (s *Session) Logout(ctx context.Context) {
	s.op.Lock()
	defer s.op.Unlock()

	var userID int64
	s.mu.RLock()
	hasToken := s.tokens.Access != ""
	if s.identity != nil {
		userID = s.identity.ID
	}
	s.mu.RUnlock()

	if hasToken {
		if err := s.auth.Logout(ctx); err != nil {
			s.logger.Warn("backend logout failed", zap.Error(err))
		}
	}

	s.perms.Clear()
	if err := s.store.Wipe(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("session wipe failed during logout", zap.Error(err))
	}
	s.clearMemory()

	s.logger.Info("logged out", zap.Int64("user_id", userID))
	s.emit(Event{Kind: EventLogout, UserID: userID})
}

// RestoreSession reloads a persisted session. It returns false, after wiping the store,
// when the persisted record is incomplete, corrupt, expired or names a role the
// source-of-truth catalog does not know. A storage outage returns false without wiping.
func (s *Session) RestoreSession(ctx context.Context) (session.Identity, bool) {
	s.op.Lock()
	defer s.op.Unlock()

	rec, err := s.store.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNotFound):
		return session.Identity{}, false
	case errors.Is(err, session.ErrInvalidSessionData):
		s.wipe(ctx, "invalid persisted session", err)
		return session.Identity{}, false
	default:
		s.logger.Warn("session store unavailable, starting logged out", zap.Error(err))
		return session.Identity{}, false
	}

	if s.rejectExp {
		if exp, ok := backend.TokenExpiry(rec.Tokens.Access); ok && s.clock.Now().Unix() >= exp {
			s.wipe(ctx, "access token expired", nil)
			return session.Identity{}, false
		}
	}

	s.mu.Lock()
	s.tokens = rec.Tokens
	s.identity = nil
	s.mu.Unlock()

	coll, warn := s.roles.Load(ctx)
	role, ok := coll.FindByID(rec.Identity.RoleID)
	degraded := warn != nil
	switch {
	case !ok && !degraded:
		s.perms.Clear()
		s.wipe(ctx, "persisted role not in catalog", fmt.Errorf("%w: %d", roles.ErrRoleNotFound, rec.Identity.RoleID))
		return session.Identity{}, false
	case degraded:
		s.logger.Warn("session restored with degraded role catalog",
			zap.Int64("role_id", rec.Identity.RoleID),
			zap.Bool("role_known", ok),
			zap.Error(warn),
		)
	default:
		s.logger.Debug("restored role resolved", zap.String("role", role.Name))
	}

	if err := s.perms.Initialize(ctx, rec.Identity.RoleID); err != nil {
		s.logger.Warn("permissions unavailable for restored session, continuing fail-closed",
			zap.Int64("role_id", rec.Identity.RoleID),
			zap.Error(err),
		)
	}

	identity := rec.Identity
	s.mu.Lock()
	s.identity = &identity
	s.mu.Unlock()

	s.logger.Info("session restored",
		zap.Int64("user_id", identity.ID),
		zap.Int64("role_id", identity.RoleID),
	)
	s.emit(Event{Kind: EventRestored, UserID: identity.ID, RoleID: identity.RoleID, Degraded: degraded})
	return identity, true
}

func (s *Session) wipe(ctx context.Context, why string, cause error) {
	s.clearMemory()
	if err := s.store.Wipe(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("session wipe failed", zap.Error(err))
	}
	s.logger.Warn("persisted session discarded", zap.String("why", why), zap.Error(cause))
	s.emit(Event{Kind: EventWiped, Err: cause})
}

// RedirectTarget returns the route of identity's role, or the default route.
func (s *Session) RedirectTarget(identity session.Identity) string {
	return s.roles.RouteFor(identity.RoleID, s.defaultRoute)
}

// CurrentIdentity returns the logged-in identity.
func (s *Session) CurrentIdentity() (session.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return session.Identity{}, false
	}
	return *s.identity, true
}

// AccessToken returns the current bearer token, or "".
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.Access
}

func (s *Session) emit(ev Event) {
	if s.observer != nil {
		s.observer(ev)
	}
}
