package authsession

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ironhall/gymauth/backend"
	"github.com/ironhall/gymauth/internal/fakebackend"
	"github.com/ironhall/gymauth/permcache"
	"github.com/ironhall/gymauth/permission"
	"github.com/ironhall/gymauth/roles"
	"github.com/ironhall/gymauth/session"
)

type harness struct {
	fake   *fakebackend.Server
	client *backend.Client
	dir    *roles.Directory
	cache  *permcache.Cache
	store  session.Store
	sess   *Session

	mu     sync.Mutex
	events []Event
}

func newHarness(t *testing.T, store session.Store, opts Options) *harness {
	t.Helper()

	fake := fakebackend.New()
	fake.AddUser("ana@gym.test", fakebackend.User{ID: 42, Secret: "pw", Name: "Ana", Email: "ana@gym.test", RoleID: 2})
	fake.SetRoles([]roles.Role{
		{ID: 1, Name: "Admin", Route: "/dashboard"},
		{ID: 2, Name: "Receptionist", Route: "/clients"},
	})
	fake.SetPermissions(2, permission.Payload{
		AccessibleModules: []string{"Clients"},
		Grants:            []permission.Grant{{Module: "Clients", Privilege: "Create"}},
	})
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	client, err := backend.New(srv.URL, backend.Options{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("backend.New: %v", err)
	}

	if store == nil {
		store = session.NewMemoryStore()
	}
	h := &harness{
		fake:   fake,
		client: client,
		dir:    roles.NewDirectory(client, roles.Options{}),
		cache:  permcache.New(client, permcache.Options{}),
		store:  store,
	}
	opts.Observer = func(ev Event) {
		h.mu.Lock()
		h.events = append(h.events, ev)
		h.mu.Unlock()
	}
	h.sess = New(client, h.dir, h.cache, store, opts)
	client.SetTokenSource(h.sess.AccessToken)
	return h
}

func (h *harness) lastEvent() Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) == 0 {
		return Event{}
	}
	return h.events[len(h.events)-1]
}

func assertLoginReason(t *testing.T, err error, want Reason) {
	t.Helper()
	var lerr *LoginError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected *LoginError, got %v", err)
	}
	if lerr.Reason != want {
		t.Fatalf("expected reason %s, got %s (%v)", want, lerr.Reason, lerr.Err)
	}
	if !errors.Is(err, ErrLogin) {
		t.Fatal("LoginError must match ErrLogin")
	}
	if lerr.Message == "" {
		t.Fatal("LoginError must carry a display message")
	}
}

func assertNothingPersisted(t *testing.T, h *harness) {
	t.Helper()
	if _, err := h.store.Load(context.Background()); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected empty store, got %v", err)
	}
	if _, ok := h.sess.CurrentIdentity(); ok {
		t.Fatal("expected no current identity")
	}
	if h.sess.AccessToken() != "" {
		t.Fatal("expected in-memory tokens cleared")
	}
	if h.cache.HasModuleAccess("Clients") {
		t.Fatal("expected cleared permission cache")
	}
}

func TestLoginSuccess(t *testing.T) {
	h := newHarness(t, nil, Options{})

	id, err := h.sess.Login(context.Background(), "  ana@gym.test ", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	want := session.Identity{ID: 42, DisplayName: "Ana", LoginEmail: "ana@gym.test", RoleID: 2}
	if id != want {
		t.Fatalf("unexpected identity %+v", id)
	}

	rec, err := h.store.Load(context.Background())
	if err != nil || rec.Identity != want || rec.Tokens.Access == "" || rec.Tokens.Refresh == "" {
		t.Fatalf("unexpected persisted record %+v err=%v", rec, err)
	}
	if !h.cache.HasPrivilege("Clients", "Create") || h.cache.HasPrivilege("Clients", "Delete") {
		t.Fatal("unexpected permission decisions")
	}
	if got := h.sess.RedirectTarget(id); got != "/clients" {
		t.Fatalf("RedirectTarget=%q", got)
	}
	if cur, ok := h.sess.CurrentIdentity(); !ok || cur != want {
		t.Fatal("expected current identity")
	}
	if h.lastEvent().Kind != EventLoginSucceeded {
		t.Fatalf("unexpected event %+v", h.lastEvent())
	}
}

func TestLoginSendsTokenOnAuthenticatedCalls(t *testing.T) {
	h := newHarness(t, nil, Options{})
	if _, err := h.sess.Login(context.Background(), "ana@gym.test", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	for _, req := range h.fake.Requests() {
		if req.Path == "/auth/login" {
			continue
		}
		if !strings.HasPrefix(req.Authorization, "Bearer ") {
			t.Fatalf("%s sent without bearer token", req.Path)
		}
	}
}

func TestLoginAllLayouts(t *testing.T) {
	for _, layout := range []backend.Layout{backend.LayoutLegacy, backend.LayoutEnvelope, backend.LayoutTokenOnly} {
		t.Run(string(layout), func(t *testing.T) {
			h := newHarness(t, nil, Options{})
			h.fake.SetLoginLayout(layout)
			id, err := h.sess.Login(context.Background(), "ana@gym.test", "pw")
			if err != nil {
				t.Fatalf("Login: %v", err)
			}
			if id.ID != 42 || id.RoleID != 2 {
				t.Fatalf("unexpected identity %+v", id)
			}
		})
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	h := newHarness(t, nil, Options{})

	_, err := h.sess.Login(context.Background(), "ana@gym.test", "nope")
	assertLoginReason(t, err, ReasonInvalidCredentials)
	assertNothingPersisted(t, h)

	_, err = h.sess.Login(context.Background(), "", "pw")
	assertLoginReason(t, err, ReasonInvalidCredentials)
	if h.lastEvent().Kind != EventLoginFailed {
		t.Fatal("expected login failure event")
	}
}

func TestLoginFallbackRoleIsRejected(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.fake.FailRoles(true)

	_, err := h.sess.Login(context.Background(), "ana@gym.test", "pw")
	assertLoginReason(t, err, ReasonFallbackRole)
	if !errors.Is(err, roles.ErrUnavailable) {
		t.Fatal("expected role directory warning in the chain")
	}
	assertNothingPersisted(t, h)
	if h.fake.PermissionCalls() != 0 {
		t.Fatal("permissions must not be fetched for a fallback role")
	}
}

func TestLoginRoleNotFoundReloadsOnce(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.fake.AddUser("x@gym.test", fakebackend.User{ID: 7, Secret: "pw", RoleID: 99})
	h.dir.Load(context.Background())
	before := h.fake.RoleCalls()

	_, err := h.sess.Login(context.Background(), "x@gym.test", "pw")
	assertLoginReason(t, err, ReasonRoleNotFound)
	if !errors.Is(err, roles.ErrRoleNotFound) {
		t.Fatal("expected ErrRoleNotFound in the chain")
	}
	if got := h.fake.RoleCalls() - before; got != 1 {
		t.Fatalf("expected exactly one reload, got %d", got)
	}
	assertNothingPersisted(t, h)
}

func TestLoginFindsRoleAfterReload(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.dir.Load(context.Background())

	h.fake.AddUser("new@gym.test", fakebackend.User{ID: 8, Secret: "pw", RoleID: 5})
	h.fake.SetRoles([]roles.Role{{ID: 5, Name: "Manager", Route: "/reports"}})
	h.fake.SetPermissions(5, permission.Payload{AccessibleModules: []string{"Reports"}})

	id, err := h.sess.Login(context.Background(), "new@gym.test", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := h.sess.RedirectTarget(id); got != "/reports" {
		t.Fatalf("RedirectTarget=%q", got)
	}
}

func TestLoginPermissionsUnavailableRollsBack(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.fake.FailPermissions(true)

	_, err := h.sess.Login(context.Background(), "ana@gym.test", "pw")
	assertLoginReason(t, err, ReasonPermissionsUnavailable)
	if !errors.Is(err, permcache.ErrAuthorizationFetch) {
		t.Fatal("expected ErrAuthorizationFetch in the chain")
	}
	assertNothingPersisted(t, h)
	if h.cache.State() != permcache.Uninitialized {
		t.Fatalf("expected cleared cache, got %s", h.cache.State())
	}
}

func TestLogout(t *testing.T) {
	h := newHarness(t, nil, Options{})
	if _, err := h.sess.Login(context.Background(), "ana@gym.test", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	h.sess.Logout(context.Background())
	if h.fake.Logouts() != 1 {
		t.Fatalf("expected backend logout, got %d", h.fake.Logouts())
	}
	assertNothingPersisted(t, h)
	if h.lastEvent().Kind != EventLogout {
		t.Fatal("expected logout event")
	}
}

func TestLogoutSurvivesBackendFailure(t *testing.T) {
	h := newHarness(t, nil, Options{})
	if _, err := h.sess.Login(context.Background(), "ana@gym.test", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	h.fake.FailLogout(true)

	h.sess.Logout(context.Background())
	assertNothingPersisted(t, h)
}

func TestRestoreSession(t *testing.T) {
	store := session.NewMemoryStore()
	h := newHarness(t, store, Options{})
	if _, err := h.sess.Login(context.Background(), "ana@gym.test", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	restarted := newHarness(t, store, Options{RejectExpiredTokens: true})
	id, ok := restarted.sess.RestoreSession(context.Background())
	if !ok || id.ID != 42 || id.RoleID != 2 {
		t.Fatalf("expected restored identity, got %+v %v", id, ok)
	}
	if !restarted.cache.HasPrivilege("Clients", "Create") {
		t.Fatal("expected permissions after restore")
	}
	if restarted.sess.AccessToken() == "" {
		t.Fatal("expected restored token")
	}
	if ev := restarted.lastEvent(); ev.Kind != EventRestored || ev.Degraded {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestRestoreEmptyStore(t *testing.T) {
	h := newHarness(t, nil, Options{})
	if _, ok := h.sess.RestoreSession(context.Background()); ok {
		t.Fatal("expected no session")
	}
}

func TestRestoreMissingRoleIDWipes(t *testing.T) {
	store := session.NewMemoryStore()
	store.Put("accessToken", []byte("tok"))
	store.Put("refreshToken", []byte("ref"))
	store.Put("identity", []byte(`{"id":42,"displayName":"Ana"}`))
	h := newHarness(t, store, Options{})

	if _, ok := h.sess.RestoreSession(context.Background()); ok {
		t.Fatal("expected logged-out state")
	}
	if store.Len() != 0 {
		t.Fatalf("expected persisted record removed, %d entries left", store.Len())
	}
	if h.lastEvent().Kind != EventWiped {
		t.Fatal("expected wipe event")
	}
}

func TestRestoreMissingRefreshTokenWipes(t *testing.T) {
	store := session.NewMemoryStore()
	h := newHarness(t, store, Options{})
	if _, err := h.sess.Login(context.Background(), "ana@gym.test", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	store.Put("refreshToken", []byte(""))

	restarted := newHarness(t, store, Options{})
	if _, ok := restarted.sess.RestoreSession(context.Background()); ok {
		t.Fatal("a record without a refresh token must not be restored")
	}
	if store.Len() != 0 {
		t.Fatalf("expected persisted record removed, %d entries left", store.Len())
	}
	if ev := restarted.lastEvent(); ev.Kind != EventWiped || !errors.Is(ev.Err, session.ErrInvalidSessionData) {
		t.Fatalf("expected wipe for invalid session data, got %+v", ev)
	}
	if restarted.cache.HasModuleAccess("Clients") {
		t.Fatal("expected fail-closed decisions")
	}
}

func TestRestoreExpiredTokenWipes(t *testing.T) {
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "42",
		"exp": time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	store := session.NewMemoryStore()
	store.SaveTokens(context.Background(), session.Tokens{Access: expired, Refresh: "r"})
	store.SaveIdentity(context.Background(), session.Identity{ID: 42, RoleID: 2})

	h := newHarness(t, store, Options{RejectExpiredTokens: true})
	if _, ok := h.sess.RestoreSession(context.Background()); ok {
		t.Fatal("expected expired session to be discarded")
	}
	if store.Len() != 0 {
		t.Fatal("expected wiped store")
	}
}

func TestRestoreToleratesFallbackRole(t *testing.T) {
	store := session.NewMemoryStore()
	h := newHarness(t, store, Options{})
	if _, err := h.sess.Login(context.Background(), "ana@gym.test", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	restarted := newHarness(t, store, Options{})
	restarted.fake.FailRoles(true)
	id, ok := restarted.sess.RestoreSession(context.Background())
	if !ok || id.RoleID != 2 {
		t.Fatalf("expected degraded restore, got %+v %v", id, ok)
	}
	if !restarted.dir.Degraded() {
		t.Fatal("expected degraded directory")
	}
	if ev := restarted.lastEvent(); ev.Kind != EventRestored || !ev.Degraded {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestRestoreUnknownRoleWipes(t *testing.T) {
	store := session.NewMemoryStore()
	h := newHarness(t, store, Options{})
	if _, err := h.sess.Login(context.Background(), "ana@gym.test", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	restarted := newHarness(t, store, Options{})
	restarted.fake.SetRoles([]roles.Role{{ID: 1, Name: "Admin"}})
	if _, ok := restarted.sess.RestoreSession(context.Background()); ok {
		t.Fatal("expected session for a removed role to be discarded")
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected wiped store, got %v", err)
	}
}

func TestRestoreWithPermissionsDownFailsClosed(t *testing.T) {
	store := session.NewMemoryStore()
	h := newHarness(t, store, Options{})
	if _, err := h.sess.Login(context.Background(), "ana@gym.test", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	restarted := newHarness(t, store, Options{})
	restarted.fake.FailPermissions(true)
	if _, ok := restarted.sess.RestoreSession(context.Background()); !ok {
		t.Fatal("identity must stay active")
	}
	if restarted.cache.State() != permcache.Error {
		t.Fatalf("expected cache error state, got %s", restarted.cache.State())
	}
	if restarted.cache.HasPrivilege("Clients", "Create") {
		t.Fatal("expected fail-closed decisions")
	}

	restarted.fake.FailPermissions(false)
	if err := restarted.cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !restarted.cache.HasPrivilege("Clients", "Create") {
		t.Fatal("expected recovery")
	}
}

type unavailableStore struct {
	session.Store
	wipes int
}

func (s *unavailableStore) Load(context.Context) (session.Record, error) {
	return session.Record{}, session.ErrStoreUnavailable
}

func (s *unavailableStore) Wipe(context.Context) error {
	s.wipes++
	return nil
}

func TestRestoreStoreUnavailableKeepsData(t *testing.T) {
	store := &unavailableStore{}
	h := newHarness(t, store, Options{})
	if _, ok := h.sess.RestoreSession(context.Background()); ok {
		t.Fatal("expected no session")
	}
	if store.wipes != 0 {
		t.Fatal("storage outage must not wipe")
	}
}

func TestRedirectTarget(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.fake.SetRoles([]roles.Role{{ID: 1, Name: "Admin", Route: "/dashboard"}})
	h.dir.Load(context.Background())

	if got := h.sess.RedirectTarget(session.Identity{ID: 1, RoleID: 1}); got != "/dashboard" {
		t.Fatalf("RedirectTarget=%q", got)
	}
	if got := h.sess.RedirectTarget(session.Identity{ID: 1, RoleID: 77}); got != DefaultRoute {
		t.Fatalf("unknown role must use default, got %q", got)
	}
}
