// Package fakebackend is an in-process gym backend used by tests and the demo
// command. Its state (users, roles, grants, failure switches, response layouts) can be
// changed while it serves requests.
package fakebackend

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ironhall/gymauth/backend"
	"github.com/ironhall/gymauth/permission"
	"github.com/ironhall/gymauth/roles"
)

// User is an account known to the fake backend.
type User struct {
	ID     int64
	Secret string
	Name   string
	Email  string
	RoleID int64
}

// Request records one handled request.
type Request struct {
	Method        string
	Path          string
	RequestID     string
	Authorization string
}

// Server is the fake backend.
type Server struct {
	mu sync.Mutex

	signingKey []byte
	tokenTTL   time.Duration
	now        func() time.Time

	users        map[string]User
	roles        []roles.Role
	grants       map[int64]permission.Payload
	layout       backend.Layout
	legacyPerms  bool
	rolesEnvelop bool

	failRoles       bool
	failPermissions bool
	failLogout      bool
	permissionsHook func(roleID int64)

	requests        []Request
	logouts         int
	permissionCalls int
	roleCalls       int
}

// New creates an empty backend that issues canonical login responses.
func New() *Server {
	return &Server{
		signingKey: []byte("fakebackend-signing-key"),
		tokenTTL:   time.Hour,
		now:        time.Now,
		users:      make(map[string]User),
		grants:     make(map[int64]permission.Payload),
		layout:     backend.LayoutCanonical,
	}
}

// Handler returns the HTTP handler serving the backend routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)

	r.Post("/auth/login", s.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/auth/logout", s.handleLogout)
		r.Get("/roles", s.handleRoles)
		r.Get("/permissions", s.handlePermissions)
	})
	return r
}

// AddUser registers an account under identifier.
func (s *Server) AddUser(identifier string, u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[identifier] = u
}

// SetRoles replaces the role catalog.
func (s *Server) SetRoles(list []roles.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles = append([]roles.Role(nil), list...)
}

// SetPermissions replaces the permission set of roleID.
func (s *Server) SetPermissions(roleID int64, p permission.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[roleID] = permission.Payload{
		AccessibleModules: append([]string(nil), p.AccessibleModules...),
		Grants:            append([]permission.Grant(nil), p.Grants...),
	}
}

// SetLoginLayout selects the login response shape.
func (s *Server) SetLoginLayout(l backend.Layout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layout = l
}

// SetLegacyPermissions switches the permissions response to modules/permissions field
// names.
func (s *Server) SetLegacyPermissions(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.legacyPerms = on
}

// SetRolesEnvelope wraps the role catalog in {data:[...]}.
func (s *Server) SetRolesEnvelope(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolesEnvelop = on
}

// SetTokenTTL sets the lifetime of issued access tokens. A negative ttl issues tokens
// that are already expired.
func (s *Server) SetTokenTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = ttl
}

// FailRoles makes GET /roles answer 503.
func (s *Server) FailRoles(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRoles = on
}

// FailPermissions makes GET /permissions answer 503.
func (s *Server) FailPermissions(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPermissions = on
}

// FailLogout makes POST /auth/logout answer 500.
func (s *Server) FailLogout(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLogout = on
}

// SetPermissionsHook installs fn to run before each permissions response, outside the
// server lock. Tests use it to delay or reorder responses.
func (s *Server) SetPermissionsHook(fn func(roleID int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissionsHook = fn
}

// Requests returns every handled request in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Logouts returns the number of successful logout calls.
func (s *Server) Logouts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logouts
}

// PermissionCalls returns the number of permissions requests served.
func (s *Server) PermissionCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permissionCalls
}

// RoleCalls returns the number of role catalog requests served.
func (s *Server) RoleCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roleCalls
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			RequestID:     r.Header.Get(backend.HeaderRequestID),
			Authorization: r.Header.Get("Authorization"),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing token"})
			return
		}
		_, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) {
			return s.signingKey, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) issue(u User, kind string) string {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":    strconv.FormatInt(u.ID, 10),
		"name":   u.Name,
		"email":  u.Email,
		"roleId": u.RoleID,
		"typ":    kind,
		"iat":    now.Unix(),
		"exp":    now.Add(s.tokenTTL).Unix(),
	}
	if kind == "refresh" {
		claims["exp"] = now.Add(s.tokenTTL * 24).Unix()
	}
	signed, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	return signed
}
