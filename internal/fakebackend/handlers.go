package fakebackend

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ironhall/gymauth/backend"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.Identifier]
	if !ok || u.Secret != req.Secret {
		s.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	access := s.issue(u, "access")
	refresh := s.issue(u, "refresh")
	layout := s.layout
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, loginBody(layout, u, access, refresh))
}

func loginBody(layout backend.Layout, u User, access, refresh string) any {
	switch layout {
	case backend.LayoutLegacy:
		return map[string]any{
			"access_token":  access,
			"refresh_token": refresh,
			"user": map[string]any{
				"id":     strconv.FormatInt(u.ID, 10),
				"nombre": u.Name,
				"correo": u.Email,
				"rol_id": u.RoleID,
			},
		}
	case backend.LayoutEnvelope:
		return map[string]any{
			"data": map[string]any{
				"token":        access,
				"refreshToken": refresh,
				"usuario": map[string]any{
					"id":     u.ID,
					"name":   u.Name,
					"email":  u.Email,
					"roleId": u.RoleID,
				},
			},
		}
	case backend.LayoutTokenOnly:
		return map[string]any{
			"token":         access,
			"refresh_token": refresh,
		}
	default:
		return map[string]any{
			"accessToken":  access,
			"refreshToken": refresh,
			"user": map[string]any{
				"id":     u.ID,
				"name":   u.Name,
				"email":  u.Email,
				"roleId": u.RoleID,
			},
		}
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLogout {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "logout failed"})
		return
	}
	s.logouts++
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRoles(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.roleCalls++
	if s.failRoles {
		s.mu.Unlock()
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "roles unavailable"})
		return
	}
	list := make([]map[string]any, 0, len(s.roles))
	for _, r := range s.roles {
		item := map[string]any{"id": r.ID, "name": r.Name}
		if r.Route != "" {
			item["route"] = r.Route
		}
		list = append(list, item)
	}
	envelope := s.rolesEnvelop
	s.mu.Unlock()

	if envelope {
		writeJSON(w, http.StatusOK, map[string]any{"data": list})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handlePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, err := strconv.ParseInt(r.URL.Query().Get("roleId"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "roleId required"})
		return
	}

	s.mu.Lock()
	hook := s.permissionsHook
	s.mu.Unlock()
	if hook != nil {
		hook(roleID)
	}

	s.mu.Lock()
	s.permissionCalls++
	if s.failPermissions {
		s.mu.Unlock()
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "permissions unavailable"})
		return
	}
	p := s.grants[roleID]
	legacy := s.legacyPerms
	s.mu.Unlock()

	modules := append([]string{}, p.AccessibleModules...)
	if legacy {
		grants := make([]map[string]string, 0, len(p.Grants))
		for _, g := range p.Grants {
			grants = append(grants, map[string]string{"modulo": g.Module, "privilegio": g.Privilege})
		}
		writeJSON(w, http.StatusOK, map[string]any{"modules": modules, "permissions": grants})
		return
	}

	grants := make([]map[string]string, 0, len(p.Grants))
	for _, g := range p.Grants {
		grants = append(grants, map[string]string{"module": g.Module, "privilege": g.Privilege})
	}
	writeJSON(w, http.StatusOK, map[string]any{"accessibleModules": modules, "grants": grants})
}
