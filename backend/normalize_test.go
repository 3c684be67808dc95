package backend_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironhall/gymauth/backend"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

func TestNormalizeLoginLayouts(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		layout backend.Layout
		user   backend.User
	}{
		{
			name:   "canonical",
			body:   `{"accessToken":"a","refreshToken":"r","user":{"id":7,"name":"Ana","email":"a@x","roleId":3}}`,
			layout: backend.LayoutCanonical,
			user:   backend.User{ID: 7, Name: "Ana", Email: "a@x", RoleID: 3},
		},
		{
			name:   "legacy spanish",
			body:   `{"access_token":"a","refresh_token":"r","user":{"id":"7","nombre":"Ana","correo":"a@x","rol_id":"3"}}`,
			layout: backend.LayoutLegacy,
			user:   backend.User{ID: 7, Name: "Ana", Email: "a@x", RoleID: 3},
		},
		{
			name:   "legacy english",
			body:   `{"access_token":"a","refresh_token":"r","user":{"id":7,"name":"Ana","email":"a@x","role_id":3}}`,
			layout: backend.LayoutLegacy,
			user:   backend.User{ID: 7, Name: "Ana", Email: "a@x", RoleID: 3},
		},
		{
			name:   "envelope",
			body:   `{"data":{"token":"a","refreshToken":"r","usuario":{"id":7,"name":"Ana","email":"a@x","roleId":3}}}`,
			layout: backend.LayoutEnvelope,
			user:   backend.User{ID: 7, Name: "Ana", Email: "a@x", RoleID: 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := backend.NormalizeLogin([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.layout, res.Layout)
			assert.Equal(t, tt.user, res.User)
			assert.Equal(t, "a", res.AccessToken)
			assert.Equal(t, "r", res.RefreshToken)
		})
	}
}

func TestNormalizeLoginTokenOnly(t *testing.T) {
	access := signedToken(t, jwt.MapClaims{"sub": "9", "name": "Luis", "email": "l@x", "role_id": 1.0})
	res, err := backend.NormalizeLogin([]byte(`{"token":"` + access + `","refresh_token":"r"}`))
	require.NoError(t, err)
	assert.Equal(t, backend.LayoutTokenOnly, res.Layout)
	assert.Equal(t, backend.User{ID: 9, Name: "Luis", Email: "l@x", RoleID: 1}, res.User)

	access = signedToken(t, jwt.MapClaims{"id": 11.0, "roleId": "4"})
	res, err = backend.NormalizeLogin([]byte(`{"token":"` + access + `","refresh_token":"r"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(11), res.User.ID)
	assert.Equal(t, int64(4), res.User.RoleID)
}

func TestNormalizeLoginErrors(t *testing.T) {
	noRole := signedToken(t, jwt.MapClaims{"sub": "9"})

	tests := []struct {
		name string
		body string
		want error
	}{
		{"array", `[1,2]`, backend.ErrUnrecognizedResponse},
		{"not json", `<html>`, backend.ErrUnrecognizedResponse},
		{"unknown fields", `{"status":"ok"}`, backend.ErrUnrecognizedResponse},
		{"opaque token only", `{"token":"opaque","refresh_token":"r"}`, backend.ErrUnrecognizedResponse},
		{"bad id", `{"accessToken":"a","refreshToken":"r","user":{"id":"abc","roleId":1}}`, backend.ErrUnrecognizedResponse},
		{"user without token", `{"user":{"id":1,"roleId":1}}`, backend.ErrMissingTokens},
		{"missing refresh", `{"accessToken":"a","user":{"id":1,"roleId":1}}`, backend.ErrMissingTokens},
		{"missing role", `{"accessToken":"a","refreshToken":"r","user":{"id":1}}`, backend.ErrMissingUserFields},
		{"missing id", `{"accessToken":"a","refreshToken":"r","user":{"roleId":1}}`, backend.ErrMissingUserFields},
		{"claims without role", `{"token":"` + noRole + `","refresh_token":"r"}`, backend.ErrMissingUserFields},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := backend.NormalizeLogin([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	_, err := backend.NormalizeLogin([]byte(`{}`))
	var shapeErr *backend.ShapeError
	assert.True(t, errors.As(err, &shapeErr))
}

func TestNormalizePermissions(t *testing.T) {
	p, err := backend.NormalizePermissions([]byte(`{"data":{"modules":["Clients"],"permissions":[{"modulo":"Clients","privilegio":"Create"}]}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Clients"}, p.AccessibleModules)
	require.Len(t, p.Grants, 1)
	assert.Equal(t, "Create", p.Grants[0].Privilege)

	p, err = backend.NormalizePermissions([]byte(`{"accessibleModules":[],"grants":[]}`))
	require.NoError(t, err)
	assert.Empty(t, p.Grants)

	for _, body := range []string{`[]`, `{"other":1}`, `{"grants":[{"module":"Clients"}]}`} {
		_, err := backend.NormalizePermissions([]byte(body))
		assert.True(t, errors.Is(err, backend.ErrUnrecognizedResponse), body)
	}
}

func TestNormalizePermissionsTrimsModuleNames(t *testing.T) {
	p, err := backend.NormalizePermissions([]byte(`{"accessibleModules":[" Clients ","Payments\t"],"grants":[{"module":" Clients","privilege":"Create "}]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Clients", "Payments"}, p.AccessibleModules)
	require.Len(t, p.Grants, 1)
	assert.Equal(t, p.AccessibleModules[0], p.Grants[0].Module)
	assert.Equal(t, "Create", p.Grants[0].Privilege)

	_, err = backend.NormalizePermissions([]byte(`{"accessibleModules":["  "],"grants":[]}`))
	assert.True(t, errors.Is(err, backend.ErrUnrecognizedResponse))
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	got, ok := backend.TokenExpiry(signedToken(t, jwt.MapClaims{"exp": exp}))
	require.True(t, ok)
	assert.Equal(t, exp, got)

	_, ok = backend.TokenExpiry("opaque")
	assert.False(t, ok)
	_, ok = backend.TokenExpiry(signedToken(t, jwt.MapClaims{"sub": "1"}))
	assert.False(t, ok)
}
