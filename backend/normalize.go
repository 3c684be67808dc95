package backend

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
)

// Layout names the login response shape a [LoginResult] was normalized from.
type Layout string

const (
	LayoutCanonical Layout = "canonical"
	LayoutLegacy    Layout = "legacy"
	LayoutEnvelope  Layout = "envelope"
	LayoutTokenOnly Layout = "token-only"
)

// User is the canonical user record of a login response.
type User struct {
	ID     int64 `validate:"gt=0"`
	Name   string
	Email  string
	RoleID int64 `validate:"gt=0"`
}

// LoginResult is the canonical login record.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         User
	Layout       Layout
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type rawUser struct {
	ID          flexID `json:"id"`
	Name        string `json:"name"`
	Nombre      string `json:"nombre"`
	Email       string `json:"email"`
	Correo      string `json:"correo"`
	RoleID      flexID `json:"roleId"`
	RoleIDSnake flexID `json:"role_id"`
	RolID       flexID `json:"rol_id"`
}

func (u *rawUser) canonical() User {
	return User{
		ID:     int64(u.ID),
		Name:   firstNonEmpty(u.Name, u.Nombre),
		Email:  firstNonEmpty(u.Email, u.Correo),
		RoleID: firstNonZero(u.RoleID, u.RoleIDSnake, u.RolID),
	}
}

type rawLogin struct {
	AccessToken       string    `json:"accessToken"`
	AccessTokenSnake  string    `json:"access_token"`
	Token             string    `json:"token"`
	RefreshToken      string    `json:"refreshToken"`
	RefreshTokenSnake string    `json:"refresh_token"`
	User              *rawUser  `json:"user"`
	Usuario           *rawUser  `json:"usuario"`
	Data              *rawLogin `json:"data"`
}

func (r *rawLogin) empty() bool {
	return r.AccessToken == "" && r.AccessTokenSnake == "" && r.Token == "" &&
		r.RefreshToken == "" && r.RefreshTokenSnake == "" &&
		r.User == nil && r.Usuario == nil && r.Data == nil
}

// NormalizeLogin converts a login response body into the canonical record.
//
// Recognized layouts:
//
//	canonical  {accessToken, refreshToken, user:{id, name, email, roleId}}
//	legacy     {access_token, refresh_token, user:{id, nombre|name, correo|email, rol_id|role_id}}
//	envelope   {data:{token|accessToken, refreshToken, usuario|user:{...}}}
//	token-only {token, refresh_token} with the user read from the JWT claims
//
// The returned error matches [ErrUnrecognizedResponse], [ErrMissingTokens] or
// [ErrMissingUserFields].
func NormalizeLogin(body []byte) (LoginResult, error) {
	const endpoint = "POST /auth/login"

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return LoginResult{}, &ShapeError{Endpoint: endpoint, Reason: "body is not a JSON object"}
	}

	var raw rawLogin
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return LoginResult{}, &ShapeError{Endpoint: endpoint, Reason: err.Error()}
	}
	if raw.empty() {
		return LoginResult{}, &ShapeError{Endpoint: endpoint, Reason: "no known login fields"}
	}

	src := &raw
	layout := LayoutCanonical
	if raw.Data != nil {
		if raw.Data.Data != nil {
			return LoginResult{}, &ShapeError{Endpoint: endpoint, Reason: "nested data envelope"}
		}
		src = raw.Data
		layout = LayoutEnvelope
	}

	res := LoginResult{
		AccessToken:  firstNonEmpty(src.AccessToken, src.AccessTokenSnake, src.Token),
		RefreshToken: firstNonEmpty(src.RefreshToken, src.RefreshTokenSnake),
	}

	user := src.User
	if user == nil {
		user = src.Usuario
	}

	switch {
	case user != nil:
		res.User = user.canonical()
		if layout == LayoutCanonical && (src.AccessToken == "" || user.Nombre != "" || user.Correo != "" || user.RoleID == 0) {
			layout = LayoutLegacy
		}
	case res.AccessToken != "":
		claimsUser, err := userFromToken(res.AccessToken)
		if err != nil {
			return LoginResult{}, &ShapeError{Endpoint: endpoint, Reason: err.Error()}
		}
		res.User = claimsUser
		layout = LayoutTokenOnly
	default:
		return LoginResult{}, fmt.Errorf("%w: no access token", ErrMissingTokens)
	}
	res.Layout = layout

	if res.AccessToken == "" || res.RefreshToken == "" {
		return LoginResult{}, fmt.Errorf("%w: access and refresh tokens are both required", ErrMissingTokens)
	}
	if err := validate.Struct(res.User); err != nil {
		return LoginResult{}, fmt.Errorf("%w: %v", ErrMissingUserFields, err)
	}

	return res, nil
}

// userFromToken reads identity claims from an unverified JWT.
func userFromToken(token string) (User, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return User{}, fmt.Errorf("token is not a decodable JWT: %v", err)
	}

	id := claimInt(claims["sub"])
	if id == 0 {
		id = claimInt(claims["id"])
	}
	roleID := claimInt(claims["roleId"])
	if roleID == 0 {
		roleID = claimInt(claims["role_id"])
	}
	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)

	return User{ID: id, Name: name, Email: email, RoleID: roleID}, nil
}

// TokenExpiry returns the exp claim of an unverified JWT. ok is false when the token is
// not a JWT or carries no exp.
func TokenExpiry(token string) (exp int64, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, false
	}
	at, err := claims.GetExpirationTime()
	if err != nil || at == nil {
		return 0, false
	}
	return at.Unix(), true
}
