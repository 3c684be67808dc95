package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ironhall/gymauth/permission"
	"github.com/ironhall/gymauth/roles"
)

type rawRole struct {
	ID     flexID `json:"id"`
	Name   string `json:"name"`
	Nombre string `json:"nombre"`
	Route  string `json:"route"`
	Ruta   string `json:"ruta"`
}

// FetchRoles returns the role catalog. Entries are returned as sent; validation is
// the caller's concern.
func (c *Client) FetchRoles(ctx context.Context) ([]roles.Role, error) {
	const endpoint = "GET /roles"

	body, err := c.do(ctx, http.MethodGet, "/roles", nil)
	if err != nil {
		return nil, err
	}

	var list []rawRole
	if err := decodeListOrEnvelope(body, &list); err != nil {
		return nil, &ShapeError{Endpoint: endpoint, Reason: err.Error()}
	}

	out := make([]roles.Role, 0, len(list))
	for _, r := range list {
		out = append(out, roles.Role{
			ID:    int64(r.ID),
			Name:  firstNonEmpty(r.Name, r.Nombre),
			Route: firstNonEmpty(r.Route, r.Ruta),
		})
	}
	return out, nil
}

// decodeListOrEnvelope accepts either a bare JSON array or {data:[...]}.
func decodeListOrEnvelope(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty body")
	}
	if trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return err
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || data[0] != '[' {
		return fmt.Errorf("expected array or data envelope")
	}
	return json.Unmarshal(data, out)
}

type rawGrant struct {
	Module     string `json:"module"`
	Modulo     string `json:"modulo"`
	Privilege  string `json:"privilege"`
	Privilegio string `json:"privilegio"`
}

type rawPermissions struct {
	AccessibleModules []string        `json:"accessibleModules"`
	Modules           []string        `json:"modules"`
	Grants            []rawGrant      `json:"grants"`
	Permissions       []rawGrant      `json:"permissions"`
	Data              *rawPermissions `json:"data"`
}

// FetchPermissions returns the permission set of roleID.
func (c *Client) FetchPermissions(ctx context.Context, roleID int64) (permission.Payload, error) {
	q := url.Values{}
	q.Set("roleId", strconv.FormatInt(roleID, 10))
	body, err := c.do(ctx, http.MethodGet, "/permissions?"+q.Encode(), nil)
	if err != nil {
		return permission.Payload{}, err
	}

	return NormalizePermissions(body)
}

// NormalizePermissions converts a permissions response body into a validated payload.
func NormalizePermissions(body []byte) (permission.Payload, error) {
	const endpoint = "GET /permissions"

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return permission.Payload{}, &ShapeError{Endpoint: endpoint, Reason: "body is not a JSON object"}
	}

	var raw rawPermissions
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return permission.Payload{}, &ShapeError{Endpoint: endpoint, Reason: err.Error()}
	}
	src := &raw
	if raw.Data != nil {
		src = raw.Data
	}

	modules := src.AccessibleModules
	if modules == nil {
		modules = src.Modules
	}
	grants := src.Grants
	if grants == nil {
		grants = src.Permissions
	}
	if modules == nil && grants == nil {
		return permission.Payload{}, &ShapeError{Endpoint: endpoint, Reason: "no modules or grants field"}
	}

	// module names are trimmed the same way on both lists so they keep matching
	payload := permission.Payload{
		AccessibleModules: make([]string, 0, len(modules)),
		Grants:            make([]permission.Grant, 0, len(grants)),
	}
	for _, m := range modules {
		payload.AccessibleModules = append(payload.AccessibleModules, strings.TrimSpace(m))
	}
	for _, g := range grants {
		payload.Grants = append(payload.Grants, permission.Grant{
			Module:    firstNonEmpty(g.Module, g.Modulo),
			Privilege: firstNonEmpty(g.Privilege, g.Privilegio),
		})
	}
	if err := payload.Validate(); err != nil {
		return permission.Payload{}, &ShapeError{Endpoint: endpoint, Reason: err.Error()}
	}
	return payload, nil
}
