package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

// Login exchanges credentials for tokens and normalizes the response.
func (c *Client) Login(ctx context.Context, identifier, secret string) (LoginResult, error) {
	body, err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{Identifier: identifier, Secret: secret})
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && (statusErr.Code == http.StatusUnauthorized || statusErr.Code == http.StatusForbidden) {
			return LoginResult{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return LoginResult{}, err
	}

	res, err := NormalizeLogin(body)
	if err != nil {
		return LoginResult{}, err
	}
	c.logger.Debug("login response normalized", zap.String("layout", string(res.Layout)))
	return res, nil
}

// Logout notifies the backend that the current token is no longer in use.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/logout", nil)
	return err
}
