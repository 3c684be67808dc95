package backend_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironhall/gymauth/backend"
	"github.com/ironhall/gymauth/internal/fakebackend"
	"github.com/ironhall/gymauth/permission"
	"github.com/ironhall/gymauth/roles"
)

func newClientTest(t *testing.T) (*backend.Client, *fakebackend.Server) {
	t.Helper()
	fake := fakebackend.New()
	fake.AddUser("ana@gym.test", fakebackend.User{ID: 42, Secret: "s3cret", Name: "Ana", Email: "ana@gym.test", RoleID: 2})
	fake.SetRoles([]roles.Role{{ID: 1, Name: "Admin", Route: "/dashboard"}, {ID: 2, Name: "Receptionist", Route: "/clients"}})
	fake.SetPermissions(2, permission.Payload{
		AccessibleModules: []string{"Clients"},
		Grants:            []permission.Grant{{Module: "Clients", Privilege: "Create"}},
	})

	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	client, err := backend.New(srv.URL, backend.Options{Timeout: 2 * time.Second})
	require.NoError(t, err)
	return client, fake
}

func TestLoginAllLayouts(t *testing.T) {
	layouts := []backend.Layout{
		backend.LayoutCanonical,
		backend.LayoutLegacy,
		backend.LayoutEnvelope,
		backend.LayoutTokenOnly,
	}
	for _, layout := range layouts {
		t.Run(string(layout), func(t *testing.T) {
			client, fake := newClientTest(t)
			fake.SetLoginLayout(layout)

			res, err := client.Login(context.Background(), "ana@gym.test", "s3cret")
			require.NoError(t, err)
			assert.Equal(t, layout, res.Layout)
			assert.NotEmpty(t, res.AccessToken)
			assert.NotEmpty(t, res.RefreshToken)
			assert.Equal(t, int64(42), res.User.ID)
			assert.Equal(t, int64(2), res.User.RoleID)
			assert.Equal(t, "Ana", res.User.Name)
			assert.Equal(t, "ana@gym.test", res.User.Email)
		})
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	client, _ := newClientTest(t)

	_, err := client.Login(context.Background(), "ana@gym.test", "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrInvalidCredentials))
	assert.True(t, errors.Is(err, backend.ErrBackendStatus))

	var statusErr *backend.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 401, statusErr.Code)
}

func TestRequestsCarryRequestIDAndBearer(t *testing.T) {
	client, fake := newClientTest(t)
	res, err := client.Login(context.Background(), "ana@gym.test", "s3cret")
	require.NoError(t, err)

	client.SetTokenSource(func() string { return res.AccessToken })
	ctx := backend.WithRequestID(context.Background(), "req-fixed")
	_, err = client.FetchRoles(ctx)
	require.NoError(t, err)

	reqs := fake.Requests()
	require.Len(t, reqs, 2)
	assert.NotEmpty(t, reqs[0].RequestID)
	assert.Empty(t, reqs[0].Authorization)
	assert.Equal(t, "req-fixed", reqs[1].RequestID)
	assert.Equal(t, "Bearer "+res.AccessToken, reqs[1].Authorization)
}

func TestFetchRolesAndPermissions(t *testing.T) {
	client, fake := newClientTest(t)
	res, err := client.Login(context.Background(), "ana@gym.test", "s3cret")
	require.NoError(t, err)
	client.SetTokenSource(func() string { return res.AccessToken })

	for _, envelope := range []bool{false, true} {
		fake.SetRolesEnvelope(envelope)
		list, err := client.FetchRoles(context.Background())
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "/dashboard", list[0].Route)
	}

	for _, legacy := range []bool{false, true} {
		fake.SetLegacyPermissions(legacy)
		p, err := client.FetchPermissions(context.Background(), 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"Clients"}, p.AccessibleModules)
		assert.Equal(t, []permission.Grant{{Module: "Clients", Privilege: "Create"}}, p.Grants)
	}
}

func TestUnauthenticatedCatalogIsStatusError(t *testing.T) {
	client, _ := newClientTest(t)

	_, err := client.FetchRoles(context.Background())
	assert.True(t, errors.Is(err, backend.ErrBackendStatus))
}

func TestBackendDown(t *testing.T) {
	client, err := backend.New("http://127.0.0.1:1", backend.Options{Timeout: time.Second})
	require.NoError(t, err)

	_, err = client.FetchPermissions(context.Background(), 1)
	assert.True(t, errors.Is(err, backend.ErrUnavailable))
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := backend.New("  ", backend.Options{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "base URL"))
}
