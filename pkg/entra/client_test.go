package entra

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeJWT(roles ...string) string {
	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload, _ := json.Marshal(map[string]any{"roles": roles})
	return header + "." + enc.EncodeToString(payload) + ".sig"
}

type fakeGraph struct {
	server      *httptest.Server
	tokenCalls  atomic.Int32
	token       string
	lastFilter  atomic.Value
	failToken   bool
	forbidUsers bool
}

func newFakeGraph(t *testing.T) *fakeGraph {
	t.Helper()
	fg := &fakeGraph{token: fakeJWT("Application.Read.All", "AuditLog.Read.All")}
	mux := http.NewServeMux()

	mux.HandleFunc("/tenant-1/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		fg.tokenCalls.Add(1)
		assert.NoError(t, r.ParseForm())
		if fg.failToken || r.PostForm.Get("client_secret") != "secret" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"invalid_client","error_description":"bad secret"}`)
			return
		}
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, GraphScope, r.PostForm.Get("scope"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","expires_in":3600}`, fg.token)
	})

	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+fg.token {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			next(w, r)
		}
	}

	mux.HandleFunc("/v1.0/applications", auth(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"value":[{"id":"obj-2","appId":"app-2","displayName":"CRM","signInAudience":"AzureADMyOrg"}]}`)
			return
		}
		fmt.Fprintf(w, `{"value":[{"id":"obj-1","appId":"app-1","displayName":"Portal","signInAudience":"AzureADMultipleOrgs"}],"@odata.nextLink":"%s/v1.0/applications?page=2"}`, fg.server.URL)
	}))
	mux.HandleFunc("/v1.0/applications/obj-1", auth(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"obj-1","appId":"app-1","displayName":"Portal"}`)
	}))
	mux.HandleFunc("/v1.0/users", auth(func(w http.ResponseWriter, r *http.Request) {
		if fg.forbidUsers {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error":{"code":"Authorization_RequestDenied","message":"Insufficient privileges"}}`)
			return
		}
		fmt.Fprint(w, `{"value":[{"id":"u1","displayName":"Ada","userPrincipalName":"ada@contoso.com"}]}`)
	}))
	mux.HandleFunc("/v1.0/auditLogs/signIns", auth(func(w http.ResponseWriter, r *http.Request) {
		fg.lastFilter.Store(r.URL.Query().Get("$filter"))
		fmt.Fprint(w, `{"value":[{"id":"s1","createdDateTime":"2024-05-01T10:00:00Z","userId":"u1","userPrincipalName":"ada@contoso.com","appId":"app-1","appDisplayName":"Portal","ipAddress":"10.0.0.1","status":{"errorCode":0},"location":{"city":"Zurich","countryOrRegion":"CH"}},{"id":"s2","createdDateTime":"2024-05-01T11:00:00Z","appId":"app-1","status":{"errorCode":50126,"failureReason":"Invalid password"}}]}`)
	}))
	mux.HandleFunc("/v1.0/directoryRoles", auth(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value":[{"id":"r1","displayName":"Global Administrator"}]}`)
	}))
	mux.HandleFunc("/v1.0/directoryRoles/r1/members", auth(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value":[{"@odata.type":"#microsoft.graph.user","id":"u1","displayName":"Ada"}]}`)
	}))
	mux.HandleFunc("/v1.0/organization", auth(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value":[{"id":"tenant-1","displayName":"Contoso"}]}`)
	}))

	fg.server = httptest.NewServer(mux)
	t.Cleanup(fg.server.Close)
	return fg
}

func (fg *fakeGraph) client(t *testing.T, secret string) *Client {
	t.Helper()
	c, err := New(Config{
		TenantID:     "tenant-1",
		ClientID:     "client-1",
		ClientSecret: secret,
		AuthorityURL: fg.server.URL,
		GraphURL:     fg.server.URL + "/v1.0",
		Timeout:      5 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{TenantID: "t"})
	assert.Error(t, err)
}

func TestGetApplicationsFollowsNextLink(t *testing.T) {
	fg := newFakeGraph(t)
	c := fg.client(t, "secret")

	apps, err := c.GetApplications(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "app-1", apps[0].AppID)
	assert.Equal(t, "CRM", apps[1].DisplayName)

	app, err := c.GetApplication(context.Background(), "obj-1")
	require.NoError(t, err)
	assert.Equal(t, "Portal", app.DisplayName)

	// the token is fetched once and reused
	assert.Equal(t, int32(1), fg.tokenCalls.Load())
}

func TestGetUsers(t *testing.T) {
	fg := newFakeGraph(t)
	c := fg.client(t, "secret")

	users, err := c.GetUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "ada@contoso.com", users[0].Email())
}

func TestForbiddenIsUnauthorized(t *testing.T) {
	fg := newFakeGraph(t)
	fg.forbidUsers = true
	c := fg.client(t, "secret")

	_, err := c.GetUsers(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "Authorization_RequestDenied", apiErr.Code)
}

func TestBadSecretIsUnauthorized(t *testing.T) {
	fg := newFakeGraph(t)
	c := fg.client(t, "wrong")

	_, err := c.TestConnection(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSignIns(t *testing.T) {
	fg := newFakeGraph(t)
	c := fg.client(t, "secret")

	signIns, err := c.GetSignInLogs(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, signIns, 2)
	assert.True(t, signIns[0].Succeeded())
	assert.False(t, signIns[1].Succeeded())
	assert.Equal(t, "Zurich, CH", signIns[0].Location.String())
	assert.Contains(t, fg.lastFilter.Load().(string), "createdDateTime ge ")

	_, err = c.GetApplicationSignIns(context.Background(), "app-1", 1)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(fg.lastFilter.Load().(string), "and appId eq 'app-1'"))
}

func TestSignInFilter(t *testing.T) {
	now := time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC)
	assert.Equal(t,
		"createdDateTime ge 2024-05-01T12:00:00Z and createdDateTime le 2024-05-08T12:00:00Z",
		signInFilter(7, "", now))
	assert.Equal(t,
		"createdDateTime ge 2024-05-07T12:00:00Z and createdDateTime le 2024-05-08T12:00:00Z and appId eq 'o''brien'",
		signInFilter(1, "o'brien", now))
	assert.Contains(t, signInFilter(0, "", now), "2024-05-01T12:00:00Z")
}

func TestDirectoryRoles(t *testing.T) {
	fg := newFakeGraph(t)
	c := fg.client(t, "secret")

	roles, err := c.GetDirectoryRoles(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, 1)

	members, err := c.GetDirectoryRoleMembers(context.Background(), roles[0].ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "Ada", members[0].DisplayName)
}

func TestTestConnection(t *testing.T) {
	fg := newFakeGraph(t)
	c := fg.client(t, "secret")

	org, err := c.TestConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Contoso", org.DisplayName)
}

func TestGetPermissionsStatus(t *testing.T) {
	fg := newFakeGraph(t)
	c := fg.client(t, "secret")

	perms, err := c.GetPermissionsStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, perms, len(RequiredPermissions))

	granted := map[string]bool{}
	for _, p := range perms {
		granted[p.Permission] = p.Granted
	}
	assert.True(t, granted["Application.Read.All"])
	assert.True(t, granted["AuditLog.Read.All"])
	assert.False(t, granted["User.Read.All"])
	assert.False(t, granted["Directory.Read.All"])
}

func TestTokenRoles(t *testing.T) {
	roles, err := tokenRoles(fakeJWT("A", "B"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, roles)

	_, err = tokenRoles("opaque")
	assert.Error(t, err)
}
