package entra

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultAuthorityURL = "https://login.microsoftonline.com"
	DefaultGraphURL     = "https://graph.microsoft.com/v1.0"
	GraphScope          = "https://graph.microsoft.com/.default"

	// maxPages bounds @odata.nextLink paging.
	maxPages = 100
)

// RequiredPermissions are the application permissions the sync needs.
var RequiredPermissions = []string{
	"Application.Read.All",
	"User.Read.All",
	"AuditLog.Read.All",
	"Directory.Read.All",
}

// ErrUnauthorized is returned when Graph rejects the credentials or lacks a permission.
var ErrUnauthorized = errors.New("entra: unauthorized")

// Config holds the credentials of an app registration.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// AuthorityURL overrides the identity platform base URL.
	AuthorityURL string
	// GraphURL overrides the Microsoft Graph base URL.
	GraphURL string
	// Timeout is the per request timeout.
	Timeout time.Duration
}

// Client is a Microsoft Graph client authenticated with client credentials.
type Client struct {
	graphURL    string
	tenantID    string
	clientID    string
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
}

// New creates a Graph client. Tokens are requested lazily and reused until five minutes before expiry.
func New(cfg Config) (*Client, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("entra: tenant id, client id and client secret are required")
	}
	authority := strings.TrimSuffix(cfg.AuthorityURL, "/")
	if authority == "" {
		authority = DefaultAuthorityURL
	}
	graphURL := strings.TrimSuffix(cfg.GraphURL, "/")
	if graphURL == "" {
		graphURL = DefaultGraphURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", authority, url.PathEscape(cfg.TenantID)),
		Scopes:       []string{GraphScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	// the token endpoint is called with its own client so it honours the timeout
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	ts := oauth2.ReuseTokenSourceWithExpiry(nil, cc.TokenSource(tokenCtx), 5*time.Minute)

	httpClient := oauth2.NewClient(tokenCtx, ts)
	httpClient.Timeout = timeout

	return &Client{
		graphURL:    graphURL,
		tenantID:    cfg.TenantID,
		clientID:    cfg.ClientID,
		tokenSource: ts,
		httpClient:  httpClient,
	}, nil
}

// APIError is a non-2xx response from Graph.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph request failed with status %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph request failed with status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

type graphErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type page[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// doRequest performs a GET against Graph. endpoint is either a path or an absolute nextLink.
func (c *Client) doRequest(ctx context.Context, endpoint string, query url.Values) (*http.Response, error) {
	reqURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		reqURL = c.graphURL + endpoint
	}
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, fmt.Errorf("%w: token request failed: %s", ErrUnauthorized, re.ErrorDescription)
		}
		return nil, fmt.Errorf("error performing request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close() //nolint:errcheck
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var ge graphErrorBody
		if json.Unmarshal(body, &ge) == nil && ge.Error.Code != "" {
			apiErr.Code = ge.Error.Code
			apiErr.Message = ge.Error.Message
		}
		return nil, apiErr
	}

	return resp, nil
}

func getJSON[T any](ctx context.Context, c *Client, endpoint string, query url.Values) (*T, error) {
	resp, err := c.doRequest(ctx, endpoint, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("error decoding %s response: %w", endpoint, err)
	}
	return &out, nil
}

// getAll follows @odata.nextLink until every page of a collection is read.
func getAll[T any](ctx context.Context, c *Client, endpoint string, query url.Values) ([]T, error) {
	var all []T
	next := endpoint
	for i := 0; next != ""; i++ {
		if i == maxPages {
			return nil, fmt.Errorf("error reading %s: more than %d pages", endpoint, maxPages)
		}
		p, err := getJSON[page[T]](ctx, c, next, query)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Value...)
		next = p.NextLink
		// the next link already carries the query
		query = nil
	}
	return all, nil
}

// GetApplications returns all app registrations of the tenant.
func (c *Client) GetApplications(ctx context.Context) ([]Application, error) {
	return getAll[Application](ctx, c, "/applications", nil)
}

// GetApplication returns a single app registration by object id.
func (c *Client) GetApplication(ctx context.Context, id string) (*Application, error) {
	return getJSON[Application](ctx, c, "/applications/"+url.PathEscape(id), nil)
}

// GetUsers returns all users of the tenant.
func (c *Client) GetUsers(ctx context.Context) ([]User, error) {
	return getAll[User](ctx, c, "/users", nil)
}

// GetUser returns a single user by object id or user principal name.
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	return getJSON[User](ctx, c, "/users/"+url.PathEscape(id), nil)
}

func signInFilter(days int, appID string, now time.Time) string {
	if days < 1 {
		days = 7
	}
	start := now.UTC().Add(-time.Duration(days) * 24 * time.Hour)
	filter := fmt.Sprintf("createdDateTime ge %s and createdDateTime le %s",
		start.Format(time.RFC3339), now.UTC().Format(time.RFC3339))
	if appID != "" {
		filter += fmt.Sprintf(" and appId eq '%s'", strings.ReplaceAll(appID, "'", "''"))
	}
	return filter
}

// GetSignInLogs returns the sign-ins of the last days.
func (c *Client) GetSignInLogs(ctx context.Context, days int) ([]SignIn, error) {
	q := url.Values{}
	q.Set("$filter", signInFilter(days, "", time.Now()))
	return getAll[SignIn](ctx, c, "/auditLogs/signIns", q)
}

// GetApplicationSignIns returns the sign-ins of one application (by appId) of the last days.
func (c *Client) GetApplicationSignIns(ctx context.Context, appID string, days int) ([]SignIn, error) {
	q := url.Values{}
	q.Set("$filter", signInFilter(days, appID, time.Now()))
	return getAll[SignIn](ctx, c, "/auditLogs/signIns", q)
}

// GetDirectoryRoles returns the activated directory roles.
func (c *Client) GetDirectoryRoles(ctx context.Context) ([]DirectoryRole, error) {
	return getAll[DirectoryRole](ctx, c, "/directoryRoles", nil)
}

// GetDirectoryRoleMembers returns the members of a directory role.
func (c *Client) GetDirectoryRoleMembers(ctx context.Context, roleID string) ([]DirectoryObject, error) {
	return getAll[DirectoryObject](ctx, c, "/directoryRoles/"+url.PathEscape(roleID)+"/members", nil)
}

// TestConnection reads the tenant organization to verify the credentials.
func (c *Client) TestConnection(ctx context.Context) (*Organization, error) {
	orgs, err := getJSON[page[Organization]](ctx, c, "/organization", nil)
	if err != nil {
		return nil, err
	}
	if len(orgs.Value) == 0 {
		return &Organization{ID: c.tenantID, DisplayName: "Unknown"}, nil
	}
	return &orgs.Value[0], nil
}

// GetPermissionsStatus reports which of the required application permissions are present
// in the roles claim of the access token.
func (c *Client) GetPermissionsStatus(ctx context.Context) ([]PermissionStatus, error) {
	tok, err := c.tokenSource.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, fmt.Errorf("%w: token request failed: %s", ErrUnauthorized, re.ErrorDescription)
		}
		return nil, fmt.Errorf("error requesting token: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	roles, err := tokenRoles(tok.AccessToken)
	if err != nil {
		return nil, err
	}
	out := make([]PermissionStatus, 0, len(RequiredPermissions))
	for _, p := range RequiredPermissions {
		out = append(out, PermissionStatus{
			Permission: p,
			Granted:    slices.Contains(roles, p),
			Type:       "Application",
		})
	}
	return out, nil
}

// tokenRoles extracts the roles claim of a JWT access token without verifying it.
// The token comes straight from the token endpoint over TLS.
func tokenRoles(accessToken string) ([]string, error) {
	parts := strings.Split(accessToken, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("access token is not a JWT")
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, fmt.Errorf("error decoding access token: %w", err)
	}
	var claims struct {
		Roles []string `json:"roles"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("error decoding access token claims: %w", err)
	}
	return claims.Roles, nil
}
