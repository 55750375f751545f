package jobtracker_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobtracker "github.com/goliatone/go-jobtracker"
)

type apiClient struct {
	t   *testing.T
	app *fiber.App
}

type errorBody struct {
	Error struct {
		Category         string `json:"category"`
		Code             int    `json:"code"`
		TextCode         string `json:"text_code"`
		Message          string `json:"message"`
		ValidationErrors []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"validation_errors"`
	} `json:"error"`
}

func newAPI(t *testing.T, opts jobtracker.ServerOptions) *apiClient {
	t.Helper()

	svc := newTestServices(t, nil)
	if opts.Logger == nil {
		opts.Logger = jobtracker.NopLogger()
	}
	return &apiClient{t: t, app: jobtracker.NewApp(svc.Controller, opts)}
}

func (a *apiClient) do(req *http.Request) (int, []byte, http.Header) {
	a.t.Helper()

	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return resp.StatusCode, body, resp.Header
}

func (a *apiClient) json(method, path, token string, payload any) (int, []byte) {
	a.t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(a.t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	status, raw, _ := a.do(req)
	return status, raw
}

func (a *apiClient) register(email, password string) int {
	a.t.Helper()
	status, _ := a.json(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":     email,
		"password":  password,
		"full_name": "Test User",
	})
	return status
}

func (a *apiClient) login(email, password string) (int, string) {
	a.t.Helper()

	form := url.Values{"username": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)

	status, raw, _ := a.do(req)
	if status != http.StatusOK {
		return status, ""
	}

	var out jobtracker.LoginResponse
	require.NoError(a.t, json.Unmarshal(raw, &out))
	assert.Equal(a.t, "bearer", out.TokenType)
	return status, out.AccessToken
}

func (a *apiClient) signup(email string) string {
	a.t.Helper()
	require.Equal(a.t, http.StatusCreated, a.register(email, "Passw0rd1"))
	status, token := a.login(email, "Passw0rd1")
	require.Equal(a.t, http.StatusOK, status)
	require.NotEmpty(a.t, token)
	return token
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func TestHTTP_EndToEnd(t *testing.T) {
	api := newAPI(t, jobtracker.ServerOptions{})

	require.Equal(t, http.StatusBadRequest, api.register("alice@example.com", "abc123"))
	require.Equal(t, http.StatusCreated, api.register("alice@example.com", "Passw0rd1"))
	require.Equal(t, http.StatusBadRequest, api.register("ALICE@example.com", "Passw0rd1"))

	status, _ := api.login("alice@example.com", "Wr0ngPassword")
	require.Equal(t, http.StatusUnauthorized, status)

	status, token := api.login("alice@example.com", "Passw0rd1")
	require.Equal(t, http.StatusOK, status)

	status, raw := api.json(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	me := decode[map[string]any](t, raw)
	assert.Equal(t, "alice@example.com", me["email"])
	assert.NotContains(t, me, "password_hash")

	status, raw = api.json(http.MethodPost, "/api/applications", token, map[string]any{
		"company_name": "Acme",
		"job_title":    "Engineer",
		"date_applied": "2024-01-10",
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	created := decode[jobtracker.Application](t, raw)
	assert.Equal(t, jobtracker.StatusApplied, created.Status)
	assert.Equal(t, "2024-01-10", created.DateApplied.String())
	path := "/api/applications/" + created.ID.String()

	status, raw = api.json(http.MethodPatch, path+"/status", token, map[string]string{"status": "interview"})
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.Equal(t, jobtracker.StatusInterview, decode[jobtracker.Application](t, raw).Status)

	status, raw = api.json(http.MethodPatch, path+"/status", token, map[string]string{"status": "applied"})
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.Equal(t, jobtracker.StatusApplied, decode[jobtracker.Application](t, raw).Status)

	status, raw = api.json(http.MethodGet, "/api/applications", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]jobtracker.Application](t, raw), 1)

	status, raw = api.json(http.MethodGet, "/api/analytics/summary", token, nil)
	require.Equal(t, http.StatusOK, status)
	summary := decode[jobtracker.Summary](t, raw)
	assert.Equal(t, 1, summary.TotalApplications)
	assert.Equal(t, 1, summary.StatusBreakdown[jobtracker.StatusApplied])

	bob := api.signup("bob@example.com")

	status, raw = api.json(http.MethodGet, "/api/analytics/summary", bob, nil)
	require.Equal(t, http.StatusOK, status)
	empty := decode[jobtracker.Summary](t, raw)
	assert.Equal(t, 0, empty.TotalApplications)
	assert.Equal(t, 0, empty.SuccessRate)
	assert.Len(t, empty.StatusBreakdown, len(jobtracker.AllStatuses()))

	status, raw = api.json(http.MethodGet, path, bob, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, jobtracker.TextCodeApplicationAbsent, decode[errorBody](t, raw).Error.TextCode)

	status, _ = api.json(http.MethodPatch, path+"/status", bob, map[string]string{"status": "rejected"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = api.json(http.MethodDelete, path, bob, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = api.json(http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = api.json(http.MethodGet, path, token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHTTP_Unauthenticated(t *testing.T) {
	api := newAPI(t, jobtracker.ServerOptions{})

	tests := []struct {
		name   string
		method string
		path   string
		token  string
	}{
		{name: "no token on list", method: http.MethodGet, path: "/api/applications"},
		{name: "no token on summary", method: http.MethodGet, path: "/api/analytics/summary"},
		{name: "no token on me", method: http.MethodGet, path: "/api/auth/me"},
		{name: "garbage token", method: http.MethodGet, path: "/api/applications", token: "garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tt.token)
			}

			status, raw, header := api.do(req)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, "Bearer", header.Get(fiber.HeaderWWWAuthenticate))
			assert.Equal(t, "authentication", decode[errorBody](t, raw).Error.Category)
		})
	}
}

func TestHTTP_TokenForDeletedUser(t *testing.T) {
	api := newAPI(t, jobtracker.ServerOptions{})
	token := api.signup("alice@example.com")

	status, _ := api.json(http.MethodDelete, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, _ = api.json(http.MethodGet, "/api/applications", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHTTP_ApplicationValidation(t *testing.T) {
	api := newAPI(t, jobtracker.ServerOptions{})
	token := api.signup("alice@example.com")

	tests := []struct {
		name    string
		payload any
		raw     string
	}{
		{name: "future date", payload: map[string]any{"company_name": "Acme", "job_title": "Engineer", "date_applied": "2024-01-16"}},
		{name: "blank company", payload: map[string]any{"company_name": " ", "job_title": "Engineer", "date_applied": "2024-01-10"}},
		{name: "bad date format", payload: map[string]any{"company_name": "Acme", "job_title": "Engineer", "date_applied": "01/10/2024"}},
		{name: "unknown status", payload: map[string]any{"company_name": "Acme", "job_title": "Engineer", "date_applied": "2024-01-10", "status": "ghosted"}},
		{name: "malformed json", raw: `{"company_name":`},
		{name: "empty body", raw: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var status int
			if tt.payload != nil {
				status, _ = api.json(http.MethodPost, "/api/applications", token, tt.payload)
			} else {
				req := httptest.NewRequest(http.MethodPost, "/api/applications", strings.NewReader(tt.raw))
				req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
				req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
				status, _, _ = api.do(req)
			}
			assert.Equal(t, http.StatusBadRequest, status)
		})
	}

	status, _ := api.json(http.MethodGet, "/api/applications?status=ghosted", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.json(http.MethodGet, "/api/applications/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHTTP_UpdateAndArchive(t *testing.T) {
	api := newAPI(t, jobtracker.ServerOptions{})
	token := api.signup("alice@example.com")

	status, raw := api.json(http.MethodPost, "/api/applications", token, map[string]any{
		"company_name":   "Acme",
		"job_title":      "Engineer",
		"date_applied":   "2024-01-10",
		"notes":          "first contact",
		"follow_up_date": "2024-01-12",
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	path := "/api/applications/" + decode[jobtracker.Application](t, raw).ID.String()

	status, raw = api.json(http.MethodPut, path, token, map[string]any{"job_title": "Staff Engineer", "notes": nil})
	require.Equal(t, http.StatusOK, status, string(raw))
	updated := decode[jobtracker.Application](t, raw)
	assert.Equal(t, "Staff Engineer", updated.JobTitle)
	assert.Equal(t, "Acme", updated.CompanyName)
	assert.Nil(t, updated.Notes)
	require.NotNil(t, updated.FollowUpDate)

	status, raw = api.json(http.MethodGet, "/api/analytics/reminders", token, nil)
	require.Equal(t, http.StatusOK, status)
	reminders := decode[jobtracker.Reminders](t, raw)
	require.Len(t, reminders.Overdue, 1)
	assert.Empty(t, reminders.Upcoming)

	status, raw = api.json(http.MethodPatch, path+"/archive", token, nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.True(t, decode[jobtracker.Application](t, raw).IsArchived)

	status, raw = api.json(http.MethodGet, "/api/applications", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]jobtracker.Application](t, raw))

	status, raw = api.json(http.MethodGet, "/api/applications?include_archived=true", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]jobtracker.Application](t, raw), 1)

	status, raw = api.json(http.MethodGet, "/api/analytics/reminders", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[jobtracker.Reminders](t, raw).Overdue)
}

func TestHTTP_Timeline(t *testing.T) {
	api := newAPI(t, jobtracker.ServerOptions{})
	token := api.signup("alice@example.com")

	status, raw := api.json(http.MethodGet, "/api/analytics/timeline", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]jobtracker.TimelinePoint](t, raw), jobtracker.DefaultTimelineDays)

	status, raw = api.json(http.MethodGet, "/api/analytics/timeline?days=7", token, nil)
	require.Equal(t, http.StatusOK, status)
	points := decode[[]jobtracker.TimelinePoint](t, raw)
	require.Len(t, points, 7)
	assert.Equal(t, "2024-01-15", points[6].Date.String())

	for _, days := range []string{"0", "366", "-3", "abc"} {
		status, _ = api.json(http.MethodGet, "/api/analytics/timeline?days="+days, token, nil)
		assert.Equal(t, http.StatusBadRequest, status, days)
	}
}

func TestHTTP_LoginValidation(t *testing.T) {
	api := newAPI(t, jobtracker.ServerOptions{})

	status, _ := api.json(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "", "password": ""})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.login("nobody@example.com", "Passw0rd1")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHTTP_LoginRateLimit(t *testing.T) {
	api := newAPI(t, jobtracker.ServerOptions{
		LoginLimit: jobtracker.RateLimit{Max: 2, Window: time.Minute},
	})
	api.register("alice@example.com", "Passw0rd1")

	for i := 0; i < 2; i++ {
		status, _ := api.login("alice@example.com", "Wr0ngPassword")
		assert.Equal(t, http.StatusUnauthorized, status)
	}

	form := url.Values{"username": {"alice@example.com"}, "password": {"Passw0rd1"}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)

	status, raw, _ := api.do(req)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, jobtracker.TextCodeRateLimited, decode[errorBody](t, raw).Error.TextCode)
}

func (a *apiClient) loginFrom(forwardedFor, email string) int {
	a.t.Helper()

	form := url.Values{"username": {email}, "password": {"Wr0ngPassword"}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	req.Header.Set(fiber.HeaderXForwardedFor, forwardedFor)

	status, _, _ := a.do(req)
	return status
}

func TestHTTP_LoginRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	api := newAPI(t, jobtracker.ServerOptions{
		LoginLimit: jobtracker.RateLimit{Max: 2, Window: time.Minute},
	})

	assert.Equal(t, http.StatusUnauthorized, api.loginFrom("203.0.113.1", "a@example.com"))
	assert.Equal(t, http.StatusUnauthorized, api.loginFrom("203.0.113.2", "b@example.com"))
	assert.Equal(t, http.StatusTooManyRequests, api.loginFrom("203.0.113.3", "c@example.com"),
		"an untrusted client cannot pick a fresh bucket through X-Forwarded-For")
}

func TestHTTP_LoginRateLimitUsesTrustedProxyHeader(t *testing.T) {
	api := newAPI(t, jobtracker.ServerOptions{
		LoginLimit:     jobtracker.RateLimit{Max: 1, Window: time.Minute},
		TrustedProxies: []string{"0.0.0.0"},
	})

	assert.Equal(t, http.StatusUnauthorized, api.loginFrom("203.0.113.1", "a@example.com"))
	assert.Equal(t, http.StatusTooManyRequests, api.loginFrom("203.0.113.1", "b@example.com"))
	assert.Equal(t, http.StatusUnauthorized, api.loginFrom("203.0.113.2", "c@example.com"))
}

func TestHTTP_RegisterRateLimitOnlyCountsPost(t *testing.T) {
	api := newAPI(t, jobtracker.ServerOptions{
		RegisterLimit: jobtracker.RateLimit{Max: 1, Window: time.Minute},
	})

	for i := 0; i < 3; i++ {
		status, _, _ := api.do(httptest.NewRequest(http.MethodGet, "/api/auth/register", nil))
		assert.NotEqual(t, http.StatusTooManyRequests, status)
	}

	assert.Equal(t, http.StatusCreated, api.register("alice@example.com", "Passw0rd1"))
	assert.Equal(t, http.StatusTooManyRequests, api.register("bob@example.com", "Passw0rd1"))
}

func TestHTTP_LoginLockout(t *testing.T) {
	api := newAPI(t, jobtracker.ServerOptions{})
	api.register("alice@example.com", "Passw0rd1")

	for i := 0; i < newTestConfig().maxAttempts; i++ {
		status, _ := api.login("alice@example.com", "Wr0ngPassword")
		require.Equal(t, http.StatusUnauthorized, status)
	}

	status, _ := api.login("alice@example.com", "Passw0rd1")
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestHTTP_BannerAndHealth(t *testing.T) {
	api := newAPI(t, jobtracker.ServerOptions{})

	status, raw, _ := api.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, jobtracker.ServiceName, decode[map[string]any](t, raw)["service"])

	status, raw, _ = api.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, status)
	health := decode[map[string]any](t, raw)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, testNow.Format(time.RFC3339), health["timestamp"])
}
