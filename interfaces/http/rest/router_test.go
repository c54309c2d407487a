package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-backend/infrastructure/config"
	"todo-backend/infrastructure/di"
	"todo-backend/infrastructure/mail"
	"todo-backend/interfaces/http/rest/middleware"
	"todo-backend/pkg/auth"
)

const testSecret = "router-test-secret"

type fixture struct {
	t         *testing.T
	container *di.Container
	server    *httptest.Server
	tokens    *auth.JWTGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("MAIL_TRANSPORT", "log")
	t.Setenv("INVITATION_CODES", "welcome")
	t.Setenv("SHARING_QUEUE_URL", "")
	t.Setenv("EVENT_BUS_NAME", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("EXTERNAL_URL", "http://todo.test")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	c, err := di.NewContainer(ctx, cfg)
	require.NoError(t, err)
	go func() { _ = c.LocalQueue.Run(ctx, c.Dispatcher, 1) }()

	server := httptest.NewServer(NewRouter(c).Setup())
	t.Cleanup(func() {
		server.Close()
		cancel()
		c.Close()
	})

	return &fixture{
		t:         t,
		container: c,
		server:    server,
		tokens:    auth.NewJWTGenerator(testSecret, cfg.JWTIssuer, []string{cfg.JWTAudience}, time.Hour),
	}
}

func (f *fixture) token(username string) string {
	token, err := f.tokens.GenerateToken("sub-"+username, username+"@example.com", username)
	require.NoError(f.t, err)
	return token
}

func (f *fixture) do(method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	f.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(f.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (f *fixture) register(username string) int64 {
	resp, body := f.do(http.MethodPost, "/api/register", "", map[string]string{
		"username":       username,
		"email":          username + "@example.com",
		"invitationCode": "welcome",
	})
	require.Equal(f.t, http.StatusCreated, resp.StatusCode)
	return int64(body["data"].(map[string]interface{})["id"].(float64))
}

func data(body map[string]interface{}) map[string]interface{} {
	return body["data"].(map[string]interface{})
}

var confirmLink = regexp.MustCompile(`http://todo\.test(/todo/\S+)`)

func TestRouter_HealthAndReady(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", data(body)["status"])
}

func TestRouter_RequiresAuthentication(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(http.MethodGet, "/api/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, true, body["error"])

	resp, _ = f.do(http.MethodGet, "/api/dashboard", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_RegisterRejectsUnknownInvitationCode(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(http.MethodPost, "/api/register", "", map[string]string{
		"username":       "mallory",
		"email":          "mallory@example.com",
		"invitationCode": "guess",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_ShareAndConfirmThroughEmailLink(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.register("alice")
	bobID := f.register("bob")
	alice, bob := f.token("alice"), f.token("bob")

	resp, body := f.do(http.MethodPost, "/api/todos", alice, map[string]interface{}{"title": "Buy milk", "priority": 3})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	todoID := int64(data(body)["id"].(float64))
	assert.NotEmpty(t, resp.Header.Get("Location"))

	// Act
	resp, body = f.do(http.MethodPost, "/api/todos/"+itoa(todoID)+"/collaborations", alice, map[string]interface{}{"collaboratorId": bobID})

	// Assert
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "PENDING", data(body)["status"])
	_, leaked := data(body)["token"]
	assert.False(t, leaked, "the confirmation token must not be returned to the owner")

	resp, _ = f.do(http.MethodPost, "/api/todos/"+itoa(todoID)+"/collaborations", alice, map[string]interface{}{"collaboratorId": bobID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	mailer := f.container.Mailer.(*mail.LogMailer)
	require.Eventually(t, func() bool { return len(mailer.Sent()) == 1 }, 2*time.Second, 10*time.Millisecond)
	match := confirmLink.FindStringSubmatch(mailer.Sent()[0].Body)
	require.Len(t, match, 2)
	link := match[1]

	// A forged token renders the generic error page
	forged := regexp.MustCompile(`token=[^&\s]+`).ReplaceAllString(link, "token=forged")
	view := f.page(forged, bob)
	assert.Equal(t, http.StatusBadRequest, view.status)
	assert.Contains(t, view.body, "not valid")

	view = f.page(link, bob)
	assert.Equal(t, http.StatusOK, view.status)
	assert.Contains(t, view.body, "collaborator")

	resp, body = f.do(http.MethodGet, "/api/dashboard", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	todos := data(body)["todos"].([]interface{})
	require.Len(t, todos, 1)
	assert.Equal(t, true, todos[0].(map[string]interface{})["collaborative"])
}

func TestRouter_OnlyOwnerCanShare(t *testing.T) {
	f := newFixture(t)
	f.register("alice")
	bobID := f.register("bob")
	f.register("carol")

	resp, body := f.do(http.MethodPost, "/api/todos", f.token("alice"), map[string]interface{}{"title": "Plan trip", "priority": 5})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	todoID := int64(data(body)["id"].(float64))

	resp, _ = f.do(http.MethodPost, "/api/todos/"+itoa(todoID)+"/collaborations", f.token("carol"), map[string]interface{}{"collaboratorId": bobID})

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRouter_BreadcrumbsRecordAuthenticatedRequests(t *testing.T) {
	f := newFixture(t)
	f.register("alice")
	alice := f.token("alice")

	resp, _ := f.do(http.MethodGet, "/api/dashboard", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		resp, body := f.do(http.MethodGet, "/api/breadcrumbs?window=two-weeks", alice, nil)
		if resp.StatusCode != http.StatusOK {
			return false
		}
		for _, raw := range body["data"].([]interface{}) {
			if raw.(map[string]interface{})["uri"] == "/api/dashboard" {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)

	resp, _ = f.do(http.MethodGet, "/api/breadcrumbs?window=forever", alice, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type page struct {
	status int
	body   string
}

func (f *fixture) page(path, token string) page {
	f.t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.server.URL+path, nil)
	require.NoError(f.t, err)
	req.AddCookie(&http.Cookie{Name: middleware.AuthCookie, Value: token})

	resp, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(f.t, err)
	return page{status: resp.StatusCode, body: string(raw)}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
