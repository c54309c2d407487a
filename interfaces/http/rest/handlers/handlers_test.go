package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"todo-backend/application/services"
	"todo-backend/application/sharing"
	"todo-backend/domain/todo"
	"todo-backend/domain/tracing"
	"todo-backend/infrastructure/persistence/memory"
	"todo-backend/pkg/auth"
	pkgerrors "todo-backend/pkg/errors"
)

func as(email, username string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := &auth.UserContext{Email: email, Username: username, Name: username}
			next.ServeHTTP(w, r.WithContext(auth.SetUserInContext(r.Context(), user)))
		})
	}
}

func todoRouter(t *testing.T, email string) chi.Router {
	t.Helper()
	store := memory.NewStore()
	for _, p := range []*todo.Person{
		{Name: "Alice", Email: "alice@example.com"},
		{Name: "Bob", Email: "bob@example.com"},
	} {
		require.NoError(t, store.Persons().Create(context.Background(), p))
	}
	scheduler := sharing.NewScheduler(zap.NewNop())
	t.Cleanup(scheduler.Stop)

	h := NewTodoHandler(
		services.NewTodoService(store.Todos(), store.Persons(), scheduler, zap.NewNop()),
		pkgerrors.NewErrorHandler(zap.NewNop(), false),
		zap.NewNop(),
	)

	r := chi.NewRouter()
	r.Use(as(email, "alice"))
	r.Post("/api/todos", h.Create)
	r.Get("/api/todos/{todoID}", h.Get)
	r.Put("/api/todos/{todoID}", h.Update)
	r.Post("/api/todos/{todoID}/complete", h.Complete)
	r.Delete("/api/todos/{todoID}", h.Delete)
	return r
}

func send(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestTodoHandler_CreateWithDueDate(t *testing.T) {
	// Arrange
	r := todoRouter(t, "alice@example.com")

	// Act
	rec := send(r, http.MethodPost, "/api/todos", `{"title":"Wrap gifts","priority":4,"dueDate":"2026-12-24"}`)

	// Assert
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/api/todos/"))
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "Wrap gifts", data["title"])
	assert.Equal(t, "2026-12-24T00:00:00Z", data["dueDate"])
}

func TestTodoHandler_CreateRejectsBadInput(t *testing.T) {
	r := todoRouter(t, "alice@example.com")

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"unknown field", `{"title":"x","priority":1,"owner":"bob"}`},
		{"bad due date", `{"title":"x","priority":1,"dueDate":"24/12/2026"}`},
		{"missing title", `{"priority":1}`},
		{"two objects", `{"title":"x","priority":1}{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := send(r, http.MethodPost, "/api/todos", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestTodoHandler_Lifecycle(t *testing.T) {
	r := todoRouter(t, "alice@example.com")
	created := send(r, http.MethodPost, "/api/todos", `{"title":"Buy milk","priority":3}`)
	require.Equal(t, http.StatusCreated, created.Code)
	path := created.Header().Get("Location")

	rec := send(r, http.MethodPut, path, `{"title":"Buy oat milk","priority":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Buy oat milk", decode(t, rec)["data"].(map[string]interface{})["title"])

	rec = send(r, http.MethodPost, path+"/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(todo.StatusDone), decode(t, rec)["data"].(map[string]interface{})["status"])

	assert.Equal(t, http.StatusNoContent, send(r, http.MethodDelete, path, "").Code)
	assert.Equal(t, http.StatusNotFound, send(r, http.MethodGet, path, "").Code)
}

func TestTodoHandler_RejectsBadPathID(t *testing.T) {
	r := todoRouter(t, "alice@example.com")

	rec := send(r, http.MethodGet, "/api/todos/abc", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubTrail struct {
	all, recent []tracing.Breadcrumb
	err         error
	username    string
}

func (s *stubTrail) FindAllEventsForUser(_ context.Context, username string) ([]tracing.Breadcrumb, error) {
	s.username = username
	return s.all, s.err
}

func (s *stubTrail) FindUserTraceForLastTwoWeeks(_ context.Context, username string) ([]tracing.Breadcrumb, error) {
	s.username = username
	return s.recent, s.err
}

func breadcrumbRouter(trail TrailReader) chi.Router {
	h := NewBreadcrumbHandler(trail, pkgerrors.NewErrorHandler(zap.NewNop(), false))
	r := chi.NewRouter()
	r.Use(as("alice@example.com", "alice"))
	r.Get("/api/breadcrumbs", h.List)
	return r
}

func TestBreadcrumbHandler_Windows(t *testing.T) {
	now := time.Now()
	trail := &stubTrail{
		all:    []tracing.Breadcrumb{tracing.NewBreadcrumb("/a", "alice", now), tracing.NewBreadcrumb("/b", "alice", now)},
		recent: []tracing.Breadcrumb{tracing.NewBreadcrumb("/b", "alice", now)},
	}
	r := breadcrumbRouter(trail)

	rec := send(r, http.MethodGet, "/api/breadcrumbs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	meta := decode(t, rec)["meta"].(map[string]interface{})
	assert.Equal(t, float64(2), meta["count"])
	assert.Equal(t, "all", meta["window"])
	assert.Equal(t, "alice", trail.username)

	rec = send(r, http.MethodGet, "/api/breadcrumbs?window=two-weeks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	meta = decode(t, rec)["meta"].(map[string]interface{})
	assert.Equal(t, float64(1), meta["count"])
	assert.Equal(t, "two-weeks", meta["window"])
}

func TestBreadcrumbHandler_EmptyTrailIsAnEmptyList(t *testing.T) {
	r := breadcrumbRouter(&stubTrail{})

	rec := send(r, http.MethodGet, "/api/breadcrumbs", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, decode(t, rec)["data"])
}

func TestBreadcrumbHandler_StoreFailureIsInternal(t *testing.T) {
	r := breadcrumbRouter(&stubTrail{err: pkgerrors.NewExternalError("dynamodb", errors.New("throttled"))})

	rec := send(r, http.MethodGet, "/api/breadcrumbs", "")

	assert.GreaterOrEqual(t, rec.Code, 500)
	assert.NotContains(t, rec.Body.String(), "throttled")
}

func TestHealthHandler_Ready(t *testing.T) {
	healthy := NewHealthHandler(func(context.Context) error { return nil }, zap.NewNop())
	failing := NewHealthHandler(func(context.Context) error { return errors.New("db down") }, zap.NewNop())

	rec := httptest.NewRecorder()
	healthy.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	failing.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	failing.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
