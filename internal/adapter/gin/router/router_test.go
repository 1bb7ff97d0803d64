package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"user-rest-service/internal/adapter/db/orm"
	"user-rest-service/internal/adapter/gin/handler"
	"user-rest-service/internal/usecase/user"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
}

func setupServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	require.NoError(t, orm.AutoMigrate(db))

	log := zaptest.NewLogger(t)
	repo := orm.NewUserRepo(db, log)
	h := handler.NewUserHandler(user.New(repo, log), log)

	return &testServer{
		router: SetupRouter(h, nil, repo, Options{ServiceName: "user-rest-service"}, log),
		db:     db,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// create posts a user and returns the id taken from the Location header.
func (s *testServer) create(t *testing.T, name, email string) int64 {
	t.Helper()

	w := s.do(t, http.MethodPost, "/users", handler.UserRequest{Name: name, Email: email})
	require.Equal(t, http.StatusNoContent, w.Code)

	var id int64
	_, err := fmt.Sscanf(w.Header().Get("Location"), "/users/%d", &id)
	require.NoError(t, err)
	return id
}

func (s *testServer) list(t *testing.T) []handler.UserResponse {
	t.Helper()

	w := s.do(t, http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var users []handler.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	return users
}

func (s *testServer) get(t *testing.T, id int64) (handler.UserResponse, bool) {
	t.Helper()

	w := s.do(t, http.MethodGet, fmt.Sprintf("/users/%d", id), nil)
	if w.Code == http.StatusNoContent {
		assert.Empty(t, w.Body.String())
		return handler.UserResponse{}, false
	}
	require.Equal(t, http.StatusOK, w.Code)

	var u handler.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	return u, true
}

func TestUsers_CreateThenGet(t *testing.T) {
	s := setupServer(t)

	id := s.create(t, "Alice", "alice@example.com")
	assert.Positive(t, id)

	u, found := s.get(t, id)
	require.True(t, found)
	assert.Equal(t, handler.UserResponse{ID: id, Name: "Alice", Email: "alice@example.com"}, u)
}

func TestUsers_CreateIgnoresBodyID(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodPost, "/users", map[string]any{"id": 42, "name": "A", "email": "a@x.com"})
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "/users/1", w.Header().Get("Location"))

	_, found := s.get(t, 42)
	assert.False(t, found)
}

func TestUsers_List(t *testing.T) {
	s := setupServer(t)

	assert.Empty(t, s.list(t))
	w := s.do(t, http.MethodGet, "/users", nil)
	assert.JSONEq(t, `[]`, w.Body.String())

	const n = 5
	for i := 0; i < n; i++ {
		// Duplicates are allowed.
		s.create(t, "Same", "same@example.com")
	}

	users := s.list(t)
	require.Len(t, users, n)
	seen := make(map[int64]bool, n)
	for _, u := range users {
		assert.False(t, seen[u.ID], "duplicate id %d", u.ID)
		seen[u.ID] = true
	}
}

func TestUsers_GetUnknownIsAbsent(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodGet, "/users/999", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestUsers_Update(t *testing.T) {
	s := setupServer(t)
	id := s.create(t, "A", "a@x.com")

	w := s.do(t, http.MethodPut, fmt.Sprintf("/users/%d", id), handler.UserRequest{Name: "B", Email: "b@x.com"})
	require.Equal(t, http.StatusNoContent, w.Code)

	u, found := s.get(t, id)
	require.True(t, found)
	assert.Equal(t, handler.UserResponse{ID: id, Name: "B", Email: "b@x.com"}, u)
}

func TestUsers_UpdateUnknownIsNoOp(t *testing.T) {
	s := setupServer(t)
	id := s.create(t, "A", "a@x.com")
	before := s.list(t)

	w := s.do(t, http.MethodPut, "/users/999", handler.UserRequest{Name: "B", Email: "b@x.com"})
	require.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, before, s.list(t))
	_, found := s.get(t, 999)
	assert.False(t, found)
	u, _ := s.get(t, id)
	assert.Equal(t, "A", u.Name)
}

func TestUsers_Delete(t *testing.T) {
	s := setupServer(t)
	keep := s.create(t, "Keep", "keep@x.com")
	drop := s.create(t, "Drop", "drop@x.com")

	w := s.do(t, http.MethodDelete, fmt.Sprintf("/users/%d", drop), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	_, found := s.get(t, drop)
	assert.False(t, found)
	_, found = s.get(t, keep)
	assert.True(t, found)
}

func TestUsers_DeleteUnknownIsNoOp(t *testing.T) {
	s := setupServer(t)
	s.create(t, "A", "a@x.com")
	before := s.list(t)

	w := s.do(t, http.MethodDelete, "/users/999", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, before, s.list(t))
}

func TestUsers_RoundTrip(t *testing.T) {
	s := setupServer(t)

	id := s.create(t, "A", "a@x")
	w := s.do(t, http.MethodPut, fmt.Sprintf("/users/%d", id), handler.UserRequest{Name: "B", Email: "b@x"})
	require.Equal(t, http.StatusNoContent, w.Code)

	u, found := s.get(t, id)
	require.True(t, found)
	assert.Equal(t, handler.UserResponse{ID: id, Name: "B", Email: "b@x"}, u)
}

func TestUsers_AliceScenario(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodPost, "/users", handler.UserRequest{Name: "Alice", Email: "alice@example.com"})
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "/users/1", w.Header().Get("Location"))

	w = s.do(t, http.MethodGet, "/users/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1,"name":"Alice","email":"alice@example.com"}`, w.Body.String())

	w = s.do(t, http.MethodDelete, "/users/1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/users/1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestUsers_BadRequests(t *testing.T) {
	s := setupServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"non numeric id", http.MethodGet, "/users/abc", ""},
		{"malformed create body", http.MethodPost, "/users", "{"},
		{"malformed update body", http.MethodPut, "/users/1", "not json"},
		{"non numeric delete id", http.MethodDelete, "/users/x", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp handler.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "validation_error", resp.Error)
		})
	}

	assert.Empty(t, s.list(t))
}

func TestUsers_StorageFailure(t *testing.T) {
	s := setupServer(t)

	// Drop the table so every statement fails while the connection stays up.
	require.NoError(t, s.db.Migrator().DropTable(&orm.UserSchema{}))

	w := s.do(t, http.MethodPost, "/users", handler.UserRequest{Name: "A", Email: "a@x"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp handler.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "internal_error", resp.Error)
	assert.Equal(t, "An internal error occurred", resp.Message)

	w = s.do(t, http.MethodGet, "/users", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealth(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"user-rest-service"}`, w.Body.String())
}

type downChecker struct{}

func (downChecker) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth_Unhealthy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)
	r := SetupRouter(handler.NewUserHandler(nil, log), nil, downChecker{}, Options{ServiceName: "svc"}, log)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","service":"svc"}`, w.Body.String())
}

func TestDocs(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodGet, OpenAPIPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Contains(t, doc["paths"], "/users/{id}")

	w = s.do(t, http.MethodGet, "/swagger/index.html", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "swagger")
}

func TestSecurityHeadersApplied(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodGet, "/users", nil)

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
