package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"user-api/internal/auth"
	"user-api/internal/repository/memory"
	"user-api/internal/service"
)

type testServer struct {
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	users := service.NewUserService(memory.NewUserRepository(), auth.NewPasswordHasher(bcrypt.MinCost), logger)
	require.NoError(t, users.EnsureAdmin(context.Background(), "admin", "admin123"))

	tokens := auth.NewTokenIssuer(auth.TokenConfig{Secret: "test-secret", Issuer: "user-api", TTL: time.Hour})

	router := gin.New()
	NewHandler(users, tokens, logger).RegisterRoutes(router)
	return &testServer{router: router}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, login, password string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/login", "", gin.H{"login": login, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (s *testServer) createBob(t *testing.T, adminToken string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/users", adminToken, gin.H{
		"login":    "bob",
		"password": "x",
		"name":     "Bob",
		"gender":   1,
		"birthday": "1990-05-17",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/login", "", gin.H{"login": "admin", "password": "admin123"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Admin", resp.Role)
	assert.NotEmpty(t, resp.Token)

	rec = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"login": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"login": "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateUserRoute(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(t, "admin", "admin123")

	rec := s.do(t, http.MethodPost, "/api/users", adminToken, gin.H{
		"login": "bob", "password": "x", "name": "Bob", "gender": 1, "birthday": "1990-05-17",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/users/bob", rec.Header().Get("Location"))

	var created UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "bob", created.Login)
	assert.Equal(t, "admin", created.CreatedBy)
	require.NotNil(t, created.Birthday)
	assert.Equal(t, "1990-05-17", *created.Birthday)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do(t, http.MethodPost, "/api/users", adminToken, gin.H{
		"login": "BOB", "password": "y", "name": "Robert",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/users", adminToken, gin.H{
		"login": "eve", "password": "y", "name": "Eve", "gender": 5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/users", adminToken, gin.H{
		"login": "eve", "password": strings.Repeat("a", 73), "name": "Eve",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/users/bob/password", adminToken, gin.H{"new_password": strings.Repeat("a", 73)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bobToken := s.login(t, "bob", "x")
	rec = s.do(t, http.MethodPost, "/api/users", bobToken, gin.H{
		"login": "eve", "password": "y", "name": "Eve",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/users/active", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/users/active", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSelfServiceRoutes(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(t, "admin", "admin123")
	s.createBob(t, adminToken)
	bobToken := s.login(t, "bob", "x")

	rec := s.do(t, http.MethodPut, "/api/users/bob", bobToken, gin.H{"name": "Robert"})
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPut, "/api/users/admin", bobToken, gin.H{"name": "Hacker"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/users/ghost", adminToken, gin.H{"name": "Ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/users/me?password=x", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me personalInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "Robert", me.Name)
	assert.Equal(t, 1, me.Gender)
	require.NotNil(t, me.Birthday)
	assert.Equal(t, "1990-05-17", *me.Birthday)

	rec = s.do(t, http.MethodGet, "/api/users/me?password=bad", bobToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/users/bob/password", bobToken, gin.H{"new_password": "y", "current_password": "wrong"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/users/bob/password", bobToken, gin.H{"new_password": "y", "current_password": "x"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	s.login(t, "bob", "y")

	rec = s.do(t, http.MethodPatch, "/api/users/bob/login", bobToken, gin.H{"new_login": "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/users/bob/login", bobToken, gin.H{"new_login": "robert"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	s.login(t, "robert", "y")
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(t, "admin", "admin123")
	s.createBob(t, adminToken)
	bobToken := s.login(t, "bob", "x")

	rec := s.do(t, http.MethodGet, "/api/users/active", bobToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/users/older-than/30", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var older []UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &older))
	require.Len(t, older, 1)
	assert.Equal(t, "bob", older[0].Login)

	rec = s.do(t, http.MethodGet, "/api/users/older-than/abc", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/users/bob", adminToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/users/active", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var active []UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	require.Len(t, active, 1)
	assert.Equal(t, "admin", active[0].Login)

	rec = s.do(t, http.MethodGet, "/api/users/bob", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary userSummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.False(t, summary.IsActive)

	rec = s.do(t, http.MethodPut, "/api/users/bob", adminToken, gin.H{"gender": 2})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"login": "bob", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/users/bob/restore", adminToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	s.login(t, "bob", "x")

	rec = s.do(t, http.MethodGet, "/api/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	rec = s.do(t, http.MethodDelete, "/api/users/bob?soft=false", adminToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/users/bob", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/users/bob", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/users/bob?soft=maybe", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDateUnmarshal(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"1990-05-17"`), &d))
	assert.Equal(t, 1990, d.Year())

	require.NoError(t, json.Unmarshal([]byte(`"1990-05-17T10:00:00+03:00"`), &d))
	assert.Equal(t, 7, d.Hour())

	assert.Error(t, json.Unmarshal([]byte(`"17.05.1990"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`17`), &d))
}
