package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"hrquery-go/internal/config"
	"hrquery-go/internal/middleware"
	"hrquery-go/pkg/token"
)

func setupAuthRouter(t *testing.T) (*gin.Engine, *token.JWTManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.DefaultCost)
	require.NoError(t, err)

	jwtManager := token.NewJWTManager("test-secret", 1)
	authHandler := NewAuthHandler([]config.ServiceAccount{
		{Username: "svc", PasswordHash: string(hash), Role: "admin"},
	}, jwtManager)

	r := gin.New()
	r.POST("/api/v1/auth/login", authHandler.Login)
	r.GET("/api/v1/protected", middleware.AuthMiddleware(jwtManager), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"username": c.GetString("username")})
	})
	return r, jwtManager
}

func postJSON(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginSuccessIssuesToken(t *testing.T) {
	r, jwtManager := setupAuthRouter(t)

	w := postJSON(r, "/api/v1/auth/login", LoginRequest{Username: "svc", Password: "secret123"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Token string `json:"token"`
			Role  string `json:"role"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "admin", resp.Data.Role)

	claims, err := jwtManager.VerifyToken(resp.Data.Token)
	require.NoError(t, err)
	assert.Equal(t, "svc", claims.Username)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	r, _ := setupAuthRouter(t)
	w := postJSON(r, "/api/v1/auth/login", LoginRequest{Username: "svc", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRejectsUnknownAccount(t *testing.T) {
	r, _ := setupAuthRouter(t)
	w := postJSON(r, "/api/v1/auth/login", LoginRequest{Username: "ghost", Password: "secret123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	r, jwtManager := setupAuthRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/protected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tokenString, err := jwtManager.GenerateToken("svc", "admin")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "svc")
}
