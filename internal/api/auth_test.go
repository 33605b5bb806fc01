package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	server := newTestServer(t)

	loginReq := LoginRequest{Username: "admin", Password: "password"}
	body, _ := json.Marshal(loginReq)
	req, _ := http.NewRequest("POST", "/api/v1/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	server.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var response APIResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &response))
	require.Equal(t, "success", response.Status)

	loginData := response.Data.(map[string]interface{})
	token := loginData["token"].(string)
	require.NotEmpty(t, token)

	req, _ = http.NewRequest("GET", "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	server.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestUnauthorizedAccess(t *testing.T) {
	server := newTestServer(t)

	req, _ := http.NewRequest("GET", "/api/v1/stats", nil)
	resp := httptest.NewRecorder()
	server.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	req, _ = http.NewRequest("GET", "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")
	resp = httptest.NewRecorder()
	server.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestHealthCheckNoAuth(t *testing.T) {
	server := newTestServer(t)

	req, _ := http.NewRequest("GET", "/api/v1/health", nil)
	resp := httptest.NewRecorder()
	server.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestInvalidCredentials(t *testing.T) {
	server := newTestServer(t)

	loginReq := LoginRequest{Username: "admin", Password: "wrong-password"}
	body, _ := json.Marshal(loginReq)
	req, _ := http.NewRequest("POST", "/api/v1/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	server.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}
