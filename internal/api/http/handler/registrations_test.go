package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetware/registrar/internal/api/http/dto"
	"github.com/fleetware/registrar/internal/credentials"
	"github.com/fleetware/registrar/internal/dedup"
	"github.com/fleetware/registrar/internal/hosts"
	"github.com/fleetware/registrar/internal/ratelimit"
	"github.com/fleetware/registrar/internal/registration"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRegistrationRouter(t *testing.T) (*gin.Engine, string, *clock.Mock) {
	t.Helper()

	clk := clock.NewMock()
	store := credentials.NewMemoryStore()
	registry := hosts.NewMemoryRegistry()

	token, digest, err := credentials.GenerateToken()
	require.NoError(t, err)
	store.Put(credentials.Credential{
		ID:       uuid.New(),
		OwnerID:  uuid.New(),
		Digest:   digest,
		IsActive: true,
	})

	pipeline := registration.NewPipeline(
		credentials.NewValidator(store, 5*time.Minute, clk),
		ratelimit.NewLimiter(1000, clk),
		dedup.NewSuppressor(5*time.Second, clk),
		registry,
		registration.NewStats(),
		clk,
	)

	r := gin.New()
	h := NewRegistrationsHandler(pipeline)
	r.POST("/api/v1/registrations", h.Register)
	return r, token, clk
}

func doRegister(r *gin.Engine, token, hostname, remoteAddr string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(dto.RegisterRequest{Hostname: hostname})
	req, _ := http.NewRequest("POST", "/api/v1/registrations", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterNewHost(t *testing.T) {
	r, token, _ := setupRegistrationRouter(t)

	w := doRegister(r, token, "host-1", "10.0.0.1:40000")
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp dto.RegistrationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "new_registration", resp.Result)
	assert.Equal(t, "host-1", resp.Hostname)
	assert.Equal(t, "10.0.0.1", resp.SourceAddress)
}

func TestRegisterWithoutToken(t *testing.T) {
	r, _, _ := setupRegistrationRouter(t)

	w := doRegister(r, "", "host-1", "10.0.0.1:40000")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var resp dto.RegistrationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "auth_required", resp.Result)
}

func TestRegisterInvalidToken(t *testing.T) {
	r, _, _ := setupRegistrationRouter(t)

	w := doRegister(r, "rk_bogus", "host-1", "10.0.0.1:40000")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var resp dto.RegistrationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_token", resp.Result)
	assert.Equal(t, "not_found", resp.Reason)
}

func TestRegisterInvalidHostname(t *testing.T) {
	r, token, _ := setupRegistrationRouter(t)

	w := doRegister(r, token, "-bad-", "10.0.0.1:40000")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.RegistrationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Result)
	assert.Equal(t, "hostname", resp.Field)
}

func TestRegisterDuplicateThenHeartbeat(t *testing.T) {
	r, token, clk := setupRegistrationRouter(t)

	w := doRegister(r, token, "host-1", "10.0.0.1:40000")
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRegister(r, token, "host-1", "10.0.0.1:40000")
	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.RegistrationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "duplicate_ignored", resp.Result)

	clk.Add(10 * time.Second)
	w = doRegister(r, token, "host-1", "10.0.0.1:40000")
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "heartbeat_update", resp.Result)
}

func TestRegisterIPChange(t *testing.T) {
	r, token, clk := setupRegistrationRouter(t)

	doRegister(r, token, "host-1", "10.0.0.1:40000")
	clk.Add(10 * time.Second)

	w := doRegister(r, token, "host-1", "10.0.0.2:40000")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.RegistrationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ip_change", resp.Result)
	assert.Equal(t, "10.0.0.1", resp.PreviousAddress)
}

func TestRegisterMalformedBody(t *testing.T) {
	r, token, _ := setupRegistrationRouter(t)

	req, _ := http.NewRequest("POST", "/api/v1/registrations", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.RemoteAddr = "10.0.0.1:40000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
