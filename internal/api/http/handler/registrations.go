package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fleetware/registrar/internal/api/http/dto"
	"github.com/fleetware/registrar/internal/registration"
)

type RegistrationsHandler struct {
	pipeline *registration.Pipeline
}

func NewRegistrationsHandler(pipeline *registration.Pipeline) *RegistrationsHandler {
	return &RegistrationsHandler{pipeline: pipeline}
}

// Register accepts a registration or heartbeat event and relays the
// pipeline's decision. All admission semantics live in the pipeline; this
// handler only frames the event and maps the result to a status code.
// POST /api/v1/registrations
func (h *RegistrationsHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	claimedAt := time.Now()
	if req.Timestamp != nil {
		claimedAt = *req.Timestamp
	}

	event := registration.Event{
		Hostname:      req.Hostname,
		SourceAddress: c.ClientIP(),
		ClaimedAt:     claimedAt,
		BearerToken:   bearerToken(c),
	}

	result := h.pipeline.Process(c.Request.Context(), event)
	status, body := toResponse(result)
	c.JSON(status, body)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func toResponse(result registration.Result) (int, dto.RegistrationResponse) {
	meta := result.Meta()
	resp := dto.RegistrationResponse{
		Hostname:      meta.Hostname,
		SourceAddress: meta.SourceAddress,
		DecidedAt:     meta.DecidedAt,
	}

	switch r := result.(type) {
	case registration.AuthRequired:
		resp.Result = "auth_required"
		return http.StatusUnauthorized, resp
	case registration.InvalidToken:
		resp.Result = "invalid_token"
		resp.Reason = string(r.Reason)
		return http.StatusUnauthorized, resp
	case registration.RateLimited:
		resp.Result = "rate_limited"
		return http.StatusTooManyRequests, resp
	case registration.ValidationError:
		resp.Result = "validation_error"
		resp.Field = r.Field
		return http.StatusBadRequest, resp
	case registration.DuplicateIgnored:
		resp.Result = "duplicate_ignored"
		return http.StatusOK, resp
	case registration.NewRegistration:
		resp.Result = "new_registration"
		return http.StatusCreated, resp
	case registration.HeartbeatUpdate:
		resp.Result = "heartbeat_update"
		return http.StatusOK, resp
	case registration.IPChange:
		resp.Result = "ip_change"
		resp.PreviousAddress = r.PreviousAddress
		return http.StatusOK, resp
	case registration.Reconnection:
		resp.Result = "reconnection"
		resp.PreviousAddress = r.PreviousAddress
		return http.StatusOK, resp
	case registration.AuthorizationError:
		resp.Result = "authorization_error"
		return http.StatusForbidden, resp
	case registration.StorageError:
		resp.Result = "storage_error"
		return http.StatusServiceUnavailable, resp
	default:
		resp.Result = "storage_error"
		return http.StatusServiceUnavailable, resp
	}
}
