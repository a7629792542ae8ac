package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dkeye/seshd/internal/adapters/signal"
	"github.com/dkeye/seshd/internal/app/orch"
	"github.com/dkeye/seshd/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const healthTimeout = 2 * time.Second

type handlers struct {
	orch *orch.Orchestrator
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

type nearbyResponse struct {
	Sessions []domain.DiscoverableSession `json:"sessions"`
}

type whoamiResponse struct {
	UserID string `json:"userId"`
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindVersionConflict, domain.KindJoinFailed:
		return http.StatusConflict
	case domain.KindBufferExceeded:
		return http.StatusGone
	case domain.KindTransientStorage, domain.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	code, msg := domain.Public(err)
	status := statusFor(domain.KindOf(err))
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, errorResponse{Code: code, Error: msg})
}

func (h *handlers) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()
	if err := h.orch.Store.Ping(ctx); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) nearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(c, domain.Validation("lat and lon are required numbers"))
		return
	}
	var radius float64
	if raw := c.Query("radius"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(c, domain.Validation("radius must be a number"))
			return
		}
		radius = r
	}

	found, err := h.orch.FindNearbySessions(c.Request.Context(), lat, lon, radius)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nearbyResponse{Sessions: found})
}

func (h *handlers) session(c *gin.Context) {
	s, err := h.orch.FindSessionByID(c.Request.Context(), domain.SessionID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handlers) createSession(c *gin.Context) {
	var req orch.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.Validation("malformed session request"))
		return
	}
	s, err := h.orch.CreateSession(c.Request.Context(), domain.UserID(c.GetString(signal.UserIDKey)), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *handlers) whoami(c *gin.Context) {
	c.JSON(http.StatusOK, whoamiResponse{UserID: c.GetString(signal.UserIDKey)})
}
