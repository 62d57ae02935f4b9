// internal/handler/session_handler.go
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"rig-service/internal/service"
	"rig-service/internal/utils"
)

// SessionHandler exposes the recording session lifecycle over HTTP
type SessionHandler struct {
	sessionService *service.SessionService
	logger         *utils.ServiceLogger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService *service.SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		logger:         utils.NewServiceLogger(logger, "session-handler"),
	}
}

// RegisterRoutes registers session routes
func (h *SessionHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/start", h.StartSession)
	router.POST("/pause", h.PauseSession)
	router.POST("/resume", h.ResumeSession)
	router.POST("/stop", h.StopSession)
	router.GET("/current", h.CurrentSession)
	router.GET("", h.ListSessions)
	router.GET("/:session_id", h.GetSession)
}

// StartSession begins a recording session
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req service.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	session, err := h.sessionService.StartSession(c.Request.Context(), &req)
	if err != nil {
		utils.ErrorResponse(c, http.StatusConflict, "Failed to start session", err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Session started", session)
}

// PauseSession suspends the running session
func (h *SessionHandler) PauseSession(c *gin.Context) {
	session, err := h.sessionService.PauseSession(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, http.StatusConflict, "Failed to pause session", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Session paused", session)
}

// ResumeSession resumes a paused session
func (h *SessionHandler) ResumeSession(c *gin.Context) {
	session, err := h.sessionService.ResumeSession(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, http.StatusConflict, "Failed to resume session", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Session resumed", session)
}

// StopSession ends the running session
func (h *SessionHandler) StopSession(c *gin.Context) {
	session, err := h.sessionService.StopSession(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, http.StatusConflict, "Failed to stop session", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Session stopped", session)
}

// CurrentSession returns the running session, if any
func (h *SessionHandler) CurrentSession(c *gin.Context) {
	session := h.sessionService.CurrentSession()
	if session == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "No session is running", nil)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Current session retrieved", session)
}

// ListSessions returns the most recent sessions
func (h *SessionHandler) ListSessions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	sessions, err := h.sessionService.ListSessions(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list sessions", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list sessions", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Sessions retrieved", sessions)
}

// GetSession returns one stored session
func (h *SessionHandler) GetSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid session ID", err)
		return
	}

	session, err := h.sessionService.GetSession(c.Request.Context(), id)
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Session not found", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Session retrieved", session)
}
