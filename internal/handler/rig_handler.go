// internal/handler/rig_handler.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rig-service/internal/rig"
	"rig-service/internal/service"
	"rig-service/internal/utils"
)

// RigHandler exposes the connected state machine over HTTP
type RigHandler struct {
	rigService *service.RigService
	logger     *utils.ServiceLogger
}

// NewRigHandler creates a new rig handler
func NewRigHandler(rigService *service.RigService, logger *zap.Logger) *RigHandler {
	return &RigHandler{
		rigService: rigService,
		logger:     utils.NewServiceLogger(logger, "rig-handler"),
	}
}

// RegisterRoutes registers rig routes
func (h *RigHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/status", h.GetStatus)
	router.GET("/layout", h.GetLayout)
	router.POST("/flex", h.ConfigureFlexIO)
	router.POST("/sampling-rate", h.SetSamplingRate)
	router.POST("/status-led", h.SetStatusLED)

	router.GET("/modules", h.ListModules)
	router.POST("/modules/refresh", h.RefreshModules)
	router.POST("/modules/relay/start", h.StartRelay)
	router.POST("/modules/relay/stop", h.StopRelay)
}

// GetStatus returns identity, runtime flags and hardware configuration
func (h *RigHandler) GetStatus(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Rig status retrieved", h.rigService.GetStatus())
}

// GetLayout returns the current channel name tables
func (h *RigHandler) GetLayout(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Channel layout retrieved", h.rigService.GetLayout())
}

// FlexIORequest carries a Flex channel type vector
type FlexIORequest struct {
	Types []int `json:"types" binding:"required"`
}

// ConfigureFlexIO retypes the Flex channels
func (h *RigHandler) ConfigureFlexIO(c *gin.Context) {
	var req FlexIORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	layout, err := h.rigService.ConfigureFlexIO(c.Request.Context(), req.Types)
	if err != nil {
		h.respondRigError(c, "Flex reconfiguration failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Flex channels reconfigured", layout)
}

// SamplingRateRequest carries the analog sampling rate
type SamplingRateRequest struct {
	RateHz int `json:"rate_hz" binding:"required"`
}

// SetSamplingRate sets the Flex analog sampling rate
func (h *RigHandler) SetSamplingRate(c *gin.Context) {
	var req SamplingRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.rigService.SetSamplingRate(c.Request.Context(), req.RateHz); err != nil {
		h.respondRigError(c, "Sampling rate change failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Sampling rate set", gin.H{"rate_hz": req.RateHz})
}

// StatusLEDRequest carries the LED state
type StatusLEDRequest struct {
	On *bool `json:"on" binding:"required"`
}

// SetStatusLED switches the enclosure status LED
func (h *RigHandler) SetStatusLED(c *gin.Context) {
	var req StatusLEDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.rigService.SetStatusLED(c.Request.Context(), *req.On); err != nil {
		h.respondRigError(c, "Status LED change failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Status LED set", gin.H{"on": *req.On})
}

// ListModules returns the module table from the last enumeration
func (h *RigHandler) ListModules(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Modules retrieved", h.rigService.ListModules())
}

// RefreshModules re-enumerates the module slots
func (h *RigHandler) RefreshModules(c *gin.Context) {
	modules, err := h.rigService.RefreshModules(c.Request.Context())
	if err != nil {
		h.respondRigError(c, "Module enumeration failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Modules re-enumerated", modules)
}

// RelayRequest names the module to relay
type RelayRequest struct {
	Module string `json:"module" binding:"required"`
}

// StartRelay begins relaying one module's byte stream
func (h *RigHandler) StartRelay(c *gin.Context) {
	var req RelayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.rigService.StartRelay(c.Request.Context(), req.Module); err != nil {
		h.respondRigError(c, "Relay start failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Module relay started", gin.H{"module": req.Module})
}

// StopRelay halts module relaying
func (h *RigHandler) StopRelay(c *gin.Context) {
	h.rigService.StopRelay(c.Request.Context())
	utils.SuccessResponse(c, http.StatusOK, "Module relay stopped", nil)
}

// respondRigError maps rig errors to HTTP statuses
func (h *RigHandler) respondRigError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, rig.ErrLengthMismatch),
		errors.Is(err, rig.ErrInvalidChannelType),
		errors.Is(err, rig.ErrRateOutOfRange),
		errors.Is(err, rig.ErrUnknownModule):
		status = http.StatusBadRequest
	case errors.Is(err, rig.ErrDeviceBusy),
		errors.Is(err, rig.ErrRelayActive):
		status = http.StatusConflict
	case errors.Is(err, rig.ErrUnsupported):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, rig.ErrUnconfirmed),
		errors.Is(err, rig.ErrConfirmTimeout):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		h.logger.Error(message, zap.Error(err))
	}
	utils.ErrorResponse(c, status, message, err)
}
