// internal/handler/discovery_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rig-service/internal/discovery"
	"rig-service/internal/utils"
)

// DiscoveryHandler exposes serial port scanning
type DiscoveryHandler struct {
	scanner *discovery.Scanner
	logger  *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(scanner *discovery.Scanner, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		scanner: scanner,
		logger:  utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// RegisterRoutes registers discovery routes
func (h *DiscoveryHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/scan", h.ScanPorts)
}

// ScanPorts probes serial ports for listening state machines. The port the
// service is already connected to is busy and reports as not answering.
func (h *DiscoveryHandler) ScanPorts(c *gin.Context) {
	rigs, err := h.scanner.Scan(c.Request.Context())
	if err != nil {
		h.logger.Error("Port scan failed", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Port scan failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Port scan completed", rigs)
}
