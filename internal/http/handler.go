package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chinmaybhatk/frappe-kit/internal/models"
	"github.com/chinmaybhatk/frappe-kit/internal/repository"
	"github.com/chinmaybhatk/frappe-kit/internal/service"
)

type Handler struct {
	provisionService  *service.ProvisionService
	conversionService *service.ConversionService
	sweeperService    *service.SweeperService
}

func NewHandler(provisionService *service.ProvisionService, conversionService *service.ConversionService, sweeperService *service.SweeperService) *Handler {
	return &Handler{
		provisionService:  provisionService,
		conversionService: conversionService,
		sweeperService:    sweeperService,
	}
}

// writeError maps the service error taxonomy to HTTP status codes
func writeError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	var conflictErr *service.ConflictError
	var authErr *service.AuthorizationError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": conflictErr.Message})
	case errors.As(err, &authErr):
		c.JSON(http.StatusForbidden, gin.H{"error": authErr.Message})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// ==================== Public API Handlers ====================

// SubmitDemoRequest handles a guest demo request submission
func (h *Handler) SubmitDemoRequest(c *gin.Context) {
	var req models.SubmitDemoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.provisionService.SubmitDemoRequest(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetDemoStatus returns the provisioning status of a demo request
func (h *Handler) GetDemoStatus(c *gin.Context) {
	requestID := c.Param("id")
	if requestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "demo request id required"})
		return
	}

	resp, err := h.provisionService.GetStatus(c.Request.Context(), requestID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetDemoInfo returns tiers and industries for the landing page
func (h *Handler) GetDemoInfo(c *gin.Context) {
	resp, err := h.provisionService.GetDemoInfo(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetTiers returns the enabled package tiers
func (h *Handler) GetTiers(c *gin.Context) {
	tiers, err := h.provisionService.ListTiers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tiers": tiers})
}

// GetIndustries returns the enabled industry templates
func (h *Handler) GetIndustries(c *gin.Context) {
	industries, err := h.provisionService.ListIndustries(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"industries": industries})
}

// ==================== Conversion API Handlers ====================

// GetConversionOptions returns the token-gated conversion page data
func (h *Handler) GetConversionOptions(c *gin.Context) {
	token := c.Query("token")
	siteID := c.Query("site")
	if token == "" || siteID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token and site required"})
		return
	}

	resp, err := h.conversionService.GetOptions(c.Request.Context(), token, siteID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SubmitConversion handles a token-gated conversion request submission
func (h *Handler) SubmitConversion(c *gin.Context) {
	var req models.SubmitConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.conversionService.Submit(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetConversionStatus returns the status of a conversion request
func (h *Handler) GetConversionStatus(c *gin.Context) {
	conversionID := c.Param("id")
	if conversionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversion request id required"})
		return
	}

	resp, err := h.conversionService.GetStatus(c.Request.Context(), conversionID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ==================== Admin API Handlers ====================

// RetryProvisioning re-enters the provisioning workflow for a failed request
func (h *Handler) RetryProvisioning(c *gin.Context) {
	requestID := c.Param("id")
	if requestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "demo request id required"})
		return
	}

	if err := h.provisionService.StartProvisioning(c.Request.Context(), requestID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "provisioning restarted"})
}

// SendConversionLink issues a conversion token and emails the link
func (h *Handler) SendConversionLink(c *gin.Context) {
	siteID := c.Param("id")
	if siteID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "demo site id required"})
		return
	}

	if err := h.conversionService.SendConversionLink(c.Request.Context(), siteID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "conversion link sent"})
}

// ApproveConversion approves a pending conversion request
func (h *Handler) ApproveConversion(c *gin.Context) {
	conversionID := c.Param("id")
	if conversionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversion request id required"})
		return
	}

	if err := h.conversionService.Approve(c.Request.Context(), conversionID, c.GetString("userID")); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "conversion approved"})
}

// RejectConversion rejects a pending conversion request
func (h *Handler) RejectConversion(c *gin.Context) {
	conversionID := c.Param("id")
	if conversionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversion request id required"})
		return
	}

	var req models.RejectConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.conversionService.Reject(c.Request.Context(), conversionID, c.GetString("userID"), req.Reason); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "conversion rejected"})
}

// StartConversion enqueues the workflow for an approved conversion
func (h *Handler) StartConversion(c *gin.Context) {
	conversionID := c.Param("id")
	if conversionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversion request id required"})
		return
	}

	if err := h.conversionService.Start(c.Request.Context(), conversionID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "conversion started"})
}

// ==================== Internal Task Handlers ====================

// ExpireDemoSites suspends demo sites past their trial expiry
func (h *Handler) ExpireDemoSites(c *gin.Context) {
	count, err := h.sweeperService.ExpireDemoSites(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "suspended": count})
}

// SendExpiryWarnings emails contacts whose trial expires soon
func (h *Handler) SendExpiryWarnings(c *gin.Context) {
	count, err := h.sweeperService.SendExpiryWarnings(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "sent": count})
}

// FailStuckRequests fails requests stuck in provisioning
func (h *Handler) FailStuckRequests(c *gin.Context) {
	count, err := h.sweeperService.FailStuckRequests(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "failed": count})
}
