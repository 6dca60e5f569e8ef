// internal/handlers/validate.go
package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/keymint/keymint-backend/internal/services"
	"github.com/keymint/keymint-backend/internal/utils"
)

type ValidateHandler struct {
	validationService *services.ValidationService
}

func NewValidateHandler(validationService *services.ValidationService) *ValidateHandler {
	return &ValidateHandler{
		validationService: validationService,
	}
}

// POST /validate is the public endpoint third-party software calls at
// runtime. Soft outcomes are reported with success-class status and a
// {valid, reason} payload; callers must branch on the valid field, not the
// HTTP status.
func (h *ValidateHandler) ValidateLicense(c *gin.Context) {
	var req services.ValidateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "invalid request body", err.Error())
		return
	}

	req.AppID = strings.TrimSpace(req.AppID)
	req.APISecret = strings.TrimSpace(req.APISecret)
	req.LicenseKey = strings.TrimSpace(req.LicenseKey)
	req.Hwid = strings.TrimSpace(req.Hwid)

	if req.AppID == "" || req.APISecret == "" || req.LicenseKey == "" {
		utils.BadRequestResponse(c, "appId, apiSecret and licenseKey are required", nil)
		return
	}

	result, err := h.validationService.Validate(&req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			utils.UnauthorizedResponse(c, err.Error())
		case errors.Is(err, services.ErrSecretNotConfigured):
			utils.BadRequestResponse(c, err.Error(), nil)
		default:
			utils.InternalErrorResponse(c, "")
		}
		return
	}

	utils.SuccessResponse(c, result)
}
