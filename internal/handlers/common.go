// internal/handlers/common.go
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/keymint/keymint-backend/internal/models"
	"github.com/keymint/keymint-backend/internal/services"
	"github.com/keymint/keymint-backend/internal/utils"
)

// currentUser rebuilds the caller from the JWT claims the auth middleware
// stashed in the gin context. Role checks trust the token; a role change
// takes effect when the token is reissued.
func currentUser(c *gin.Context) (*models.User, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "invalid user ID", nil)
		return nil, false
	}
	role, _ := utils.GetUserRoleFromContext(c)

	return &models.User{
		BaseModel: models.BaseModel{ID: userID},
		Role:      models.UserRole(role),
	}, true
}

// respondServiceError maps service-layer sentinel errors onto the response
// envelope.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrAppNotFound):
		utils.NotFoundResponse(c, "app")
	case errors.Is(err, services.ErrLicenseNotFound):
		utils.NotFoundResponse(c, "license")
	case errors.Is(err, services.ErrForbidden):
		utils.ForbiddenResponse(c, "")
	case errors.Is(err, services.ErrDuplicateName), errors.Is(err, services.ErrDuplicateKey):
		utils.ConflictResponse(c, err.Error())
	case errors.Is(err, services.ErrBatchLimitExceeded):
		utils.ErrorResponse(c, http.StatusBadRequest, "LIMIT_EXCEEDED", err.Error(), nil)
	case errors.Is(err, services.ErrNoUpdates),
		errors.Is(err, services.ErrInvalidHwidLimit),
		errors.Is(err, services.ErrInvalidHwidIndex),
		errors.Is(err, services.ErrInvalidExpiryDate),
		errors.Is(err, services.ErrNoteTooLong):
		utils.BadRequestResponse(c, err.Error(), nil)
	case strings.Contains(err.Error(), "validation failed"):
		utils.BadRequestResponse(c, err.Error(), nil)
	default:
		utils.InternalErrorResponse(c, "")
	}
}
