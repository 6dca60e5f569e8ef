// internal/handlers/app.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/keymint/keymint-backend/internal/services"
	"github.com/keymint/keymint-backend/internal/utils"
)

type AppHandler struct {
	appService *services.AppService
}

func NewAppHandler(appService *services.AppService) *AppHandler {
	return &AppHandler{
		appService: appService,
	}
}

// POST /apps
func (h *AppHandler) CreateApp(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreateAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "invalid request body", err.Error())
		return
	}

	app, err := h.appService.Create(user, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"app": app})
}

// GET /apps
func (h *AppHandler) ListApps(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	apps, err := h.appService.List(user)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"apps": apps})
}

// PATCH /apps/:id
func (h *AppHandler) UpdateApp(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid app id", nil)
		return
	}

	var req services.UpdateAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "invalid request body", err.Error())
		return
	}

	app, err := h.appService.Update(user, appID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"app": app})
}

// DELETE /apps/:id suspends the app. Licenses stay but stop validating.
func (h *AppHandler) SuspendApp(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid app id", nil)
		return
	}

	if err := h.appService.Suspend(user, appID); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "application suspended"})
}

// DELETE /apps/:id/purge is the admin-only hard delete. It cascades to
// the app's licenses.
func (h *AppHandler) PurgeApp(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid app id", nil)
		return
	}

	if err := h.appService.Purge(user, appID); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "application deleted"})
}

// POST /apps/:id/reset-secret
func (h *AppHandler) ResetSecret(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid app id", nil)
		return
	}

	plainSecret, err := h.appService.ResetSecret(user, appID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	// Returned only once; the server keeps just the hash.
	utils.SuccessResponse(c, gin.H{"api_secret": plainSecret})
}

// POST /apps/reorder
func (h *AppHandler) ReorderApps(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Order []uuid.UUID `json:"order" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "invalid order array", nil)
		return
	}

	if err := h.appService.Reorder(user, req.Order); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "sort order updated"})
}
