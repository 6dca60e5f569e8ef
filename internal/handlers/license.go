// internal/handlers/license.go
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/keymint/keymint-backend/internal/services"
	"github.com/keymint/keymint-backend/internal/utils"
)

type LicenseHandler struct {
	licenseService *services.LicenseService
}

func NewLicenseHandler(licenseService *services.LicenseService) *LicenseHandler {
	return &LicenseHandler{
		licenseService: licenseService,
	}
}

// POST /licenses provisions a batch of keys. The plaintext keys in the
// response are not retrievable again.
func (h *LicenseHandler) CreateLicenses(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreateLicensesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "invalid request body", err.Error())
		return
	}

	keys, err := h.licenseService.CreateBatch(user, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": fmt.Sprintf("%d license(s) created", len(keys)),
		"keys":    keys,
	})
}

// GET /licenses?appId=
func (h *LicenseHandler) ListLicenses(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	appID, err := uuid.Parse(c.Query("appId"))
	if err != nil {
		utils.BadRequestResponse(c, "appId required", nil)
		return
	}

	params := utils.GetPaginationParams(c)
	licenses, total, err := h.licenseService.List(user, appID, params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(gin.H{"licenses": licenses}, total, params)
	utils.PaginatedResponse(c, result)
}

// PATCH /licenses/:id
func (h *LicenseHandler) UpdateLicense(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	licenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid license id", nil)
		return
	}

	var req services.UpdateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "invalid request body", err.Error())
		return
	}

	license, err := h.licenseService.Update(user, licenseID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "license updated",
		"license": license,
	})
}

// DELETE /licenses/:id
func (h *LicenseHandler) DeleteLicense(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	licenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid license id", nil)
		return
	}

	if err := h.licenseService.Delete(user, licenseID); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "license deleted"})
}

// GET /licenses/export?appId=
func (h *LicenseHandler) ExportLicenses(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	appID, err := uuid.Parse(c.Query("appId"))
	if err != nil {
		utils.BadRequestResponse(c, "appId required", nil)
		return
	}

	csv, err := h.licenseService.ExportCSV(user, appID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("licenses-%s-%d.csv", appID, time.Now().UnixMilli())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", []byte(csv))
}
