// internal/handlers/validate_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/keymint/keymint-backend/internal/services"
)

// ValidateHandlerTestSuite covers the request checks that run before any
// storage access, so no database is needed.
type ValidateHandlerTestSuite struct {
	suite.Suite
	router *gin.Engine
}

func (suite *ValidateHandlerTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	suite.router = gin.New()

	handler := NewValidateHandler(services.NewValidationService(nil))
	suite.router.POST("/validate", handler.ValidateLicense)
}

func (suite *ValidateHandlerTestSuite) post(body interface{}) *httptest.ResponseRecorder {
	jsonData, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", "/validate", bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *ValidateHandlerTestSuite) TestMissingFields() {
	tests := []map[string]interface{}{
		{},
		{"appId": "abc"},
		{"appId": "abc", "apiSecret": "sec"},
		{"apiSecret": "sec", "licenseKey": "KEY"},
	}

	for _, body := range tests {
		w := suite.post(body)
		assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(suite.T(), err)
		assert.False(suite.T(), response["success"].(bool))
	}
}

func (suite *ValidateHandlerTestSuite) TestWhitespaceOnlyFieldsRejected() {
	w := suite.post(map[string]interface{}{
		"appId":      "  ",
		"apiSecret":  "\t",
		"licenseKey": " ",
	})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *ValidateHandlerTestSuite) TestMalformedBody() {
	req, _ := http.NewRequest("POST", "/validate", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func TestValidateHandlerSuite(t *testing.T) {
	suite.Run(t, new(ValidateHandlerTestSuite))
}
