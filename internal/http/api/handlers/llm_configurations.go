package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agenthub-dev/agenthub/internal/llmconfig"
	"github.com/agenthub-dev/agenthub/internal/models"
	"github.com/agenthub-dev/agenthub/internal/util"
)

// testRequestTimeout bounds a provider connectivity check.
const testRequestTimeout = 10 * time.Second

// LLMConfigurationHandler serves LLM configuration CRUD endpoints.
type LLMConfigurationHandler struct {
	store *llmconfig.Store
}

// NewLLMConfigurationHandler constructs an LLMConfigurationHandler.
func NewLLMConfigurationHandler(store *llmconfig.Store) *LLMConfigurationHandler {
	return &LLMConfigurationHandler{store: store}
}

// llmConfigurationResponse is the wire form of a configuration. The provider
// key never leaves the server unmasked.
type llmConfigurationResponse struct {
	ID          uint64     `json:"id"`
	Name        string     `json:"name"`
	Provider    string     `json:"provider"`
	Model       string     `json:"model"`
	APIKey      string     `json:"api_key,omitempty"`
	BaseURL     *string    `json:"base_url,omitempty"`
	IsDefault   bool       `json:"is_default"`
	IsActive    bool       `json:"is_active"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	TestStatus  string     `json:"test_status"`
	TestMessage string     `json:"test_message,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// llmConfigurationResponseFrom converts a row without exposing key material.
func llmConfigurationResponseFrom(row *models.LLMConfiguration) llmConfigurationResponse {
	return llmConfigurationResponse{
		ID:          row.ID,
		Name:        row.Name,
		Provider:    row.Provider,
		Model:       row.Model,
		BaseURL:     row.BaseURL,
		IsDefault:   row.IsDefault,
		IsActive:    row.IsActive,
		LastUsedAt:  row.LastUsedAt,
		TestStatus:  row.TestStatus,
		TestMessage: row.TestMessage,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

// respond converts a row, attaching the masked provider key.
func (h *LLMConfigurationHandler) respond(row *models.LLMConfiguration) llmConfigurationResponse {
	out := llmConfigurationResponseFrom(row)
	if plaintext, errDecrypt := h.store.DecryptAPIKey(row); errDecrypt == nil {
		out.APIKey = util.HideAPIKey(plaintext)
	}
	return out
}

// List returns the user's configurations.
func (h *LLMConfigurationHandler) List(c *gin.Context) {
	userID := c.GetUint64("userID")
	rows, errList := h.store.List(c.Request.Context(), userID)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query configurations failed"})
		return
	}
	out := make([]llmConfigurationResponse, 0, len(rows))
	for i := range rows {
		out = append(out, h.respond(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"llm_configurations": out})
}

// createLLMConfigurationRequest defines the creation request body.
type createLLMConfigurationRequest struct {
	Name      string  `json:"name"`
	Provider  string  `json:"provider"`
	Model     string  `json:"model"`
	APIKey    string  `json:"api_key"`
	BaseURL   *string `json:"base_url"`
	IsDefault bool    `json:"is_default"`
}

// Create stores a new configuration for the user.
func (h *LLMConfigurationHandler) Create(c *gin.Context) {
	var body createLLMConfigurationRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	userID := c.GetUint64("userID")
	row, errCreate := h.store.Create(c.Request.Context(), userID, llmconfig.CreateParams{
		Name:      body.Name,
		Provider:  body.Provider,
		Model:     body.Model,
		APIKey:    body.APIKey,
		BaseURL:   body.BaseURL,
		IsDefault: body.IsDefault,
	})
	if errCreate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errCreate.Error()})
		return
	}
	c.JSON(http.StatusCreated, h.respond(row))
}

// updateLLMConfigurationRequest defines the update request body.
type updateLLMConfigurationRequest struct {
	Name     *string `json:"name"`
	Provider *string `json:"provider"`
	Model    *string `json:"model"`
	APIKey   string  `json:"api_key"`
	BaseURL  *string `json:"base_url"`
	IsActive *bool   `json:"is_active"`
}

// Update modifies an existing configuration.
func (h *LLMConfigurationHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body updateLLMConfigurationRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	userID := c.GetUint64("userID")
	row, errUpdate := h.store.Update(c.Request.Context(), userID, id, llmconfig.UpdateParams{
		Name:     body.Name,
		Provider: body.Provider,
		Model:    body.Model,
		APIKey:   body.APIKey,
		BaseURL:  body.BaseURL,
		IsActive: body.IsActive,
	})
	if errUpdate != nil {
		if errors.Is(errUpdate, llmconfig.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "configuration not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, h.respond(row))
}

// Delete removes a configuration.
func (h *LLMConfigurationHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	userID := c.GetUint64("userID")
	if errDelete := h.store.Delete(c.Request.Context(), userID, id); errDelete != nil {
		if errors.Is(errDelete, llmconfig.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "configuration not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// SetDefault makes a configuration the user's default.
func (h *LLMConfigurationHandler) SetDefault(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	userID := c.GetUint64("userID")
	if errSet := h.store.SetDefault(c.Request.Context(), userID, id); errSet != nil {
		if errors.Is(errSet, llmconfig.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "configuration not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "set default failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Test runs a provider connectivity check and records the outcome.
func (h *LLMConfigurationHandler) Test(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	userID := c.GetUint64("userID")
	row, errGet := h.store.Get(c.Request.Context(), userID, id)
	if errGet != nil {
		if errors.Is(errGet, llmconfig.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "configuration not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	apiKey, errDecrypt := h.store.DecryptAPIKey(row)
	if errDecrypt != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "decrypt api key failed"})
		return
	}

	status := models.TestStatusSuccess
	message := "connectivity check passed"
	if errProbe := checkProvider(c.Request.Context(), row.Provider, row.BaseURL, apiKey); errProbe != nil {
		status = models.TestStatusFailed
		message = errProbe.Error()
	}
	if errRecord := h.store.RecordTest(c.Request.Context(), userID, id, status, message); errRecord != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "record test failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"test_status": status, "test_message": message})
}

// providerModelEndpoints maps known providers to their model listing URL.
var providerModelEndpoints = map[string]string{
	"openai":    "https://api.openai.com/v1/models",
	"anthropic": "https://api.anthropic.com/v1/models",
	"mistral":   "https://api.mistral.ai/v1/models",
}

// checkProvider issues one authenticated request against the provider's
// model listing endpoint.
func checkProvider(ctx context.Context, provider string, baseURL *string, apiKey string) error {
	endpoint := ""
	if baseURL != nil && strings.TrimSpace(*baseURL) != "" {
		endpoint = strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/models"
	} else if known, ok := providerModelEndpoints[strings.ToLower(provider)]; ok {
		endpoint = known
	} else {
		return fmt.Errorf("no known endpoint for provider %s; set base_url", provider)
	}

	reqCtx, cancel := context.WithTimeout(ctx, testRequestTimeout)
	defer cancel()
	req, errReq := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if errReq != nil {
		return errReq
	}
	if strings.EqualFold(provider, "anthropic") {
		req.Header.Set("x-api-key", apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")
	} else {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, errDo := http.DefaultClient.Do(req)
	if errDo != nil {
		return errDo
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	return nil
}

// parseIDParam parses the :id path parameter, responding 400 on failure.
func parseIDParam(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
