package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/agenthub-dev/agenthub/internal/llmconfig"
	internalsettings "github.com/agenthub-dev/agenthub/internal/settings"
)

// SettingsHandler serves the combined settings endpoint.
type SettingsHandler struct {
	db       *gorm.DB
	llmStore *llmconfig.Store
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(db *gorm.DB, llmStore *llmconfig.Store) *SettingsHandler {
	return &SettingsHandler{db: db, llmStore: llmStore}
}

// Get returns the settings snapshot plus the user's default LLM
// configuration with its key masked.
func (h *SettingsHandler) Get(c *gin.Context) {
	userID := c.GetUint64("userID")

	keys := internalsettings.DBConfigKeys()
	sort.Strings(keys)
	values := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		if raw, ok := internalsettings.DBConfigValue(key); ok {
			values[key] = raw
		}
	}

	response := gin.H{
		"settings":   values,
		"updated_at": internalsettings.DBConfigUpdatedAt(),
	}

	def, errDefault := h.llmStore.GetDefault(c.Request.Context(), userID)
	switch {
	case errDefault == nil:
		response["default_llm_configuration"] = llmConfigurationResponseFrom(def)
	case errors.Is(errDefault, llmconfig.ErrNotFound):
		response["default_llm_configuration"] = nil
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query default configuration failed"})
		return
	}

	c.JSON(http.StatusOK, response)
}
