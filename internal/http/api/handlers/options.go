package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/agenthub-dev/agenthub/internal/llmconfig"
	internalsettings "github.com/agenthub-dev/agenthub/internal/settings"
)

// Built-in option catalogs offered regardless of stored configurations.
var (
	builtinModels = []string{
		"gpt-4o",
		"gpt-4o-mini",
		"claude-sonnet-4-5",
		"claude-haiku-4-5",
		"gemini-2.5-pro",
	}
	builtinAgents = []string{
		"CodeActAgent",
		"BrowsingAgent",
		"ReadOnlyAgent",
	}
	builtinSecurityAnalyzers = []string{
		"invariant",
		"llm-guard",
	}
)

// OptionsHandler serves option catalog endpoints.
type OptionsHandler struct {
	db       *gorm.DB
	llmStore *llmconfig.Store
}

// NewOptionsHandler constructs an OptionsHandler.
func NewOptionsHandler(db *gorm.DB, llmStore *llmconfig.Store) *OptionsHandler {
	return &OptionsHandler{db: db, llmStore: llmStore}
}

// Config returns public runtime configuration derived from the settings
// snapshot.
func (h *OptionsHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"site_name":     internalsettings.DBConfigString(internalsettings.SiteNameKey, internalsettings.DefaultSiteName),
		"default_agent": internalsettings.DBConfigString(internalsettings.DefaultAgentKey, internalsettings.DefaultAgent),
	})
}

// Models returns the built-in model catalog plus the models of the user's
// active configurations.
func (h *OptionsHandler) Models(c *gin.Context) {
	userID := c.GetUint64("userID")

	seen := make(map[string]struct{}, len(builtinModels))
	modelList := make([]string, 0, len(builtinModels))
	for _, model := range builtinModels {
		seen[model] = struct{}{}
		modelList = append(modelList, model)
	}

	configs, errList := h.llmStore.List(c.Request.Context(), userID)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query configurations failed"})
		return
	}
	for _, cfg := range configs {
		if !cfg.IsActive {
			continue
		}
		if _, dup := seen[cfg.Model]; dup {
			continue
		}
		seen[cfg.Model] = struct{}{}
		modelList = append(modelList, cfg.Model)
	}

	c.JSON(http.StatusOK, gin.H{"models": modelList})
}

// Agents returns the available agent presets.
func (h *OptionsHandler) Agents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": builtinAgents})
}

// SecurityAnalyzers returns the available security analyzers.
func (h *OptionsHandler) SecurityAnalyzers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"security_analyzers": builtinSecurityAnalyzers})
}
