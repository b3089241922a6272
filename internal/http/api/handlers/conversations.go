package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agenthub-dev/agenthub/internal/llmconfig"
	"github.com/agenthub-dev/agenthub/internal/models"
)

// ConversationHandler serves conversation endpoints.
type ConversationHandler struct {
	db       *gorm.DB
	llmStore *llmconfig.Store
}

// NewConversationHandler constructs a ConversationHandler.
func NewConversationHandler(db *gorm.DB, llmStore *llmconfig.Store) *ConversationHandler {
	return &ConversationHandler{db: db, llmStore: llmStore}
}

// createConversationRequest defines the conversation creation body. All
// fields are optional.
type createConversationRequest struct {
	Title string `json:"title"`
}

// Create starts a new conversation bound to the user's default LLM
// configuration when one exists.
func (h *ConversationHandler) Create(c *gin.Context) {
	var body createConversationRequest
	if c.Request.ContentLength > 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	userID := c.GetUint64("userID")
	conversation := models.Conversation{
		ID:     uuid.NewString(),
		UserID: userID,
		Title:  strings.TrimSpace(body.Title),
	}
	if conversation.Title == "" {
		conversation.Title = "New conversation"
	}

	def, errDefault := h.llmStore.GetDefault(c.Request.Context(), userID)
	switch {
	case errDefault == nil:
		conversation.LLMConfigurationID = &def.ID
	case errors.Is(errDefault, llmconfig.ErrNotFound):
		// No configuration yet; the conversation starts unbound.
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query default configuration failed"})
		return
	}

	if errCreate := h.db.WithContext(c.Request.Context()).Create(&conversation).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create conversation failed"})
		return
	}
	if conversation.LLMConfigurationID != nil {
		if errTouch := h.llmStore.TouchUsed(c.Request.Context(), userID, *conversation.LLMConfigurationID); errTouch != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update configuration failed"})
			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"conversation_id":      conversation.ID,
		"title":                conversation.Title,
		"llm_configuration_id": conversation.LLMConfigurationID,
	})
}
