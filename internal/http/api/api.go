package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/agenthub-dev/agenthub/internal/config"
	"github.com/agenthub-dev/agenthub/internal/http/api/handlers"
	"github.com/agenthub-dev/agenthub/internal/llmconfig"
	"github.com/agenthub-dev/agenthub/internal/models"
	"github.com/agenthub-dev/agenthub/internal/security"
	"github.com/agenthub-dev/agenthub/internal/session"
)

// SessionCookieName is the cookie carrying the opaque session token, as set
// by the auth handlers.
const SessionCookieName = handlers.SessionCookieName

// CSRFHeaderName carries CSRF tokens on cookie-authenticated mutations.
const CSRFHeaderName = "X-CSRF-Token"

// sessionTokenPrefix distinguishes opaque session tokens from JWTs in the
// Authorization header.
const sessionTokenPrefix = "ahs_"

// RegisterAPIRoutes registers public and authenticated API routes.
func RegisterAPIRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, sessions *session.Store, llmStore *llmconfig.Store) {
	if r == nil || db == nil {
		return
	}

	r.GET("/healthz", handlers.Health)

	apiGroup := r.Group("/api")

	authHandler := handlers.NewAuthHandler(db, jwtCfg, sessions)
	apiGroup.POST("/auth/jwt/login", authHandler.Login)
	apiGroup.POST("/auth/register-with-team", authHandler.RegisterWithTeam)

	authed := apiGroup.Group("")
	authed.Use(userAuthMiddleware(db, jwtCfg, sessions))
	authed.Use(csrfMiddleware(sessions))

	authed.GET("/auth/users/me", authHandler.Me)
	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/logout-all", authHandler.LogoutAll)

	teamHandler := handlers.NewTeamHandler(db)
	authed.GET("/teams", teamHandler.List)
	authed.GET("/teams/", teamHandler.List)

	optionsHandler := handlers.NewOptionsHandler(db, llmStore)
	authed.GET("/options/config", optionsHandler.Config)
	authed.GET("/options/models", optionsHandler.Models)
	authed.GET("/options/agents", optionsHandler.Agents)
	authed.GET("/options/security-analyzers", optionsHandler.SecurityAnalyzers)

	settingsHandler := handlers.NewSettingsHandler(db, llmStore)
	authed.GET("/settings", settingsHandler.Get)

	llmHandler := handlers.NewLLMConfigurationHandler(llmStore)
	authed.GET("/llm-configurations", llmHandler.List)
	authed.POST("/llm-configurations", llmHandler.Create)
	authed.PUT("/llm-configurations/:id", llmHandler.Update)
	authed.DELETE("/llm-configurations/:id", llmHandler.Delete)
	authed.POST("/llm-configurations/:id/set-default", llmHandler.SetDefault)
	authed.POST("/llm-configurations/:id/test", llmHandler.Test)

	conversationHandler := handlers.NewConversationHandler(db, llmStore)
	authed.POST("/conversation", conversationHandler.Create)
}

// userAuthMiddleware authenticates a request via Bearer JWT, Bearer session
// token, or session cookie, and loads the user into context.
func userAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig, sessions *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == authHeader {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
				return
			}
			token = strings.TrimSpace(token)
			if token == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
				return
			}
			if strings.HasPrefix(token, sessionTokenPrefix) {
				authenticateSessionToken(c, db, sessions, token, false)
				return
			}

			claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
			if errJWT != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			if !loadUser(c, db, claims.UserID) {
				return
			}
			c.Next()
			return
		}

		cookieToken, errCookie := c.Cookie(SessionCookieName)
		if errCookie != nil || strings.TrimSpace(cookieToken) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
			return
		}
		authenticateSessionToken(c, db, sessions, cookieToken, true)
	}
}

// authenticateSessionToken validates an opaque session token and loads the
// owning user.
func authenticateSessionToken(c *gin.Context, db *gorm.DB, sessions *session.Store, token string, viaCookie bool) {
	sess, errValidate := sessions.Validate(c.Request.Context(), token)
	if errValidate != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
		return
	}
	if !loadUser(c, db, sess.UserID) {
		return
	}
	c.Set("sessionID", sess.ID)
	c.Set("sessionToken", token)
	if viaCookie {
		c.Set("cookieAuth", true)
	}
	c.Next()
}

// loadUser fetches the user row and stores its ID in context. It aborts the
// request and returns false when the user is missing or disabled.
func loadUser(c *gin.Context, db *gorm.DB, userID uint64) bool {
	var user models.User
	if errFind := db.WithContext(c.Request.Context()).First(&user, userID).Error; errFind != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return false
	}
	if user.Disabled {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user disabled"})
		return false
	}
	c.Set("userID", user.ID)
	return true
}

// csrfMiddleware enforces single-use CSRF tokens on cookie-authenticated
// mutating requests and rotates a fresh token into the response header.
func csrfMiddleware(sessions *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool("cookieAuth") || isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		sessionID := c.GetUint64("sessionID")
		token := strings.TrimSpace(c.GetHeader(CSRFHeaderName))
		if errConsume := sessions.ConsumeCSRF(c.Request.Context(), sessionID, token); errConsume != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid csrf token"})
			return
		}
		if fresh, errIssue := sessions.IssueCSRF(c.Request.Context(), sessionID); errIssue == nil {
			c.Header(CSRFHeaderName, fresh)
		}
		c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
