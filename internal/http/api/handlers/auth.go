package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/agenthub-dev/agenthub/internal/config"
	"github.com/agenthub-dev/agenthub/internal/models"
	"github.com/agenthub-dev/agenthub/internal/security"
	"github.com/agenthub-dev/agenthub/internal/session"
)

// SessionCookieName is the cookie carrying the opaque session token. The
// router's middleware reads the same constant.
const SessionCookieName = "agenthub_session"

// AuthHandler handles login, registration, and identity endpoints.
type AuthHandler struct {
	db       *gorm.DB
	jwtCfg   config.JWTConfig
	sessions *session.Store
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig, sessions *session.Store) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg, sessions: sessions}
}

// Login authenticates form-encoded credentials and issues both a bearer JWT
// and a session cookie with an initial CSRF token.
func (h *AuthHandler) Login(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing username or password"})
		return
	}

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).
		Where("username = ? OR email = ?", username, strings.ToLower(username)).
		First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if user.Disabled {
		c.JSON(http.StatusForbidden, gin.H{"error": "user disabled"})
		return
	}
	if !security.CheckPassword(user.Password, password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	accessToken, errJWT := security.GenerateToken(h.jwtCfg.Secret, user.ID, user.Username, user.Email, h.jwtCfg.Expiry)
	if errJWT != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}

	sessionToken, sess, errSession := h.sessions.Create(c.Request.Context(), session.CreateParams{
		UserID:      user.ID,
		Fingerprint: security.HashToken(c.ClientIP() + "|" + c.Request.UserAgent()),
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})
	if errSession != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session creation failed"})
		return
	}
	csrfToken, errCSRF := h.sessions.IssueCSRF(c.Request.Context(), sess.ID)
	if errCSRF != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "csrf token issue failed"})
		return
	}

	now := time.Now().UTC()
	if errTouch := h.db.WithContext(c.Request.Context()).
		Model(&user).
		Update("last_login_at", now).Error; errTouch != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update last login failed"})
		return
	}

	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	c.SetCookie(SessionCookieName, sessionToken, maxAge, "/", "", false, true)

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"token_type":   "bearer",
		"csrf_token":   csrfToken,
	})
}

// registerWithTeamRequest defines the request body for combined registration.
type registerWithTeamRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	TeamName string `json:"team_name"`
}

// RegisterWithTeam creates a user, their team, and an admin membership in
// one transaction.
func (h *AuthHandler) RegisterWithTeam(c *gin.Context) {
	var body registerWithTeamRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	teamName := strings.TrimSpace(body.TeamName)
	if username == "" || teamName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing username or team_name"})
		return
	}
	if errPassword := security.ValidatePassword(body.Password); errPassword != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errPassword.Error()})
		return
	}

	hash, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	now := time.Now().UTC()
	user := models.User{
		Username:  username,
		Email:     strings.ToLower(strings.TrimSpace(body.Email)),
		Password:  hash,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	team := models.Team{
		Name:      teamName,
		Slug:      slugify(teamName),
		CreatedAt: now,
		UpdatedAt: now,
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var existing models.User
		if errCheck := tx.Where("username = ?", username).First(&existing).Error; errCheck == nil {
			return errConflict
		} else if !errors.Is(errCheck, gorm.ErrRecordNotFound) {
			return errCheck
		}
		if user.Email != "" {
			var byEmail models.User
			if errCheck := tx.Where("email = ?", user.Email).First(&byEmail).Error; errCheck == nil {
				return errConflict
			} else if !errors.Is(errCheck, gorm.ErrRecordNotFound) {
				return errCheck
			}
		}
		var existingTeam models.Team
		if errCheck := tx.Where("name = ? OR slug = ?", team.Name, team.Slug).First(&existingTeam).Error; errCheck == nil {
			return errConflict
		} else if !errors.Is(errCheck, gorm.ErrRecordNotFound) {
			return errCheck
		}

		if errCreate := tx.Create(&user).Error; errCreate != nil {
			return errCreate
		}
		team.OwnerID = user.ID
		if errCreate := tx.Create(&team).Error; errCreate != nil {
			return errCreate
		}
		member := models.TeamMember{
			TeamID:    team.ID,
			UserID:    user.ID,
			Role:      models.TeamRoleAdmin,
			CreatedAt: now,
		}
		return tx.Create(&member).Error
	})
	if errTx != nil {
		if errors.Is(errTx, errConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "username, email, or team already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"team": gin.H{
			"id":   team.ID,
			"name": team.Name,
			"slug": team.Slug,
		},
	})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetUint64("userID")
	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":            user.ID,
		"username":      user.Username,
		"name":          user.Name,
		"email":         user.Email,
		"created_at":    user.CreatedAt,
		"last_login_at": user.LastLoginAt,
	})
}

// Logout revokes the current session, when one exists, and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	if token := c.GetString("sessionToken"); token != "" {
		if errRevoke := h.sessions.Revoke(c.Request.Context(), token); errRevoke != nil && !errors.Is(errRevoke, session.ErrInvalidSession) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
			return
		}
	}
	c.SetCookie(SessionCookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// LogoutAll revokes every session the user holds, across all devices.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	userID := c.GetUint64("userID")
	if errRevoke := h.sessions.RevokeAllForUser(c.Request.Context(), userID); errRevoke != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.SetCookie(SessionCookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// errConflict signals a uniqueness conflict inside a transaction.
var errConflict = errors.New("conflict")

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives a URL-safe identifier from a team name.
func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
