package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	dbpkg "github.com/agenthub-dev/agenthub/internal/db"
	"github.com/agenthub-dev/agenthub/internal/models"
)

// TeamHandler serves team listing endpoints.
type TeamHandler struct {
	db *gorm.DB
}

// NewTeamHandler constructs a TeamHandler.
func NewTeamHandler(db *gorm.DB) *TeamHandler {
	return &TeamHandler{db: db}
}

// teamResponse is one team in a listing.
type teamResponse struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Role      string    `json:"role"`
	Members   int64     `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

// List returns the teams the authenticated user belongs to. An optional
// search query filters by team name, case-insensitively on every dialect.
func (h *TeamHandler) List(c *gin.Context) {
	userID := c.GetUint64("userID")

	query := h.db.WithContext(c.Request.Context()).
		Preload("Team").
		Where("team_members.user_id = ?", userID).
		Order("team_members.id ASC")
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		query = query.
			Joins("JOIN teams ON teams.id = team_members.team_id").
			Where(dbpkg.CaseInsensitiveLikeExpr(h.db, "teams.name"), "%"+dbpkg.NormalizeLikePattern(h.db, search)+"%")
	}

	var memberships []models.TeamMember
	if errFind := query.Find(&memberships).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query teams failed"})
		return
	}

	teams := make([]teamResponse, 0, len(memberships))
	for _, membership := range memberships {
		if membership.Team == nil {
			continue
		}
		var memberCount int64
		if errCount := h.db.WithContext(c.Request.Context()).
			Model(&models.TeamMember{}).
			Where("team_id = ?", membership.TeamID).
			Count(&memberCount).Error; errCount != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "count members failed"})
			return
		}
		teams = append(teams, teamResponse{
			ID:        membership.Team.ID,
			Name:      membership.Team.Name,
			Slug:      membership.Team.Slug,
			Role:      membership.Role,
			Members:   memberCount,
			CreatedAt: membership.Team.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"teams": teams})
}
