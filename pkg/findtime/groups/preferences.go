package groups

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"

	"github.com/findtime/findtime/pkg/findtime/auth"
	"github.com/findtime/findtime/pkg/findtime/models"
)

// NicknameRequest sets how the caller sees another member. An empty
// nickname removes the override.
type NicknameRequest struct {
	Nickname string `json:"nickname" binding:"max=50"`
}

// ColorRequest sets the caller's color for a group
type ColorRequest struct {
	Color string `json:"color" binding:"required,max=20"`
}

// SetNickname stores the caller's nickname for another active member
func (h *Handler) SetNickname(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := parseParam(c, "id")
	if !ok {
		return
	}
	targetID, ok := parseParam(c, "userId")
	if !ok {
		return
	}

	var req NicknameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.requireMember(c, groupID, userID) {
		return
	}
	if _, err := h.oracle.ValidateActiveMember(c.Request.Context(), groupID, targetID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}

	nickname := strings.TrimSpace(req.Nickname)
	if nickname == "" {
		if err := h.db.Where("user_id = ? AND target_user_id = ? AND group_id = ?", userID, targetID, groupID).
			Delete(&models.MemberNickname{}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove nickname"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Nickname removed"})
		return
	}

	row := models.MemberNickname{UserID: userID, TargetUserID: targetID, GroupID: groupID, Nickname: nickname}
	err := h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "target_user_id"}, {Name: "group_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"nickname", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to set nickname"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Nickname set", "nickname": nickname})
}

// GetColor returns the caller's color for a group
func (h *Handler) GetColor(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := parseParam(c, "id")
	if !ok || !h.requireMember(c, groupID, userID) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"color": h.colorFor(userID, groupID)})
}

// SetColor stores the caller's color for a group
func (h *Handler) SetColor(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := parseParam(c, "id")
	if !ok {
		return
	}

	var req ColorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.requireMember(c, groupID, userID) {
		return
	}

	color := strings.TrimSpace(req.Color)
	row := models.GroupSettings{UserID: userID, GroupID: groupID, Color: color}
	err := h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "group_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"color", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to set color"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"color": color})
}

// RegisterPreferenceRoutes registers per-user group preference routes
func (h *Handler) RegisterPreferenceRoutes(rg *gin.RouterGroup) {
	rg.PUT("/:id/members/:userId/nickname", h.SetNickname)
	rg.GET("/:id/color", h.GetColor)
	rg.PUT("/:id/color", h.SetColor)
}
