package groups

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/findtime/findtime/pkg/findtime/auth"
	"github.com/findtime/findtime/pkg/findtime/models"
)

// MemberResponse represents a group member in API responses
type MemberResponse struct {
	ID       uint      `json:"id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Nickname string    `json:"nickname,omitempty"`
	IsAdmin  bool      `json:"is_admin"`
	JoinedAt time.Time `json:"joined_at"`
}

// AddMemberRequest represents a request to add a member
type AddMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ChangeAdminRequest names the member who becomes the group's admin
type ChangeAdminRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// listMembers returns the group's active members whose accounts still exist,
// with the viewer's nicknames applied.
func (h *Handler) listMembers(c *gin.Context, group models.Group) ([]MemberResponse, error) {
	viewerID, _ := auth.GetUserID(c)

	var memberships []models.GroupMembership
	if err := h.db.Preload("User").Where("group_id = ? AND is_active = ?", group.ID, true).Find(&memberships).Error; err != nil {
		return nil, err
	}
	nicknames, err := h.oracle.Nicknames(c.Request.Context(), group.ID, viewerID)
	if err != nil {
		return nil, err
	}

	members := make([]MemberResponse, 0, len(memberships))
	for _, m := range memberships {
		if m.User.ID == 0 {
			continue
		}
		members = append(members, MemberResponse{
			ID:       m.User.ID,
			Email:    m.User.Email,
			Name:     m.User.DisplayName(),
			Nickname: nicknames[m.User.ID],
			IsAdmin:  m.User.ID == group.AdminID,
			JoinedAt: m.JoinedAt,
		})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].JoinedAt.Before(members[j].JoinedAt) })
	return members, nil
}

// ListMembers returns the active members of a group
func (h *Handler) ListMembers(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := parseParam(c, "id")
	if !ok || !h.requireMember(c, groupID, userID) {
		return
	}

	var group models.Group
	if err := h.db.First(&group, groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}

	members, err := h.listMembers(c, group)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch members"})
		return
	}
	c.JSON(http.StatusOK, members)
}

// AddMember adds a user to a group, or reactivates a former membership (admin only)
func (h *Handler) AddMember(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := parseParam(c, "id")
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.requireAdmin(c, groupID, userID) {
		return
	}

	var target models.User
	if err := h.db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&target).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User does not exist or was deleted"})
		return
	}

	var existing models.GroupMembership
	if err := h.db.Where("user_id = ? AND group_id = ?", target.ID, groupID).First(&existing).Error; err == nil {
		if existing.IsActive {
			c.JSON(http.StatusConflict, gin.H{"error": "Member already exists in this group"})
			return
		}
		existing.IsActive = true
		existing.JoinedAt = time.Now()
		if err := h.db.Save(&existing).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add new member"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Member re-added to the group", "user_id": target.ID})
		return
	}

	m := models.GroupMembership{UserID: target.ID, GroupID: groupID, IsActive: true, JoinedAt: time.Now()}
	if err := h.db.Create(&m).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add new member"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Member added to the group", "user_id": target.ID})
}

// RemoveMember deactivates another member's membership (admin only)
func (h *Handler) RemoveMember(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := parseParam(c, "id")
	if !ok {
		return
	}
	memberID, ok := parseParam(c, "userId")
	if !ok || !h.requireAdmin(c, groupID, userID) {
		return
	}

	if memberID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The admin cannot be removed. Change the admin first"})
		return
	}

	res := h.db.Model(&models.GroupMembership{}).
		Where("user_id = ? AND group_id = ? AND is_active = ?", memberID, groupID, true).
		Update("is_active", false)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete member"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}

// ChangeAdmin hands the admin role to another active member (admin only)
func (h *Handler) ChangeAdmin(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := parseParam(c, "id")
	if !ok {
		return
	}

	var req ChangeAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.requireAdmin(c, groupID, userID) {
		return
	}

	if _, err := h.oracle.ValidateActiveMember(c.Request.Context(), groupID, req.UserID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The new admin must be an active member of the group"})
		return
	}

	res := h.db.Model(&models.Group{}).Where("id = ?", groupID).Update("admin_id", req.UserID)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change admin"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Admin changed"})
}

// Leave deactivates the caller's own membership. The admin has to hand over
// the role first.
func (h *Handler) Leave(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := parseParam(c, "id")
	if !ok || !h.requireMember(c, groupID, userID) {
		return
	}

	isAdmin, err := h.oracle.IsGroupAdmin(c.Request.Context(), groupID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to leave group"})
		return
	}
	if isAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The admin cannot leave the group. Change the admin first"})
		return
	}

	if err := h.db.Model(&models.GroupMembership{}).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Update("is_active", false).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to leave group"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "You left the group"})
}

// RegisterMemberRoutes registers member management routes
func (h *Handler) RegisterMemberRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/members", h.ListMembers)
	rg.POST("/:id/members", h.AddMember)
	rg.DELETE("/:id/members/:userId", h.RemoveMember)
	rg.PUT("/:id/admin", h.ChangeAdmin)
	rg.POST("/:id/leave", h.Leave)
}
