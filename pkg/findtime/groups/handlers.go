package groups

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/findtime/findtime/pkg/findtime/auth"
	"github.com/findtime/findtime/pkg/findtime/logging"
	"github.com/findtime/findtime/pkg/findtime/membership"
	"github.com/findtime/findtime/pkg/findtime/models"
	"github.com/findtime/findtime/pkg/findtime/response"
)

// Handler handles group-related requests
type Handler struct {
	db     *gorm.DB
	oracle *membership.Oracle
}

// NewHandler creates a new groups handler
func NewHandler(db *gorm.DB, oracle *membership.Oracle) *Handler {
	return &Handler{db: db, oracle: oracle}
}

// CreateGroupRequest represents the request to create a group
type CreateGroupRequest struct {
	Name         string   `json:"name" binding:"required,max=100"`
	Description  string   `json:"description"`
	MemberEmails []string `json:"member_emails"`
}

// UpdateGroupRequest represents the request to update a group
type UpdateGroupRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
}

// GroupResponse represents a group in API responses
type GroupResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	AdminID     uint   `json:"admin_id"`
	IsAdmin     bool   `json:"is_admin"`
	MemberCount int    `json:"member_count"`
	Color       string `json:"color"`
}

// CreateGroupResponse is returned after creating a group. FailedEmails lists
// the requested members that could not be added.
type CreateGroupResponse struct {
	GroupResponse
	FailedEmails []string `json:"failed_emails"`
}

// GroupInfoResponse describes a group and its active members
type GroupInfoResponse struct {
	ID          uint             `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	AdminID     uint             `json:"admin_id"`
	CreatedAt   time.Time        `json:"created_at"`
	Members     []MemberResponse `json:"members"`
}

func parseParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// requireMember writes the error response and returns false when the caller
// is not an active member of the group.
func (h *Handler) requireMember(c *gin.Context, groupID, userID uint) bool {
	if _, err := h.oracle.ValidateActiveMember(c.Request.Context(), groupID, userID); err != nil {
		response.Fail(c, err)
		return false
	}
	return true
}

func (h *Handler) requireAdmin(c *gin.Context, groupID, userID uint) bool {
	if !h.requireMember(c, groupID, userID) {
		return false
	}
	isAdmin, err := h.oracle.IsGroupAdmin(c.Request.Context(), groupID, userID)
	if err != nil {
		response.Fail(c, err)
		return false
	}
	if !isAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return false
	}
	return true
}

func (h *Handler) memberCount(groupID uint) int {
	var count int64
	h.db.Model(&models.GroupMembership{}).Where("group_id = ? AND is_active = ?", groupID, true).Count(&count)
	return int(count)
}

func (h *Handler) colorFor(userID, groupID uint) string {
	var settings models.GroupSettings
	if err := h.db.Where("user_id = ? AND group_id = ?", userID, groupID).First(&settings).Error; err != nil {
		return models.DefaultGroupColor
	}
	return settings.Color
}

// List returns all live groups the current user is an active member of
// @Summary List groups
// @Tags groups
// @Produce json
// @Success 200 {array} GroupResponse
// @Security BearerAuth
// @Router /groups [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var memberships []models.GroupMembership
	if err := h.db.Preload("Group").Where("user_id = ? AND is_active = ?", userID, true).Find(&memberships).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch groups"})
		return
	}

	groups := make([]GroupResponse, 0, len(memberships))
	for _, m := range memberships {
		// Preload skips soft-deleted groups.
		if m.Group.ID == 0 {
			continue
		}
		groups = append(groups, GroupResponse{
			ID:          m.Group.ID,
			Name:        m.Group.Name,
			Description: m.Group.Description,
			AdminID:     m.Group.AdminID,
			IsAdmin:     m.Group.AdminID == userID,
			MemberCount: h.memberCount(m.GroupID),
			Color:       h.colorFor(userID, m.GroupID),
		})
	}

	c.JSON(http.StatusOK, groups)
}

// Create creates a new group with the current user as admin and adds the
// requested members
// @Summary Create a group
// @Tags groups
// @Accept json
// @Produce json
// @Param request body CreateGroupRequest true "Group details"
// @Success 201 {object} CreateGroupResponse
// @Security BearerAuth
// @Router /groups [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Group name is required"})
		return
	}

	var creator models.User
	if err := h.db.First(&creator, userID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}

	now := time.Now()
	group := models.Group{Name: name, Description: req.Description, AdminID: userID}
	failed := []string{}
	added := 1

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.GroupMembership{UserID: userID, GroupID: group.ID, IsActive: true, JoinedAt: now}).Error; err != nil {
			return err
		}

		seen := map[string]bool{strings.ToLower(creator.Email): true}
		for _, raw := range req.MemberEmails {
			email := strings.ToLower(strings.TrimSpace(raw))
			if email == "" || seen[email] {
				continue
			}
			seen[email] = true

			var member models.User
			if err := tx.Where("email = ?", email).First(&member).Error; err != nil {
				failed = append(failed, raw)
				continue
			}
			if err := tx.Create(&models.GroupMembership{UserID: member.ID, GroupID: group.ID, IsActive: true, JoinedAt: now}).Error; err != nil {
				return err
			}
			added++
		}
		return nil
	})
	if err != nil {
		logging.Entry(c).WithError(err).Error("creating group")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create group"})
		return
	}

	c.JSON(http.StatusCreated, CreateGroupResponse{
		GroupResponse: GroupResponse{
			ID:          group.ID,
			Name:        group.Name,
			Description: group.Description,
			AdminID:     userID,
			IsAdmin:     true,
			MemberCount: added,
			Color:       models.DefaultGroupColor,
		},
		FailedEmails: failed,
	})
}

// Get returns a group with its active members. Member names are replaced by
// the caller's nicknames where set.
// @Summary Get a group
// @Tags groups
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {object} GroupInfoResponse
// @Security BearerAuth
// @Router /groups/{id} [get]
func (h *Handler) Get(c *gin.Context) {
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

	c.JSON(http.StatusOK, GroupInfoResponse{
		ID:          group.ID,
		Name:        group.Name,
		Description: group.Description,
		AdminID:     group.AdminID,
		CreatedAt:   group.CreatedAt,
		Members:     members,
	})
}

// Update changes a group's name and description. Any active member may do so.
// @Router /groups/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := parseParam(c, "id")
	if !ok {
		return
	}

	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Group name can not be empty"})
		return
	}
	if !h.requireMember(c, groupID, userID) {
		return
	}

	var group models.Group
	if err := h.db.First(&group, groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}

	group.Name = name
	group.Description = req.Description
	if err := h.db.Save(&group).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update group"})
		return
	}

	c.JSON(http.StatusOK, GroupResponse{
		ID:          group.ID,
		Name:        group.Name,
		Description: group.Description,
		AdminID:     group.AdminID,
		IsAdmin:     group.AdminID == userID,
		MemberCount: h.memberCount(group.ID),
		Color:       h.colorFor(userID, group.ID),
	})
}

// Delete soft-deletes a group together with all of its events (admin only)
// @Router /groups/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := parseParam(c, "id")
	if !ok || !h.requireAdmin(c, groupID, userID) {
		return
	}

	var removed int64
	err := h.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("group_id = ?", groupID).Delete(&models.Event{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected

		res = tx.Delete(&models.Group{}, groupID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}
	if err != nil {
		logging.Entry(c).WithError(err).WithField("group_id", groupID).Error("deleting group")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete group"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Group deleted", "events_deleted": removed})
}

// RegisterRoutes registers group routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}
