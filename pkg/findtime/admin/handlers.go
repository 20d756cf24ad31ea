package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/findtime/findtime/pkg/findtime/auth"
	"github.com/findtime/findtime/pkg/findtime/models"
)

// Handler handles admin requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID         uint   `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	SystemRole string `json:"system_role"`
	CreatedAt  string `json:"created_at"`
	EventCount int64  `json:"event_count"`
	GroupCount int64  `json:"group_count"`
}

// StatsResponse represents system statistics
type StatsResponse struct {
	TotalUsers      int64 `json:"total_users"`
	TotalGroups     int64 `json:"total_groups"`
	TotalEvents     int64 `json:"total_events"`
	RecurringSeries int64 `json:"recurring_series"`
	DeletedEvents   int64 `json:"deleted_events"`
	TotalCategories int64 `json:"total_categories"`
	AdminUsers      int64 `json:"admin_users"`
}

func (h *Handler) toResponse(user models.User) UserResponse {
	var eventCount, groupCount int64
	h.db.Model(&models.Event{}).Where("creator_user_id = ?", user.ID).Count(&eventCount)
	h.db.Model(&models.GroupMembership{}).Where("user_id = ? AND is_active = ?", user.ID, true).Count(&groupCount)

	return UserResponse{
		ID:         user.ID,
		Email:      user.Email,
		Name:       user.DisplayName(),
		SystemRole: string(user.SystemRole),
		CreatedAt:  user.CreatedAt.Format("2006-01-02T15:04:05Z"),
		EventCount: eventCount,
		GroupCount: groupCount,
	}
}

// ListUsers returns all live users (admin only)
func (h *Handler) ListUsers(c *gin.Context) {
	var users []models.User

	query := h.db.Order("created_at DESC")

	// Optional search by email or name
	if search := c.Query("q"); search != "" {
		like := "%" + search + "%"
		query = query.Where("email LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like)
	}

	if role := c.Query("role"); role != "" {
		query = query.Where("system_role = ?", role)
	}

	if err := query.Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	responses := make([]UserResponse, len(users))
	for i, user := range users {
		responses[i] = h.toResponse(user)
	}

	c.JSON(http.StatusOK, responses)
}

// DeleteUser soft-deletes a user and deactivates their memberships (admin only)
func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	currentUserID, _ := auth.GetUserID(c)
	if uint(id) == currentUserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete yourself"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.GroupMembership{}).Where("user_id = ?", user.ID).Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// GetStats returns system-wide statistics (admin only)
func (h *Handler) GetStats(c *gin.Context) {
	var stats StatsResponse

	h.db.Model(&models.User{}).Count(&stats.TotalUsers)
	h.db.Model(&models.Group{}).Count(&stats.TotalGroups)
	h.db.Model(&models.Event{}).Count(&stats.TotalEvents)
	h.db.Model(&models.Category{}).Count(&stats.TotalCategories)
	h.db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&stats.AdminUsers)

	// A series is counted by its live master row.
	h.db.Model(&models.Event{}).Where("is_recurring = ? AND recurring_group_id IS NULL", true).Count(&stats.RecurringSeries)
	h.db.Unscoped().Model(&models.Event{}).Where("deleted_at IS NOT NULL").Count(&stats.DeletedEvents)

	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers admin routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
	rg.GET("/users", h.ListUsers)
	rg.DELETE("/users/:id", h.DeleteUser)
}
