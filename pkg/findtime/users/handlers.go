package users

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/findtime/findtime/pkg/findtime/auth"
	"github.com/findtime/findtime/pkg/findtime/logging"
	"github.com/findtime/findtime/pkg/findtime/models"
)

// Handler handles user profile requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new users handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// ProfileResponse is a user's public profile
type ProfileResponse struct {
	auth.UserResponse
	Birthday       *time.Time `json:"birthday,omitempty"`
	ProfilePicLink string     `json:"profile_pic_link,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// UpdateProfileRequest changes the caller's own profile. Nil fields are left as they are.
type UpdateProfileRequest struct {
	FirstName      *string    `json:"first_name" binding:"omitempty,max=100"`
	LastName       *string    `json:"last_name" binding:"omitempty,max=100"`
	Birthday       *time.Time `json:"birthday"`
	ProfilePicLink *string    `json:"profile_pic_link" binding:"omitempty,max=500"`
}

func newProfile(u models.User) ProfileResponse {
	return ProfileResponse{
		UserResponse:   auth.NewUserResponse(u),
		Birthday:       u.Birthday,
		ProfilePicLink: u.ProfilePicLink,
		CreatedAt:      u.CreatedAt,
	}
}

// Get returns a user's profile. Deleted users are not found.
// @Summary Get a user profile
// @Tags users
// @Router /users/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, newProfile(user))
}

// UpdateMe updates the caller's profile
// @Router /users/me [put]
func (h *Handler) UpdateMe(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	updates := make(map[string]interface{})
	if req.FirstName != nil {
		name := strings.TrimSpace(*req.FirstName)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "First name can not be empty"})
			return
		}
		updates["first_name"] = name
	}
	if req.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.Birthday != nil {
		updates["birthday"] = *req.Birthday
	}
	if req.ProfilePicLink != nil {
		updates["profile_pic_link"] = strings.TrimSpace(*req.ProfilePicLink)
	}

	if len(updates) > 0 {
		if err := h.db.Model(&user).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}
	}

	h.db.First(&user, userID)
	c.JSON(http.StatusOK, newProfile(user))
}

// DeleteMe soft-deletes the caller's account and deactivates their
// memberships. Group admins have to hand over their groups first.
// @Router /users/me [delete]
func (h *Handler) DeleteMe(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var administered int64
	h.db.Model(&models.Group{}).Where("admin_id = ?", userID).Count(&administered)
	if administered > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Change the admin of your groups before deleting your account"})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.GroupMembership{}).Where("user_id = ?", userID).Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		logging.Entry(c).WithError(err).WithField("user_id", userID).Error("deleting account")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}

// RegisterRoutes registers user routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.PUT("/me", h.UpdateMe)
	rg.DELETE("/me", h.DeleteMe)
	rg.GET("/:id", h.Get)
}
