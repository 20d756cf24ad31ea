package notifications

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/findtime/findtime/pkg/findtime/auth"
	"github.com/findtime/findtime/pkg/findtime/models"
)

// Handler handles notification inbox requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new notifications handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// List returns the caller's notifications, newest first
// @Summary List notifications
// @Param unread query bool false "Only unread notifications"
// @Router /notifications [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	query := h.db.Where("user_id = ?", userID)
	if unread, _ := strconv.ParseBool(c.Query("unread")); unread {
		query = query.Where("is_read = ?", false)
	}

	var list []models.Notification
	if err := query.Order("created_at DESC, id DESC").Limit(200).Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}

	c.JSON(http.StatusOK, list)
}

// MarkRead marks one notification as read
func (h *Handler) MarkRead(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	var n models.Notification
	if err := h.db.Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}

	if !n.IsRead {
		now := time.Now().UTC()
		n.IsRead = true
		n.ReadAt = &now
		if err := h.db.Model(&n).Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification"})
			return
		}
	}

	c.JSON(http.StatusOK, n)
}

// MarkAllRead marks every unread notification of the caller as read
func (h *Handler) MarkAllRead(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	res := h.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": time.Now().UTC()})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notifications marked as read", "count": res.RowsAffected})
}

// RegisterRoutes registers notification routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/notifications", h.List)
	rg.POST("/notifications/read-all", h.MarkAllRead)
	rg.POST("/notifications/:id/read", h.MarkRead)
}
