package categories

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/findtime/findtime/pkg/findtime/auth"
	"github.com/findtime/findtime/pkg/findtime/events"
	"github.com/findtime/findtime/pkg/findtime/logging"
	"github.com/findtime/findtime/pkg/findtime/membership"
	"github.com/findtime/findtime/pkg/findtime/models"
	"github.com/findtime/findtime/pkg/findtime/response"
)

// Handler handles category-related requests
type Handler struct {
	db     *gorm.DB
	oracle *membership.Oracle
	events *events.Service
}

// NewHandler creates a new categories handler
func NewHandler(db *gorm.DB, oracle *membership.Oracle, svc *events.Service) *Handler {
	return &Handler{db: db, oracle: oracle, events: svc}
}

// CategoryRequest represents the request to create or update a category
type CategoryRequest struct {
	Name  string `json:"name" binding:"required,max=100"`
	Color string `json:"color" binding:"required,hexcolor,max=7"`
}

// AssignRequest represents the request to set an event's category
type AssignRequest struct {
	CategoryID uint `json:"category_id" binding:"required"`
}

// CategoryResponse represents a category in API responses
type CategoryResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

func toResponse(c models.Category) CategoryResponse {
	return CategoryResponse{ID: c.ID, Name: c.Name, Color: c.Color}
}

func parseParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// nameTaken reports whether another live category of the group already uses name, ignoring case
func (h *Handler) nameTaken(groupID uint, name string, excludeID uint) (bool, error) {
	query := h.db.Model(&models.Category{}).Where("group_id = ? AND LOWER(name) = ?", groupID, strings.ToLower(name))
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// checkName writes the error response and returns false when name cannot be used
func (h *Handler) checkName(c *gin.Context, groupID uint, name string, excludeID uint) bool {
	taken, err := h.nameTaken(groupID, name, excludeID)
	if err != nil {
		logging.Entry(c).WithError(err).Error("checking category name")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check category name"})
		return false
	}
	if taken {
		c.JSON(http.StatusConflict, gin.H{"error": "The category name already exists"})
		return false
	}
	return true
}

// requireMember writes the error response and returns false when the caller is not an active member
func (h *Handler) requireMember(c *gin.Context, groupID uint) bool {
	userID, _ := auth.GetUserID(c)
	if _, err := h.oracle.ValidateActiveMember(c.Request.Context(), groupID, userID); err != nil {
		response.Fail(c, err)
		return false
	}
	return true
}

// ListByGroup returns the group's live categories
// @Summary List categories
// @Router /groups/{id}/categories [get]
func (h *Handler) ListByGroup(c *gin.Context) {
	groupID, ok := parseParam(c, "id")
	if !ok || !h.requireMember(c, groupID) {
		return
	}

	var list []models.Category
	if err := h.db.Where("group_id = ?", groupID).Order("name").Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch categories"})
		return
	}

	out := make([]CategoryResponse, len(list))
	for i, cat := range list {
		out[i] = toResponse(cat)
	}
	c.JSON(http.StatusOK, out)
}

// Create adds a category to a group
// @Summary Create a category
// @Router /groups/{id}/categories [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := parseParam(c, "id")
	if !ok || !h.requireMember(c, groupID) {
		return
	}

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Category name can not be empty"})
		return
	}
	if !h.checkName(c, groupID, name, 0) {
		return
	}

	cat := models.Category{
		Name:            name,
		Color:           strings.TrimSpace(req.Color),
		GroupID:         groupID,
		CreatedByUserID: userID,
	}
	if err := h.db.Create(&cat).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create category"})
		return
	}

	c.JSON(http.StatusCreated, toResponse(cat))
}

// Update renames or recolors a category
func (h *Handler) Update(c *gin.Context) {
	groupID, ok := parseParam(c, "id")
	if !ok {
		return
	}
	categoryID, ok := parseParam(c, "categoryId")
	if !ok || !h.requireMember(c, groupID) {
		return
	}

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cat, err := h.oracle.ValidateCategory(c.Request.Context(), categoryID, groupID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Category name can not be empty"})
		return
	}
	if !h.checkName(c, groupID, name, cat.ID) {
		return
	}

	cat.Name = name
	cat.Color = strings.TrimSpace(req.Color)
	if err := h.db.Save(cat).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update category"})
		return
	}

	c.JSON(http.StatusOK, toResponse(*cat))
}

// Delete soft-deletes a category. Events keep their category id but no
// longer resolve it.
func (h *Handler) Delete(c *gin.Context) {
	groupID, ok := parseParam(c, "id")
	if !ok {
		return
	}
	categoryID, ok := parseParam(c, "categoryId")
	if !ok || !h.requireMember(c, groupID) {
		return
	}

	cat, err := h.oracle.ValidateCategory(c.Request.Context(), categoryID, groupID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if err := h.db.Delete(cat).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete category"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Category " + cat.Name + " was deleted"})
}

// Assign sets the category of an event, or of its whole series when it recurs
// @Summary Set an event's category
// @Router /groups/{id}/events/{eventId}/category [put]
func (h *Handler) Assign(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := parseParam(c, "id")
	if !ok {
		return
	}
	eventID, ok := parseParam(c, "eventId")
	if !ok {
		return
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.events.AssignCategory(c.Request.Context(), userID, groupID, eventID, req.CategoryID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OKCount(c, result.Message, result.Count)
}

// RegisterRoutes registers category routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/groups/:id/categories", h.ListByGroup)
	rg.POST("/groups/:id/categories", h.Create)
	rg.PUT("/groups/:id/categories/:categoryId", h.Update)
	rg.DELETE("/groups/:id/categories/:categoryId", h.Delete)
	rg.PUT("/groups/:id/events/:eventId/category", h.Assign)
}

