package events

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/findtime/findtime/pkg/findtime/auth"
	"github.com/findtime/findtime/pkg/findtime/models"
	"github.com/findtime/findtime/pkg/findtime/response"
)

// Handler handles event requests
type Handler struct {
	svc *Service
}

// NewHandler creates a new events handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CreateEventRequest represents the request to create an event
type CreateEventRequest struct {
	Name              string                    `json:"name"`
	Description       string                    `json:"description"`
	Location          string                    `json:"location"`
	StartTime         time.Time                 `json:"start_time" binding:"required"`
	EndTime           time.Time                 `json:"end_time" binding:"required"`
	CategoryID        *uint                     `json:"category_id"`
	IsRecurring       bool                      `json:"is_recurring"`
	RecurrencePattern *models.RecurrencePattern `json:"recurrence_pattern"`
	RecurrenceEndTime *time.Time                `json:"recurrence_end_time"`
}

// UpdateEventRequest represents the request to update an event
type UpdateEventRequest struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartTime   time.Time `json:"start_time" binding:"required"`
	EndTime     time.Time `json:"end_time" binding:"required"`
	CategoryID  *uint     `json:"category_id"`
	Scope       string    `json:"scope"`
}

// CreateEventResponse is the data returned for a created event
type CreateEventResponse struct {
	EventView
	RecurringInstancesCreated *int            `json:"recurring_instances_created,omitempty"`
	Expansion                 ExpansionStatus `json:"expansion"`
	ExpansionError            string          `json:"expansion_error,omitempty"`
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		response.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// List returns every live event of a group
// @Summary List group events
// @Router /groups/{id}/events [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := parseID(c, "id")
	if !ok {
		return
	}

	views, err := h.svc.ListGroupEvents(c.Request.Context(), userID, groupID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, "Found "+strconv.Itoa(len(views))+" events", views)
}

// Create creates an event, expanding it if it recurs
// @Summary Create an event
// @Router /groups/{id}/events [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.AuthorizeGroup(c.Request.Context(), userID, groupID); err != nil {
		response.Fail(c, err)
		return
	}

	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.CreateEvent(c.Request.Context(), userID, CreateInput{
		GroupID:           groupID,
		Name:              req.Name,
		Description:       req.Description,
		Location:          req.Location,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		CategoryID:        req.CategoryID,
		IsRecurring:       req.IsRecurring,
		RecurrencePattern: req.RecurrencePattern,
		RecurrenceEndTime: req.RecurrenceEndTime,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}

	data := CreateEventResponse{
		EventView:      newEventView(result.Event),
		Expansion:      result.Expansion,
		ExpansionError: result.ExpansionError,
	}
	if result.InstanceCount > 0 {
		n := result.InstanceCount
		data.RecurringInstancesCreated = &n
	}
	response.OK(c, http.StatusCreated, result.Message(), data)
}

// Get returns a single event
// @Summary Get an event
// @Router /events/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}

	view, err := h.svc.GetEvent(c.Request.Context(), userID, eventID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, "", view)
}

// Next returns the group's next upcoming event
func (h *Handler) Next(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := parseID(c, "id")
	if !ok {
		return
	}

	view, err := h.svc.NextEvent(c.Request.Context(), userID, groupID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, "", view)
}

// Update edits an event within the requested scope
// @Summary Update an event
// @Param scope body string false "ThisOnly (default), ThisAndFuture or All"
// @Router /events/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.AuthorizeMutation(c.Request.Context(), userID, eventID); err != nil {
		response.Fail(c, err)
		return
	}

	var req UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	scope, err := ParseUpdateScope(req.Scope)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.UpdateEvent(c.Request.Context(), userID, eventID, UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		CategoryID:  req.CategoryID,
	}, scope)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OKCount(c, result.Message, result.Count)
}

// Delete soft-deletes an event within the requested scope
// @Summary Delete an event
// @Param scope query string false "ThisEventOnly (default), ThisAndFutureEvents or AllEvents"
// @Router /events/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}

	scope, err := ParseDeleteScope(c.Query("scope"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.DeleteEvent(c.Request.Context(), userID, eventID, scope)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OKCount(c, result.Message, result.Count)
}

// RegisterRoutes registers event routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	// Group-scoped routes
	rg.GET("/groups/:id/events", h.List)
	rg.POST("/groups/:id/events", h.Create)
	rg.GET("/groups/:id/events/next", h.Next)

	rg.GET("/events/:id", h.Get)
	rg.PUT("/events/:id", h.Update)
	rg.DELETE("/events/:id", h.Delete)
}
