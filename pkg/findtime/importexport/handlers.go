package importexport

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/findtime/findtime/pkg/findtime/auth"
	"github.com/findtime/findtime/pkg/findtime/events"
	"github.com/findtime/findtime/pkg/findtime/logging"
	"github.com/findtime/findtime/pkg/findtime/models"
	"github.com/findtime/findtime/pkg/findtime/response"
)

const maxImportBytes = 1 << 20

// Authorizer checks group membership before an import starts
type Authorizer interface {
	ValidateActiveMember(ctx context.Context, groupID, userID uint) (*models.GroupMembership, error)
}

// Handler handles calendar import and export requests
type Handler struct {
	events *events.Service
	auth   Authorizer
	now    func() time.Time
}

// NewHandler creates a new import/export handler
func NewHandler(svc *events.Service, auth Authorizer) *Handler {
	return &Handler{events: svc, auth: auth, now: time.Now}
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// writeCalendar answers 204 for an empty list: a VCALENDAR needs at least
// one component.
func (h *Handler) writeCalendar(c *gin.Context, filename string, list []events.EventView) {
	if len(list) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	var buf bytes.Buffer
	if err := WriteCalendar(&buf, NewCalendar(list, h.now())); err != nil {
		logging.Entry(c).WithError(err).Error("exporting calendar")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export calendar"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}

// Export returns the group's events as an iCalendar file
// @Summary Export a group calendar
// @Produce text/calendar
// @Router /groups/{id}/calendar.ics [get]
func (h *Handler) Export(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := parseID(c, "id")
	if !ok {
		return
	}

	list, err := h.events.ListGroupEvents(c.Request.Context(), userID, groupID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	h.writeCalendar(c, fmt.Sprintf("group-%d.ics", groupID), list)
}

// ExportSingle returns one event as an iCalendar file
// @Router /events/{id}/event.ics [get]
func (h *Handler) ExportSingle(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}

	view, err := h.events.GetEvent(c.Request.Context(), userID, eventID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	h.writeCalendar(c, fmt.Sprintf("event-%d.ics", eventID), []events.EventView{*view})
}

// Import creates one single event per VEVENT of an uploaded iCalendar body
// @Summary Import events into a group
// @Accept text/calendar
// @Router /groups/{id}/import [post]
func (h *Handler) Import(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if _, err := h.auth.ValidateActiveMember(ctx, groupID, userID); err != nil {
		response.Fail(c, err)
		return
	}

	parsed, err := ReadEvents(http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := ImportResult{
		Errors: []string{},
	}

	for i, p := range parsed {
		label := "event " + strconv.Itoa(i)
		if p.UID != "" {
			label += " (" + p.UID + ")"
		}
		if p.Err != nil {
			result.Errors = append(result.Errors, label+": "+p.Err.Error())
			result.Skipped++
			continue
		}

		_, err := h.events.CreateEvent(ctx, userID, events.CreateInput{
			GroupID:     groupID,
			Name:        p.Name,
			Description: p.Description,
			Location:    p.Location,
			StartTime:   p.StartTime,
			EndTime:     p.EndTime,
		})
		if err != nil {
			result.Errors = append(result.Errors, label+": "+err.Error())
			result.Skipped++
			continue
		}
		result.Imported++
	}

	logging.Entry(c).WithField("group_id", groupID).
		WithField("imported", result.Imported).
		WithField("skipped", result.Skipped).
		Info("calendar imported")

	c.JSON(http.StatusOK, result)
}

// RegisterRoutes registers import/export routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/groups/:id/calendar.ics", h.Export)
	rg.POST("/groups/:id/import", h.Import)
	rg.GET("/events/:id/event.ics", h.ExportSingle)
}
