package importexport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/findtime/findtime/pkg/findtime/auth"
	"github.com/findtime/findtime/pkg/findtime/events"
	"github.com/findtime/findtime/pkg/findtime/membership"
	"github.com/findtime/findtime/pkg/findtime/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	user := models.User{Email: email, FirstName: "Test", PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createTestGroup(t *testing.T, db *gorm.DB, admin models.User) models.Group {
	group := models.Group{Name: "Team", AdminID: admin.ID}
	require.NoError(t, db.Create(&group).Error)
	require.NoError(t, db.Create(&models.GroupMembership{UserID: admin.ID, GroupID: group.ID, IsActive: true, JoinedAt: time.Now()}).Error)
	return group
}

func setupTestRouter(db *gorm.DB) (*gin.Engine, *events.Service) {
	gin.SetMode(gin.TestMode)
	oracle := membership.NewOracle(db)
	svc := events.NewService(events.NewGormStore(db), oracle)
	h := NewHandler(svc, oracle)
	h.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	r := gin.New()
	api := r.Group("/api")
	api.Use(auth.AuthMiddleware())
	h.RegisterRoutes(api)
	return r, svc
}

func doRequest(r *gin.Engine, method, path string, user models.User, body []byte) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "text/calendar")
	token, _ := auth.GenerateToken(user.ID, user.Email, string(user.SystemRole))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(strings.TrimLeft(s, "\n"), "\n", "\r\n"))
}

const sampleCalendar = `
BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//example//EN
BEGIN:VEVENT
UID:one@example.com
DTSTAMP:20250101T000000Z
SUMMARY:Planning
DESCRIPTION:Quarterly planning
LOCATION:Room 4
DTSTART:20250310T090000Z
DTEND:20250310T103000Z
END:VEVENT
BEGIN:VEVENT
UID:two@example.com
DTSTAMP:20250101T000000Z
SUMMARY:Offsite
DTSTART;VALUE=DATE:20250320
END:VEVENT
BEGIN:VEVENT
UID:three@example.com
DTSTAMP:20250101T000000Z
SUMMARY:No start
END:VEVENT
BEGIN:VEVENT
UID:four@example.com
DTSTAMP:20250101T000000Z
SUMMARY:Backwards
DTSTART:20250311T100000Z
DTEND:20250311T090000Z
END:VEVENT
END:VCALENDAR
`

func TestReadEvents(t *testing.T) {
	parsed, err := ReadEvents(bytes.NewReader(crlf(sampleCalendar)))
	require.NoError(t, err)
	require.Len(t, parsed, 4)

	first := parsed[0]
	assert.NoError(t, first.Err)
	assert.Equal(t, "Planning", first.Name)
	assert.Equal(t, "Room 4", first.Location)
	assert.True(t, first.StartTime.Equal(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)))
	assert.True(t, first.EndTime.Equal(time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC)))

	allDay := parsed[1]
	assert.NoError(t, allDay.Err)
	assert.Equal(t, 24*time.Hour, allDay.EndTime.Sub(allDay.StartTime))

	assert.Error(t, parsed[2].Err)
}

func TestReadEventsMalformed(t *testing.T) {
	_, err := ReadEvents(strings.NewReader("BEGIN:VCALENDAR\r\nthis is not ical\r\n"))
	assert.Error(t, err)
}

func TestImport(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)
	user := createTestUser(t, db, "user@example.com")
	group := createTestGroup(t, db, user)

	w := doRequest(router, "POST", fmt.Sprintf("/api/groups/%d/import", group.ID), user, crlf(sampleCalendar))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result ImportResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, result.Errors, 2)

	var stored []models.Event
	db.Where("group_id = ?", group.ID).Order("start_time").Find(&stored)
	require.Len(t, stored, 2)
	assert.Equal(t, "Planning", stored[0].Name)
	assert.Equal(t, user.ID, stored[0].CreatorUserID)
	assert.False(t, stored[0].IsRecurring)
}

func TestImportNotMember(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)
	owner := createTestUser(t, db, "owner@example.com")
	outsider := createTestUser(t, db, "outsider@example.com")
	group := createTestGroup(t, db, owner)

	w := doRequest(router, "POST", fmt.Sprintf("/api/groups/%d/import", group.ID), outsider, crlf(sampleCalendar))
	assert.Equal(t, http.StatusForbidden, w.Code)

	var count int64
	db.Model(&models.Event{}).Count(&count)
	assert.Zero(t, count)
}

func TestExportGroupCalendar(t *testing.T) {
	db := setupTestDB(t)
	router, svc := setupTestRouter(db)
	user := createTestUser(t, db, "user@example.com")
	group := createTestGroup(t, db, user)

	pattern := models.RecurrenceWeekly
	until := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	start := time.Date(2025, 1, 13, 9, 0, 0, 0, time.UTC)
	created, err := svc.CreateEvent(context.Background(), user.ID, events.CreateInput{
		GroupID: group.ID, Name: "Weekly", StartTime: start, EndTime: start.Add(time.Hour),
		IsRecurring: true, RecurrencePattern: &pattern, RecurrenceEndTime: &until,
	})
	require.NoError(t, err)
	require.Equal(t, events.ExpansionComplete, created.Expansion)

	removed := created.Event.ID + 1
	_, err = svc.DeleteEvent(context.Background(), user.ID, removed, events.DeleteThisEventOnly)
	require.NoError(t, err)

	w := doRequest(router, "GET", fmt.Sprintf("/api/groups/%d/calendar.ics", group.ID), user, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "group-")

	body := w.Body.String()
	assert.NotContains(t, body, "RRULE")
	assert.NotContains(t, body, eventUID(removed))

	parsed, err := ReadEvents(strings.NewReader(body))
	require.NoError(t, err)
	// The master plus its instances, minus the deleted one.
	assert.Len(t, parsed, created.InstanceCount)
	for _, p := range parsed {
		assert.Equal(t, "Weekly", p.Name)
		assert.Equal(t, time.Hour, p.EndTime.Sub(p.StartTime))
	}
}

func TestExportEmptyGroup(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)
	user := createTestUser(t, db, "user@example.com")
	group := createTestGroup(t, db, user)

	w := doRequest(router, "GET", fmt.Sprintf("/api/groups/%d/calendar.ics", group.ID), user, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestExportSingleEvent(t *testing.T) {
	db := setupTestDB(t)
	router, svc := setupTestRouter(db)
	user := createTestUser(t, db, "user@example.com")
	outsider := createTestUser(t, db, "outsider@example.com")
	group := createTestGroup(t, db, user)

	start := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	created, err := svc.CreateEvent(context.Background(), user.ID, events.CreateInput{
		GroupID: group.ID, Name: "Lunch", Location: "Cafe", StartTime: start, EndTime: start.Add(time.Hour),
	})
	require.NoError(t, err)

	path := fmt.Sprintf("/api/events/%d/event.ics", created.Event.ID)
	w := doRequest(router, "GET", path, user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), eventUID(created.Event.ID))
	assert.Contains(t, w.Body.String(), "LOCATION:Cafe")

	w = doRequest(router, "GET", path, outsider, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(router, "GET", "/api/events/999/event.ics", user, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
