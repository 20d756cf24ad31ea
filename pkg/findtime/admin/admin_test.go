package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/findtime/findtime/pkg/findtime/auth"
	"github.com/findtime/findtime/pkg/findtime/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	return db
}

func setupTestRouter(db *gorm.DB, admin *models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	rg := r.Group("/admin", func(c *gin.Context) {
		c.Set(auth.ContextKeyUserID, admin.ID)
		c.Set(auth.ContextKeySystemRole, string(models.SystemRoleAdmin))
	})
	NewHandler(db).RegisterRoutes(rg)
	return r
}

func createTestUser(t *testing.T, db *gorm.DB, email, firstName string, role models.SystemRole) *models.User {
	hashedPassword, _ := auth.HashPassword("password123")
	user := &models.User{
		Email:        email,
		FirstName:    firstName,
		PasswordHash: hashedPassword,
		SystemRole:   role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func createTestGroup(t *testing.T, db *gorm.DB, admin *models.User) *models.Group {
	group := &models.Group{Name: "Team", AdminID: admin.ID}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("Failed to create test group: %v", err)
	}
	db.Create(&models.GroupMembership{UserID: admin.ID, GroupID: group.ID, IsActive: true, JoinedAt: time.Now()})
	return group
}

func createTestEvent(t *testing.T, db *gorm.DB, group *models.Group, creator *models.User, master *models.Event) *models.Event {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	event := &models.Event{Name: "Event", GroupID: group.ID, StartTime: start, EndTime: start.Add(time.Hour), CreatorUserID: creator.ID}
	if master != nil {
		pattern := models.RecurrenceWeekly
		event.IsRecurring = true
		event.RecurrencePattern = &pattern
		if master.ID != 0 {
			event.RecurringGroupID = &master.ID
		}
	}
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("Failed to create test event: %v", err)
	}
	return event
}

func TestListUsers(t *testing.T) {
	db := setupTestDB(t)

	admin := createTestUser(t, db, "admin@test.com", "Admin", models.SystemRoleAdmin)
	john := createTestUser(t, db, "john@test.com", "John", models.SystemRoleUser)
	createTestUser(t, db, "jane@test.com", "Jane", models.SystemRoleUser)
	gone := createTestUser(t, db, "gone@test.com", "Gone", models.SystemRoleUser)
	db.Delete(gone)

	group := createTestGroup(t, db, john)
	createTestEvent(t, db, group, john, nil)
	createTestEvent(t, db, group, john, nil)

	r := setupTestRouter(db, admin)

	req := httptest.NewRequest("GET", "/admin/users", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var users []UserResponse
	if err := json.Unmarshal(w.Body.Bytes(), &users); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if len(users) != 3 {
		t.Fatalf("Expected 3 users, got %d", len(users))
	}
	for _, u := range users {
		if u.ID == john.ID && (u.EventCount != 2 || u.GroupCount != 1) {
			t.Errorf("Expected 2 events and 1 group for john, got %d and %d", u.EventCount, u.GroupCount)
		}
	}
}

func TestListUsersWithSearch(t *testing.T) {
	db := setupTestDB(t)

	admin := createTestUser(t, db, "admin@test.com", "Admin", models.SystemRoleAdmin)
	createTestUser(t, db, "john@test.com", "John", models.SystemRoleUser)
	createTestUser(t, db, "jane@test.com", "Jane", models.SystemRoleUser)

	r := setupTestRouter(db, admin)

	req := httptest.NewRequest("GET", "/admin/users?q=john", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var users []UserResponse
	json.Unmarshal(w.Body.Bytes(), &users)

	if len(users) != 1 {
		t.Errorf("Expected 1 user matching search, got %d", len(users))
	}

	req = httptest.NewRequest("GET", "/admin/users?role=admin", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	json.Unmarshal(w.Body.Bytes(), &users)

	if len(users) != 1 || users[0].Email != "admin@test.com" {
		t.Errorf("Expected only the admin, got %+v", users)
	}
}

func TestDeleteUser(t *testing.T) {
	db := setupTestDB(t)

	admin := createTestUser(t, db, "admin@test.com", "Admin", models.SystemRoleAdmin)
	user := createTestUser(t, db, "user@test.com", "User", models.SystemRoleUser)
	group := createTestGroup(t, db, admin)
	db.Create(&models.GroupMembership{UserID: user.ID, GroupID: group.ID, IsActive: true, JoinedAt: time.Now()})

	r := setupTestRouter(db, admin)

	req := httptest.NewRequest("DELETE", fmt.Sprintf("/admin/users/%d", user.ID), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var deleted models.User
	if err := db.Unscoped().First(&deleted, user.ID).Error; err != nil {
		t.Fatalf("Expected user row to remain: %v", err)
	}
	if !deleted.IsDeleted() {
		t.Error("Expected user to be soft deleted")
	}

	var active int64
	db.Model(&models.GroupMembership{}).Where("user_id = ? AND is_active = ?", user.ID, true).Count(&active)
	if active != 0 {
		t.Errorf("Expected memberships deactivated, got %d active", active)
	}

	req = httptest.NewRequest("DELETE", fmt.Sprintf("/admin/users/%d", user.ID), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for deleted user, got %d", w.Code)
	}
}

func TestDeleteUserCannotDeleteSelf(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin@test.com", "Admin", models.SystemRoleAdmin)
	r := setupTestRouter(db, admin)

	req := httptest.NewRequest("DELETE", fmt.Sprintf("/admin/users/%d", admin.ID), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestGetStats(t *testing.T) {
	db := setupTestDB(t)

	admin := createTestUser(t, db, "admin@test.com", "Admin", models.SystemRoleAdmin)
	user := createTestUser(t, db, "user@test.com", "User", models.SystemRoleUser)
	group := createTestGroup(t, db, user)

	createTestEvent(t, db, group, user, nil)
	master := createTestEvent(t, db, group, user, &models.Event{})
	createTestEvent(t, db, group, user, master)
	removed := createTestEvent(t, db, group, user, master)
	db.Delete(removed)

	r := setupTestRouter(db, admin)

	req := httptest.NewRequest("GET", "/admin/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var stats StatsResponse
	json.Unmarshal(w.Body.Bytes(), &stats)

	if stats.TotalUsers != 2 {
		t.Errorf("Expected 2 users, got %d", stats.TotalUsers)
	}
	if stats.TotalGroups != 1 {
		t.Errorf("Expected 1 group, got %d", stats.TotalGroups)
	}
	if stats.TotalEvents != 3 {
		t.Errorf("Expected 3 live events, got %d", stats.TotalEvents)
	}
	if stats.RecurringSeries != 1 {
		t.Errorf("Expected 1 recurring series, got %d", stats.RecurringSeries)
	}
	if stats.DeletedEvents != 1 {
		t.Errorf("Expected 1 deleted event, got %d", stats.DeletedEvents)
	}
	if stats.AdminUsers != 1 {
		t.Errorf("Expected 1 admin user, got %d", stats.AdminUsers)
	}
}
