package users

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/findtime/findtime/pkg/findtime/auth"
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

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	users := r.Group("/users")
	users.Use(auth.AuthMiddleware())
	NewHandler(db).RegisterRoutes(users)
	return r
}

func createTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	hash, _ := auth.HashPassword("password123")
	user := models.User{Email: email, PasswordHash: hash, FirstName: "Test", LastName: "User"}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func doRequest(router *gin.Engine, method, path string, user models.User, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	token, _ := auth.GenerateToken(user.ID, user.Email, string(user.SystemRole))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetProfile(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	viewer := createTestUser(t, db, "viewer@example.com")
	target := createTestUser(t, db, "target@example.com")

	w := doRequest(router, "GET", fmt.Sprintf("/users/%d", target.ID), viewer, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var profile ProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, "target@example.com", profile.Email)
	assert.Equal(t, "Test User", profile.DisplayName)

	db.Delete(&target)
	w = doRequest(router, "GET", fmt.Sprintf("/users/%d", target.ID), viewer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, "GET", "/users/abc", viewer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateMe(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "me@example.com")

	first := "Ada"
	birthday := time.Date(1990, 12, 10, 0, 0, 0, 0, time.UTC)
	w := doRequest(router, "PUT", "/users/me", user, UpdateProfileRequest{FirstName: &first, Birthday: &birthday})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var reloaded models.User
	db.First(&reloaded, user.ID)
	assert.Equal(t, "Ada", reloaded.FirstName)
	assert.Equal(t, "User", reloaded.LastName)
	require.NotNil(t, reloaded.Birthday)
	assert.True(t, reloaded.Birthday.Equal(birthday))

	blank := "  "
	w = doRequest(router, "PUT", "/users/me", user, UpdateProfileRequest{FirstName: &blank})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteMe(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	admin := createTestUser(t, db, "admin@example.com")
	user := createTestUser(t, db, "me@example.com")

	group := models.Group{Name: "Team", AdminID: admin.ID}
	db.Create(&group)
	db.Create(&models.GroupMembership{UserID: admin.ID, GroupID: group.ID, IsActive: true, JoinedAt: time.Now()})
	db.Create(&models.GroupMembership{UserID: user.ID, GroupID: group.ID, IsActive: true, JoinedAt: time.Now()})

	w := doRequest(router, "DELETE", "/users/me", admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(router, "DELETE", "/users/me", user, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var deleted models.User
	require.NoError(t, db.Unscoped().First(&deleted, user.ID).Error)
	assert.True(t, deleted.IsDeleted())

	var m models.GroupMembership
	db.Where("user_id = ? AND group_id = ?", user.ID, group.ID).First(&m)
	assert.False(t, m.IsActive)
}
