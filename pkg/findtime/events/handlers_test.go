package events

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/findtime/findtime/pkg/findtime/auth"
	"github.com/findtime/findtime/pkg/findtime/models"
)

func setupTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api")
	api.Use(auth.AuthMiddleware())
	NewHandler(svc).RegisterRoutes(api)
	return r
}

func getAuthHeader(user models.User) string {
	token, _ := auth.GenerateToken(user.ID, user.Email, string(user.SystemRole))
	return "Bearer " + token
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Count   *int            `json:"count"`
}

func doRequest(t *testing.T, r *gin.Engine, method, path string, user models.User, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(user))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestEventHandlersLifecycle(t *testing.T) {
	env := newTestEnv(t)
	router := setupTestRouter(env.svc)
	groupPath := "/api/groups/" + strconv.Itoa(int(env.group.ID)) + "/events"

	w, resp := doRequest(t, router, "POST", groupPath, env.member, map[string]interface{}{
		"name":                "Weekly sync",
		"start_time":          "2025-01-06T10:00:00Z",
		"end_time":            "2025-01-06T11:00:00Z",
		"is_recurring":        true,
		"recurrence_pattern":  "Weekly",
		"recurrence_end_time": "2025-01-27T00:00:00Z",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	if resp.Message != "Event created with 3 recurring instances" {
		t.Errorf("Unexpected message %q", resp.Message)
	}
	var created CreateEventResponse
	json.Unmarshal(resp.Data, &created)
	if created.RecurringInstancesCreated == nil || *created.RecurringInstancesCreated != 3 {
		t.Errorf("Expected 3 instances, got %v", created.RecurringInstancesCreated)
	}
	if created.Expansion != ExpansionComplete {
		t.Errorf("Expected expansion complete, got %s", created.Expansion)
	}

	w, resp = doRequest(t, router, "GET", groupPath, env.member, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var list []EventView
	json.Unmarshal(resp.Data, &list)
	if len(list) != 4 {
		t.Fatalf("Expected 4 events, got %d", len(list))
	}

	w, resp = doRequest(t, router, "PUT", "/api/events/"+strconv.Itoa(int(list[1].ID)), env.member, map[string]interface{}{
		"name":       "Standup",
		"start_time": "2025-01-13T14:00:00Z",
		"end_time":   "2025-01-13T15:00:00Z",
		"scope":      "ThisAndFuture",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp.Count == nil || *resp.Count != 3 {
		t.Errorf("Expected count 3, got %v", resp.Count)
	}

	w, resp = doRequest(t, router, "DELETE", "/api/events/"+strconv.Itoa(int(list[2].ID))+"?scope=AllEvents", env.member, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp.Count == nil || *resp.Count != 4 {
		t.Errorf("Expected count 4, got %v", resp.Count)
	}

	w, resp = doRequest(t, router, "GET", groupPath, env.member, nil)
	json.Unmarshal(resp.Data, &list)
	if len(list) != 0 {
		t.Errorf("Expected no events after delete, got %d", len(list))
	}
}

func TestEventHandlersErrors(t *testing.T) {
	env := newTestEnv(t)
	router := setupTestRouter(env.svc)
	groupPath := "/api/groups/" + strconv.Itoa(int(env.group.ID)) + "/events"
	body := map[string]interface{}{
		"name":       "Lunch",
		"start_time": "2025-02-01T12:00:00Z",
		"end_time":   "2025-02-01T13:00:00Z",
	}

	w, resp := doRequest(t, router, "POST", groupPath, env.outsider, body)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", w.Code)
	}
	if resp.Success {
		t.Error("Expected success=false")
	}

	w, _ = doRequest(t, router, "POST", "/api/groups/abc/events", env.member, body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad id, got %d", w.Code)
	}

	w, _ = doRequest(t, router, "POST", groupPath, env.member, map[string]interface{}{
		"name":       "Backwards",
		"start_time": "2025-02-01T12:00:00Z",
		"end_time":   "2025-02-01T11:00:00Z",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for end before start, got %d", w.Code)
	}

	w, resp = doRequest(t, router, "POST", groupPath, env.member, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var created CreateEventResponse
	json.Unmarshal(resp.Data, &created)
	eventPath := "/api/events/" + strconv.Itoa(int(created.ID))

	w, _ = doRequest(t, router, "DELETE", eventPath+"?scope=Everything", env.member, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad scope, got %d", w.Code)
	}

	w, _ = doRequest(t, router, "DELETE", eventPath, env.other, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for non-creator, got %d", w.Code)
	}

	w, _ = doRequest(t, router, "GET", "/api/events/9999", env.member, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestEventHandlersAuthorizeBeforeBinding(t *testing.T) {
	env := newTestEnv(t)
	router := setupTestRouter(env.svc)
	groupPath := "/api/groups/" + strconv.Itoa(int(env.group.ID)) + "/events"

	w, _ := doRequest(t, router, "POST", groupPath, env.outsider, "not an event")
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for outsider with malformed body, got %d", w.Code)
	}
	w, _ = doRequest(t, router, "POST", groupPath, env.member, "not an event")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for member with malformed body, got %d", w.Code)
	}

	w, resp := doRequest(t, router, "POST", groupPath, env.member, map[string]interface{}{
		"name":       "Lunch",
		"start_time": "2025-02-01T12:00:00Z",
		"end_time":   "2025-02-01T13:00:00Z",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var created CreateEventResponse
	json.Unmarshal(resp.Data, &created)
	eventPath := "/api/events/" + strconv.Itoa(int(created.ID))

	for _, user := range []models.User{env.outsider, env.other} {
		w, _ = doRequest(t, router, "PUT", eventPath, user, "not an event")
		if w.Code != http.StatusForbidden {
			t.Errorf("Expected status 403 for %s with malformed body, got %d", user.Email, w.Code)
		}
	}
	w, _ = doRequest(t, router, "PUT", "/api/events/9999", env.member, "not an event")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for missing event, got %d", w.Code)
	}
	w, _ = doRequest(t, router, "PUT", eventPath, env.member, "not an event")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for creator with malformed body, got %d", w.Code)
	}
}
