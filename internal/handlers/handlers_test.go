package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskpanel/internal/apiclient"
	"taskpanel/internal/config"
	"taskpanel/internal/dashboard"
	"taskpanel/internal/models"
	"taskpanel/internal/service"
	"taskpanel/internal/session"
	"taskpanel/internal/tasks"
	"taskpanel/internal/users"
)

// recordAPI is an in-memory record API shared by every service under test.
type recordAPI struct {
	mu       sync.Mutex
	users    []models.User
	tasks    []models.Task
	nextID   int
	patchErr error
	calls    map[string]int
}

func (r *recordAPI) count(op string) {
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	r.calls[op]++
}

func (r *recordAPI) calledN(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

func (r *recordAPI) ListUsers(_ context.Context, f apiclient.UserFilter) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, u := range r.users {
		if (f.Email == "" || u.Email == f.Email) &&
			(f.Password == "" || u.Password == f.Password) &&
			(f.Role == "" || u.Role == f.Role) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *recordAPI) GetUser(_ context.Context, id string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, &apiclient.StatusError{Method: "GET", Path: "/users/" + id, StatusCode: 404}
}

func (r *recordAPI) CreateUser(_ context.Context, u models.User) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count("CreateUser")
	r.nextID++
	u.ID = "u" + strconv.Itoa(r.nextID)
	r.users = append(r.users, u)
	return u, nil
}

func (r *recordAPI) PatchUser(_ context.Context, id string, p models.UserPatch) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.patchErr != nil {
		return models.User{}, r.patchErr
	}
	for i, u := range r.users {
		if u.ID != id {
			continue
		}
		if p.Status != nil {
			u.Status = *p.Status
		}
		if p.Role != nil {
			u.Role = *p.Role
		}
		if p.Permissions != nil {
			perms := *p.Permissions
			u.Permissions = &perms
		}
		r.users[i] = u
		return u, nil
	}
	return models.User{}, &apiclient.StatusError{Method: "PATCH", Path: "/users/" + id, StatusCode: 404}
}

func (r *recordAPI) ListTasks(_ context.Context, f apiclient.TaskFilter) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Task
	for _, t := range r.tasks {
		if f.UserID == "" || t.UserID == f.UserID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *recordAPI) CreateTask(_ context.Context, t models.Task) (models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count("CreateTask")
	r.nextID++
	t.ID = "t" + strconv.Itoa(r.nextID)
	r.tasks = append(r.tasks, t)
	return t, nil
}

func (r *recordAPI) PatchTask(_ context.Context, id string, p models.TaskPatch) (models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count("PatchTask")
	if r.patchErr != nil {
		return models.Task{}, r.patchErr
	}
	for i, t := range r.tasks {
		if t.ID == id {
			r.tasks[i] = p.Apply(t)
			return r.tasks[i], nil
		}
	}
	return models.Task{}, &apiclient.StatusError{Method: "PATCH", Path: "/tasks/" + id, StatusCode: 404}
}

func (r *recordAPI) DeleteTask(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count("DeleteTask")
	for i, t := range r.tasks {
		if t.ID == id {
			r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
			return nil
		}
	}
	return &apiclient.StatusError{Method: "DELETE", Path: "/tasks/" + id, StatusCode: 404}
}

// sessions issues "token-<sid>" tokens and resolves them back.
type sessions struct {
	mu   sync.Mutex
	byID map[string]*session.Session
	seq  int
}

func (s *sessions) SignIn(_ context.Context, sess *session.Session, user models.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	sess.ID = "sid" + strconv.Itoa(s.seq)
	sess.Set(user)
	stored := *sess
	s.byID[sess.ID] = &stored
	return "token-" + sess.ID, nil
}

func (s *sessions) SignOut(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, sess.ID)
	sess.Clear()
	return nil
}

func (s *sessions) Resolve(_ context.Context, token string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(token) > len("token-") {
		if stored, ok := s.byID[token[len("token-"):]]; ok {
			cp := *stored
			return &cp, nil
		}
	}
	return session.Empty(), nil
}

type harness struct {
	api    *recordAPI
	boards *tasks.Registry
	router *gin.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api := &recordAPI{
		users: []models.User{
			{ID: "admin", Name: "Root", Email: "root@x.io", Password: "pw-admin1", Role: models.UserRoleAdmin, Status: models.UserStatusActive},
			{ID: "mgr", Name: "Mia", Email: "mia@x.io", Password: "pw-mgr123", Role: models.UserRoleManager, Status: models.UserStatusActive},
			{ID: "ann", Name: "Ann", Email: "ann@x.io", Password: "pw-ann123", Role: models.UserRoleUser, Status: models.UserStatusActive,
				Permissions: &models.Permissions{Add: true, Delete: true, Update: true}},
			{ID: "ned", Name: "Ned", Email: "ned@x.io", Password: "pw-ned123", Role: models.UserRoleUser, Status: models.UserStatusInactive},
		},
		tasks: []models.Task{
			{ID: "t-a1", Title: "one", Description: "first", UserID: "ann"},
			{ID: "t-a2", Title: "two", Description: "second", UserID: "ann", Completed: true},
		},
	}
	sess := &sessions{byID: map[string]*session.Session{}}
	log := zerolog.Nop()
	boards := tasks.NewRegistry(api, log, nil)

	cfg := &config.AppConfig{
		Environment: "test",
		Session:     config.SessionConfig{CookieName: "panel_session", TTL: time.Hour},
	}
	hs := NewHandlerSet(Deps{
		Config:    cfg,
		Log:       log,
		Auth:      service.NewAuthService(api, sess, nil, log),
		Sessions:  sess,
		Boards:    boards,
		Dashboard: dashboard.NewService(api),
		Users:     users.NewService(api, nil, log),
		Checks: map[string]Pinger{
			"recordapi": PingFunc(func(context.Context) error { return nil }),
		},
	})

	r := gin.New()
	hs.Register(r.Group(""))
	return &harness{api: api, boards: boards, router: r}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) login(t *testing.T, email, password string) string {
	t.Helper()
	w := h.do(t, http.MethodPost, "/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	require.Equal(t, "/dashboard", resp.Redirect)

	cookie := w.Result().Cookies()
	require.NotEmpty(t, cookie)
	assert.Equal(t, "panel_session", cookie[0].Name)
	assert.True(t, cookie[0].HttpOnly)
	return resp.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func noticeOf(t *testing.T, w *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	n, ok := decode(t, w)["notice"].(map[string]any)
	require.True(t, ok, w.Body.String())
	return n["variant"].(string), n["message"].(string)
}

func TestLogin_Outcomes(t *testing.T) {
	h := newHarness(t)

	h.login(t, "ann@x.io", "pw-ann123")

	w := h.do(t, http.MethodPost, "/login", "", gin.H{"email": "ned@x.io", "password": "pw-ned123"})
	require.Equal(t, http.StatusForbidden, w.Code)
	variant, msg := noticeOf(t, w)
	require.Equal(t, "destructive", variant)
	require.Equal(t, "Your account is inactive. Please contact support.", msg)

	w = h.do(t, http.MethodPost, "/login", "", gin.H{"email": "ghost@x.io", "password": "whatever"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	_, msg = noticeOf(t, w)
	require.Equal(t, "Invalid credentials.", msg)

	w = h.do(t, http.MethodPost, "/login", "", gin.H{"email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/register", "", gin.H{
		"name": "Cy", "email": "cy@x.io", "password": "long-enough", "confirmPassword": "long-enough",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Equal(t, "/login", decode(t, w)["redirect"])
	require.NotContains(t, w.Body.String(), "long-enough")

	w = h.do(t, http.MethodPost, "/register", "", gin.H{
		"name": "Ann 2", "email": "ann@x.io", "password": "long-enough", "confirmPassword": "long-enough",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	_, msg := noticeOf(t, w)
	require.Equal(t, "A user with this email already exists.", msg)
	require.Equal(t, 1, h.api.calledN("CreateUser"))

	w = h.do(t, http.MethodPost, "/register", "", gin.H{
		"name": "Dee", "email": "dee@x.io", "password": "long-enough", "confirmPassword": "different",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	_, msg = noticeOf(t, w)
	require.Equal(t, "Passwords do not match.", msg)

	w = h.do(t, http.MethodPost, "/register", "", gin.H{
		"name": "Dee", "email": "dee@x.io", "password": "short", "confirmPassword": "short",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, 1, h.api.calledN("CreateUser"))
}

func TestGuardRedirects(t *testing.T) {
	h := newHarness(t)
	user := h.login(t, "ann@x.io", "pw-ann123")
	admin := h.login(t, "root@x.io", "pw-admin1")
	manager := h.login(t, "mia@x.io", "pw-mgr123")

	cases := []struct {
		token    string
		path     string
		location string
	}{
		{"", "/dashboard", "/login"},
		{"", "/dashboard/tasks", "/login"},
		{user, "/dashboard/manage", "/unauthorized"},
		{user, "/dashboard/permission", "/unauthorized"},
		{admin, "/dashboard/tasks", "/unauthorized"},
		{manager, "/dashboard/manage", "/unauthorized"},
		{user, "/dashboard/tasks", ""},
		{admin, "/dashboard/manage", ""},
		{manager, "/dashboard/permission", ""},
	}
	for _, tc := range cases {
		w := h.do(t, http.MethodGet, tc.path, tc.token, nil)
		if tc.location == "" {
			assert.Equal(t, http.StatusOK, w.Code, tc.path)
			continue
		}
		assert.Equal(t, http.StatusSeeOther, w.Code, tc.path)
		assert.Equal(t, tc.location, w.Header().Get("Location"), tc.path)
	}

	// guarded actions redirect too
	w := h.do(t, http.MethodPost, "/dashboard/tasks/t-a1/delete", admin, nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Zero(t, h.api.calledN("PatchTask"))
}

func TestDashboardPerRole(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/dashboard", h.login(t, "ann@x.io", "pw-ann123"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	data := body["data"].(map[string]any)
	require.Equal(t, "user", data["role"])
	summary := data["summary"].(map[string]any)
	require.EqualValues(t, 2, summary["totalUserTasks"])
	require.EqualValues(t, 1, summary["completedTasks"])

	nav := body["navigation"].([]any)
	require.Len(t, nav, 2)
	require.Equal(t, "/dashboard/tasks", nav[1].(map[string]any)["path"])

	w = h.do(t, http.MethodGet, "/dashboard", h.login(t, "root@x.io", "pw-admin1"), nil)
	summary = decode(t, w)["data"].(map[string]any)["summary"].(map[string]any)
	require.EqualValues(t, 4, summary["totalUsers"])
	require.EqualValues(t, 1, summary["totalManagers"])
}

func TestTaskBoardFlow(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, "ann@x.io", "pw-ann123")

	w := h.do(t, http.MethodGet, "/dashboard/tasks", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodPost, "/dashboard/tasks", token, gin.H{"title": "", "description": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	_, msg := noticeOf(t, w)
	require.Equal(t, "Please fill in both title and description for the new task.", msg)
	require.Zero(t, h.api.calledN("CreateTask"))

	w = h.do(t, http.MethodPost, "/dashboard/tasks", token, gin.H{"title": "three", "description": "third"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = h.do(t, http.MethodPost, "/dashboard/tasks/t-a1/delete", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodDelete, "/dashboard/tasks/t-a1", token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code, "confirmation required")
	require.Zero(t, h.api.calledN("DeleteTask"))

	w = h.do(t, http.MethodDelete, "/dashboard/tasks/t-a1?confirm=true", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, h.api.calledN("DeleteTask"))

	w = h.do(t, http.MethodPost, "/dashboard/tasks/t-a2/edit", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodPut, "/dashboard/tasks/t-a2/edit", token, gin.H{"title": "two!", "description": "second!"})
	require.Equal(t, http.StatusOK, w.Code)

	board := decode(t, w)["board"].(map[string]any)
	list := board["tasks"].([]any)
	require.Len(t, list, 2)
	require.Equal(t, "two!", list[0].(map[string]any)["title"])
}

func TestTaskMutation_RollbackNotice(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, "ann@x.io", "pw-ann123")
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/dashboard/tasks", token, nil).Code)

	h.api.patchErr = &apiclient.StatusError{Method: "PATCH", Path: "/tasks/t-a1", StatusCode: 500}
	w := h.do(t, http.MethodPost, "/dashboard/tasks/t-a1/complete", token, nil)
	require.Equal(t, http.StatusBadGateway, w.Code)

	variant, msg := noticeOf(t, w)
	require.Equal(t, "destructive", variant)
	require.Equal(t, "Failed to update task.", msg)

	body := decode(t, w)
	require.Equal(t, "failed", body["mutation"].(map[string]any)["state"])
	first := body["board"].(map[string]any)["tasks"].([]any)[0].(map[string]any)
	require.Equal(t, false, first["completed"])
}

func TestTaskPermissionDenied(t *testing.T) {
	h := newHarness(t)
	h.api.users[2].Permissions = &models.Permissions{}
	token := h.login(t, "ann@x.io", "pw-ann123")

	w := h.do(t, http.MethodPost, "/dashboard/tasks/t-a1/complete", token, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	_, msg := noticeOf(t, w)
	require.Equal(t, "You don't have update permission.", msg)
	require.Zero(t, h.api.calledN("PatchTask"))
}

func TestManageAndPermissions(t *testing.T) {
	h := newHarness(t)
	admin := h.login(t, "root@x.io", "pw-admin1")
	manager := h.login(t, "mia@x.io", "pw-mgr123")

	w := h.do(t, http.MethodGet, "/dashboard/manage", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode(t, w)["data"].(map[string]any)["users"].([]any)
	require.Len(t, listed, 3)

	w = h.do(t, http.MethodPost, "/dashboard/manage/ned/status", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "active", decode(t, w)["user"].(map[string]any)["status"])

	w = h.do(t, http.MethodPut, "/dashboard/manage/ned/role", admin, gin.H{"role": "admin"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPut, "/dashboard/manage/ned/role", admin, gin.H{"role": "manager"})
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet, "/dashboard/permission", manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rows := decode(t, w)["data"].(map[string]any)["users"].([]any)
	require.Len(t, rows, 1, "ned is a manager now")

	w = h.do(t, http.MethodPost, "/dashboard/permission/ann/add", manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	perms := decode(t, w)["users"].([]any)[0].(map[string]any)["permissions"].(map[string]any)
	require.Equal(t, false, perms["add"])
	require.Equal(t, true, perms["delete"])
}

func TestManage_UpstreamFailure(t *testing.T) {
	h := newHarness(t)
	admin := h.login(t, "root@x.io", "pw-admin1")
	h.api.patchErr = errors.New("connection refused")

	w := h.do(t, http.MethodPost, "/dashboard/manage/ned/status", admin, nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	_, msg := noticeOf(t, w)
	require.Equal(t, "Failed to update user status.", msg)
	require.Equal(t, models.UserStatusInactive, h.api.users[3].Status)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, "ann@x.io", "pw-ann123")

	w := h.do(t, http.MethodPost, "/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "/login", decode(t, w)["redirect"])

	w = h.do(t, http.MethodGet, "/dashboard", token, nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/login", w.Header().Get("Location"))
}

func TestLogin_AgainDropsPreviousBoard(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, "ann@x.io", "pw-ann123")
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/dashboard/tasks", token, nil).Code)
	require.Equal(t, 1, h.boards.Len())

	w := h.do(t, http.MethodPost, "/login", token, gin.H{"email": "ann@x.io", "password": "pw-ann123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Zero(t, h.boards.Len())
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", decode(t, w)["dependencies"].(map[string]any)["recordapi"])
}
