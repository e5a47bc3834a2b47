package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"taskpanel/internal/access"
	"taskpanel/internal/models"
	"taskpanel/internal/session"
)

type fakeResolver struct {
	sessions map[string]*session.Session
	seen     []string
}

func (f *fakeResolver) Resolve(_ context.Context, token string) (*session.Session, error) {
	f.seen = append(f.seen, token)
	if s, ok := f.sessions[token]; ok {
		return s, nil
	}
	if token == "" {
		return session.Empty(), nil
	}
	return session.Empty(), errors.New("bad token")
}

func signedIn(role models.UserRole) *session.Session {
	s := session.Empty()
	s.ID = "sid-" + string(role)
	s.Set(models.User{ID: "u-" + string(role), Role: role})
	return s
}

func newGuardedRouter(resolver SessionResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Session(resolver, "panel_session", zerolog.Nop()))
	ok := func(c *gin.Context) { c.String(http.StatusOK, CurrentSession(c).UserID()) }
	r.GET("/dashboard", Guard(access.ViewDashboard), ok)
	r.GET("/dashboard/tasks", Guard(access.ViewTasks), ok)
	r.GET("/dashboard/manage", Guard(access.ViewManage), ok)
	r.GET("/login", Guard(access.ViewLogin), ok)
	return r
}

func TestGuard(t *testing.T) {
	resolver := &fakeResolver{sessions: map[string]*session.Session{
		"admin-token": signedIn(models.UserRoleAdmin),
		"user-token":  signedIn(models.UserRoleUser),
	}}
	r := newGuardedRouter(resolver)

	cases := []struct {
		name     string
		path     string
		bearer   string
		cookie   string
		status   int
		location string
	}{
		{"anonymous to dashboard", "/dashboard", "", "", http.StatusSeeOther, "/login"},
		{"anonymous to login", "/login", "", "", http.StatusOK, ""},
		{"forged token", "/dashboard", "forged", "", http.StatusSeeOther, "/login"},
		{"user to tasks via cookie", "/dashboard/tasks", "", "user-token", http.StatusOK, ""},
		{"user to manage", "/dashboard/manage", "user-token", "", http.StatusSeeOther, "/unauthorized"},
		{"admin to manage", "/dashboard/manage", "admin-token", "", http.StatusOK, ""},
		{"admin to tasks", "/dashboard/tasks", "admin-token", "", http.StatusSeeOther, "/unauthorized"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tc.bearer)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "panel_session", Value: tc.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tc.status, w.Code)
			require.Equal(t, tc.location, w.Header().Get("Location"))
			if tc.status == http.StatusSeeOther {
				require.Empty(t, w.Body.String())
			}
		})
	}
}

func TestSessionToken_BearerWins(t *testing.T) {
	resolver := &fakeResolver{}
	r := newGuardedRouter(resolver)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("Authorization", "Bearer from-header")
	req.AddCookie(&http.Cookie{Name: "panel_session", Value: "from-cookie"})
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, []string{"from-header"}, resolver.seen)
}

func TestRequestID(t *testing.T) {
	r := newGuardedRouter(&fakeResolver{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))
	_, err := uuid.Parse(w.Header().Get(requestIDHeader))
	require.NoError(t, err)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set(requestIDHeader, id)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, id, w.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set(requestIDHeader, "<script>")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.NotEqual(t, "<script>", w.Header().Get(requestIDHeader))
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(zerolog.Nop()))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "destructive")
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://panel.example"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://panel.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://panel.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
