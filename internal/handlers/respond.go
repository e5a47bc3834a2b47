package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskpanel/internal/access"
	"taskpanel/internal/common"
	"taskpanel/internal/middleware"
	"taskpanel/internal/session"
)

type noticeVariant string

const (
	noticeDefault     noticeVariant = "default"
	noticeDestructive noticeVariant = "destructive"
)

type notice struct {
	Variant noticeVariant `json:"variant"`
	Message string        `json:"message"`
}

func success(msg string) *notice {
	return &notice{Variant: noticeDefault, Message: msg}
}

// viewResponse is the envelope of every page. Data holds the page body.
type viewResponse struct {
	View       access.View    `json:"view"`
	Title      string         `json:"title"`
	User       any            `json:"user,omitempty"`
	Navigation []access.Route `json:"navigation,omitempty"`
	Data       any            `json:"data,omitempty"`
	Notice     *notice        `json:"notice,omitempty"`
	Redirect   string         `json:"redirect,omitempty"`
}

func (h HandlerSet) view(c *gin.Context, status int, v access.View, data any, n *notice) {
	resp := viewResponse{View: v, Data: data, Notice: n}
	if r, ok := access.RouteFor(v); ok {
		resp.Title = r.Title
	}

	sess := middleware.CurrentSession(c)
	if role, ok := sess.Role(); ok {
		resp.User = sess.User
		nav, err := access.Navigation(role)
		if err != nil {
			h.log.Warn().Err(err).Str("user_id", sess.UserID()).Msg("no navigation for role")
		}
		resp.Navigation = nav
	}
	c.JSON(status, resp)
}

// respondError maps err to a status and a destructive notice. Messages meant
// for people pass through; anything else is replaced by fallback. extra is
// merged into the body so the caller can keep the page state visible.
func (h HandlerSet) respondError(c *gin.Context, err error, fallback string, extra gin.H) {
	status := common.HTTPStatusFromError(err)

	msg := fallback
	var domainErr *common.Error
	if errors.As(err, &domainErr) && status != http.StatusBadGateway && status < http.StatusInternalServerError {
		msg = domainErr.Msg
	}

	event := h.log.Warn()
	if status >= http.StatusInternalServerError {
		event = h.log.Error()
	}
	event.Err(err).
		Int("status", status).
		Str("path", c.FullPath()).
		Str("user_id", middleware.CurrentSession(c).UserID()).
		Str("request_id", middleware.RequestIDFrom(c)).
		Msg("panel action failed")

	body := gin.H{"notice": notice{Variant: noticeDestructive, Message: msg}}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

func (h HandlerSet) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"notice": notice{Variant: noticeDestructive, Message: msg}})
}

func (h HandlerSet) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, token, int(h.sessionTTL.Seconds()), "/", "", h.cookieSecure, true)
}

func (h HandlerSet) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", h.cookieSecure, true)
}

func currentSession(c *gin.Context) *session.Session {
	return middleware.CurrentSession(c)
}
