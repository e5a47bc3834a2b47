package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskpanel/internal/access"
)

type dashboardData struct {
	Role    string `json:"role"`
	Summary any    `json:"summary"`
	Cards   any    `json:"cards"`
}

func (h HandlerSet) Dashboard(c *gin.Context) {
	sess := currentSession(c)

	summary, err := h.dashboard.Build(c.Request.Context(), *sess.User)
	if err != nil {
		h.respondError(c, err, "Failed to fetch dashboard data.", nil)
		return
	}

	h.view(c, http.StatusOK, access.ViewDashboard, dashboardData{
		Role:    string(summary.Role()),
		Summary: summary,
		Cards:   summary.Cards(),
	}, nil)
}
