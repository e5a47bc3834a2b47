package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taskpanel/internal/access"
	"taskpanel/internal/tasks"
)

// board returns the session's task board, loading it on first use.
func (h HandlerSet) board(c *gin.Context) (*tasks.Board, bool) {
	sess := currentSession(c)
	b := h.boards.Acquire(sess.ID)
	if b.Loaded() {
		return b, true
	}
	if err := b.Load(c.Request.Context(), sess.UserID()); err != nil {
		h.respondError(c, err, "Failed to fetch tasks.", nil)
		return nil, false
	}
	return b, true
}

func (h HandlerSet) TaskBoard(c *gin.Context) {
	sess := currentSession(c)
	b := h.boards.Acquire(sess.ID)
	if err := b.Load(c.Request.Context(), sess.UserID()); err != nil {
		h.respondError(c, err, "Failed to fetch tasks.", nil)
		return
	}
	h.view(c, http.StatusOK, access.ViewTasks, b.Snapshot(), nil)
}

type taskDraftRequest struct {
	Title       string `json:"title" form:"title"`
	Description string `json:"description" form:"description"`
}

func (h HandlerSet) CreateTask(c *gin.Context) {
	var req taskDraftRequest
	if err := c.ShouldBind(&req); err != nil {
		h.badRequest(c, "Invalid task form.")
		return
	}
	b, ok := h.board(c)
	if !ok {
		return
	}

	task, m, err := b.Create(c.Request.Context(), tasks.Draft{Title: req.Title, Description: req.Description})
	if err != nil {
		h.respondError(c, err, "Failed to add task.", gin.H{"board": b.Snapshot()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"task":     task,
		"mutation": m,
		"board":    b.Snapshot(),
		"notice":   success("Task added."),
	})
}

func (h HandlerSet) ToggleCompleted(c *gin.Context) {
	h.mutation(c, "Failed to update task.", func(b *tasks.Board) (tasks.Mutation, error) {
		return b.ToggleCompleted(c.Request.Context(), c.Param("id"))
	})
}

func (h HandlerSet) ToggleDeleted(c *gin.Context) {
	h.mutation(c, "Failed to update task.", func(b *tasks.Board) (tasks.Mutation, error) {
		return b.ToggleDeleted(c.Request.Context(), c.Param("id"))
	})
}

// PurgeTask needs ?confirm=true, the answer of the confirmation dialog.
func (h HandlerSet) PurgeTask(c *gin.Context) {
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	h.mutation(c, "Failed to delete task.", func(b *tasks.Board) (tasks.Mutation, error) {
		return b.Purge(c.Request.Context(), c.Param("id"), confirmed)
	})
}

func (h HandlerSet) StartEdit(c *gin.Context) {
	b, ok := h.board(c)
	if !ok {
		return
	}
	buf, err := b.StartEdit(c.Param("id"))
	if err != nil {
		h.respondError(c, err, "Failed to edit task.", gin.H{"board": b.Snapshot()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"editing": buf, "board": b.Snapshot()})
}

func (h HandlerSet) SaveEdit(c *gin.Context) {
	var req taskDraftRequest
	if err := c.ShouldBind(&req); err != nil {
		h.badRequest(c, "Invalid task form.")
		return
	}
	h.mutation(c, "Failed to update task.", func(b *tasks.Board) (tasks.Mutation, error) {
		return b.SaveEdit(c.Request.Context(), c.Param("id"), tasks.Draft{Title: req.Title, Description: req.Description})
	})
}

func (h HandlerSet) CancelEdit(c *gin.Context) {
	b, ok := h.board(c)
	if !ok {
		return
	}
	b.CancelEdit()
	c.JSON(http.StatusOK, gin.H{"board": b.Snapshot()})
}

func (h HandlerSet) mutation(c *gin.Context, fallback string, run func(*tasks.Board) (tasks.Mutation, error)) {
	b, ok := h.board(c)
	if !ok {
		return
	}

	m, err := run(b)
	if err != nil {
		extra := gin.H{"board": b.Snapshot()}
		if m.ID != "" {
			extra["mutation"] = m
		}
		h.respondError(c, err, fallback, extra)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"mutation": m,
		"board":    b.Snapshot(),
	})
}
