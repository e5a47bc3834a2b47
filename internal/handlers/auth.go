package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"taskpanel/internal/access"
	"taskpanel/internal/service"
)

type formField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

var loginForm = []formField{
	{Name: "email", Type: "email", Label: "Email", Required: true},
	{Name: "password", Type: "password", Label: "Password", Required: true},
}

var registerForm = []formField{
	{Name: "name", Type: "text", Label: "Name", Required: true},
	{Name: "email", Type: "email", Label: "Email", Required: true},
	{Name: "password", Type: "password", Label: "Password", Required: true},
	{Name: "confirmPassword", Type: "password", Label: "Confirm Password", Required: true},
}

func (h HandlerSet) LoginView(c *gin.Context) {
	h.view(c, http.StatusOK, access.ViewLogin, gin.H{"fields": loginForm}, nil)
}

func (h HandlerSet) RegisterView(c *gin.Context) {
	h.view(c, http.StatusOK, access.ViewRegister, gin.H{"fields": registerForm}, nil)
}

func (h HandlerSet) Unauthorized(c *gin.Context) {
	h.view(c, http.StatusOK, access.ViewUnauthorized, gin.H{
		"heading": "Unauthorized Access",
		"message": "Sorry, you don't have permission to access this page. Please check your credentials and try again.",
	}, nil)
}

type loginRequest struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required"`
}

type loginResponse struct {
	Token    string `json:"token"`
	User     any    `json:"user"`
	Redirect string `json:"redirect"`
	Notice   notice `json:"notice"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.badRequest(c, "Please enter a valid email and password.")
		return
	}

	sess := currentSession(c)
	previousID := sess.ID
	result, err := h.auth.Login(c.Request.Context(), sess, service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(c, err, "Login error.", nil)
		return
	}
	if previousID != "" && previousID != sess.ID {
		h.boards.Drop(previousID)
	}

	h.setSessionCookie(c, result.Token)
	c.JSON(http.StatusOK, loginResponse{
		Token:    result.Token,
		User:     result.User,
		Redirect: "/dashboard",
		Notice:   *success("Login successful."),
	})
}

type registerRequest struct {
	Name            string `json:"name" form:"name" binding:"required"`
	Email           string `json:"email" form:"email" binding:"required,email"`
	Password        string `json:"password" form:"password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword" binding:"required,eqfield=Password"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		h.badRequest(c, registerValidationMessage(err))
		return
	}

	user, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(c, err, "Error adding user.", nil)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":     user,
		"redirect": "/login",
		"notice":   success("User added successfully."),
	})
}

// registerValidationMessage names the first failing field the way the form
// labels it.
func registerValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid registration form."
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Name":
		return "Name is required."
	case "Email":
		return "Please enter a valid email address."
	case "Password":
		return "Password must be at least 8 characters."
	case "ConfirmPassword":
		return "Passwords do not match."
	default:
		return "Invalid registration form."
	}
}

func (h HandlerSet) Logout(c *gin.Context) {
	sess := currentSession(c)
	sessionID := sess.ID

	if err := h.auth.Logout(c.Request.Context(), sess); err != nil {
		h.respondError(c, err, "Logout failed.", nil)
		return
	}
	if sessionID != "" {
		h.boards.Drop(sessionID)
	}

	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{
		"redirect": "/login",
		"notice":   success("Logged out."),
	})
}
