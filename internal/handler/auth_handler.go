package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/inkpost/internal/db"
	"github.com/inkpost/internal/service"
)

const (
	sessionUserKey     = "user_id"
	identityContextKey = "identity"
)

type signupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(ctx context.Context, user *db.User) userResponse {
	var resp userResponse
	copyResponse(ctx, &resp, user)
	return resp
}

// Signup 注册新用户
func (a *API) Signup(c *gin.Context) {
	var req signupRequest
	if !bindJSON(c, &req, "invalid signup payload") || !a.validateDTO(c, &req) {
		return
	}

	user, err := a.auth.Signup(c.Request.Context(), service.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "signup successful", "user": newUserResponse(c.Request.Context(), user)})
}

// Login 校验凭据，返回 JWT 并写入会话
func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req, "invalid login payload") || !a.validateDTO(c, &req) {
		return
	}

	result, err := a.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserKey, result.User.ID)
	if err := session.Save(); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": result.Token, "user": newUserResponse(c.Request.Context(), result.User)})
}

// Logout 清除会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Identify resolves the caller from a bearer token or the login session and
// stores the user id on the context. Requests without either stay anonymous.
func (a *API) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := a.identityFromRequest(c); id != "" {
			c.Set(identityContextKey, id)
		}
		c.Next()
	}
}

func (a *API) identityFromRequest(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			return ""
		}
		claims, err := a.tokens.Validate(strings.TrimSpace(token))
		if err != nil {
			return ""
		}
		return claims.UserID()
	}

	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return ""
	}
	if id, ok := sessions.Default(c).Get(sessionUserKey).(string); ok {
		return id
	}
	return ""
}

// AuthRequired rejects anonymous callers with 401.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if identity(c) == "" {
			respondError(c, http.StatusUnauthorized, "authentication required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func identity(c *gin.Context) string {
	return c.GetString(identityContextKey)
}
