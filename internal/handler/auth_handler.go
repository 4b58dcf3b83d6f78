package handler

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/threadlog/internal/apperr"
	"github.com/threadlog/internal/service"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp 注册账号并直接建立会话。
func (a *API) SignUp(c *gin.Context) {
	var req service.SignUpInput
	if !bindJSON(c, &req, "Invalid sign-up payload") {
		return
	}

	user, err := a.auth.SignUp(c.Request.Context(), req)
	if err != nil {
		a.respondAppError(c, err)
		return
	}
	if !a.startSession(c, user.ID) {
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Account created", "user": user})
}

// SignIn 处理登录请求
func (a *API) SignIn(c *gin.Context) {
	var req signInRequest
	if !bindJSON(c, &req, "Invalid sign-in payload") {
		return
	}

	user, err := a.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		a.respondAppError(c, err)
		return
	}
	if !a.startSession(c, user.ID) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Signed in", "user": user})
}

// SignOut clears the session cookie.
func (a *API) SignOut(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		a.respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

// Session returns the signed-in user, or null.
func (a *API) Session(c *gin.Context) {
	user, err := a.auth.Session(c.Request.Context(), currentUserID(c))
	if err != nil {
		a.respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (a *API) startSession(c *gin.Context, userID string) bool {
	session := sessions.Default(c)
	session.Set(sessionUserKey, userID)
	if err := session.Save(); err != nil {
		a.respondAppError(c, err)
		return false
	}
	return true
}

// AuthRequired 是一个简单的认证中间件
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUserID(c) == "" {
			respondError(c, http.StatusUnauthorized, apperr.Authorization, "You must be signed in")
			return
		}
		c.Next()
	}
}
