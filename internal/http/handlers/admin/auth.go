package admin

import (
	"errors"

	"github.com/talclub-next/internal/http/handlers/shared"
	"github.com/talclub-next/internal/http/response"
	"github.com/talclub-next/internal/service"

	"github.com/gin-gonic/gin"
)

// LoginRequest 管理员登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 管理员登录
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}
	admin, token, expiresAt, err := h.AuthService.AdminLogin(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(c, "用户名或密码错误")
			return
		}
		shared.RespondError(c, response.CodeInternal, "登录失败", err)
		return
	}
	response.Success(c, gin.H{
		"admin":      admin,
		"token":      token,
		"expires_at": expiresAt,
	})
}
