package public

import (
	"errors"

	"github.com/talclub-next/internal/http/handlers/shared"
	"github.com/talclub-next/internal/http/response"
	"github.com/talclub-next/internal/service"

	"github.com/gin-gonic/gin"
)

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email        string   `json:"email" binding:"required,email"`
	Password     string   `json:"password" binding:"required,min=8"`
	DisplayName  string   `json:"display_name"`
	ReferralCode string   `json:"referral_code"`
	DeviceID     string   `json:"device_id"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
}

// Register 会员注册
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}

	member, err := h.MemberService.Register(c.Request.Context(), service.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		DisplayName:  req.DisplayName,
		ReferralCode: req.ReferralCode,
		DeviceID:     req.DeviceID,
		IP:           c.ClientIP(),
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			response.Error(c, response.CodeConflict, "邮箱已被注册")
		case errors.Is(err, service.ErrSelfReferralBlocked):
			response.BadRequest(c, "不允许使用本人推荐码")
		case errors.Is(err, service.ErrCircularReferral):
			response.BadRequest(c, "推荐关系不合法")
		case errors.Is(err, service.ErrInvalidCredentials):
			response.BadRequest(c, "请求参数错误")
		default:
			shared.RespondError(c, response.CodeInternal, "注册失败", err)
		}
		return
	}
	response.Success(c, member)
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login 会员登录
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}
	member, token, expiresAt, err := h.AuthService.MemberLogin(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			response.Unauthorized(c, "邮箱或密码错误")
		case errors.Is(err, service.ErrMemberDisabled):
			response.Unauthorized(c, "账号已被禁用")
		default:
			shared.RespondError(c, response.CodeInternal, "登录失败", err)
		}
		return
	}
	response.Success(c, gin.H{
		"member":     member,
		"token":      token,
		"expires_at": expiresAt,
	})
}

// Me 查询当前会员信息
func (h *Handler) Me(c *gin.Context) {
	memberID, ok := getMemberID(c)
	if !ok {
		return
	}
	member, err := h.MemberService.GetByID(memberID)
	if err != nil {
		if errors.Is(err, service.ErrMemberNotFound) {
			response.NotFound(c, "会员不存在")
			return
		}
		shared.RespondError(c, response.CodeInternal, "查询失败", err)
		return
	}
	response.Success(c, member)
}

// MyTeam 查询当前会员团队概览
func (h *Handler) MyTeam(c *gin.Context) {
	memberID, ok := getMemberID(c)
	if !ok {
		return
	}
	var query struct {
		Page     int `form:"page"`
		PageSize int `form:"page_size"`
	}
	_ = c.ShouldBindQuery(&query)
	page, pageSize := shared.NormalizePagination(query.Page, query.PageSize)

	overview, err := h.MemberService.GetTeamOverview(memberID, page, pageSize)
	if err != nil {
		if errors.Is(err, service.ErrMemberNotFound) {
			response.NotFound(c, "会员不存在")
			return
		}
		shared.RespondError(c, response.CodeInternal, "查询失败", err)
		return
	}
	response.SuccessWithPage(c, overview, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     overview.ChildrenTotal,
		TotalPage: shared.TotalPages(overview.ChildrenTotal, pageSize),
	})
}

// MyReferralLink 查询当前会员推荐链接
func (h *Handler) MyReferralLink(c *gin.Context) {
	memberID, ok := getMemberID(c)
	if !ok {
		return
	}
	link, err := h.MemberService.BuildReferralLink(memberID)
	if err != nil {
		shared.RespondError(c, response.CodeInternal, "查询失败", err)
		return
	}
	response.Success(c, gin.H{"referral_link": link})
}
