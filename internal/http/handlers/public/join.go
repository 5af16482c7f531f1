package public

import (
	"errors"

	"github.com/talclub-next/internal/http/handlers/shared"
	"github.com/talclub-next/internal/http/response"
	"github.com/talclub-next/internal/service"

	"github.com/gin-gonic/gin"
)

// Join 解析加入链接推荐码，返回归属人的公开资料
func (h *Handler) Join(c *gin.Context) {
	code := c.Query("ref")
	owner, err := h.MemberService.ResolveJoinCode(code)
	if err != nil {
		if errors.Is(err, service.ErrInvalidReferralCode) {
			response.NotFound(c, "推荐码无效")
			return
		}
		shared.RespondError(c, response.CodeInternal, "查询失败", err)
		return
	}
	response.Success(c, gin.H{
		"referral_code": owner.ReferralCode,
		"display_name":  owner.DisplayName,
		"role_level":    owner.RoleLevel,
	})
}
