package admin

import (
	"errors"
	"strconv"

	"github.com/talclub-next/internal/http/handlers/shared"
	"github.com/talclub-next/internal/http/response"
	"github.com/talclub-next/internal/repository"
	"github.com/talclub-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListMembers 会员列表
func (h *Handler) ListMembers(c *gin.Context) {
	var query struct {
		Page      int    `form:"page"`
		PageSize  int    `form:"page_size"`
		Keyword   string `form:"keyword"`
		Status    string `form:"status"`
		FraudFlag string `form:"fraud_flag"`
		RoleLevel int    `form:"role_level"`
	}
	_ = c.ShouldBindQuery(&query)
	page, pageSize := shared.NormalizePagination(query.Page, query.PageSize)

	members, total, err := h.MemberService.List(repository.MemberListFilter{
		Keyword:   query.Keyword,
		Status:    query.Status,
		FraudFlag: query.FraudFlag,
		RoleLevel: query.RoleLevel,
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		shared.RespondError(c, response.CodeInternal, "查询失败", err)
		return
	}
	response.SuccessWithPage(c, members, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: shared.TotalPages(total, pageSize),
	})
}

// ConfirmFraud 人工确认欺诈
func (h *Handler) ConfirmFraud(c *gin.Context) {
	memberID := parseUintParam(c, "id")
	if memberID == 0 {
		response.BadRequest(c, "会员ID无效")
		return
	}
	if err := h.FraudService.ConfirmFraud(memberID); err != nil {
		switch {
		case errors.Is(err, service.ErrMemberNotFound):
			response.NotFound(c, "会员不存在")
		default:
			shared.RespondError(c, response.CodeInternal, "处理失败", err)
		}
		return
	}
	response.SuccessWithMsg(c, "已确认欺诈并完成补偿撤销", gin.H{"member_id": memberID})
}

func parseUintParam(c *gin.Context, name string) uint {
	value, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0
	}
	return uint(value)
}
