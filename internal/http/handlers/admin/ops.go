package admin

import (
	"errors"

	"github.com/talclub-next/internal/http/handlers/shared"
	"github.com/talclub-next/internal/http/response"
	"github.com/talclub-next/internal/repository"
	"github.com/talclub-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ConsistencyCheck 抽样一致性检查
func (h *Handler) ConsistencyCheck(c *gin.Context) {
	var query struct {
		Sample int `form:"sample"`
	}
	_ = c.ShouldBindQuery(&query)

	report, err := h.StatsService.ReconcileSample(query.Sample)
	if err != nil {
		shared.RespondError(c, response.CodeInternal, "一致性检查失败", err)
		return
	}
	response.Success(c, report)
}

// ListReconciliations 对账任务列表
func (h *Handler) ListReconciliations(c *gin.Context) {
	var query struct {
		Page     int    `form:"page"`
		PageSize int    `form:"page_size"`
		Status   string `form:"status"`
		MemberID uint   `form:"member_id"`
	}
	_ = c.ShouldBindQuery(&query)
	page, pageSize := shared.NormalizePagination(query.Page, query.PageSize)

	tasks, total, err := h.ReconciliationService.List(repository.ReconciliationListFilter{
		Status:   query.Status,
		MemberID: query.MemberID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		shared.RespondError(c, response.CodeInternal, "查询失败", err)
		return
	}
	response.SuccessWithPage(c, tasks, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: shared.TotalPages(total, pageSize),
	})
}

// RetryReconciliation 重试对账任务
func (h *Handler) RetryReconciliation(c *gin.Context) {
	taskID := parseUintParam(c, "id")
	if taskID == 0 {
		response.BadRequest(c, "任务ID无效")
		return
	}
	if err := h.ReconciliationService.Retry(taskID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			response.NotFound(c, "任务不存在")
			return
		}
		shared.RespondError(c, response.CodeInternal, "重试失败", err)
		return
	}
	response.SuccessWithMsg(c, "任务已处理", gin.H{"task_id": taskID})
}
