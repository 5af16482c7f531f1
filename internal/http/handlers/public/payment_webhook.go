package public

import (
	"errors"

	"github.com/talclub-next/internal/http/handlers/shared"
	"github.com/talclub-next/internal/http/response"
	"github.com/talclub-next/internal/logger"
	"github.com/talclub-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// PaymentWebhook 支付成功事件回调。
// 签名不可验证的事件直接拒绝且不入队重试；重复事件静默成功。
func (h *Handler) PaymentWebhook(c *gin.Context) {
	var event service.PaymentEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}

	if err := service.VerifyPaymentSignature(&event, h.Config.Payment.WebhookSecret); err != nil {
		logger.Warnw("payment_webhook_signature_rejected",
			"payment_id", event.PaymentID,
			"user_id", event.UserID,
			"client_ip", c.ClientIP(),
		)
		response.Unauthorized(c, "签名校验失败")
		return
	}

	amount, err := decimal.NewFromString(event.Amount)
	if err != nil {
		response.BadRequest(c, "金额格式错误")
		return
	}

	if err := h.ActivationService.ActivateOnPayment(event.UserID, event.PaymentID, amount, event.Currency); err != nil {
		switch {
		case errors.Is(err, service.ErrMemberNotFound):
			response.NotFound(c, "会员不存在")
		case errors.Is(err, service.ErrRelationshipNotPending):
			response.Error(c, response.CodeConflict, "推荐关系状态不允许激活")
		default:
			shared.RespondError(c, response.CodeInternal, "激活处理失败", err)
		}
		return
	}
	response.Success(c, gin.H{"payment_id": event.PaymentID})
}
