package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// PaymentEvent 支付成功事件载荷
type PaymentEvent struct {
	UserID    uint   `json:"user_id" binding:"required"`
	PaymentID string `json:"payment_id" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	Currency  string `json:"currency" binding:"required"`
	Timestamp int64  `json:"timestamp" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// VerifyPaymentSignature 校验支付事件签名。
// 规范串按字段名字典序拼接，HMAC-SHA256 后十六进制比对（恒定时间）。
func VerifyPaymentSignature(event *PaymentEvent, secret string) error {
	if event == nil {
		return ErrSignatureInvalid
	}
	expected := SignPaymentEvent(event, secret)
	provided := strings.ToLower(strings.TrimSpace(event.Signature))
	if provided == "" || !hmac.Equal([]byte(expected), []byte(provided)) {
		return ErrSignatureInvalid
	}
	return nil
}

// SignPaymentEvent 计算支付事件签名
func SignPaymentEvent(event *PaymentEvent, secret string) string {
	canonical := fmt.Sprintf("amount=%s&currency=%s&payment_id=%s&timestamp=%d&user_id=%d",
		strings.TrimSpace(event.Amount),
		strings.ToUpper(strings.TrimSpace(event.Currency)),
		strings.TrimSpace(event.PaymentID),
		event.Timestamp,
		event.UserID,
	)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}
