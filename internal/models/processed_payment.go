package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProcessedPayment 已处理支付事件表（payment_id 唯一约束保证激活幂等）
type ProcessedPayment struct {
	ID          uint            `gorm:"primarykey" json:"id"`                                 // 主键
	PaymentID   string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"payment_id"` // 支付事件ID
	MemberID    uint            `gorm:"not null;index" json:"member_id"`                      // 会员ID
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`            // 金额
	Currency    string          `gorm:"type:varchar(10);not null;default:'CNY'" json:"currency"` // 币种
	ProcessedAt time.Time       `gorm:"index" json:"processed_at"`                            // 处理时间
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`                              // 创建时间
}

// TableName 指定表名
func (ProcessedPayment) TableName() string {
	return "processed_payments"
}
