package models

import "time"

// ReconciliationTask 对账任务表（传播失败或抽样漂移后进入人工/重放队列）
type ReconciliationTask struct {
	ID        uint      `gorm:"primarykey" json:"id"`                          // 主键
	MemberID  uint      `gorm:"not null;index" json:"member_id"`               // 会员ID
	PaymentID string    `gorm:"type:varchar(64);index" json:"payment_id"`      // 关联支付事件ID（漂移任务为空）
	Reason    string    `gorm:"type:varchar(200);not null" json:"reason"`      // 入队原因
	Status    string    `gorm:"type:varchar(20);not null;index" json:"status"` // 状态（pending/done/failed）
	Attempts  int       `gorm:"not null;default:0" json:"attempts"`            // 重试次数
	LastError string    `gorm:"type:text;default:''" json:"last_error"`        // 最近一次错误
	CreatedAt time.Time `gorm:"index" json:"created_at"`                       // 创建时间
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`                       // 更新时间
}

// TableName 指定表名
func (ReconciliationTask) TableName() string {
	return "reconciliation_tasks"
}
