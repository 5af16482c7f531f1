package models

import "time"

// StatDelta 统计增量流水表（幂等账本：同一键的增量只生效一次）
type StatDelta struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                       // 主键
	IdempotencyKey string    `gorm:"type:varchar(128);not null;uniqueIndex" json:"idempotency_key"` // 幂等键（paymentID:ancestorID）
	MemberID       uint      `gorm:"not null;index" json:"member_id"`                            // 受影响会员ID
	DirectDelta    int64     `gorm:"not null;default:0" json:"direct_delta"`                     // 直推数增量
	TeamDelta      int64     `gorm:"not null;default:0" json:"team_delta"`                       // 团队数增量
	Source         string    `gorm:"type:varchar(20);not null;index" json:"source"`              // 来源（activation/reversal/reconciliation）
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                                    // 创建时间
}

// TableName 指定表名
func (StatDelta) TableName() string {
	return "stat_deltas"
}
