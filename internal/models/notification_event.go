package models

import "time"

// NotificationEvent 通知事件表（先落库再异步投递）
type NotificationEvent struct {
	ID           uint       `gorm:"primarykey" json:"id"`                              // 主键
	MemberID     uint       `gorm:"not null;index" json:"member_id"`                   // 目标会员ID
	EventType    string     `gorm:"type:varchar(30);not null;index" json:"event_type"` // 事件类型
	DedupeKey    *string    `gorm:"type:varchar(120);uniqueIndex" json:"-"`            // 幂等键（可空，重放去重用）
	Payload      JSON       `gorm:"type:text" json:"payload"`                          // 事件内容
	Dispatched   bool       `gorm:"not null;default:false;index" json:"dispatched"`    // 是否已投递
	DispatchedAt *time.Time `json:"dispatched_at"`                                     // 投递时间
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`                           // 创建时间
}

// TableName 指定表名
func (NotificationEvent) TableName() string {
	return "notification_events"
}
