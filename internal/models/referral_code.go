package models

import "time"

// ReferralCode 推荐码表（唯一约束即占用，条件插入即预留）
type ReferralCode struct {
	ID        uint      `gorm:"primarykey" json:"id"`                            // 主键
	Code      string    `gorm:"type:varchar(32);not null;uniqueIndex" json:"code"` // 推荐码
	OwnerID   uint      `gorm:"not null;index" json:"owner_id"`                  // 归属会员ID
	CreatedAt time.Time `gorm:"index" json:"created_at"`                         // 创建时间
}

// TableName 指定表名
func (ReferralCode) TableName() string {
	return "referral_codes"
}
