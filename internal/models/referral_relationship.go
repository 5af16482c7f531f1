package models

import (
	"time"

	"gorm.io/gorm"
)

// ReferralRelationship 推荐关系表
type ReferralRelationship struct {
	ID             uint           `gorm:"primarykey" json:"id"`                           // 主键
	MemberID       uint           `gorm:"not null;uniqueIndex" json:"member_id"`          // 被推荐会员ID（一人仅一条关系）
	ReferrerID     uint           `gorm:"not null;index" json:"referrer_id"`              // 推荐人ID
	ReferrerCode   string         `gorm:"type:varchar(32);not null;index" json:"referrer_code"` // 注册时使用的推荐码
	Status         string         `gorm:"type:varchar(20);not null;index" json:"status"`  // 状态（pending/activated/reversed）
	OrphanAssigned bool           `gorm:"not null;default:false" json:"orphan_assigned"`  // 是否系统分配（无推荐人注册）
	ActivatedAt    *time.Time     `gorm:"index" json:"activated_at"`                      // 激活时间
	ReversedAt     *time.Time     `json:"reversed_at"`                                    // 撤销时间
	ReverseReason  string         `gorm:"type:varchar(50);default:''" json:"reverse_reason"` // 撤销原因
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`                        // 创建时间
	UpdatedAt      time.Time      `gorm:"index" json:"updated_at"`                        // 更新时间
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`                                 // 软删除时间

	Member   *Member `gorm:"foreignKey:MemberID" json:"member,omitempty"`     // 被推荐会员
	Referrer *Member `gorm:"foreignKey:ReferrerID" json:"referrer,omitempty"` // 推荐人
}

// TableName 指定表名
func (ReferralRelationship) TableName() string {
	return "referral_relationships"
}
