package models

import (
	"time"

	"gorm.io/gorm"
)

// Member 会员表
type Member struct {
	ID                  uint           `gorm:"primarykey" json:"id"`                                  // 主键
	Email               string         `gorm:"uniqueIndex;not null" json:"email"`                     // 邮箱
	PasswordHash        string         `gorm:"not null" json:"-"`                                     // 密码哈希（不返回给前端）
	DisplayName         string         `gorm:"default:''" json:"display_name"`                        // 昵称
	ReferralCode        string         `gorm:"type:varchar(32);not null;uniqueIndex" json:"referral_code"` // 本人推荐码
	ReferredBy          *uint          `gorm:"index" json:"referred_by"`                              // 直接推荐人ID
	UplineChain         UintList       `gorm:"type:text" json:"upline_chain"`                         // 上级链（最近的在前）
	DirectReferralCount int64          `gorm:"not null;default:0" json:"direct_referral_count"`       // 直推激活人数
	TeamSize            int64          `gorm:"not null;default:0" json:"team_size"`                   // 团队激活人数（含各层级）
	RoleLevel           int            `gorm:"not null;default:1;index" json:"role_level"`            // 角色级别（1-9）
	PaymentActivated    bool           `gorm:"not null;default:false;index" json:"payment_activated"` // 是否已付费激活
	FraudFlag           string         `gorm:"type:varchar(20);not null;default:'none';index" json:"fraud_flag"` // 风控标记
	Status              string         `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`   // 账号状态
	Latitude            *float64       `gorm:"index" json:"latitude"`                                 // 注册纬度
	Longitude           *float64       `gorm:"index" json:"longitude"`                                // 注册经度
	RegisteredAt        time.Time      `gorm:"index" json:"registered_at"`                            // 注册时间
	ActivatedAt         *time.Time     `gorm:"index" json:"activated_at"`                             // 激活时间
	LastLoginAt         *time.Time     `json:"last_login_at"`                                         // 最后登录时间
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`                               // 创建时间
	UpdatedAt           time.Time      `gorm:"index" json:"updated_at"`                               // 更新时间
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`                                        // 软删除时间
}

// TableName 指定表名
func (Member) TableName() string {
	return "members"
}

// IsPromotable 是否允许晋升（仅无风控标记的会员可晋升）
func (m *Member) IsPromotable() bool {
	return m.FraudFlag == "none"
}
