package models

import "time"

// RegistrationFingerprint 注册指纹表（风控证据）
type RegistrationFingerprint struct {
	ID           uint      `gorm:"primarykey" json:"id"`                               // 主键
	MemberID     uint      `gorm:"not null;index" json:"member_id"`                    // 会员ID
	DeviceID     string    `gorm:"type:varchar(128);index" json:"device_id"`           // 设备标识
	IP           string    `gorm:"type:varchar(64);index" json:"ip"`                   // 注册IP
	ReferrerCode string    `gorm:"type:varchar(32);index" json:"referrer_code"`        // 使用的推荐码
	CreatedAt    time.Time `gorm:"index" json:"created_at"`                            // 创建时间
}

// TableName 指定表名
func (RegistrationFingerprint) TableName() string {
	return "registration_fingerprints"
}
