package models

import (
	"strings"
	"time"

	"github.com/talclub-next/internal/logger"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// InitDefaultAdmin 初始化默认管理员账号
func InitDefaultAdmin(username, password string) error {
	var count int64
	DB.Model(&Admin{}).Count(&count)
	if count > 0 {
		return nil
	}

	if username == "" {
		username = "admin"
	}
	if password == "" {
		password = "admin123"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := Admin{
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := DB.Create(&admin).Error; err != nil {
		return err
	}

	if password == "admin123" {
		logger.Warnw("default_admin_created_with_default_password", "username", username)
		logger.Warnw("default_admin_password_change_required", "username", username)
	} else {
		logger.Warnw("default_admin_created", "username", username, "password_hidden", true)
	}
	return nil
}

// fallbackReferralCode 兜底账号的固定推荐码（字母表内，不与随机码冲突检测逻辑冲突）
const fallbackReferralCode = "TALSYSTEM"

// InitOrphanFallbackMember 初始化无推荐人分配的兜底会员账号
func InitOrphanFallbackMember(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		email = "admin@talclub.local"
	}

	var count int64
	DB.Model(&Member{}).Where("email = ?", email).Count(&count)
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("talclub-fallback"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	now := time.Now()
	member := Member{
		Email:            email,
		PasswordHash:     string(hash),
		DisplayName:      "TalClub Official",
		ReferralCode:     fallbackReferralCode,
		UplineChain:      UintList{},
		RoleLevel:        1,
		PaymentActivated: true,
		FraudFlag:        "none",
		Status:           "active",
		RegisteredAt:     now,
		ActivatedAt:      &now,
	}
	return DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&member).Error; err != nil {
			return err
		}
		code := ReferralCode{Code: fallbackReferralCode, OwnerID: member.ID}
		if err := tx.Create(&code).Error; err != nil {
			return err
		}
		logger.Infow("orphan_fallback_member_created", "email", email, "member_id", member.ID)
		return nil
	})
}
