package repository

import (
	"strings"
	"time"

	"github.com/talclub-next/internal/models"
	"gorm.io/gorm"
)

// FraudRepository 注册指纹数据访问接口
type FraudRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) FraudRepository

	CreateFingerprint(fp *models.RegistrationFingerprint) error
	CountByDeviceSince(deviceID string, since time.Time) (int64, error)
	CountByIPSince(ip string, since time.Time) (int64, error)
}

// GormFraudRepository GORM 风控仓储
type GormFraudRepository struct {
	db *gorm.DB
}

// NewFraudRepository 创建风控仓储
func NewFraudRepository(db *gorm.DB) *GormFraudRepository {
	return &GormFraudRepository{db: db}
}

// WithTx 绑定事务
func (r *GormFraudRepository) WithTx(tx *gorm.DB) FraudRepository {
	if tx == nil {
		return r
	}
	return &GormFraudRepository{db: tx}
}

// Transaction 执行事务
func (r *GormFraudRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// CreateFingerprint 记录注册指纹
func (r *GormFraudRepository) CreateFingerprint(fp *models.RegistrationFingerprint) error {
	return r.db.Create(fp).Error
}

// CountByDeviceSince 统计窗口内同设备注册数
func (r *GormFraudRepository) CountByDeviceSince(deviceID string, since time.Time) (int64, error) {
	device := strings.TrimSpace(deviceID)
	if device == "" {
		return 0, nil
	}
	var total int64
	if err := r.db.Model(&models.RegistrationFingerprint{}).
		Where("device_id = ? AND created_at >= ?", device, since).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// CountByIPSince 统计窗口内同IP注册数
func (r *GormFraudRepository) CountByIPSince(ip string, since time.Time) (int64, error) {
	normalized := strings.TrimSpace(ip)
	if normalized == "" {
		return 0, nil
	}
	var total int64
	if err := r.db.Model(&models.RegistrationFingerprint{}).
		Where("ip = ? AND created_at >= ?", normalized, since).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
