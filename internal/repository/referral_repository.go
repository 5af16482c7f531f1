package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/talclub-next/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReferralRepository 推荐码与推荐关系数据访问接口
type ReferralRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) ReferralRepository

	CreateCode(code *models.ReferralCode) error
	GetCodeByValue(code string) (*models.ReferralCode, error)

	CreateRelationship(rel *models.ReferralRelationship) error
	GetRelationshipByMemberID(memberID uint) (*models.ReferralRelationship, error)
	GetRelationshipByMemberIDForUpdate(memberID uint) (*models.ReferralRelationship, error)
	UpdateRelationshipFields(id uint, updates map[string]interface{}) error
	CountRecentByReferrerCode(code string, since time.Time) (int64, error)
	CountByStatus(status string) (int64, error)
}

// GormReferralRepository GORM 推荐仓储
type GormReferralRepository struct {
	db *gorm.DB
}

// NewReferralRepository 创建推荐仓储
func NewReferralRepository(db *gorm.DB) *GormReferralRepository {
	return &GormReferralRepository{db: db}
}

// WithTx 绑定事务
func (r *GormReferralRepository) WithTx(tx *gorm.DB) ReferralRepository {
	if tx == nil {
		return r
	}
	return &GormReferralRepository{db: tx}
}

// Transaction 执行事务
func (r *GormReferralRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// CreateCode 插入推荐码（唯一约束冲突即占用失败，由调用方重试）
func (r *GormReferralRepository) CreateCode(code *models.ReferralCode) error {
	return r.db.Create(code).Error
}

// GetCodeByValue 按码值获取推荐码记录
func (r *GormReferralRepository) GetCodeByValue(code string) (*models.ReferralCode, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, nil
	}
	var row models.ReferralCode
	if err := r.db.Where("code = ?", normalized).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// CreateRelationship 创建推荐关系
func (r *GormReferralRepository) CreateRelationship(rel *models.ReferralRelationship) error {
	return r.db.Create(rel).Error
}

// GetRelationshipByMemberID 按被推荐会员获取推荐关系
func (r *GormReferralRepository) GetRelationshipByMemberID(memberID uint) (*models.ReferralRelationship, error) {
	if memberID == 0 {
		return nil, nil
	}
	var rel models.ReferralRelationship
	if err := r.db.Where("member_id = ?", memberID).First(&rel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rel, nil
}

// GetRelationshipByMemberIDForUpdate 按被推荐会员锁定获取推荐关系
func (r *GormReferralRepository) GetRelationshipByMemberIDForUpdate(memberID uint) (*models.ReferralRelationship, error) {
	if memberID == 0 {
		return nil, nil
	}
	var rel models.ReferralRelationship
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("member_id = ?", memberID).
		First(&rel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rel, nil
}

// UpdateRelationshipFields 更新推荐关系指定字段
func (r *GormReferralRepository) UpdateRelationshipFields(id uint, updates map[string]interface{}) error {
	if id == 0 || len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.ReferralRelationship{}).Where("id = ?", id).Updates(updates).Error
}

// CountRecentByReferrerCode 统计窗口内某推荐码的使用次数（无缓存时的频率统计）
func (r *GormReferralRepository) CountRecentByReferrerCode(code string, since time.Time) (int64, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return 0, nil
	}
	var total int64
	if err := r.db.Model(&models.ReferralRelationship{}).
		Where("referrer_code = ? AND created_at >= ?", normalized, since).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// CountByStatus 按状态统计推荐关系数
func (r *GormReferralRepository) CountByStatus(status string) (int64, error) {
	var total int64
	query := r.db.Model(&models.ReferralRelationship{})
	if s := strings.TrimSpace(status); s != "" {
		query = query.Where("status = ?", s)
	}
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
