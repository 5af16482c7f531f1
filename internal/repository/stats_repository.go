package repository

import (
	"errors"
	"strings"

	"github.com/talclub-next/internal/models"
	"gorm.io/gorm"
)

// StatsRepository 统计增量账本数据访问接口
type StatsRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) StatsRepository

	CreateDelta(delta *models.StatDelta) error
	GetDeltaByKey(key string) (*models.StatDelta, error)
	SumDeltasByMember(memberID uint) (directTotal, teamTotal int64, err error)
}

// GormStatsRepository GORM 统计仓储
type GormStatsRepository struct {
	db *gorm.DB
}

// NewStatsRepository 创建统计仓储
func NewStatsRepository(db *gorm.DB) *GormStatsRepository {
	return &GormStatsRepository{db: db}
}

// WithTx 绑定事务
func (r *GormStatsRepository) WithTx(tx *gorm.DB) StatsRepository {
	if tx == nil {
		return r
	}
	return &GormStatsRepository{db: tx}
}

// Transaction 执行事务
func (r *GormStatsRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// CreateDelta 插入统计增量（幂等键唯一约束冲突表示重放）
func (r *GormStatsRepository) CreateDelta(delta *models.StatDelta) error {
	return r.db.Create(delta).Error
}

// GetDeltaByKey 按幂等键查询增量记录
func (r *GormStatsRepository) GetDeltaByKey(key string) (*models.StatDelta, error) {
	normalized := strings.TrimSpace(key)
	if normalized == "" {
		return nil, nil
	}
	var row models.StatDelta
	if err := r.db.Where("idempotency_key = ?", normalized).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// SumDeltasByMember 汇总某会员的全部增量（一致性检查用）
func (r *GormStatsRepository) SumDeltasByMember(memberID uint) (int64, int64, error) {
	if memberID == 0 {
		return 0, 0, nil
	}
	var row struct {
		DirectTotal int64 `gorm:"column:direct_total"`
		TeamTotal   int64 `gorm:"column:team_total"`
	}
	if err := r.db.Model(&models.StatDelta{}).
		Select("COALESCE(SUM(direct_delta), 0) AS direct_total, COALESCE(SUM(team_delta), 0) AS team_total").
		Where("member_id = ?", memberID).
		Scan(&row).Error; err != nil {
		return 0, 0, err
	}
	return row.DirectTotal, row.TeamTotal, nil
}
