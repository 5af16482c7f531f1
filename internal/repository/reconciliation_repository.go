package repository

import (
	"errors"
	"strings"

	"github.com/talclub-next/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReconciliationListFilter 对账任务列表查询条件
type ReconciliationListFilter struct {
	Status   string
	MemberID uint
	Page     int
	PageSize int
}

// ReconciliationRepository 对账任务数据访问接口
type ReconciliationRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) ReconciliationRepository

	Create(task *models.ReconciliationTask) error
	GetByID(id uint) (*models.ReconciliationTask, error)
	GetByIDForUpdate(id uint) (*models.ReconciliationTask, error)
	UpdateFields(id uint, updates map[string]interface{}) error
	List(filter ReconciliationListFilter) ([]models.ReconciliationTask, int64, error)
	HasPendingForMember(memberID uint) (bool, error)
}

// GormReconciliationRepository GORM 对账任务仓储
type GormReconciliationRepository struct {
	db *gorm.DB
}

// NewReconciliationRepository 创建对账任务仓储
func NewReconciliationRepository(db *gorm.DB) *GormReconciliationRepository {
	return &GormReconciliationRepository{db: db}
}

// WithTx 绑定事务
func (r *GormReconciliationRepository) WithTx(tx *gorm.DB) ReconciliationRepository {
	if tx == nil {
		return r
	}
	return &GormReconciliationRepository{db: tx}
}

// Transaction 执行事务
func (r *GormReconciliationRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建对账任务
func (r *GormReconciliationRepository) Create(task *models.ReconciliationTask) error {
	return r.db.Create(task).Error
}

// GetByID 按ID查询对账任务
func (r *GormReconciliationRepository) GetByID(id uint) (*models.ReconciliationTask, error) {
	if id == 0 {
		return nil, nil
	}
	var row models.ReconciliationTask
	if err := r.db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetByIDForUpdate 按ID锁定查询对账任务
func (r *GormReconciliationRepository) GetByIDForUpdate(id uint) (*models.ReconciliationTask, error) {
	if id == 0 {
		return nil, nil
	}
	var row models.ReconciliationTask
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// UpdateFields 更新对账任务指定字段
func (r *GormReconciliationRepository) UpdateFields(id uint, updates map[string]interface{}) error {
	if id == 0 || len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.ReconciliationTask{}).Where("id = ?", id).Updates(updates).Error
}

// List 查询对账任务列表
func (r *GormReconciliationRepository) List(filter ReconciliationListFilter) ([]models.ReconciliationTask, int64, error) {
	query := r.db.Model(&models.ReconciliationTask{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if filter.MemberID != 0 {
		query = query.Where("member_id = ?", filter.MemberID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.ReconciliationTask
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// HasPendingForMember 查询会员是否已有待处理对账任务（避免抽样重复入队）
func (r *GormReconciliationRepository) HasPendingForMember(memberID uint) (bool, error) {
	if memberID == 0 {
		return false, nil
	}
	var total int64
	if err := r.db.Model(&models.ReconciliationTask{}).
		Where("member_id = ? AND status = ?", memberID, "pending").
		Count(&total).Error; err != nil {
		return false, err
	}
	return total > 0, nil
}
