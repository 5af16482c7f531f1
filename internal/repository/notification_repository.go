package repository

import (
	"errors"
	"time"

	"github.com/talclub-next/internal/models"
	"gorm.io/gorm"
)

// NotificationRepository 通知事件数据访问接口
type NotificationRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) NotificationRepository

	Create(event *models.NotificationEvent) error
	GetByID(id uint) (*models.NotificationEvent, error)
	ListUndispatched(limit int) ([]models.NotificationEvent, error)
	MarkDispatched(id uint, at time.Time) error
}

// GormNotificationRepository GORM 通知事件仓储
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建通知事件仓储
func NewNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// WithTx 绑定事务
func (r *GormNotificationRepository) WithTx(tx *gorm.DB) NotificationRepository {
	if tx == nil {
		return r
	}
	return &GormNotificationRepository{db: tx}
}

// Transaction 执行事务
func (r *GormNotificationRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建通知事件
func (r *GormNotificationRepository) Create(event *models.NotificationEvent) error {
	return r.db.Create(event).Error
}

// GetByID 按ID查询通知事件
func (r *GormNotificationRepository) GetByID(id uint) (*models.NotificationEvent, error) {
	if id == 0 {
		return nil, nil
	}
	var row models.NotificationEvent
	if err := r.db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListUndispatched 查询未投递的通知事件
func (r *GormNotificationRepository) ListUndispatched(limit int) ([]models.NotificationEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.NotificationEvent
	if err := r.db.Where("dispatched = ?", false).
		Order("id asc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkDispatched 标记通知事件已投递
func (r *GormNotificationRepository) MarkDispatched(id uint, at time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.NotificationEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"dispatched":    true,
			"dispatched_at": at,
		}).Error
}
