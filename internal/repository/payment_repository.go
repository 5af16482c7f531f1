package repository

import (
	"errors"
	"strings"

	"github.com/talclub-next/internal/models"
	"gorm.io/gorm"
)

// PaymentRepository 已处理支付事件数据访问接口
type PaymentRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) PaymentRepository

	Create(payment *models.ProcessedPayment) error
	GetByPaymentID(paymentID string) (*models.ProcessedPayment, error)
	GetLatestByMemberID(memberID uint) (*models.ProcessedPayment, error)
}

// GormPaymentRepository GORM 支付事件仓储
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付事件仓储
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) PaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Transaction 执行事务
func (r *GormPaymentRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 记录已处理支付事件
func (r *GormPaymentRepository) Create(payment *models.ProcessedPayment) error {
	return r.db.Create(payment).Error
}

// GetByPaymentID 按支付事件ID查询处理记录
func (r *GormPaymentRepository) GetByPaymentID(paymentID string) (*models.ProcessedPayment, error) {
	normalized := strings.TrimSpace(paymentID)
	if normalized == "" {
		return nil, nil
	}
	var row models.ProcessedPayment
	if err := r.db.Where("payment_id = ?", normalized).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetLatestByMemberID 查询会员最近一次已处理支付事件
func (r *GormPaymentRepository) GetLatestByMemberID(memberID uint) (*models.ProcessedPayment, error) {
	if memberID == 0 {
		return nil, nil
	}
	var row models.ProcessedPayment
	if err := r.db.Where("member_id = ?", memberID).
		Order("id desc").
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
