package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/talclub-next/internal/constants"
	"github.com/talclub-next/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MemberListFilter 会员列表查询条件
type MemberListFilter struct {
	Keyword   string
	Status    string
	FraudFlag string
	RoleLevel int
	Page      int
	PageSize  int
}

// MemberRepository 会员数据访问接口
type MemberRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) MemberRepository

	GetByID(id uint) (*models.Member, error)
	GetByIDForUpdate(id uint) (*models.Member, error)
	GetByEmail(email string) (*models.Member, error)
	GetByIDs(ids []uint) ([]models.Member, error)
	Create(member *models.Member) error
	UpdateFields(id uint, updates map[string]interface{}) error
	UpdateLastLogin(id uint, at time.Time) error
	IncrementCounters(id uint, directDelta, teamDelta int64) error
	List(filter MemberListFilter) ([]models.Member, int64, error)
	ListDirectChildren(referrerID uint, page, pageSize int) ([]models.Member, int64, error)
	ListActivatedChildIDs(parentIDs []uint) ([]uint, error)
	ListLeadersInBox(minLat, maxLat, minLng, maxLng float64) ([]models.Member, error)
	SampleActivated(limit int) ([]models.Member, error)
	Count() (int64, error)
}

// GormMemberRepository GORM 会员仓储
type GormMemberRepository struct {
	db *gorm.DB
}

// NewMemberRepository 创建会员仓储
func NewMemberRepository(db *gorm.DB) *GormMemberRepository {
	return &GormMemberRepository{db: db}
}

// WithTx 绑定事务
func (r *GormMemberRepository) WithTx(tx *gorm.DB) MemberRepository {
	if tx == nil {
		return r
	}
	return &GormMemberRepository{db: tx}
}

// Transaction 执行事务
func (r *GormMemberRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取会员
func (r *GormMemberRepository) GetByID(id uint) (*models.Member, error) {
	if id == 0 {
		return nil, nil
	}
	var member models.Member
	if err := r.db.First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// GetByIDForUpdate 按ID锁定获取会员
func (r *GormMemberRepository) GetByIDForUpdate(id uint) (*models.Member, error) {
	if id == 0 {
		return nil, nil
	}
	var member models.Member
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// GetByEmail 按邮箱获取会员
func (r *GormMemberRepository) GetByEmail(email string) (*models.Member, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return nil, nil
	}
	var member models.Member
	if err := r.db.Where("email = ?", normalized).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// GetByIDs 批量获取会员
func (r *GormMemberRepository) GetByIDs(ids []uint) ([]models.Member, error) {
	if len(ids) == 0 {
		return []models.Member{}, nil
	}
	var rows []models.Member
	if err := r.db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Create 创建会员
func (r *GormMemberRepository) Create(member *models.Member) error {
	return r.db.Create(member).Error
}

// UpdateFields 更新会员指定字段
func (r *GormMemberRepository) UpdateFields(id uint, updates map[string]interface{}) error {
	if id == 0 || len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.Member{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateLastLogin 更新最后登录时间
func (r *GormMemberRepository) UpdateLastLogin(id uint, at time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Member{}).Where("id = ?", id).Update("last_login_at", at).Error
}

// IncrementCounters 原子累加统计计数
func (r *GormMemberRepository) IncrementCounters(id uint, directDelta, teamDelta int64) error {
	if id == 0 || (directDelta == 0 && teamDelta == 0) {
		return nil
	}
	updates := map[string]interface{}{}
	if directDelta != 0 {
		updates["direct_referral_count"] = gorm.Expr("direct_referral_count + ?", directDelta)
	}
	if teamDelta != 0 {
		updates["team_size"] = gorm.Expr("team_size + ?", teamDelta)
	}
	return r.db.Model(&models.Member{}).Where("id = ?", id).Updates(updates).Error
}

// List 查询会员列表
func (r *GormMemberRepository) List(filter MemberListFilter) ([]models.Member, int64, error) {
	query := r.db.Model(&models.Member{})
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("(email LIKE ? OR display_name LIKE ? OR referral_code LIKE ?)", like, like, like)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if flag := strings.TrimSpace(filter.FraudFlag); flag != "" {
		query = query.Where("fraud_flag = ?", flag)
	}
	if filter.RoleLevel > 0 {
		query = query.Where("role_level = ?", filter.RoleLevel)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.Member
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListDirectChildren 分页查询直接下级
func (r *GormMemberRepository) ListDirectChildren(referrerID uint, page, pageSize int) ([]models.Member, int64, error) {
	if referrerID == 0 {
		return []models.Member{}, 0, nil
	}
	query := r.db.Model(&models.Member{}).Where("referred_by = ?", referrerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, page, pageSize)

	var rows []models.Member
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListActivatedChildIDs 查询一批会员的已激活直接下级ID（广度遍历用）
func (r *GormMemberRepository) ListActivatedChildIDs(parentIDs []uint) ([]uint, error) {
	if len(parentIDs) == 0 {
		return []uint{}, nil
	}
	var ids []uint
	if err := r.db.Model(&models.Member{}).
		Where("referred_by IN ? AND payment_activated = ?", parentIDs, true).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ListLeadersInBox 查询矩形范围内的活跃已激活领导人候选
func (r *GormMemberRepository) ListLeadersInBox(minLat, maxLat, minLng, maxLng float64) ([]models.Member, error) {
	var rows []models.Member
	if err := r.db.Model(&models.Member{}).
		Where("status = ? AND payment_activated = ? AND role_level >= 2", constants.MemberStatusActive, true).
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Where("latitude BETWEEN ? AND ?", minLat, maxLat).
		Where("longitude BETWEEN ? AND ?", minLng, maxLng).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SampleActivated 随机抽取已激活会员（对账抽样）
func (r *GormMemberRepository) SampleActivated(limit int) ([]models.Member, error) {
	if limit <= 0 {
		return []models.Member{}, nil
	}
	var rows []models.Member
	if err := r.db.Model(&models.Member{}).
		Where("payment_activated = ?", true).
		Order("RANDOM()").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count 统计会员总数
func (r *GormMemberRepository) Count() (int64, error) {
	var total int64
	if err := r.db.Model(&models.Member{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
