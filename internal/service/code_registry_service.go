package service

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/talclub-next/internal/config"
	"github.com/talclub-next/internal/logger"
	"github.com/talclub-next/internal/models"
	"github.com/talclub-next/internal/repository"
)

// 推荐码随机段字母表（32 个字符），排除易混淆字符 0、O、1、I。
const referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeRegistryService 推荐码注册服务
type CodeRegistryService struct {
	cfg  *config.Config
	repo repository.ReferralRepository
}

// NewCodeRegistryService 创建推荐码注册服务
func NewCodeRegistryService(cfg *config.Config, repo repository.ReferralRepository) *CodeRegistryService {
	return &CodeRegistryService{cfg: cfg, repo: repo}
}

// Generate 为会员生成唯一推荐码
func (s *CodeRegistryService) Generate(ownerID uint) (string, error) {
	return s.GenerateIn(s.repo, ownerID)
}

// GenerateIn 在指定仓储（可为事务绑定）内生成唯一推荐码。
// 唯一约束冲突即重试，插入成功即占用。
func (s *CodeRegistryService) GenerateIn(repo repository.ReferralRepository, ownerID uint) (string, error) {
	if ownerID == 0 || repo == nil {
		return "", ErrMemberNotFound
	}
	maxRetry := s.cfg.Referral.GenerateMaxRetry
	if maxRetry <= 0 {
		maxRetry = 10
	}
	for attempt := 0; attempt < maxRetry; attempt++ {
		code, err := s.randomCode()
		if err != nil {
			return "", err
		}
		createErr := repo.CreateCode(&models.ReferralCode{Code: code, OwnerID: ownerID})
		if createErr == nil {
			return code, nil
		}
		if !isUniqueViolation(createErr) {
			return "", createErr
		}
		logger.Warnw("referral_code_collision_retry",
			"owner_id", ownerID,
			"attempt", attempt+1,
			"code", code,
		)
	}
	logger.Errorw("referral_code_generation_exhausted",
		"owner_id", ownerID,
		"max_retry", maxRetry,
	)
	return "", ErrCodeGenerationExhausted
}

// Normalize 归一化推荐码（去空白、转大写）
func (s *CodeRegistryService) Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateFormat 校验推荐码格式：前缀 + 固定长度字母表字符
func (s *CodeRegistryService) ValidateFormat(code string) bool {
	normalized := s.Normalize(code)
	prefix := strings.ToUpper(strings.TrimSpace(s.cfg.Referral.CodePrefix))
	length := s.cfg.Referral.CodeLength
	if length <= 0 {
		length = 6
	}
	if len(normalized) != len(prefix)+length {
		return false
	}
	if !strings.HasPrefix(normalized, prefix) {
		return false
	}
	for _, ch := range normalized[len(prefix):] {
		if !strings.ContainsRune(referralCodeAlphabet, ch) {
			return false
		}
	}
	return true
}

// Resolve 解析推荐码归属（大小写不敏感）
func (s *CodeRegistryService) Resolve(code string) (*models.ReferralCode, error) {
	normalized := s.Normalize(code)
	if normalized == "" {
		return nil, ErrInvalidReferralCode
	}
	row, err := s.repo.GetCodeByValue(normalized)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrInvalidReferralCode
	}
	return row, nil
}

func (s *CodeRegistryService) randomCode() (string, error) {
	prefix := strings.ToUpper(strings.TrimSpace(s.cfg.Referral.CodePrefix))
	length := s.cfg.Referral.CodeLength
	if length <= 0 {
		length = 6
	}
	var builder strings.Builder
	builder.WriteString(prefix)
	alphabetSize := big.NewInt(int64(len(referralCodeAlphabet)))
	for i := 0; i < length; i++ {
		idx, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		builder.WriteByte(referralCodeAlphabet[idx.Int64()])
	}
	return builder.String(), nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
