package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/talclub-next/internal/config"
	"github.com/talclub-next/internal/constants"
	"github.com/talclub-next/internal/logger"
	"github.com/talclub-next/internal/models"
	"github.com/talclub-next/internal/repository"
	"gorm.io/gorm"
)

// MemberService 会员注册与查询服务
type MemberService struct {
	cfg          *config.Config
	memberRepo   repository.MemberRepository
	referralRepo repository.ReferralRepository
	registry     *CodeRegistryService
	graph        *GraphService
	orphan       *OrphanService
	fraud        *FraudService
	auth         *AuthService
}

// NewMemberService 创建会员服务
func NewMemberService(
	cfg *config.Config,
	memberRepo repository.MemberRepository,
	referralRepo repository.ReferralRepository,
	registry *CodeRegistryService,
	graph *GraphService,
	orphan *OrphanService,
	fraud *FraudService,
	auth *AuthService,
) *MemberService {
	return &MemberService{
		cfg:          cfg,
		memberRepo:   memberRepo,
		referralRepo: referralRepo,
		registry:     registry,
		graph:        graph,
		orphan:       orphan,
		fraud:        fraud,
		auth:         auth,
	}
}

// RegisterInput 注册输入
type RegisterInput struct {
	Email        string
	Password     string
	DisplayName  string
	ReferralCode string
	DeviceID     string
	IP           string
	Latitude     *float64
	Longitude    *float64
}

// Register 注册新会员。
// 单事务内创建会员、发放推荐码并落推荐关系（待激活）；
// 无推荐码或推荐码无效时降级为系统分配。注册后做风控筛查（标记不拦截）。
func (s *MemberService) Register(ctx context.Context, input RegisterInput) (*models.Member, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || strings.TrimSpace(input.Password) == "" {
		return nil, ErrInvalidCredentials
	}
	existing, err := s.memberRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}
	hash, err := s.auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	member := &models.Member{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		UplineChain:  models.UintList{},
		RoleLevel:    1,
		FraudFlag:    constants.FraudFlagNone,
		Status:       constants.MemberStatusActive,
		Latitude:     input.Latitude,
		Longitude:    input.Longitude,
		RegisteredAt: time.Now(),
	}

	rawCode := strings.TrimSpace(input.ReferralCode)
	err = s.memberRepo.Transaction(func(tx *gorm.DB) error {
		memberRepo := s.memberRepo.WithTx(tx)

		// 推荐码占位，满足非空唯一约束后由发码服务覆盖
		member.ReferralCode = fmt.Sprintf("PENDING-%d", time.Now().UnixNano())
		if err := memberRepo.Create(member); err != nil {
			if isUniqueViolation(err) {
				return ErrEmailTaken
			}
			return err
		}

		code, err := s.registry.GenerateIn(s.referralRepo.WithTx(tx), member.ID)
		if err != nil {
			return err
		}
		if err := memberRepo.UpdateFields(member.ID, map[string]interface{}{
			"referral_code": code,
		}); err != nil {
			return err
		}
		member.ReferralCode = code

		if rawCode != "" {
			_, err := s.graph.RecordPendingRelationship(tx, member, rawCode)
			if err == nil {
				return nil
			}
			if !errors.Is(err, ErrInvalidReferralCode) {
				return err
			}
			// 无效推荐码不阻断注册，降级为系统分配
			logger.Infow("invalid_referral_code_degraded_to_orphan",
				"member_id", member.ID,
				"code", rawCode,
			)
		}
		_, err = s.orphan.AssignOrphan(tx, member)
		return err
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.fraud.Screen(ctx, ScreenInput{
		MemberID:     member.ID,
		ReferrerCode: rawCode,
		DeviceID:     input.DeviceID,
		IP:           input.IP,
	}); err != nil {
		logger.Warnw("registration_fraud_screen_failed", "member_id", member.ID, "error", err)
	}

	logger.Infow("member_registered",
		"member_id", member.ID,
		"referral_code", member.ReferralCode,
		"referred_by", member.ReferredBy,
	)
	return s.memberRepo.GetByID(member.ID)
}

// GetByID 查询会员
func (s *MemberService) GetByID(memberID uint) (*models.Member, error) {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	return member, nil
}

// TeamOverview 团队概览
type TeamOverview struct {
	Member        *models.Member  `json:"member"`
	RoleName      string          `json:"role_name"`
	DirectCount   int64           `json:"direct_referral_count"`
	TeamSize      int64           `json:"team_size"`
	Children      []models.Member `json:"children"`
	ChildrenTotal int64           `json:"children_total"`
}

// GetTeamOverview 查询会员团队概览（计数器、角色与直推分页）
func (s *MemberService) GetTeamOverview(memberID uint, page, pageSize int) (*TeamOverview, error) {
	member, err := s.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	children, total, err := s.memberRepo.ListDirectChildren(memberID, page, pageSize)
	if err != nil {
		return nil, err
	}
	return &TeamOverview{
		Member:        member,
		RoleName:      s.cfg.Roles.NameOf(member.RoleLevel),
		DirectCount:   member.DirectReferralCount,
		TeamSize:      member.TeamSize,
		Children:      children,
		ChildrenTotal: total,
	}, nil
}

// BuildReferralLink 生成会员推荐链接
func (s *MemberService) BuildReferralLink(memberID uint) (string, error) {
	member, err := s.GetByID(memberID)
	if err != nil {
		return "", err
	}
	host := strings.TrimRight(strings.TrimSpace(s.cfg.Referral.JoinHost), "/")
	return fmt.Sprintf("%s/join?ref=%s", host, member.ReferralCode), nil
}

// ResolveJoinCode 解析加入链接推荐码，返回归属人公开信息
func (s *MemberService) ResolveJoinCode(code string) (*models.Member, error) {
	row, err := s.registry.Resolve(code)
	if err != nil {
		return nil, err
	}
	owner, err := s.memberRepo.GetByID(row.OwnerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, ErrInvalidReferralCode
	}
	return owner, nil
}

// List 管理端会员列表
func (s *MemberService) List(filter repository.MemberListFilter) ([]models.Member, int64, error) {
	return s.memberRepo.List(filter)
}
