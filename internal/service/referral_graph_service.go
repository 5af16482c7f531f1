package service

import (
	"github.com/talclub-next/internal/config"
	"github.com/talclub-next/internal/constants"
	"github.com/talclub-next/internal/models"
	"github.com/talclub-next/internal/repository"
	"gorm.io/gorm"
)

// GraphService 推荐关系图服务
type GraphService struct {
	cfg          *config.Config
	memberRepo   repository.MemberRepository
	referralRepo repository.ReferralRepository
}

// NewGraphService 创建推荐关系图服务
func NewGraphService(
	cfg *config.Config,
	memberRepo repository.MemberRepository,
	referralRepo repository.ReferralRepository,
) *GraphService {
	return &GraphService{
		cfg:          cfg,
		memberRepo:   memberRepo,
		referralRepo: referralRepo,
	}
}

// RecordPendingRelationship 在事务内建立待激活推荐关系。
// 解析推荐码归属，拒绝无效码、自荐与循环，写入关系与会员上级链，不触碰计数器。
func (s *GraphService) RecordPendingRelationship(tx *gorm.DB, member *models.Member, rawCode string) (*models.ReferralRelationship, error) {
	if member == nil || member.ID == 0 {
		return nil, ErrMemberNotFound
	}
	referralRepo := s.referralRepo.WithTx(tx)
	memberRepo := s.memberRepo.WithTx(tx)

	codeRow, err := referralRepo.GetCodeByValue(rawCode)
	if err != nil {
		return nil, err
	}
	if codeRow == nil {
		return nil, ErrInvalidReferralCode
	}
	if codeRow.OwnerID == member.ID {
		return nil, ErrSelfReferralBlocked
	}

	referrer, err := memberRepo.GetByID(codeRow.OwnerID)
	if err != nil {
		return nil, err
	}
	if referrer == nil {
		return nil, ErrInvalidReferralCode
	}
	// 推荐人的上级链中出现本人即构成循环
	if referrer.UplineChain.Contains(member.ID) {
		return nil, ErrCircularReferral
	}

	chain := s.buildUplineChain(referrer)
	if err := memberRepo.UpdateFields(member.ID, map[string]interface{}{
		"referred_by":  referrer.ID,
		"upline_chain": chain,
	}); err != nil {
		return nil, err
	}
	member.ReferredBy = &referrer.ID
	member.UplineChain = chain

	rel := &models.ReferralRelationship{
		MemberID:     member.ID,
		ReferrerID:   referrer.ID,
		ReferrerCode: codeRow.Code,
		Status:       constants.RelationshipStatusPending,
	}
	if err := referralRepo.CreateRelationship(rel); err != nil {
		return nil, err
	}
	return rel, nil
}

// GetUplineChain 获取会员上级链（最近的在前）
func (s *GraphService) GetUplineChain(memberID uint) (models.UintList, error) {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	return member.UplineChain, nil
}

// buildUplineChain 以推荐人为首拼接其上级链，并按深度上限截断
func (s *GraphService) buildUplineChain(referrer *models.Member) models.UintList {
	chain := make(models.UintList, 0, len(referrer.UplineChain)+1)
	chain = append(chain, referrer.ID)
	chain = append(chain, referrer.UplineChain...)
	limit := s.cfg.Referral.UplineDepthLimit
	if limit > 0 && len(chain) > limit {
		chain = chain[:limit]
	}
	return chain
}
