package service

import (
	"github.com/talclub-next/internal/config"
	"github.com/talclub-next/internal/constants"
	"github.com/talclub-next/internal/logger"
	"github.com/talclub-next/internal/models"
	"github.com/talclub-next/internal/repository"
	"gorm.io/gorm"
)

// PromotionService 角色晋升引擎
type PromotionService struct {
	cfg          *config.Config
	memberRepo   repository.MemberRepository
	notification *NotificationService
}

// NewPromotionService 创建角色晋升引擎
func NewPromotionService(
	cfg *config.Config,
	memberRepo repository.MemberRepository,
	notification *NotificationService,
) *PromotionService {
	return &PromotionService{
		cfg:          cfg,
		memberRepo:   memberRepo,
		notification: notification,
	}
}

// Evaluate 重新评估会员角色（只升不降）。
// 行锁内比较存量级别，保证同一次跨越只发一条晋升通知；
// 跨多级时直接晋升到满足的最高级别，只发一条事件。
func (s *PromotionService) Evaluate(memberID uint) error {
	return s.evaluate(memberID, false)
}

// EvaluateWithDemotion 重新评估会员角色，允许降级（撤销路径专用）
func (s *PromotionService) EvaluateWithDemotion(memberID uint) error {
	return s.evaluate(memberID, true)
}

func (s *PromotionService) evaluate(memberID uint, allowDemotion bool) error {
	if memberID == 0 {
		return ErrMemberNotFound
	}
	var promotedEvent *models.NotificationEvent
	err := s.memberRepo.Transaction(func(tx *gorm.DB) error {
		memberRepo := s.memberRepo.WithTx(tx)
		member, err := memberRepo.GetByIDForUpdate(memberID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}

		target := s.qualifiedLevel(member.DirectReferralCount, member.TeamSize)
		if target > member.RoleLevel && !member.IsPromotable() {
			logger.Infow("promotion_suspended_by_fraud_flag",
				"member_id", member.ID,
				"fraud_flag", member.FraudFlag,
				"qualified_level", target,
			)
			return nil
		}
		if target == member.RoleLevel {
			return nil
		}
		if target < member.RoleLevel && !allowDemotion {
			return nil
		}

		previous := member.RoleLevel
		if err := memberRepo.UpdateFields(member.ID, map[string]interface{}{
			"role_level": target,
		}); err != nil {
			return err
		}

		if target > previous {
			event, err := s.notification.EmitIn(tx, member.ID, constants.NotifyTypePromotion, models.JSON{
				"from_level": previous,
				"to_level":   target,
				"role_name":  s.cfg.Roles.NameOf(target),
			})
			if err != nil {
				return err
			}
			promotedEvent = event
			logger.Infow("member_promoted",
				"member_id", member.ID,
				"from_level", previous,
				"to_level", target,
			)
		} else {
			logger.Infow("member_demoted",
				"member_id", member.ID,
				"from_level", previous,
				"to_level", target,
			)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if promotedEvent != nil {
		s.notification.EnqueueDispatch(promotedEvent.ID)
	}
	return nil
}

// qualifiedLevel 返回计数满足的最高角色级别
func (s *PromotionService) qualifiedLevel(direct, team int64) int {
	thresholds := s.cfg.Roles.Thresholds
	for i := len(thresholds) - 1; i >= 0; i-- {
		row := thresholds[i]
		if direct >= row.MinDirect && team >= row.MinTeam {
			return row.Level
		}
	}
	return 1
}
