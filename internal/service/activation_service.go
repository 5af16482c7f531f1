package service

import (
	"fmt"
	"time"

	"github.com/talclub-next/internal/config"
	"github.com/talclub-next/internal/constants"
	"github.com/talclub-next/internal/logger"
	"github.com/talclub-next/internal/models"
	"github.com/talclub-next/internal/queue"
	"github.com/talclub-next/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ActivationService 激活协调器。
// 支付成功事件驱动两段式激活：先落激活状态，再沿上级链做幂等统计传播。
type ActivationService struct {
	cfg          *config.Config
	memberRepo   repository.MemberRepository
	referralRepo repository.ReferralRepository
	paymentRepo  repository.PaymentRepository
	reconRepo    repository.ReconciliationRepository
	stats        *StatsService
	promotion    *PromotionService
	notification *NotificationService
	queueClient  *queue.Client
}

// NewActivationService 创建激活协调器
func NewActivationService(
	cfg *config.Config,
	memberRepo repository.MemberRepository,
	referralRepo repository.ReferralRepository,
	paymentRepo repository.PaymentRepository,
	reconRepo repository.ReconciliationRepository,
	stats *StatsService,
	promotion *PromotionService,
	notification *NotificationService,
	queueClient *queue.Client,
) *ActivationService {
	return &ActivationService{
		cfg:          cfg,
		memberRepo:   memberRepo,
		referralRepo: referralRepo,
		paymentRepo:  paymentRepo,
		reconRepo:    reconRepo,
		stats:        stats,
		promotion:    promotion,
		notification: notification,
		queueClient:  queueClient,
	}
}

// ActivateOnPayment 处理支付成功事件。
// 以 payment_id 幂等：重复事件直接返回成功。激活状态转换在单事务内完成，
// 链路统计传播在事务外执行，失败走退避重试，耗尽后入对账队列，保证不会静默丢失。
func (s *ActivationService) ActivateOnPayment(memberID uint, paymentID string, amount decimal.Decimal, currency string) error {
	if memberID == 0 || paymentID == "" {
		return ErrMemberNotFound
	}
	started := time.Now()

	existing, err := s.paymentRepo.GetByPaymentID(paymentID)
	if err != nil {
		return err
	}
	if existing != nil {
		logger.Infow("payment_event_replay_ignored", "payment_id", paymentID, "member_id", memberID)
		return nil
	}

	var member *models.Member
	err = s.memberRepo.Transaction(func(tx *gorm.DB) error {
		memberRepo := s.memberRepo.WithTx(tx)
		referralRepo := s.referralRepo.WithTx(tx)

		member, err = memberRepo.GetByIDForUpdate(memberID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}

		rel, err := referralRepo.GetRelationshipByMemberIDForUpdate(memberID)
		if err != nil {
			return err
		}
		if rel == nil || rel.Status != constants.RelationshipStatusPending {
			return ErrRelationshipNotPending
		}

		now := time.Now()
		if err := memberRepo.UpdateFields(member.ID, map[string]interface{}{
			"payment_activated": true,
			"activated_at":      now,
		}); err != nil {
			return err
		}
		if err := referralRepo.UpdateRelationshipFields(rel.ID, map[string]interface{}{
			"status":       constants.RelationshipStatusActivated,
			"activated_at": now,
		}); err != nil {
			return err
		}
		createErr := s.paymentRepo.WithTx(tx).Create(&models.ProcessedPayment{
			PaymentID:   paymentID,
			MemberID:    memberID,
			Amount:      amount,
			Currency:    currency,
			ProcessedAt: now,
		})
		if createErr != nil && isUniqueViolation(createErr) {
			// 并发重复事件，放弃本次事务
			return errDuplicatePayment
		}
		return createErr
	})
	if err != nil {
		if err == errDuplicatePayment {
			logger.Infow("payment_event_concurrent_replay_ignored", "payment_id", paymentID)
			return nil
		}
		return err
	}

	logger.Infow("member_activated",
		"member_id", memberID,
		"payment_id", paymentID,
		"upline_depth", len(member.UplineChain),
	)

	if err := s.runWithRetry("activation_propagation_retry", member, paymentID, s.propagate); err != nil {
		s.enqueueReconciliation(memberID, paymentID, constants.ReconciliationReasonActivation, err)
	}

	if elapsed := time.Since(started); elapsed > time.Duration(s.cfg.Referral.PropagationSLASeconds)*time.Second {
		logger.Warnw("activation_propagation_sla_breached",
			"member_id", memberID,
			"payment_id", paymentID,
			"elapsed_ms", elapsed.Milliseconds(),
		)
	}
	return nil
}

var errDuplicatePayment = fmt.Errorf("duplicate payment event")

// ReplayPropagation 重放指定支付事件的链路传播（对账补偿路径）。
// 所有增量按幂等键记账，重放天然安全。
func (s *ActivationService) ReplayPropagation(memberID uint, paymentID string) error {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrMemberNotFound
	}
	return s.propagate(member, paymentID)
}

// ReverseActivation 撤销激活（确认欺诈或退款）。
// 负向增量以 rev: 前缀幂等记账，逐级重估并允许降级。
func (s *ActivationService) ReverseActivation(memberID uint, reason string) error {
	if memberID == 0 {
		return ErrMemberNotFound
	}
	var member *models.Member
	var paymentID string
	err := s.memberRepo.Transaction(func(tx *gorm.DB) error {
		memberRepo := s.memberRepo.WithTx(tx)
		referralRepo := s.referralRepo.WithTx(tx)

		var err error
		member, err = memberRepo.GetByIDForUpdate(memberID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}

		rel, err := referralRepo.GetRelationshipByMemberIDForUpdate(memberID)
		if err != nil {
			return err
		}
		if rel == nil || rel.Status != constants.RelationshipStatusActivated {
			return ErrRelationshipNotPending
		}

		now := time.Now()
		if err := memberRepo.UpdateFields(member.ID, map[string]interface{}{
			"payment_activated": false,
		}); err != nil {
			return err
		}
		return referralRepo.UpdateRelationshipFields(rel.ID, map[string]interface{}{
			"status":         constants.RelationshipStatusReversed,
			"reversed_at":    now,
			"reverse_reason": reason,
		})
	})
	if err != nil {
		return err
	}

	// 撤销键锚定原支付事件，确保与正向增量一一对应
	paymentID = fmt.Sprintf("member-%d", memberID)
	if payment, err := s.paymentRepo.GetLatestByMemberID(memberID); err == nil && payment != nil {
		paymentID = payment.PaymentID
	}

	if err := s.runWithRetry("reversal_propagation_retry", member, paymentID, s.reverse); err != nil {
		s.enqueueReconciliation(memberID, paymentID, constants.ReconciliationReasonReversal, err)
	}

	logger.Infow("activation_reversed",
		"member_id", memberID,
		"reason", reason,
		"ancestors", len(member.UplineChain),
	)
	return nil
}

// ReplayReversal 重放指定支付事件的撤销传播（对账补偿路径）。
// 撤销增量按 rev: 幂等键记账，重放天然安全。
func (s *ActivationService) ReplayReversal(memberID uint, paymentID string) error {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrMemberNotFound
	}
	return s.reverse(member, paymentID)
}

// runWithRetry 带退避重试地执行一趟链路传播（正向或撤销）
func (s *ActivationService) runWithRetry(event string, member *models.Member, paymentID string, fn func(*models.Member, string) error) error {
	attempts := s.cfg.Referral.RetryMaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := time.Duration(s.cfg.Referral.RetryBaseBackoffMS) * time.Millisecond
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(member, paymentID)
		if lastErr == nil {
			return nil
		}
		logger.Warnw(event,
			"member_id", member.ID,
			"payment_id", paymentID,
			"attempt", attempt,
			"error", lastErr,
		)
		if attempt < attempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return lastErr
}

// propagate 单趟链路传播：逐级幂等记账、晋升重估、通知。
func (s *ActivationService) propagate(member *models.Member, paymentID string) error {
	chain := member.UplineChain
	if len(chain) == 0 {
		return nil
	}
	for depth, ancestorID := range chain {
		key := fmt.Sprintf("%s:%d", paymentID, ancestorID)
		directDelta := int64(0)
		if depth == 0 {
			// 直接推荐人：直推数与团队数同时 +1
			directDelta = 1
		}
		if err := s.stats.ApplyDelta(ancestorID, directDelta, 1, key, constants.DeltaSourceActivation); err != nil {
			return fmt.Errorf("apply delta for ancestor %d: %w", ancestorID, err)
		}
		if err := s.promotion.Evaluate(ancestorID); err != nil {
			return fmt.Errorf("evaluate promotion for ancestor %d: %w", ancestorID, err)
		}
	}

	// 新下级激活通知只发给直接推荐人，按支付事件幂等，重放不重发
	dedupeKey := fmt.Sprintf("new_referral:%s", paymentID)
	if err := s.notification.EmitUnique(chain[0], constants.NotifyTypeNewReferral, dedupeKey, models.JSON{
		"member_id":    member.ID,
		"display_name": member.DisplayName,
		"payment_id":   paymentID,
	}); err != nil {
		return fmt.Errorf("emit new referral notification: %w", err)
	}
	return nil
}

// reverse 单趟撤销传播：只回滚已入账的正向增量，逐级重估并允许降级。
func (s *ActivationService) reverse(member *models.Member, paymentID string) error {
	for depth, ancestorID := range member.UplineChain {
		applied, err := s.stats.DeltaApplied(fmt.Sprintf("%s:%d", paymentID, ancestorID))
		if err != nil {
			return fmt.Errorf("check forward delta for ancestor %d: %w", ancestorID, err)
		}
		if !applied {
			// 正向增量从未入账的层级没有可回滚的贡献
			logger.Debugw("reversal_skip_unapplied_delta",
				"ancestor_id", ancestorID,
				"payment_id", paymentID,
			)
			continue
		}
		key := fmt.Sprintf("rev:%s:%d", paymentID, ancestorID)
		directDelta := int64(0)
		if depth == 0 {
			directDelta = -1
		}
		if err := s.stats.ApplyDelta(ancestorID, directDelta, -1, key, constants.DeltaSourceReversal); err != nil {
			return fmt.Errorf("apply reversal delta for ancestor %d: %w", ancestorID, err)
		}
		if err := s.promotion.EvaluateWithDemotion(ancestorID); err != nil {
			return fmt.Errorf("evaluate demotion for ancestor %d: %w", ancestorID, err)
		}
	}
	return nil
}

// enqueueReconciliation 传播失败兜底：登记对账任务并排队异步重放。
// 任务原因记录传播方向，对账处理按方向选择重放路径。
func (s *ActivationService) enqueueReconciliation(memberID uint, paymentID, reason string, cause error) {
	task := &models.ReconciliationTask{
		MemberID:  memberID,
		PaymentID: paymentID,
		Reason:    reason,
		Status:    constants.ReconciliationStatusPending,
		LastError: cause.Error(),
	}
	if err := s.reconRepo.Create(task); err != nil {
		logger.Errorw("reconciliation_task_create_failed",
			"member_id", memberID,
			"payment_id", paymentID,
			"error", err,
		)
		return
	}
	logger.Errorw("propagation_exhausted",
		"member_id", memberID,
		"payment_id", paymentID,
		"task_id", task.ID,
		"reason", reason,
		"error", cause,
	)
	if s.queueClient != nil {
		if err := s.queueClient.EnqueueActivationReconcile(queue.ActivationReconcilePayload{
			TaskID:    task.ID,
			MemberID:  memberID,
			PaymentID: paymentID,
		}, time.Minute); err != nil {
			logger.Warnw("activation_reconcile_enqueue_failed", "task_id", task.ID, "error", err)
		}
	}
}
