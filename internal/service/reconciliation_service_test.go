package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/talclub-next/internal/constants"
	"github.com/talclub-next/internal/models"
	"github.com/shopspring/decimal"
)

func TestProcessReconciliationReplaysPropagation(t *testing.T) {
	s := setupReferralTestStack(t, "recon_replay")

	root := createReferralTestMember(t, s.db, "rc-root@example.com", "TALRCN001", nil)
	leaf := createReferralTestChild(t, s.db, "rc-leaf@example.com", "TALRCN002", root, false)

	if err := s.activation.ActivateOnPayment(leaf.ID, "pay-8001", decimal.NewFromInt(10), "PHP"); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	task := &models.ReconciliationTask{
		MemberID:  leaf.ID,
		PaymentID: "pay-8001",
		Reason:    constants.ReconciliationReasonActivation,
		Status:    constants.ReconciliationStatusPending,
	}
	if err := s.reconRepo.Create(task); err != nil {
		t.Fatalf("create task failed: %v", err)
	}

	if err := s.recon.Process(task.ID); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	// 幂等重放后计数不翻倍
	reloadedRoot := reloadReferralTestMember(t, s.db, root.ID)
	if reloadedRoot.DirectReferralCount != 1 || reloadedRoot.TeamSize != 1 {
		t.Fatalf("expected counters 1/1 after replay, got direct=%d team=%d",
			reloadedRoot.DirectReferralCount, reloadedRoot.TeamSize)
	}

	processed, err := s.reconRepo.GetByID(task.ID)
	if err != nil || processed == nil {
		t.Fatalf("reload task failed: %v", err)
	}
	if processed.Status != constants.ReconciliationStatusDone || processed.Attempts != 1 {
		t.Fatalf("expected done task with 1 attempt, got %+v", processed)
	}
}

func TestProcessReconciliationReplaysReversal(t *testing.T) {
	s := setupReferralTestStack(t, "recon_reversal")

	grand := createReferralTestMember(t, s.db, "rv-grand@example.com", "TALRVS001", nil)
	parent := createReferralTestChild(t, s.db, "rv-parent@example.com", "TALRVS002", grand, true)
	leaf := createReferralTestChild(t, s.db, "rv-leaf@example.com", "TALRVS003", parent, false)

	if err := s.activation.ActivateOnPayment(leaf.ID, "pay-8101", decimal.NewFromInt(25), "PHP"); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	// 模拟撤销传播中断：关系已撤销，但只有直接推荐人的负向增量入了账
	if err := s.db.Model(&models.Member{}).Where("id = ?", leaf.ID).
		Update("payment_activated", false).Error; err != nil {
		t.Fatalf("deactivate leaf failed: %v", err)
	}
	if err := s.db.Model(&models.ReferralRelationship{}).Where("member_id = ?", leaf.ID).
		Update("status", constants.RelationshipStatusReversed).Error; err != nil {
		t.Fatalf("reverse relationship failed: %v", err)
	}
	key := fmt.Sprintf("rev:pay-8101:%d", parent.ID)
	if err := s.stats.ApplyDelta(parent.ID, -1, -1, key, constants.DeltaSourceReversal); err != nil {
		t.Fatalf("apply partial reversal delta failed: %v", err)
	}

	task := &models.ReconciliationTask{
		MemberID:  leaf.ID,
		PaymentID: "pay-8101",
		Reason:    constants.ReconciliationReasonReversal,
		Status:    constants.ReconciliationStatusPending,
	}
	if err := s.reconRepo.Create(task); err != nil {
		t.Fatalf("create task failed: %v", err)
	}

	if err := s.recon.Process(task.ID); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	// 撤销任务沿负向补齐：深层祖先的团队数回到撤销前状态
	reloadedGrand := reloadReferralTestMember(t, s.db, grand.ID)
	if reloadedGrand.TeamSize != 0 {
		t.Fatalf("expected grand team size 0 after reversal replay, got %d", reloadedGrand.TeamSize)
	}
	reloadedParent := reloadReferralTestMember(t, s.db, parent.ID)
	if reloadedParent.DirectReferralCount != 0 || reloadedParent.TeamSize != 0 {
		t.Fatalf("expected parent counters 0/0 without double reversal, got direct=%d team=%d",
			reloadedParent.DirectReferralCount, reloadedParent.TeamSize)
	}

	processed, err := s.reconRepo.GetByID(task.ID)
	if err != nil || processed == nil {
		t.Fatalf("reload task failed: %v", err)
	}
	if processed.Status != constants.ReconciliationStatusDone {
		t.Fatalf("expected done task, got %+v", processed)
	}
}

func TestProcessReconciliationRepairsDrift(t *testing.T) {
	s := setupReferralTestStack(t, "recon_repair")

	drifted := createReferralTestMember(t, s.db, "rc-drift@example.com", "TALRCN003", func(m *models.Member) {
		m.PaymentActivated = true
		m.TeamSize = 7
	})

	task := &models.ReconciliationTask{
		MemberID: drifted.ID,
		Reason:   "team_size_drift: stored=7 recomputed=0",
		Status:   constants.ReconciliationStatusPending,
	}
	if err := s.reconRepo.Create(task); err != nil {
		t.Fatalf("create task failed: %v", err)
	}

	if err := s.recon.Process(task.ID); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	reloaded := reloadReferralTestMember(t, s.db, drifted.ID)
	if reloaded.TeamSize != 0 {
		t.Fatalf("expected repaired team size 0, got %d", reloaded.TeamSize)
	}
}

func TestProcessReconciliationUnknownTask(t *testing.T) {
	s := setupReferralTestStack(t, "recon_unknown")

	if err := s.recon.Process(999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.recon.Retry(999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on retry, got %v", err)
	}
}
