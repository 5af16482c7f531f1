package service

import (
	"testing"

	"github.com/talclub-next/internal/constants"
	"github.com/talclub-next/internal/models"
)

func TestApplyDeltaReplayIsNoop(t *testing.T) {
	s := setupReferralTestStack(t, "stats_replay")

	member := createReferralTestMember(t, s.db, "stats@example.com", "TALSTAT01", nil)

	for i := 0; i < 3; i++ {
		if err := s.stats.ApplyDelta(member.ID, 1, 1, "pay-1:1", constants.DeltaSourceActivation); err != nil {
			t.Fatalf("apply delta round %d failed: %v", i, err)
		}
	}

	reloaded := reloadReferralTestMember(t, s.db, member.ID)
	if reloaded.DirectReferralCount != 1 || reloaded.TeamSize != 1 {
		t.Fatalf("expected counters 1/1 after replays, got direct=%d team=%d",
			reloaded.DirectReferralCount, reloaded.TeamSize)
	}

	var ledgerCount int64
	if err := s.db.Model(&models.StatDelta{}).Count(&ledgerCount).Error; err != nil {
		t.Fatalf("count deltas failed: %v", err)
	}
	if ledgerCount != 1 {
		t.Fatalf("expected single ledger entry, got %d", ledgerCount)
	}
}

func TestApplyDeltaDistinctKeysAccumulate(t *testing.T) {
	s := setupReferralTestStack(t, "stats_accumulate")

	member := createReferralTestMember(t, s.db, "acc@example.com", "TALSTAT02", nil)

	if err := s.stats.ApplyDelta(member.ID, 1, 1, "pay-1:k", constants.DeltaSourceActivation); err != nil {
		t.Fatalf("apply first delta failed: %v", err)
	}
	if err := s.stats.ApplyDelta(member.ID, 0, 1, "pay-2:k", constants.DeltaSourceActivation); err != nil {
		t.Fatalf("apply second delta failed: %v", err)
	}

	reloaded := reloadReferralTestMember(t, s.db, member.ID)
	if reloaded.DirectReferralCount != 1 || reloaded.TeamSize != 2 {
		t.Fatalf("expected counters 1/2, got direct=%d team=%d",
			reloaded.DirectReferralCount, reloaded.TeamSize)
	}
}

func TestRecomputeTeamSizeCountsActivatedDescendants(t *testing.T) {
	s := setupReferralTestStack(t, "stats_recompute")

	root := createReferralTestMember(t, s.db, "root@example.com", "TALROOT01", nil)
	mid := createReferralTestChild(t, s.db, "mid@example.com", "TALMID001", root, true)
	createReferralTestChild(t, s.db, "leaf1@example.com", "TALLEAF01", mid, true)
	createReferralTestChild(t, s.db, "leaf2@example.com", "TALLEAF02", mid, false)

	recomputed, err := s.stats.RecomputeTeamSize(root.ID)
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	// 仅统计已激活后代：mid 与 leaf1
	if recomputed != 2 {
		t.Fatalf("expected team size 2, got %d", recomputed)
	}
}

func TestReconcileSampleDetectsDriftAndEnqueuesTask(t *testing.T) {
	s := setupReferralTestStack(t, "stats_drift")

	drifted := createReferralTestMember(t, s.db, "drift@example.com", "TALDRIFT1", func(m *models.Member) {
		m.PaymentActivated = true
		m.TeamSize = 5 // 无任何下级，存量计数漂移
	})

	report, err := s.stats.ReconcileSample(10)
	if err != nil {
		t.Fatalf("reconcile sample failed: %v", err)
	}
	if report.Inconsistent != 1 || report.Checked != 1 {
		t.Fatalf("expected 1 checked / 1 inconsistent, got %+v", report)
	}
	if len(report.DriftMembers) != 1 || report.DriftMembers[0] != drifted.ID {
		t.Fatalf("expected drift member %d, got %v", drifted.ID, report.DriftMembers)
	}

	pending, err := s.reconRepo.HasPendingForMember(drifted.ID)
	if err != nil {
		t.Fatalf("check pending task failed: %v", err)
	}
	if !pending {
		t.Fatalf("expected pending reconciliation task for drift member")
	}

	// 再次抽样不重复登记
	if _, err := s.stats.ReconcileSample(10); err != nil {
		t.Fatalf("second reconcile sample failed: %v", err)
	}
	var taskCount int64
	if err := s.db.Model(&models.ReconciliationTask{}).Where("member_id = ?", drifted.ID).Count(&taskCount).Error; err != nil {
		t.Fatalf("count tasks failed: %v", err)
	}
	if taskCount != 1 {
		t.Fatalf("expected single reconciliation task, got %d", taskCount)
	}
}

func TestRepairTeamSize(t *testing.T) {
	s := setupReferralTestStack(t, "stats_repair")

	root := createReferralTestMember(t, s.db, "repair@example.com", "TALFIX001", func(m *models.Member) {
		m.PaymentActivated = true
		m.TeamSize = 99
	})
	createReferralTestChild(t, s.db, "repair-child@example.com", "TALFIX002", root, true)

	if err := s.stats.RepairTeamSize(root.ID); err != nil {
		t.Fatalf("repair failed: %v", err)
	}
	reloaded := reloadReferralTestMember(t, s.db, root.ID)
	if reloaded.TeamSize != 1 {
		t.Fatalf("expected repaired team size 1, got %d", reloaded.TeamSize)
	}
}
