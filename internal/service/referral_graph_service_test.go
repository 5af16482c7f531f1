package service

import (
	"errors"
	"testing"

	"github.com/talclub-next/internal/constants"
	"github.com/talclub-next/internal/models"
)

func TestRecordPendingRelationship(t *testing.T) {
	s := setupReferralTestStack(t, "graph_pending")

	referrer := createReferralTestMember(t, s.db, "referrer@example.com", "TALAAAAAA", nil)
	member := createReferralTestMember(t, s.db, "member@example.com", "TALBBBBBB", nil)

	rel, err := s.graph.RecordPendingRelationship(nil, member, "talaaaaaa")
	if err != nil {
		t.Fatalf("record pending relationship failed: %v", err)
	}
	if rel.Status != constants.RelationshipStatusPending {
		t.Fatalf("expected pending status, got %s", rel.Status)
	}
	if rel.ReferrerID != referrer.ID {
		t.Fatalf("expected referrer %d, got %d", referrer.ID, rel.ReferrerID)
	}

	reloaded := reloadReferralTestMember(t, s.db, member.ID)
	if reloaded.ReferredBy == nil || *reloaded.ReferredBy != referrer.ID {
		t.Fatalf("expected referred_by %d, got %+v", referrer.ID, reloaded.ReferredBy)
	}
	if len(reloaded.UplineChain) != 1 || reloaded.UplineChain[0] != referrer.ID {
		t.Fatalf("expected upline chain [%d], got %v", referrer.ID, reloaded.UplineChain)
	}

	// 落关系不触碰计数器
	reloadedReferrer := reloadReferralTestMember(t, s.db, referrer.ID)
	if reloadedReferrer.DirectReferralCount != 0 || reloadedReferrer.TeamSize != 0 {
		t.Fatalf("expected untouched counters, got direct=%d team=%d",
			reloadedReferrer.DirectReferralCount, reloadedReferrer.TeamSize)
	}
}

func TestRecordPendingRelationshipRejectsSelfReferral(t *testing.T) {
	s := setupReferralTestStack(t, "graph_self")

	member := createReferralTestMember(t, s.db, "self@example.com", "TALCCCCCC", nil)

	if _, err := s.graph.RecordPendingRelationship(nil, member, "TALCCCCCC"); !errors.Is(err, ErrSelfReferralBlocked) {
		t.Fatalf("expected ErrSelfReferralBlocked, got %v", err)
	}
}

func TestRecordPendingRelationshipRejectsCycle(t *testing.T) {
	s := setupReferralTestStack(t, "graph_cycle")

	member := createReferralTestMember(t, s.db, "ancestor@example.com", "TALDDDDDD", nil)
	// 推荐人的上级链中已包含该会员，挂接会构成环
	descendant := createReferralTestMember(t, s.db, "descendant@example.com", "TALEEEEEE", func(m *models.Member) {
		m.UplineChain = models.UintList{member.ID}
	})
	_ = descendant

	if _, err := s.graph.RecordPendingRelationship(nil, member, "TALEEEEEE"); !errors.Is(err, ErrCircularReferral) {
		t.Fatalf("expected ErrCircularReferral, got %v", err)
	}
}

func TestRecordPendingRelationshipRejectsUnknownCode(t *testing.T) {
	s := setupReferralTestStack(t, "graph_unknown_code")

	member := createReferralTestMember(t, s.db, "unknown@example.com", "TALFFFFFF", nil)

	if _, err := s.graph.RecordPendingRelationship(nil, member, "TALZZZZZZ"); !errors.Is(err, ErrInvalidReferralCode) {
		t.Fatalf("expected ErrInvalidReferralCode, got %v", err)
	}
}

func TestUplineChainTruncatedAtDepthLimit(t *testing.T) {
	cfg := newReferralTestConfig()
	cfg.Referral.UplineDepthLimit = 3
	s := setupReferralTestStackWithConfig(t, "graph_depth", cfg)

	referrer := createReferralTestMember(t, s.db, "deep@example.com", "TALGGGGGG", func(m *models.Member) {
		m.UplineChain = models.UintList{101, 102, 103, 104, 105}
	})
	member := createReferralTestMember(t, s.db, "leaf@example.com", "TALHHHHHH", nil)

	if _, err := s.graph.RecordPendingRelationship(nil, member, "TALGGGGGG"); err != nil {
		t.Fatalf("record pending relationship failed: %v", err)
	}

	reloaded := reloadReferralTestMember(t, s.db, member.ID)
	if len(reloaded.UplineChain) != 3 {
		t.Fatalf("expected chain truncated to 3, got %v", reloaded.UplineChain)
	}
	if reloaded.UplineChain[0] != referrer.ID || reloaded.UplineChain[1] != 101 || reloaded.UplineChain[2] != 102 {
		t.Fatalf("unexpected truncated chain order: %v", reloaded.UplineChain)
	}
}
