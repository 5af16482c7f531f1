package service

import (
	"context"
	"testing"

	"github.com/talclub-next/internal/constants"
	"github.com/talclub-next/internal/models"
	"github.com/shopspring/decimal"
)

func TestScreenFlagsDeviceFingerprintThreshold(t *testing.T) {
	s := setupReferralTestStack(t, "fraud_device")

	member := createReferralTestMember(t, s.db, "fp@example.com", "TALFRD001", nil)

	// 同一设备在窗口内已有两次注册，第三次触达阈值
	for i := 0; i < 2; i++ {
		if err := s.fraudRepo.CreateFingerprint(&models.RegistrationFingerprint{
			MemberID: uint(1000 + i),
			DeviceID: "device-abc",
			IP:       "10.0.0.1",
		}); err != nil {
			t.Fatalf("seed fingerprint %d failed: %v", i, err)
		}
	}

	flagged, err := s.fraud.Screen(context.Background(), ScreenInput{
		MemberID: member.ID,
		DeviceID: "device-abc",
		IP:       "10.0.0.9",
	})
	if err != nil {
		t.Fatalf("screen failed: %v", err)
	}
	if !flagged {
		t.Fatalf("expected member flagged by device fingerprint")
	}

	reloaded := reloadReferralTestMember(t, s.db, member.ID)
	if reloaded.FraudFlag != constants.FraudFlagSuspected {
		t.Fatalf("expected suspected flag, got %s", reloaded.FraudFlag)
	}
}

func TestScreenBelowThresholdLeavesMemberClean(t *testing.T) {
	s := setupReferralTestStack(t, "fraud_clean")

	member := createReferralTestMember(t, s.db, "clean@example.com", "TALFRD002", nil)

	flagged, err := s.fraud.Screen(context.Background(), ScreenInput{
		MemberID: member.ID,
		DeviceID: "device-unique",
		IP:       "10.0.0.2",
	})
	if err != nil {
		t.Fatalf("screen failed: %v", err)
	}
	if flagged {
		t.Fatalf("expected clean member not flagged")
	}
	reloaded := reloadReferralTestMember(t, s.db, member.ID)
	if reloaded.FraudFlag != constants.FraudFlagNone {
		t.Fatalf("expected none flag, got %s", reloaded.FraudFlag)
	}
}

func TestScreenVelocityFallsBackToDatabase(t *testing.T) {
	cfg := newReferralTestConfig()
	cfg.Fraud.VelocityThreshold = 2
	s := setupReferralTestStackWithConfig(t, "fraud_velocity", cfg)

	referrer := createReferralTestMember(t, s.db, "vel-ref@example.com", "TALVEL001", nil)
	createReferralTestChild(t, s.db, "vel-a@example.com", "TALVEL002", referrer, false)
	createReferralTestChild(t, s.db, "vel-b@example.com", "TALVEL003", referrer, false)

	member := createReferralTestMember(t, s.db, "vel-c@example.com", "TALVEL004", nil)
	flagged, err := s.fraud.Screen(context.Background(), ScreenInput{
		MemberID:     member.ID,
		ReferrerCode: "talvel001",
		DeviceID:     "device-vel",
		IP:           "10.0.0.3",
	})
	if err != nil {
		t.Fatalf("screen failed: %v", err)
	}
	if !flagged {
		t.Fatalf("expected member flagged by referral velocity")
	}
}

func TestConfirmFraudReversesActivation(t *testing.T) {
	s := setupReferralTestStack(t, "fraud_confirm")

	referrer := createReferralTestMember(t, s.db, "cf-ref@example.com", "TALCNF001", nil)
	suspect := createReferralTestChild(t, s.db, "cf-sus@example.com", "TALCNF002", referrer, false)

	if err := s.activation.ActivateOnPayment(suspect.ID, "pay-7001", decimal.NewFromInt(99), "PHP"); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	before := reloadReferralTestMember(t, s.db, referrer.ID)
	if before.DirectReferralCount != 1 {
		t.Fatalf("expected referrer credited before confirmation, got %d", before.DirectReferralCount)
	}

	if err := s.fraud.ConfirmFraud(suspect.ID); err != nil {
		t.Fatalf("confirm fraud failed: %v", err)
	}

	reloadedSuspect := reloadReferralTestMember(t, s.db, suspect.ID)
	if reloadedSuspect.FraudFlag != constants.FraudFlagConfirmed {
		t.Fatalf("expected confirmed flag, got %s", reloadedSuspect.FraudFlag)
	}
	if reloadedSuspect.PaymentActivated {
		t.Fatalf("expected suspect deactivated")
	}

	after := reloadReferralTestMember(t, s.db, referrer.ID)
	if after.DirectReferralCount != 0 || after.TeamSize != 0 {
		t.Fatalf("expected referrer counters compensated to 0/0, got direct=%d team=%d",
			after.DirectReferralCount, after.TeamSize)
	}

	rel, err := s.referralRepo.GetRelationshipByMemberID(suspect.ID)
	if err != nil || rel == nil {
		t.Fatalf("load relationship failed: %v", err)
	}
	if rel.Status != constants.RelationshipStatusReversed || rel.ReverseReason != constants.ReverseReasonFraud {
		t.Fatalf("expected reversed relationship with fraud reason, got %+v", rel)
	}

	if got := countNotificationEvents(t, s.db, referrer.ID, constants.NotifyTypeFraudReversal); got != 1 {
		t.Fatalf("expected fraud reversal notification to referrer, got %d", got)
	}
}
