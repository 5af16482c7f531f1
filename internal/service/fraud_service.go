package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/talclub-next/internal/cache"
	"github.com/talclub-next/internal/config"
	"github.com/talclub-next/internal/constants"
	"github.com/talclub-next/internal/logger"
	"github.com/talclub-next/internal/models"
	"github.com/talclub-next/internal/repository"
)

// FraudService 风控服务。
// 命中阈值只做标记不拦截注册：标记会员暂停本人晋升，待人工确认后再做补偿撤销。
type FraudService struct {
	cfg          *config.Config
	fraudRepo    repository.FraudRepository
	memberRepo   repository.MemberRepository
	referralRepo repository.ReferralRepository
	activation   *ActivationService
	notification *NotificationService
}

// NewFraudService 创建风控服务
func NewFraudService(
	cfg *config.Config,
	fraudRepo repository.FraudRepository,
	memberRepo repository.MemberRepository,
	referralRepo repository.ReferralRepository,
	activation *ActivationService,
	notification *NotificationService,
) *FraudService {
	return &FraudService{
		cfg:          cfg,
		fraudRepo:    fraudRepo,
		memberRepo:   memberRepo,
		referralRepo: referralRepo,
		activation:   activation,
		notification: notification,
	}
}

// ScreenInput 注册风控筛查输入
type ScreenInput struct {
	MemberID     uint
	ReferrerCode string
	DeviceID     string
	IP           string
}

// Screen 注册后风控筛查：记录指纹并判定是否标记可疑
func (s *FraudService) Screen(ctx context.Context, input ScreenInput) (bool, error) {
	if input.MemberID == 0 {
		return false, ErrMemberNotFound
	}
	if err := s.fraudRepo.CreateFingerprint(&models.RegistrationFingerprint{
		MemberID:     input.MemberID,
		DeviceID:     strings.TrimSpace(input.DeviceID),
		IP:           strings.TrimSpace(input.IP),
		ReferrerCode: strings.ToUpper(strings.TrimSpace(input.ReferrerCode)),
	}); err != nil {
		return false, err
	}

	window := time.Duration(s.cfg.Fraud.WindowHours) * time.Hour
	if window <= 0 {
		window = 24 * time.Hour
	}
	since := time.Now().Add(-window)

	suspicious, reason, err := s.checkFingerprints(input, since)
	if err != nil {
		return false, err
	}
	if !suspicious {
		suspicious, reason, err = s.checkVelocity(ctx, input.ReferrerCode, window, since)
		if err != nil {
			return false, err
		}
	}
	if !suspicious {
		return false, nil
	}

	if err := s.memberRepo.UpdateFields(input.MemberID, map[string]interface{}{
		"fraud_flag": constants.FraudFlagSuspected,
	}); err != nil {
		return false, err
	}
	logger.Warnw("member_flagged_suspected",
		"member_id", input.MemberID,
		"reason", reason,
		"device_id", input.DeviceID,
		"ip", input.IP,
	)
	return true, nil
}

// ConfirmFraud 人工确认欺诈：补偿撤销激活贡献并锁定标记
func (s *FraudService) ConfirmFraud(memberID uint) error {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrMemberNotFound
	}

	rel, err := s.referralRepo.GetRelationshipByMemberID(memberID)
	if err != nil {
		return err
	}
	if rel != nil && rel.Status == constants.RelationshipStatusActivated {
		if err := s.activation.ReverseActivation(memberID, constants.ReverseReasonFraud); err != nil {
			return err
		}
	}

	if err := s.memberRepo.UpdateFields(memberID, map[string]interface{}{
		"fraud_flag": constants.FraudFlagConfirmed,
	}); err != nil {
		return err
	}
	logger.Warnw("member_fraud_confirmed", "member_id", memberID)

	if rel != nil {
		// 重复确认不重发通知
		dedupeKey := fmt.Sprintf("fraud_reversal:%d", memberID)
		if err := s.notification.EmitUnique(rel.ReferrerID, constants.NotifyTypeFraudReversal, dedupeKey, models.JSON{
			"member_id": memberID,
		}); err != nil {
			logger.Warnw("fraud_reversal_notify_failed", "member_id", memberID, "error", err)
		}
	}
	return nil
}

// checkFingerprints 判定设备/IP 指纹是否超过窗口阈值
func (s *FraudService) checkFingerprints(input ScreenInput, since time.Time) (bool, string, error) {
	threshold := int64(s.cfg.Fraud.FingerprintThreshold)
	if threshold <= 0 {
		return false, "", nil
	}
	if device := strings.TrimSpace(input.DeviceID); device != "" {
		count, err := s.fraudRepo.CountByDeviceSince(device, since)
		if err != nil {
			return false, "", err
		}
		if count >= threshold {
			return true, "device_fingerprint_threshold", nil
		}
	}
	if ip := strings.TrimSpace(input.IP); ip != "" {
		count, err := s.fraudRepo.CountByIPSince(ip, since)
		if err != nil {
			return false, "", err
		}
		if count >= threshold {
			return true, "ip_fingerprint_threshold", nil
		}
	}
	return false, "", nil
}

// checkVelocity 判定推荐码使用频率是否异常。
// 缓存可用时走窗口计数器，否则回退到关系表统计。
func (s *FraudService) checkVelocity(ctx context.Context, code string, window time.Duration, since time.Time) (bool, string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return false, "", nil
	}
	threshold := int64(s.cfg.Fraud.VelocityThreshold)
	if threshold <= 0 {
		return false, "", nil
	}

	if cache.Enabled() {
		count, err := cache.IncrWithWindow(ctx, fmt.Sprintf("fraud:velocity:%s", normalized), window)
		if err != nil {
			logger.Warnw("velocity_counter_failed_fallback_db", "code", normalized, "error", err)
		} else if count >= threshold {
			return true, "referral_velocity_threshold", nil
		} else {
			return false, "", nil
		}
	}

	count, err := s.referralRepo.CountRecentByReferrerCode(normalized, since)
	if err != nil {
		return false, "", err
	}
	if count >= threshold {
		return true, "referral_velocity_threshold", nil
	}
	return false, "", nil
}
