package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/talclub-next/internal/config"
	"github.com/talclub-next/internal/constants"
	"github.com/talclub-next/internal/models"
	"github.com/talclub-next/internal/repository"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// referralTestStack 测试用全量服务栈（内存库、无队列、无外部通道）
type referralTestStack struct {
	cfg *config.Config
	db  *gorm.DB

	memberRepo       repository.MemberRepository
	referralRepo     repository.ReferralRepository
	statsRepo        repository.StatsRepository
	paymentRepo      repository.PaymentRepository
	fraudRepo        repository.FraudRepository
	notificationRepo repository.NotificationRepository
	reconRepo        repository.ReconciliationRepository

	registry     *CodeRegistryService
	graph        *GraphService
	stats        *StatsService
	promotion    *PromotionService
	notification *NotificationService
	activation   *ActivationService
	fraud        *FraudService
	orphan       *OrphanService
	member       *MemberService
	recon        *ReconciliationService
}

func newReferralTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT.SecretKey = "test-admin-secret-key-0123456789abcdef"
	cfg.JWT.ExpireHours = 24
	cfg.MemberJWT.SecretKey = "test-member-secret-key-0123456789abcdef"
	cfg.MemberJWT.ExpireHours = 168
	cfg.Referral = config.ReferralConfig{
		CodePrefix:            "TAL",
		CodeLength:            6,
		GenerateMaxRetry:      10,
		UplineDepthLimit:      30,
		PropagationSLASeconds: 30,
		RetryMaxAttempts:      1,
		RetryBaseBackoffMS:    1,
		JoinHost:              "https://talclub.example.com",
	}
	cfg.Fraud = config.FraudConfig{
		WindowHours:          24,
		FingerprintThreshold: 3,
		VelocityThreshold:    30,
	}
	cfg.Orphan = config.OrphanConfig{
		RadiusKM:      50,
		FallbackEmail: "fallback@talclub.test",
	}
	cfg.Roles = config.RolesConfig{Thresholds: config.DefaultRoleTable()}
	return cfg
}

func setupReferralTestStack(t *testing.T, name string) *referralTestStack {
	t.Helper()
	return setupReferralTestStackWithConfig(t, name, newReferralTestConfig())
}

func setupReferralTestStackWithConfig(t *testing.T, name string, cfg *config.Config) *referralTestStack {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Admin{},
		&models.Member{},
		&models.ReferralCode{},
		&models.ReferralRelationship{},
		&models.StatDelta{},
		&models.ProcessedPayment{},
		&models.RegistrationFingerprint{},
		&models.NotificationEvent{},
		&models.ReconciliationTask{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	s := &referralTestStack{cfg: cfg, db: db}
	s.memberRepo = repository.NewMemberRepository(db)
	s.referralRepo = repository.NewReferralRepository(db)
	s.statsRepo = repository.NewStatsRepository(db)
	s.paymentRepo = repository.NewPaymentRepository(db)
	s.fraudRepo = repository.NewFraudRepository(db)
	s.notificationRepo = repository.NewNotificationRepository(db)
	s.reconRepo = repository.NewReconciliationRepository(db)

	auth := NewAuthService(cfg, repository.NewAdminRepository(db), s.memberRepo)
	s.registry = NewCodeRegistryService(cfg, s.referralRepo)
	s.graph = NewGraphService(cfg, s.memberRepo, s.referralRepo)
	s.notification = NewNotificationService(s.notificationRepo, nil, NewWebhookChannel(&cfg.Notify))
	s.stats = NewStatsService(cfg, s.memberRepo, s.statsRepo, s.reconRepo)
	s.promotion = NewPromotionService(cfg, s.memberRepo, s.notification)
	s.activation = NewActivationService(cfg, s.memberRepo, s.referralRepo, s.paymentRepo, s.reconRepo,
		s.stats, s.promotion, s.notification, nil)
	s.fraud = NewFraudService(cfg, s.fraudRepo, s.memberRepo, s.referralRepo, s.activation, s.notification)
	s.orphan = NewOrphanService(cfg, s.memberRepo, s.referralRepo, s.graph, s.notification)
	s.member = NewMemberService(cfg, s.memberRepo, s.referralRepo, s.registry, s.graph, s.orphan, s.fraud, auth)
	s.recon = NewReconciliationService(s.reconRepo, s.activation, s.stats)
	return s
}

// createReferralTestMember 直接落库一个会员，并登记其推荐码
func createReferralTestMember(t *testing.T, db *gorm.DB, email, code string, mutate func(m *models.Member)) *models.Member {
	t.Helper()

	member := &models.Member{
		Email:        email,
		PasswordHash: "test-hash",
		DisplayName:  email,
		ReferralCode: code,
		UplineChain:  models.UintList{},
		RoleLevel:    1,
		FraudFlag:    constants.FraudFlagNone,
		Status:       constants.MemberStatusActive,
		RegisteredAt: time.Now(),
	}
	if mutate != nil {
		mutate(member)
	}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("create member %s failed: %v", email, err)
	}
	if code != "" {
		if err := db.Create(&models.ReferralCode{Code: code, OwnerID: member.ID}).Error; err != nil {
			t.Fatalf("create referral code %s failed: %v", code, err)
		}
	}
	return member
}

// createReferralTestChild 落库下级会员：挂接上级链并建立推荐关系
func createReferralTestChild(t *testing.T, db *gorm.DB, email, code string, parent *models.Member, activated bool) *models.Member {
	t.Helper()

	child := createReferralTestMember(t, db, email, code, func(m *models.Member) {
		m.ReferredBy = &parent.ID
		m.UplineChain = append(models.UintList{parent.ID}, parent.UplineChain...)
		m.PaymentActivated = activated
		if activated {
			now := time.Now()
			m.ActivatedAt = &now
		}
	})

	rel := &models.ReferralRelationship{
		MemberID:     child.ID,
		ReferrerID:   parent.ID,
		ReferrerCode: parent.ReferralCode,
		Status:       constants.RelationshipStatusPending,
	}
	if activated {
		now := time.Now()
		rel.Status = constants.RelationshipStatusActivated
		rel.ActivatedAt = &now
	}
	if err := db.Create(rel).Error; err != nil {
		t.Fatalf("create relationship for %s failed: %v", email, err)
	}
	return child
}

func reloadReferralTestMember(t *testing.T, db *gorm.DB, id uint) *models.Member {
	t.Helper()
	var member models.Member
	if err := db.First(&member, id).Error; err != nil {
		t.Fatalf("reload member %d failed: %v", id, err)
	}
	return &member
}

func countNotificationEvents(t *testing.T, db *gorm.DB, memberID uint, eventType string) int64 {
	t.Helper()
	var total int64
	query := db.Model(&models.NotificationEvent{})
	if memberID != 0 {
		query = query.Where("member_id = ?", memberID)
	}
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}
	if err := query.Count(&total).Error; err != nil {
		t.Fatalf("count notification events failed: %v", err)
	}
	return total
}
