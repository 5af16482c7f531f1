package main

import (
	"fmt"
	"time"

	"github.com/talclub-next/internal/config"
	"github.com/talclub-next/internal/constants"
	"github.com/talclub-next/internal/logger"
	"github.com/talclub-next/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// seedMember 演示会员定义
type seedMember struct {
	Email        string
	DisplayName  string
	ReferralCode string
	ReferrerCode string // 为空表示无推荐人
	RoleLevel    int
	Activated    bool
	Latitude     float64
	Longitude    float64
}

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 默认管理员与兜底接收账号
	if err := models.InitDefaultAdmin("", ""); err != nil {
		stdLog.Printf("Failed to init default admin: %v", err)
	}
	if err := models.InitOrphanFallbackMember(cfg.Orphan.FallbackEmail); err != nil {
		stdLog.Printf("Failed to init orphan fallback member: %v", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte("demo123456"), bcrypt.DefaultCost)
	if err != nil {
		stdLog.Fatalf("Failed to hash demo password: %v", err)
	}

	// 演示推荐树：马尼拉地区的领袖带两条下级链，宿务一位独立领袖
	seeds := []seedMember{
		{Email: "leader.manila@talclub.demo", DisplayName: "Manila Leader", ReferralCode: "TALMNL001", RoleLevel: 3, Activated: true, Latitude: 14.5995, Longitude: 120.9842},
		{Email: "alice@talclub.demo", DisplayName: "Alice", ReferralCode: "TALALICE1", ReferrerCode: "TALMNL001", RoleLevel: 2, Activated: true, Latitude: 14.6091, Longitude: 121.0223},
		{Email: "bob@talclub.demo", DisplayName: "Bob", ReferralCode: "TALBOB001", ReferrerCode: "TALMNL001", RoleLevel: 1, Activated: true, Latitude: 14.5547, Longitude: 121.0244},
		{Email: "carol@talclub.demo", DisplayName: "Carol", ReferralCode: "TALCAROL1", ReferrerCode: "TALALICE1", RoleLevel: 1, Activated: true, Latitude: 14.6760, Longitude: 121.0437},
		{Email: "dave@talclub.demo", DisplayName: "Dave", ReferralCode: "TALDAVE01", ReferrerCode: "TALCAROL1", RoleLevel: 1, Activated: false, Latitude: 14.5243, Longitude: 121.0792},
		{Email: "leader.cebu@talclub.demo", DisplayName: "Cebu Leader", ReferralCode: "TALCEB001", RoleLevel: 2, Activated: true, Latitude: 10.3157, Longitude: 123.8854},
	}

	now := time.Now()
	memberByCode := map[string]*models.Member{}
	createdCodes := map[string]bool{}

	for _, seed := range seeds {
		var existing models.Member
		if err := models.DB.Where("email = ?", seed.Email).First(&existing).Error; err == nil {
			stdLog.Printf("Member already exists: %s", seed.Email)
			memberByCode[seed.ReferralCode] = &existing
			continue
		}

		lat := seed.Latitude
		lng := seed.Longitude
		member := models.Member{
			Email:            seed.Email,
			PasswordHash:     string(passwordHash),
			DisplayName:      seed.DisplayName,
			ReferralCode:     seed.ReferralCode,
			RoleLevel:        seed.RoleLevel,
			PaymentActivated: seed.Activated,
			FraudFlag:        constants.FraudFlagNone,
			Status:           constants.MemberStatusActive,
			Latitude:         &lat,
			Longitude:        &lng,
			RegisteredAt:     now,
		}
		if seed.Activated {
			activatedAt := now
			member.ActivatedAt = &activatedAt
		}

		// 挂接上级链（种子按推荐人在前的顺序排列）
		if seed.ReferrerCode != "" {
			referrer := memberByCode[seed.ReferrerCode]
			if referrer == nil {
				stdLog.Printf("Skip member %s: referrer %s not seeded", seed.Email, seed.ReferrerCode)
				continue
			}
			member.ReferredBy = &referrer.ID
			member.UplineChain = append(models.UintList{referrer.ID}, referrer.UplineChain...)
		}

		if err := models.DB.Create(&member).Error; err != nil {
			stdLog.Printf("Failed to create member %s: %v", seed.Email, err)
			continue
		}
		memberByCode[seed.ReferralCode] = &member
		createdCodes[seed.ReferralCode] = true
		stdLog.Printf("Created member: %s (%s)", seed.Email, seed.ReferralCode)

		if err := models.DB.Create(&models.ReferralCode{Code: seed.ReferralCode, OwnerID: member.ID}).Error; err != nil {
			stdLog.Printf("Failed to create referral code %s: %v", seed.ReferralCode, err)
		}

		if seed.ReferrerCode != "" {
			referrer := memberByCode[seed.ReferrerCode]
			relationship := models.ReferralRelationship{
				MemberID:     member.ID,
				ReferrerID:   referrer.ID,
				ReferrerCode: seed.ReferrerCode,
				Status:       constants.RelationshipStatusPending,
			}
			if seed.Activated {
				activatedAt := now
				relationship.Status = constants.RelationshipStatusActivated
				relationship.ActivatedAt = &activatedAt
			}
			if err := models.DB.Create(&relationship).Error; err != nil {
				stdLog.Printf("Failed to create relationship for %s: %v", seed.Email, err)
			}
		}
	}

	// 回填统计计数（直推与团队，仅统计本次新建且已激活的会员）
	for _, seed := range seeds {
		member := memberByCode[seed.ReferralCode]
		if member == nil || !seed.Activated || member.ReferredBy == nil || !createdCodes[seed.ReferralCode] {
			continue
		}
		for depth, ancestorID := range member.UplineChain {
			if err := models.DB.Model(&models.Member{}).Where("id = ?", ancestorID).
				UpdateColumn("team_size", gorm.Expr("team_size + ?", 1)).Error; err != nil {
				stdLog.Printf("Failed to bump team size for member %d: %v", ancestorID, err)
			}
			if depth == 0 {
				if err := models.DB.Model(&models.Member{}).Where("id = ?", ancestorID).
					UpdateColumn("direct_referral_count", gorm.Expr("direct_referral_count + ?", 1)).Error; err != nil {
					stdLog.Printf("Failed to bump direct count for member %d: %v", ancestorID, err)
				}
			}
		}
	}

	fmt.Println("\n✅ Demo data created successfully!")
	fmt.Println("Summary:")
	fmt.Println("- Default admin + orphan fallback member")
	fmt.Println("- 6 demo members (Manila tree + Cebu leader)")
	fmt.Println("- Referral codes, relationships and backfilled team stats")
	fmt.Println("- Demo password: demo123456")
}
