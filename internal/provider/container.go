package provider

import (
	"github.com/talclub-next/internal/cache"
	"github.com/talclub-next/internal/config"
	"github.com/talclub-next/internal/logger"
	"github.com/talclub-next/internal/models"
	"github.com/talclub-next/internal/queue"
	"github.com/talclub-next/internal/repository"
	"github.com/talclub-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	AdminRepo        repository.AdminRepository
	MemberRepo       repository.MemberRepository
	ReferralRepo     repository.ReferralRepository
	StatsRepo        repository.StatsRepository
	PaymentRepo      repository.PaymentRepository
	FraudRepo        repository.FraudRepository
	NotificationRepo repository.NotificationRepository
	ReconRepo        repository.ReconciliationRepository

	// Services
	AuthService           *service.AuthService
	CodeRegistryService   *service.CodeRegistryService
	GraphService          *service.GraphService
	StatsService          *service.StatsService
	PromotionService      *service.PromotionService
	NotificationService   *service.NotificationService
	ActivationService     *service.ActivationService
	FraudService          *service.FraudService
	OrphanService         *service.OrphanService
	MemberService         *service.MemberService
	ReconciliationService *service.ReconciliationService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}
	c.initRepositories()
	c.initServices()
	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.MemberRepo = repository.NewMemberRepository(db)
	c.ReferralRepo = repository.NewReferralRepository(db)
	c.StatsRepo = repository.NewStatsRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
	c.FraudRepo = repository.NewFraudRepository(db)
	c.NotificationRepo = repository.NewNotificationRepository(db)
	c.ReconRepo = repository.NewReconciliationRepository(db)
}

func (c *Container) initServices() {
	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo, c.MemberRepo)
	c.CodeRegistryService = service.NewCodeRegistryService(c.Config, c.ReferralRepo)
	c.GraphService = service.NewGraphService(c.Config, c.MemberRepo, c.ReferralRepo)
	c.NotificationService = service.NewNotificationService(
		c.NotificationRepo,
		c.QueueClient,
		service.NewWebhookChannel(&c.Config.Notify),
	)
	c.StatsService = service.NewStatsService(c.Config, c.MemberRepo, c.StatsRepo, c.ReconRepo)
	c.PromotionService = service.NewPromotionService(c.Config, c.MemberRepo, c.NotificationService)
	c.ActivationService = service.NewActivationService(
		c.Config,
		c.MemberRepo,
		c.ReferralRepo,
		c.PaymentRepo,
		c.ReconRepo,
		c.StatsService,
		c.PromotionService,
		c.NotificationService,
		c.QueueClient,
	)
	c.FraudService = service.NewFraudService(
		c.Config,
		c.FraudRepo,
		c.MemberRepo,
		c.ReferralRepo,
		c.ActivationService,
		c.NotificationService,
	)
	c.OrphanService = service.NewOrphanService(
		c.Config,
		c.MemberRepo,
		c.ReferralRepo,
		c.GraphService,
		c.NotificationService,
	)
	c.MemberService = service.NewMemberService(
		c.Config,
		c.MemberRepo,
		c.ReferralRepo,
		c.CodeRegistryService,
		c.GraphService,
		c.OrphanService,
		c.FraudService,
		c.AuthService,
	)
	c.ReconciliationService = service.NewReconciliationService(c.ReconRepo, c.ActivationService, c.StatsService)
}
