package router

import (
	"fmt"
	"strings"

	"github.com/talclub-next/internal/cache"
	"github.com/talclub-next/internal/config"
	adminhandlers "github.com/talclub-next/internal/http/handlers/admin"
	publichandlers "github.com/talclub-next/internal/http/handlers/public"
	"github.com/talclub-next/internal/logger"
	"github.com/talclub-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "tc"
	}
	redisClient := cache.Client()
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
	}
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
	}

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware())

	// 加入链接（落地页解析推荐码）
	r.GET("/join", publicHandler.Join)

	apiV1 := r.Group("/api/v1")
	{
		// 认证接口
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", publicHandler.Register)
			auth.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("email")), publicHandler.Login)
		}

		// 支付事件回调（签名校验在处理器内完成）
		apiV1.POST("/webhooks/payment", publicHandler.PaymentWebhook)

		// 会员接口（需鉴权）
		member := apiV1.Group("")
		member.Use(MemberJWTMiddleware(c.AuthService, c.MemberRepo))
		{
			member.GET("/me", publicHandler.Me)
			member.GET("/me/team", publicHandler.MyTeam)
			member.GET("/me/referral-link", publicHandler.MyReferralLink)
		}
	}

	// 管理端接口
	admin := r.Group("/admin")
	{
		admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIP), adminHandler.Login)

		authed := admin.Group("")
		authed.Use(AdminJWTMiddleware(c.AuthService))
		{
			authed.GET("/members", adminHandler.ListMembers)
			authed.POST("/members/:id/fraud/confirm", adminHandler.ConfirmFraud)
			authed.GET("/consistency-check", adminHandler.ConsistencyCheck)
			authed.GET("/reconciliations", adminHandler.ListReconciliations)
			authed.POST("/reconciliations/:id/retry", adminHandler.RetryReconciliation)
		}
	}

	return r
}
