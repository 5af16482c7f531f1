package router

import (
	"strings"
	"time"

	"github.com/talclub-next/internal/constants"
	"github.com/talclub-next/internal/http/response"
	"github.com/talclub-next/internal/repository"
	"github.com/talclub-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"
const requestIDHeader = "X-Request-ID"

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}
	sugar := logger.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := sugar.With(
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		if len(c.Errors) > 0 {
			log.Errorw("request", "errors", c.Errors.String())
			return
		}
		log.Infow("request")
	}
}

func getRequestID(c *gin.Context) string {
	value, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// AdminJWTMiddleware 管理员 JWT 鉴权中间件
func AdminJWTMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseBearer(c, func(token string) (interface{}, error) {
			return authService.ParseAdminJWT(token)
		})
		if !ok {
			return
		}
		adminClaims, typeOK := claims.(*service.AdminClaims)
		if !typeOK || adminClaims.AdminID == 0 {
			response.Unauthorized(c, "无效的 token")
			c.Abort()
			return
		}
		c.Set("admin_id", adminClaims.AdminID)
		c.Set("admin_username", adminClaims.Username)
		c.Next()
	}
}

// MemberJWTMiddleware 会员 JWT 鉴权中间件
func MemberJWTMiddleware(authService *service.AuthService, memberRepo repository.MemberRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseBearer(c, func(token string) (interface{}, error) {
			return authService.ParseMemberJWT(token)
		})
		if !ok {
			return
		}
		memberClaims, typeOK := claims.(*service.MemberClaims)
		if !typeOK || memberClaims.MemberID == 0 {
			response.Unauthorized(c, "无效的 token")
			c.Abort()
			return
		}

		member, err := memberRepo.GetByID(memberClaims.MemberID)
		if err != nil || member == nil {
			response.Unauthorized(c, "无效的 token")
			c.Abort()
			return
		}
		if member.Status != constants.MemberStatusActive {
			response.Unauthorized(c, "账号已被禁用")
			c.Abort()
			return
		}

		c.Set("member_id", memberClaims.MemberID)
		c.Set("member_email", memberClaims.Email)
		c.Next()
	}
}

func parseBearer(c *gin.Context, parse func(token string) (interface{}, error)) (interface{}, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		response.Unauthorized(c, "缺少认证信息")
		c.Abort()
		return nil, false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer") {
		response.Unauthorized(c, "认证信息格式错误")
		c.Abort()
		return nil, false
	}
	claims, err := parse(parts[1])
	if err != nil {
		response.Unauthorized(c, "无效的 token")
		c.Abort()
		return nil, false
	}
	return claims, true
}
