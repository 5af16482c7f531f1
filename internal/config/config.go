package config

import (
	"fmt"
	"strings"

	"github.com/talclub-next/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	MemberJWT JWTConfig     `mapstructure:"member_jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Security SecurityConfig `mapstructure:"security"`
	Referral ReferralConfig `mapstructure:"referral"`
	Fraud    FraudConfig    `mapstructure:"fraud"`
	Orphan   OrphanConfig   `mapstructure:"orphan"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Roles    RolesConfig    `mapstructure:"roles"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	SecretKey   string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	LoginRateLimit LoginRateLimitConfig `mapstructure:"login_rate_limit"`
}

// LoginRateLimitConfig 登录限流配置
type LoginRateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxAttempts   int `mapstructure:"max_attempts"`
	BlockSeconds  int `mapstructure:"block_seconds"`
}

// ReferralConfig 推荐码与链路传播配置
type ReferralConfig struct {
	CodePrefix            string `mapstructure:"code_prefix"`             // 推荐码前缀
	CodeLength            int    `mapstructure:"code_length"`             // 前缀后随机段长度
	GenerateMaxRetry      int    `mapstructure:"generate_max_retry"`      // 生成冲突重试上限
	UplineDepthLimit      int    `mapstructure:"upline_depth_limit"`      // 上级链长度上限
	PropagationSLASeconds int    `mapstructure:"propagation_sla_seconds"` // 统计传播 SLA
	RetryMaxAttempts      int    `mapstructure:"retry_max_attempts"`      // 传播失败重试次数
	RetryBaseBackoffMS    int    `mapstructure:"retry_base_backoff_ms"`   // 重试退避基数
	JoinHost              string `mapstructure:"join_host"`               // 推荐链接域名
}

// FraudConfig 风控配置
type FraudConfig struct {
	WindowHours          int `mapstructure:"window_hours"`          // 指纹/频率统计窗口
	FingerprintThreshold int `mapstructure:"fingerprint_threshold"` // 同设备/IP 注册数阈值
	VelocityThreshold    int `mapstructure:"velocity_threshold"`    // 同推荐码使用频率阈值
}

// OrphanConfig 无推荐人分配配置
type OrphanConfig struct {
	RadiusKM      float64 `mapstructure:"radius_km"`      // 就近领导人搜索半径
	FallbackEmail string  `mapstructure:"fallback_email"` // 兜底管理员会员邮箱
}

// PaymentConfig 支付事件配置
type PaymentConfig struct {
	WebhookSecret string `mapstructure:"webhook_secret"` // 签名共享密钥
}

// NotifyConfig 外部通知通道配置
type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	TimeoutMS  int    `mapstructure:"timeout_ms"`
}

// RoleThreshold 角色晋升阈值
type RoleThreshold struct {
	Level     int    `mapstructure:"level" json:"level"`
	Name      string `mapstructure:"name" json:"name"`
	MinDirect int64  `mapstructure:"min_direct" json:"min_direct"`
	MinTeam   int64  `mapstructure:"min_team" json:"min_team"`
}

// RolesConfig 角色阈值表配置
type RolesConfig struct {
	Thresholds []RoleThreshold `mapstructure:"thresholds"`
}

// Validate 校验阈值表排序不变量：级别严格递增，两个维度均不回退。
func (c RolesConfig) Validate() error {
	if len(c.Thresholds) == 0 {
		return fmt.Errorf("role threshold table is empty")
	}
	for i, row := range c.Thresholds {
		if row.Level != i+1 {
			return fmt.Errorf("role threshold levels must be contiguous from 1, got %d at index %d", row.Level, i)
		}
		if row.MinDirect < 0 || row.MinTeam < 0 {
			return fmt.Errorf("role threshold level %d has negative threshold", row.Level)
		}
		if i == 0 {
			continue
		}
		prev := c.Thresholds[i-1]
		if row.MinDirect < prev.MinDirect || row.MinTeam < prev.MinTeam {
			return fmt.Errorf("role threshold level %d regresses a dimension", row.Level)
		}
		if row.MinDirect == prev.MinDirect && row.MinTeam == prev.MinTeam {
			return fmt.Errorf("role threshold level %d duplicates level %d", row.Level, prev.Level)
		}
	}
	return nil
}

// MaxLevel 最高角色级别
func (c RolesConfig) MaxLevel() int {
	return len(c.Thresholds)
}

// NameOf 返回级别对应的角色名
func (c RolesConfig) NameOf(level int) string {
	if level < 1 || level > len(c.Thresholds) {
		return ""
	}
	return c.Thresholds[level-1].Name
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("./etc")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("log.dir", "")
	viper.SetDefault("log.filename", "talclub.log")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 7)
	viper.SetDefault("log.max_age_days", 30)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "./db/talclub.db")
	viper.SetDefault("database.pool.max_open_conns", 1)
	viper.SetDefault("database.pool.max_idle_conns", 1)
	viper.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	viper.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expire_hours", 24)
	viper.SetDefault("member_jwt.secret", "member-change-me-in-production")
	viper.SetDefault("member_jwt.expire_hours", 168)
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "127.0.0.1")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "tc")
	viper.SetDefault("queue.enabled", true)
	viper.SetDefault("queue.host", "127.0.0.1")
	viper.SetDefault("queue.port", 6379)
	viper.SetDefault("queue.password", "")
	viper.SetDefault("queue.db", 1)
	viper.SetDefault("queue.concurrency", 10)
	viper.SetDefault("queue.queues", map[string]int{
		"default": 10,
	})
	viper.SetDefault("security.login_rate_limit.window_seconds", 300)
	viper.SetDefault("security.login_rate_limit.max_attempts", 5)
	viper.SetDefault("security.login_rate_limit.block_seconds", 900)
	viper.SetDefault("referral.code_prefix", "TAL")
	viper.SetDefault("referral.code_length", 6)
	viper.SetDefault("referral.generate_max_retry", 10)
	viper.SetDefault("referral.upline_depth_limit", 30)
	viper.SetDefault("referral.propagation_sla_seconds", 30)
	viper.SetDefault("referral.retry_max_attempts", 3)
	viper.SetDefault("referral.retry_base_backoff_ms", 200)
	viper.SetDefault("referral.join_host", "https://talclub.example.com")
	viper.SetDefault("fraud.window_hours", 24)
	viper.SetDefault("fraud.fingerprint_threshold", 3)
	viper.SetDefault("fraud.velocity_threshold", 30)
	viper.SetDefault("orphan.radius_km", 50)
	viper.SetDefault("orphan.fallback_email", "admin@talclub.local")
	viper.SetDefault("payment.webhook_secret", "")
	viper.SetDefault("notify.webhook_url", "")
	viper.SetDefault("notify.timeout_ms", 3000)
	viper.SetDefault("roles.thresholds", defaultRoleThresholds())

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("config unmarshal failed: %w", err))
	}
	if len(cfg.Roles.Thresholds) == 0 {
		cfg.Roles.Thresholds = DefaultRoleTable()
	}
	if err := cfg.Roles.Validate(); err != nil {
		logger.Errorw("config_role_table_invalid", "error", err)
		panic(fmt.Errorf("role threshold table invalid: %w", err))
	}
	return &cfg
}

// DefaultRoleTable 内置九级角色阈值表
func DefaultRoleTable() []RoleThreshold {
	return []RoleThreshold{
		{Level: 1, Name: "Member", MinDirect: 0, MinTeam: 0},
		{Level: 2, Name: "Active Member", MinDirect: 10, MinTeam: 0},
		{Level: 3, Name: "Team Leader", MinDirect: 20, MinTeam: 100},
		{Level: 4, Name: "Senior Leader", MinDirect: 50, MinTeam: 500},
		{Level: 5, Name: "Area Coordinator", MinDirect: 100, MinTeam: 2500},
		{Level: 6, Name: "Zone Coordinator", MinDirect: 200, MinTeam: 20000},
		{Level: 7, Name: "District Coordinator", MinDirect: 400, MinTeam: 100000},
		{Level: 8, Name: "Division Coordinator", MinDirect: 700, MinTeam: 800000},
		{Level: 9, Name: "State Coordinator", MinDirect: 1000, MinTeam: 3000000},
	}
}

func defaultRoleThresholds() []map[string]interface{} {
	rows := DefaultRoleTable()
	result := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		result = append(result, map[string]interface{}{
			"level":      row.Level,
			"name":       row.Name,
			"min_direct": row.MinDirect,
			"min_team":   row.MinTeam,
		})
	}
	return result
}
