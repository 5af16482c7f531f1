package service

import (
	"errors"
	"time"

	"github.com/talclub-next/internal/config"
	"github.com/talclub-next/internal/constants"
	"github.com/talclub-next/internal/models"
	"github.com/talclub-next/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 认证服务（管理员与会员双端）
type AuthService struct {
	cfg        *config.Config
	adminRepo  repository.AdminRepository
	memberRepo repository.MemberRepository
}

// NewAuthService 创建认证服务实例
func NewAuthService(cfg *config.Config, adminRepo repository.AdminRepository, memberRepo repository.MemberRepository) *AuthService {
	return &AuthService{
		cfg:        cfg,
		adminRepo:  adminRepo,
		memberRepo: memberRepo,
	}
}

// HashPassword 使用 bcrypt 加密密码
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword 验证密码
func (s *AuthService) VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// AdminClaims 管理员 JWT 声明
type AdminClaims struct {
	AdminID  uint   `json:"admin_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// MemberClaims 会员 JWT 声明
type MemberClaims struct {
	MemberID uint   `json:"member_id"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// GenerateAdminJWT 生成管理员 Token
func (s *AuthService) GenerateAdminJWT(admin *models.Admin) (string, time.Time, error) {
	expiresAt := time.Now().Add(time.Duration(s.cfg.JWT.ExpireHours) * time.Hour)
	claims := AdminClaims{
		AdminID:  admin.ID,
		Username: admin.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.JWT.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseAdminJWT 解析管理员 Token
func (s *AuthService) ParseAdminJWT(tokenString string) (*AdminClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*AdminClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("无效的 token")
}

// GenerateMemberJWT 生成会员 Token
func (s *AuthService) GenerateMemberJWT(member *models.Member) (string, time.Time, error) {
	expiresAt := time.Now().Add(time.Duration(s.cfg.MemberJWT.ExpireHours) * time.Hour)
	claims := MemberClaims{
		MemberID: member.ID,
		Email:    member.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.MemberJWT.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseMemberJWT 解析会员 Token
func (s *AuthService) ParseMemberJWT(tokenString string) (*MemberClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, &MemberClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.MemberJWT.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*MemberClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("无效的 token")
}

// AdminLogin 管理员登录
func (s *AuthService) AdminLogin(username, password string) (*models.Admin, string, time.Time, error) {
	admin, err := s.adminRepo.GetByUsername(username)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if admin == nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if err := s.VerifyPassword(admin.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	token, expiresAt, err := s.GenerateAdminJWT(admin)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if err := s.adminRepo.UpdateLastLogin(admin.ID, time.Now()); err != nil {
		return nil, "", time.Time{}, err
	}
	return admin, token, expiresAt, nil
}

// MemberLogin 会员登录
func (s *AuthService) MemberLogin(email, password string) (*models.Member, string, time.Time, error) {
	member, err := s.memberRepo.GetByEmail(email)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if member == nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if member.Status != constants.MemberStatusActive {
		return nil, "", time.Time{}, ErrMemberDisabled
	}
	if err := s.VerifyPassword(member.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	token, expiresAt, err := s.GenerateMemberJWT(member)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if err := s.memberRepo.UpdateLastLogin(member.ID, time.Now()); err != nil {
		return nil, "", time.Time{}, err
	}
	return member, token, expiresAt, nil
}
