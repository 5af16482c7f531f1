package service

import "errors"

// 业务错误定义，处理器通过 errors.Is 映射为响应码。
var (
	ErrNotFound                = errors.New("资源不存在")
	ErrMemberNotFound          = errors.New("会员不存在")
	ErrMemberDisabled          = errors.New("会员已被禁用")
	ErrEmailTaken              = errors.New("邮箱已被注册")
	ErrInvalidCredentials      = errors.New("用户名或密码错误")
	ErrCodeGenerationExhausted = errors.New("推荐码生成重试耗尽")
	ErrInvalidReferralCode     = errors.New("推荐码无效")
	ErrSelfReferralBlocked     = errors.New("不允许使用本人推荐码")
	ErrCircularReferral        = errors.New("推荐关系存在循环")
	ErrRelationshipNotPending  = errors.New("推荐关系不在待激活状态")
	ErrSignatureInvalid        = errors.New("支付事件签名校验失败")
	ErrOrphanUnassignable      = errors.New("无可用的兜底分配账号")
)
