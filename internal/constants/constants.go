package constants

// 会员状态常量
const (
	MemberStatusActive   = "active"
	MemberStatusDisabled = "disabled"
)

// 推荐关系状态常量
const (
	RelationshipStatusPending   = "pending"
	RelationshipStatusActivated = "activated"
	RelationshipStatusReversed  = "reversed"
)

// 风控标记常量
const (
	FraudFlagNone      = "none"
	FraudFlagSuspected = "suspected"
	FraudFlagConfirmed = "confirmed"
)

// 通知事件类型常量
const (
	NotifyTypeNewReferral    = "new_referral"
	NotifyTypePromotion      = "promotion"
	NotifyTypeOrphanAssigned = "orphan_assigned"
	NotifyTypeFraudReversal  = "fraud_reversal"
)

// 对账任务状态常量
const (
	ReconciliationStatusPending = "pending"
	ReconciliationStatusDone    = "done"
	ReconciliationStatusFailed  = "failed"
)

// 对账任务原因常量（决定补偿重放的方向）
const (
	ReconciliationReasonActivation = "activation_propagation_failed"
	ReconciliationReasonReversal   = "reversal_propagation_failed"
)

// 统计增量来源常量
const (
	DeltaSourceActivation     = "activation"
	DeltaSourceReversal       = "reversal"
	DeltaSourceReconciliation = "reconciliation"
)

// 撤销原因常量
const (
	ReverseReasonFraud  = "fraud_confirmed"
	ReverseReasonRefund = "payment_refund"
)

// 异步任务名称常量
const (
	TaskActivationReconcile  = "referral:reconcile"
	TaskNotificationDispatch = "referral:notify"
)

// 队列名称常量
const (
	QueueDefault = "default"
)
