package queue

import (
	"encoding/json"

	"github.com/talclub-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskActivationReconcile 激活统计补偿重放任务
	TaskActivationReconcile = constants.TaskActivationReconcile
	// TaskNotificationDispatch 通知投递任务
	TaskNotificationDispatch = constants.TaskNotificationDispatch
)

// ActivationReconcilePayload 激活补偿任务载荷
type ActivationReconcilePayload struct {
	TaskID    uint   `json:"task_id"`
	MemberID  uint   `json:"member_id"`
	PaymentID string `json:"payment_id"`
}

// NotificationDispatchPayload 通知投递任务载荷
type NotificationDispatchPayload struct {
	EventID uint `json:"event_id"`
}

// NewActivationReconcileTask 创建激活补偿任务
func NewActivationReconcileTask(payload ActivationReconcilePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskActivationReconcile, body), nil
}

// NewNotificationDispatchTask 创建通知投递任务
func NewNotificationDispatchTask(payload NotificationDispatchPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationDispatch, body), nil
}
