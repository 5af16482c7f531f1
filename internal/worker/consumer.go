package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/talclub-next/internal/logger"
	"github.com/talclub-next/internal/provider"
	"github.com/talclub-next/internal/queue"
	"github.com/talclub-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskActivationReconcile, c.handleActivationReconcile)
	mux.HandleFunc(queue.TaskNotificationDispatch, c.handleNotificationDispatch)
}

func (c *Consumer) handleActivationReconcile(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_activation_reconcile_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.ActivationReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_activation_reconcile_unmarshal_failed", "error", err)
		return err
	}
	if payload.TaskID == 0 {
		logger.Debugw("worker_activation_reconcile_skip_invalid_payload", "task_id", payload.TaskID)
		return nil
	}
	if c.ReconciliationService == nil {
		logger.Warnw("worker_activation_reconcile_skip_service_nil", "task_id", payload.TaskID)
		return nil
	}
	if err := c.ReconciliationService.Process(payload.TaskID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			logger.Debugw("worker_activation_reconcile_skip_task_not_found", "task_id", payload.TaskID)
			return nil
		default:
			logger.Warnw("worker_activation_reconcile_failed",
				"task_id", payload.TaskID,
				"member_id", payload.MemberID,
				"payment_id", payload.PaymentID,
				"error", err,
			)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleNotificationDispatch(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_notification_dispatch_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.NotificationDispatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_notification_dispatch_unmarshal_failed", "error", err)
		return err
	}
	if payload.EventID == 0 {
		logger.Debugw("worker_notification_dispatch_skip_invalid_payload", "event_id", payload.EventID)
		return nil
	}
	if c.NotificationService == nil {
		logger.Warnw("worker_notification_dispatch_skip_service_nil", "event_id", payload.EventID)
		return nil
	}
	if err := c.NotificationService.Dispatch(ctx, payload.EventID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			logger.Debugw("worker_notification_dispatch_skip_event_not_found", "event_id", payload.EventID)
			return nil
		default:
			logger.Warnw("worker_notification_dispatch_failed", "event_id", payload.EventID, "error", err)
			return err
		}
	}
	return nil
}
