package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/talclub-next/internal/config"
	"github.com/talclub-next/internal/logger"
	"github.com/talclub-next/internal/models"
	"github.com/talclub-next/internal/queue"
	"github.com/talclub-next/internal/repository"
	"gorm.io/gorm"
)

// NotificationChannel 通知投递通道（外部协作方）
type NotificationChannel interface {
	Deliver(ctx context.Context, event *models.NotificationEvent) error
}

// WebhookChannel Webhook 通知通道实现
type WebhookChannel struct {
	url    string
	client *http.Client
}

// NewWebhookChannel 创建 Webhook 通知通道
func NewWebhookChannel(cfg *config.NotifyConfig) *WebhookChannel {
	timeout := 3 * time.Second
	if cfg != nil && cfg.TimeoutMS > 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	url := ""
	if cfg != nil {
		url = strings.TrimSpace(cfg.WebhookURL)
	}
	return &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Deliver 投递通知事件
func (c *WebhookChannel) Deliver(ctx context.Context, event *models.NotificationEvent) error {
	if c == nil || c.url == "" {
		// 未配置通道时视为投递成功，事件仍保留在库中可查
		return nil
	}
	body, err := json.Marshal(map[string]interface{}{
		"event_id":   event.ID,
		"member_id":  event.MemberID,
		"event_type": event.EventType,
		"payload":    event.Payload,
		"created_at": event.CreatedAt,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// NotificationService 通知事件服务（先落库再异步投递）
type NotificationService struct {
	repo        repository.NotificationRepository
	queueClient *queue.Client
	channel     NotificationChannel
}

// NewNotificationService 创建通知事件服务
func NewNotificationService(
	repo repository.NotificationRepository,
	queueClient *queue.Client,
	channel NotificationChannel,
) *NotificationService {
	return &NotificationService{
		repo:        repo,
		queueClient: queueClient,
		channel:     channel,
	}
}

// EmitIn 在事务内创建通知事件，提交后由队列或巡检投递
func (s *NotificationService) EmitIn(tx *gorm.DB, memberID uint, eventType string, payload models.JSON) (*models.NotificationEvent, error) {
	if s == nil || memberID == 0 {
		return nil, nil
	}
	event := &models.NotificationEvent{
		MemberID:  memberID,
		EventType: eventType,
		Payload:   payload,
	}
	if err := s.repo.WithTx(tx).Create(event); err != nil {
		return nil, err
	}
	return event, nil
}

// Emit 创建通知事件并立即排队投递
func (s *NotificationService) Emit(memberID uint, eventType string, payload models.JSON) error {
	event, err := s.EmitIn(nil, memberID, eventType, payload)
	if err != nil {
		return err
	}
	if event == nil {
		return nil
	}
	s.enqueueDispatch(event.ID)
	return nil
}

// EmitUnique 以幂等键创建通知事件并排队投递。
// 同一幂等键只生效一次：唯一约束冲突表示事件已发出，直接跳过。
func (s *NotificationService) EmitUnique(memberID uint, eventType, dedupeKey string, payload models.JSON) error {
	if s == nil || memberID == 0 {
		return nil
	}
	key := strings.TrimSpace(dedupeKey)
	if key == "" {
		return s.Emit(memberID, eventType, payload)
	}
	event := &models.NotificationEvent{
		MemberID:  memberID,
		EventType: eventType,
		DedupeKey: &key,
		Payload:   payload,
	}
	if err := s.repo.Create(event); err != nil {
		if isUniqueViolation(err) {
			logger.Debugw("notification_emit_replay_noop", "member_id", memberID, "dedupe_key", key)
			return nil
		}
		return err
	}
	s.enqueueDispatch(event.ID)
	return nil
}

// EnqueueDispatch 为事件排队投递任务（失败仅告警，由巡检兜底）
func (s *NotificationService) EnqueueDispatch(eventID uint) {
	s.enqueueDispatch(eventID)
}

func (s *NotificationService) enqueueDispatch(eventID uint) {
	if eventID == 0 || s.queueClient == nil {
		return
	}
	if err := s.queueClient.EnqueueNotificationDispatch(queue.NotificationDispatchPayload{EventID: eventID}); err != nil {
		logger.Warnw("notification_dispatch_enqueue_failed", "event_id", eventID, "error", err)
	}
}

// Dispatch 投递指定通知事件
func (s *NotificationService) Dispatch(ctx context.Context, eventID uint) error {
	event, err := s.repo.GetByID(eventID)
	if err != nil {
		return err
	}
	if event == nil || event.Dispatched {
		return nil
	}
	if err := s.channel.Deliver(ctx, event); err != nil {
		return err
	}
	return s.repo.MarkDispatched(event.ID, time.Now())
}

// DispatchPending 批量投递未发送的通知事件（worker 巡检兜底）
func (s *NotificationService) DispatchPending(ctx context.Context, limit int) (int, error) {
	events, err := s.repo.ListUndispatched(limit)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for i := range events {
		event := events[i]
		if err := s.channel.Deliver(ctx, &event); err != nil {
			logger.Warnw("notification_delivery_failed", "event_id", event.ID, "error", err)
			continue
		}
		if err := s.repo.MarkDispatched(event.ID, time.Now()); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}
