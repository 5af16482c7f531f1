package worker

import (
	"context"
	"errors"
	"time"

	"github.com/talclub-next/internal/config"
	"github.com/talclub-next/internal/logger"
	"github.com/talclub-next/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	driftSampleInterval       = 10 * time.Minute
	driftSampleSize           = 20
	notificationSweepInterval = time.Minute
	notificationSweepLimit    = 100
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.StatsService != nil {
		go s.runDriftSampleLoop(ctx)
	}
	if s.consumer != nil && s.consumer.NotificationService != nil {
		go s.runNotificationSweepLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runDriftSampleLoop 周期抽样校验统计一致性，发现漂移则排入对账队列
func (s *Service) runDriftSampleLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.StatsService == nil {
		return
	}
	runOnce := func() {
		report, err := s.consumer.StatsService.ReconcileSample(driftSampleSize)
		if err != nil {
			logger.Warnw("worker_drift_sample_failed", "error", err)
			return
		}
		if report != nil && report.Inconsistent > 0 {
			logger.Infow("worker_drift_sample_found",
				"checked", report.Checked,
				"inconsistent", report.Inconsistent,
				"drift_members", report.DriftMembers,
			)
		}
	}
	runOnce()

	ticker := time.NewTicker(driftSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// runNotificationSweepLoop 周期补投未下发的通知事件
func (s *Service) runNotificationSweepLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.NotificationService == nil {
		return
	}
	runOnce := func() {
		dispatched, err := s.consumer.NotificationService.DispatchPending(ctx, notificationSweepLimit)
		if err != nil {
			logger.Warnw("worker_notification_sweep_failed", "error", err)
			return
		}
		if dispatched > 0 {
			logger.Infow("worker_notification_sweep_done", "dispatched", dispatched)
		}
	}
	runOnce()

	ticker := time.NewTicker(notificationSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
