package service

import (
	"strings"
	"time"

	"github.com/talclub-next/internal/constants"
	"github.com/talclub-next/internal/logger"
	"github.com/talclub-next/internal/models"
	"github.com/talclub-next/internal/repository"
)

// ReconciliationService 对账任务处理服务。
// 传播失败任务重放幂等增量，计数漂移任务按重算结果修正。
type ReconciliationService struct {
	reconRepo  repository.ReconciliationRepository
	activation *ActivationService
	stats      *StatsService
}

// NewReconciliationService 创建对账任务处理服务
func NewReconciliationService(
	reconRepo repository.ReconciliationRepository,
	activation *ActivationService,
	stats *StatsService,
) *ReconciliationService {
	return &ReconciliationService{
		reconRepo:  reconRepo,
		activation: activation,
		stats:      stats,
	}
}

// List 查询对账任务列表
func (s *ReconciliationService) List(filter repository.ReconciliationListFilter) ([]models.ReconciliationTask, int64, error) {
	return s.reconRepo.List(filter)
}

// Process 处理一条对账任务
func (s *ReconciliationService) Process(taskID uint) error {
	task, err := s.reconRepo.GetByID(taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return ErrNotFound
	}
	if task.Status == constants.ReconciliationStatusDone {
		return nil
	}

	// 任务原因决定补偿方向：撤销失败重放负向增量，激活失败重放正向增量
	var processErr error
	switch {
	case strings.TrimSpace(task.PaymentID) == "":
		processErr = s.stats.RepairTeamSize(task.MemberID)
	case task.Reason == constants.ReconciliationReasonReversal:
		processErr = s.activation.ReplayReversal(task.MemberID, task.PaymentID)
	default:
		processErr = s.activation.ReplayPropagation(task.MemberID, task.PaymentID)
	}

	updates := map[string]interface{}{
		"attempts":   task.Attempts + 1,
		"updated_at": time.Now(),
	}
	if processErr != nil {
		updates["status"] = constants.ReconciliationStatusFailed
		updates["last_error"] = processErr.Error()
		logger.Errorw("reconciliation_task_failed",
			"task_id", task.ID,
			"member_id", task.MemberID,
			"error", processErr,
		)
	} else {
		updates["status"] = constants.ReconciliationStatusDone
		updates["last_error"] = ""
		logger.Infow("reconciliation_task_done",
			"task_id", task.ID,
			"member_id", task.MemberID,
		)
	}
	if err := s.reconRepo.UpdateFields(task.ID, updates); err != nil {
		return err
	}
	return processErr
}

// Retry 管理端重试对账任务：重置为待处理后立即处理
func (s *ReconciliationService) Retry(taskID uint) error {
	task, err := s.reconRepo.GetByID(taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return ErrNotFound
	}
	if err := s.reconRepo.UpdateFields(task.ID, map[string]interface{}{
		"status": constants.ReconciliationStatusPending,
	}); err != nil {
		return err
	}
	return s.Process(task.ID)
}
