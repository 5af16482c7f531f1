package service

import (
	"fmt"

	"github.com/talclub-next/internal/config"
	"github.com/talclub-next/internal/constants"
	"github.com/talclub-next/internal/logger"
	"github.com/talclub-next/internal/models"
	"github.com/talclub-next/internal/repository"
	"gorm.io/gorm"
)

// StatsService 团队统计聚合服务
type StatsService struct {
	cfg        *config.Config
	memberRepo repository.MemberRepository
	statsRepo  repository.StatsRepository
	reconRepo  repository.ReconciliationRepository
}

// NewStatsService 创建团队统计聚合服务
func NewStatsService(
	cfg *config.Config,
	memberRepo repository.MemberRepository,
	statsRepo repository.StatsRepository,
	reconRepo repository.ReconciliationRepository,
) *StatsService {
	return &StatsService{
		cfg:        cfg,
		memberRepo: memberRepo,
		statsRepo:  statsRepo,
		reconRepo:  reconRepo,
	}
}

// ApplyDelta 应用幂等统计增量。
// 同一幂等键的增量只生效一次：账本条件插入与计数器原子累加在同一事务内完成，
// 唯一约束冲突视为重放，直接返回成功。
func (s *StatsService) ApplyDelta(memberID uint, directDelta, teamDelta int64, key, source string) error {
	if memberID == 0 || key == "" {
		return ErrMemberNotFound
	}
	return s.statsRepo.Transaction(func(tx *gorm.DB) error {
		delta := &models.StatDelta{
			IdempotencyKey: key,
			MemberID:       memberID,
			DirectDelta:    directDelta,
			TeamDelta:      teamDelta,
			Source:         source,
		}
		if err := s.statsRepo.WithTx(tx).CreateDelta(delta); err != nil {
			if isUniqueViolation(err) {
				logger.Debugw("stat_delta_replay_noop", "key", key, "member_id", memberID)
				return nil
			}
			return err
		}
		return s.memberRepo.WithTx(tx).IncrementCounters(memberID, directDelta, teamDelta)
	})
}

// DeltaApplied 判断幂等键对应的增量是否已入账
func (s *StatsService) DeltaApplied(key string) (bool, error) {
	delta, err := s.statsRepo.GetDeltaByKey(key)
	if err != nil {
		return false, err
	}
	return delta != nil, nil
}

// RecomputeTeamSize 广度遍历重算会员的已激活团队规模
func (s *StatsService) RecomputeTeamSize(memberID uint) (int64, error) {
	if memberID == 0 {
		return 0, ErrMemberNotFound
	}
	var total int64
	frontier := []uint{memberID}
	depthLimit := s.cfg.Referral.UplineDepthLimit
	if depthLimit <= 0 {
		depthLimit = 30
	}
	for depth := 0; len(frontier) > 0 && depth < depthLimit; depth++ {
		children, err := s.memberRepo.ListActivatedChildIDs(frontier)
		if err != nil {
			return 0, err
		}
		total += int64(len(children))
		frontier = children
	}
	return total, nil
}

// ConsistencyReport 一致性检查结果
type ConsistencyReport struct {
	Checked      int    `json:"checked"`
	Consistent   int    `json:"consistent"`
	Inconsistent int    `json:"inconsistent"`
	DriftMembers []uint `json:"drift_members"`
}

// ReconcileSample 抽样核对缓存计数与重算结果。
// 发现漂移时告警并登记对账任务，不在抽样路径上直接改写计数器。
func (s *StatsService) ReconcileSample(sampleSize int) (*ConsistencyReport, error) {
	if sampleSize <= 0 {
		sampleSize = 20
	}
	members, err := s.memberRepo.SampleActivated(sampleSize)
	if err != nil {
		return nil, err
	}
	report := &ConsistencyReport{DriftMembers: []uint{}}
	for i := range members {
		member := members[i]
		recomputed, err := s.RecomputeTeamSize(member.ID)
		if err != nil {
			return nil, err
		}
		report.Checked++
		if recomputed == member.TeamSize {
			report.Consistent++
			continue
		}
		report.Inconsistent++
		report.DriftMembers = append(report.DriftMembers, member.ID)
		// 账本汇总随告警一并输出，便于区分传播丢失与计数器被越过
		ledgerDirect, ledgerTeam, err := s.statsRepo.SumDeltasByMember(member.ID)
		if err != nil {
			return nil, err
		}
		logger.Warnw("team_size_drift_detected",
			"member_id", member.ID,
			"stored", member.TeamSize,
			"recomputed", recomputed,
			"ledger_direct", ledgerDirect,
			"ledger_team", ledgerTeam,
		)
		if err := s.enqueueDriftTask(member.ID, member.TeamSize, recomputed, ledgerTeam); err != nil {
			logger.Errorw("drift_reconciliation_enqueue_failed", "member_id", member.ID, "error", err)
		}
	}
	return report, nil
}

// RepairTeamSize 按重算结果修正会员团队规模（对账任务处理路径专用）
func (s *StatsService) RepairTeamSize(memberID uint) error {
	recomputed, err := s.RecomputeTeamSize(memberID)
	if err != nil {
		return err
	}
	return s.memberRepo.UpdateFields(memberID, map[string]interface{}{
		"team_size": recomputed,
	})
}

func (s *StatsService) enqueueDriftTask(memberID uint, stored, recomputed, ledgerTeam int64) error {
	pending, err := s.reconRepo.HasPendingForMember(memberID)
	if err != nil {
		return err
	}
	if pending {
		return nil
	}
	return s.reconRepo.Create(&models.ReconciliationTask{
		MemberID: memberID,
		Reason:   fmt.Sprintf("team_size_drift: stored=%d recomputed=%d ledger=%d", stored, recomputed, ledgerTeam),
		Status:   constants.ReconciliationStatusPending,
	})
}
