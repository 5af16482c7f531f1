package service

import (
	"math"
	"sort"

	"github.com/talclub-next/internal/config"
	"github.com/talclub-next/internal/constants"
	"github.com/talclub-next/internal/logger"
	"github.com/talclub-next/internal/models"
	"github.com/talclub-next/internal/repository"
	"gorm.io/gorm"
)

const earthRadiusKM = 6371.0

// OrphanService 无推荐人分配服务。
// 在配置半径内优先分配给角色最高、团队最小的活跃领导人，无候选时兜底到官方账号。
type OrphanService struct {
	cfg          *config.Config
	memberRepo   repository.MemberRepository
	referralRepo repository.ReferralRepository
	graph        *GraphService
	notification *NotificationService
}

// NewOrphanService 创建无推荐人分配服务
func NewOrphanService(
	cfg *config.Config,
	memberRepo repository.MemberRepository,
	referralRepo repository.ReferralRepository,
	graph *GraphService,
	notification *NotificationService,
) *OrphanService {
	return &OrphanService{
		cfg:          cfg,
		memberRepo:   memberRepo,
		referralRepo: referralRepo,
		graph:        graph,
		notification: notification,
	}
}

// AssignOrphan 在事务内为无推荐人的新会员分配归属。
// 总能返回一个归属人：就近领导人或兜底官方账号。
func (s *OrphanService) AssignOrphan(tx *gorm.DB, member *models.Member) (*models.Member, error) {
	if member == nil || member.ID == 0 {
		return nil, ErrMemberNotFound
	}

	assignee, err := s.pickAssignee(tx, member)
	if err != nil {
		return nil, err
	}

	memberRepo := s.memberRepo.WithTx(tx)
	referralRepo := s.referralRepo.WithTx(tx)

	chain := make(models.UintList, 0, len(assignee.UplineChain)+1)
	chain = append(chain, assignee.ID)
	chain = append(chain, assignee.UplineChain...)
	if limit := s.cfg.Referral.UplineDepthLimit; limit > 0 && len(chain) > limit {
		chain = chain[:limit]
	}
	if err := memberRepo.UpdateFields(member.ID, map[string]interface{}{
		"referred_by":  assignee.ID,
		"upline_chain": chain,
	}); err != nil {
		return nil, err
	}
	member.ReferredBy = &assignee.ID
	member.UplineChain = chain

	rel := &models.ReferralRelationship{
		MemberID:       member.ID,
		ReferrerID:     assignee.ID,
		ReferrerCode:   assignee.ReferralCode,
		Status:         constants.RelationshipStatusPending,
		OrphanAssigned: true,
	}
	if err := referralRepo.CreateRelationship(rel); err != nil {
		return nil, err
	}

	for _, target := range []uint{member.ID, assignee.ID} {
		if _, err := s.notification.EmitIn(tx, target, constants.NotifyTypeOrphanAssigned, models.JSON{
			"member_id":   member.ID,
			"assignee_id": assignee.ID,
		}); err != nil {
			return nil, err
		}
	}

	logger.Infow("orphan_assigned",
		"member_id", member.ID,
		"assignee_id", assignee.ID,
		"geo_matched", member.Latitude != nil && member.Longitude != nil,
	)
	return assignee, nil
}

// pickAssignee 选择归属人：半径内领导人按角色降序、团队规模升序排序
func (s *OrphanService) pickAssignee(tx *gorm.DB, member *models.Member) (*models.Member, error) {
	memberRepo := s.memberRepo.WithTx(tx)

	if member.Latitude != nil && member.Longitude != nil {
		radius := s.cfg.Orphan.RadiusKM
		if radius <= 0 {
			radius = 50
		}
		lat, lng := *member.Latitude, *member.Longitude
		minLat, maxLat, minLng, maxLng := boundingBox(lat, lng, radius)
		candidates, err := memberRepo.ListLeadersInBox(minLat, maxLat, minLng, maxLng)
		if err != nil {
			return nil, err
		}

		filtered := make([]models.Member, 0, len(candidates))
		for i := range candidates {
			c := candidates[i]
			if c.ID == member.ID {
				continue
			}
			if haversineKM(lat, lng, *c.Latitude, *c.Longitude) <= radius {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) > 0 {
			sort.SliceStable(filtered, func(i, j int) bool {
				if filtered[i].RoleLevel != filtered[j].RoleLevel {
					return filtered[i].RoleLevel > filtered[j].RoleLevel
				}
				return filtered[i].TeamSize < filtered[j].TeamSize
			})
			return &filtered[0], nil
		}
	}

	fallback, err := memberRepo.GetByEmail(s.cfg.Orphan.FallbackEmail)
	if err != nil {
		return nil, err
	}
	if fallback == nil {
		return nil, ErrOrphanUnassignable
	}
	return fallback, nil
}

// boundingBox 按半径计算经纬度矩形粗筛范围
func boundingBox(lat, lng, radiusKM float64) (minLat, maxLat, minLng, maxLng float64) {
	latDelta := radiusKM / 111.0
	lngDelta := latDelta
	if cosLat := math.Cos(lat * math.Pi / 180); cosLat > 0.01 {
		lngDelta = latDelta / cosLat
	}
	return lat - latDelta, lat + latDelta, lng - lngDelta, lng + lngDelta
}

// haversineKM 球面距离（公里）
func haversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}
