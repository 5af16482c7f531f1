package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/talclub-next/internal/constants"
	"github.com/talclub-next/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupStatsRepositoryTest(t *testing.T) *GormStatsRepository {
	t.Helper()

	dsn := fmt.Sprintf("file:stats_repo_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.StatDelta{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewStatsRepository(db)
}

func TestGetDeltaByKey(t *testing.T) {
	repo := setupStatsRepositoryTest(t)

	if err := repo.CreateDelta(&models.StatDelta{
		IdempotencyKey: "pay-1:7",
		MemberID:       7,
		DirectDelta:    1,
		TeamDelta:      1,
		Source:         constants.DeltaSourceActivation,
	}); err != nil {
		t.Fatalf("create delta failed: %v", err)
	}

	found, err := repo.GetDeltaByKey("pay-1:7")
	if err != nil || found == nil {
		t.Fatalf("expected delta, got %v (err %v)", found, err)
	}
	if found.MemberID != 7 || found.TeamDelta != 1 {
		t.Fatalf("unexpected delta row %+v", found)
	}

	missing, err := repo.GetDeltaByKey("pay-1:8")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown key, got %v (err %v)", missing, err)
	}
	blank, err := repo.GetDeltaByKey("  ")
	if err != nil || blank != nil {
		t.Fatalf("expected nil for blank key, got %v (err %v)", blank, err)
	}
}

func TestSumDeltasByMember(t *testing.T) {
	repo := setupStatsRepositoryTest(t)

	rows := []models.StatDelta{
		{IdempotencyKey: "pay-1:7", MemberID: 7, DirectDelta: 1, TeamDelta: 1, Source: constants.DeltaSourceActivation},
		{IdempotencyKey: "pay-2:7", MemberID: 7, DirectDelta: 0, TeamDelta: 1, Source: constants.DeltaSourceActivation},
		{IdempotencyKey: "rev:pay-2:7", MemberID: 7, DirectDelta: 0, TeamDelta: -1, Source: constants.DeltaSourceReversal},
		{IdempotencyKey: "pay-1:8", MemberID: 8, DirectDelta: 0, TeamDelta: 1, Source: constants.DeltaSourceActivation},
	}
	for i := range rows {
		if err := repo.CreateDelta(&rows[i]); err != nil {
			t.Fatalf("create delta failed: %v", err)
		}
	}

	direct, team, err := repo.SumDeltasByMember(7)
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	if direct != 1 || team != 1 {
		t.Fatalf("expected sums 1/1 for member 7, got direct=%d team=%d", direct, team)
	}

	direct, team, err = repo.SumDeltasByMember(99)
	if err != nil || direct != 0 || team != 0 {
		t.Fatalf("expected zero sums for member without deltas, got direct=%d team=%d (err %v)", direct, team, err)
	}
}
