package config

import "testing"

func TestDefaultRoleTableIsValid(t *testing.T) {
	roles := RolesConfig{Thresholds: DefaultRoleTable()}
	if err := roles.Validate(); err != nil {
		t.Fatalf("default role table should validate: %v", err)
	}
	if roles.MaxLevel() != 9 {
		t.Fatalf("expected 9 levels, got %d", roles.MaxLevel())
	}
	if name := roles.NameOf(1); name != "Member" {
		t.Fatalf("expected level 1 Member, got %s", name)
	}
	if name := roles.NameOf(9); name != "State Coordinator" {
		t.Fatalf("expected level 9 State Coordinator, got %s", name)
	}
	if name := roles.NameOf(10); name != "" {
		t.Fatalf("expected empty name for unknown level, got %s", name)
	}
}

func TestRoleTableValidateRejectsLevelGap(t *testing.T) {
	roles := RolesConfig{Thresholds: []RoleThreshold{
		{Level: 1, Name: "Member"},
		{Level: 3, Name: "Leader", MinDirect: 10, MinTeam: 10},
	}}
	if err := roles.Validate(); err == nil {
		t.Fatalf("expected validation failure for non-contiguous levels")
	}
}

func TestRoleTableValidateRejectsDimensionRegression(t *testing.T) {
	roles := RolesConfig{Thresholds: []RoleThreshold{
		{Level: 1, Name: "Member", MinDirect: 0, MinTeam: 0},
		{Level: 2, Name: "Active", MinDirect: 10, MinTeam: 100},
		{Level: 3, Name: "Leader", MinDirect: 20, MinTeam: 50},
	}}
	if err := roles.Validate(); err == nil {
		t.Fatalf("expected validation failure for team threshold regression")
	}
}

func TestRoleTableValidateRejectsDuplicateThresholds(t *testing.T) {
	roles := RolesConfig{Thresholds: []RoleThreshold{
		{Level: 1, Name: "Member", MinDirect: 0, MinTeam: 0},
		{Level: 2, Name: "Active", MinDirect: 10, MinTeam: 100},
		{Level: 3, Name: "Leader", MinDirect: 10, MinTeam: 100},
	}}
	if err := roles.Validate(); err == nil {
		t.Fatalf("expected validation failure for duplicate thresholds")
	}
}

func TestRoleTableValidateRejectsEmptyTable(t *testing.T) {
	roles := RolesConfig{}
	if err := roles.Validate(); err == nil {
		t.Fatalf("expected validation failure for empty table")
	}
}
