package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mcdev12/fantamarket/go/internal/models"
)

var testLimits = models.RosterLimits{
	models.RoleGoalkeeper: 3,
	models.RoleDefender:   8,
	models.RoleMidfielder: 8,
	models.RoleForward:    6,
}

func TestParseFixtureShippedLeague(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "config", "seed_league.yaml"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	got, err := parseFixture(data, testLimits)
	if err != nil {
		t.Fatalf("parseFixture: %v", err)
	}
	if len(got.Members) != 4 {
		t.Fatalf("members = %d, want 4", len(got.Members))
	}
	if !got.Members[0].IsAdmin() || got.Members[1].IsAdmin() {
		t.Fatalf("only the first member should be admin")
	}
	if got.Members[2].Budget != 500 {
		t.Fatalf("budget = %d, want initial budget 500", got.Members[2].Budget)
	}
	if got.League.RosterLimits.Limit(models.RoleDefender) != 8 {
		t.Fatalf("league limits not defaulted: %v", got.League.RosterLimits)
	}
	for _, role := range models.FirstMarketRoles {
		found := false
		for _, p := range got.Players {
			if p.Role == role {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("fixture has no %s", role)
		}
	}
}

func TestParseFixtureStableIDs(t *testing.T) {
	data := []byte(`
league: {name: Test, initial_budget: 100}
members:
  - {team_name: A, role: ADMIN}
players:
  - {full_name: P One, team: X, role: FORWARD}
`)
	first, err := parseFixture(data, testLimits)
	if err != nil {
		t.Fatalf("parseFixture: %v", err)
	}
	second, err := parseFixture(data, testLimits)
	if err != nil {
		t.Fatalf("parseFixture: %v", err)
	}
	if first.League.ID != second.League.ID || first.Players[0].ID != second.Players[0].ID {
		t.Fatalf("fixture ids differ between runs")
	}
	if first.Members[0].LeagueID != first.League.ID {
		t.Fatalf("member league = %s, want %s", first.Members[0].LeagueID, first.League.ID)
	}
	if first.Players[0].Quotation != 1 {
		t.Fatalf("quotation = %d, want floor of 1", first.Players[0].Quotation)
	}
}

func TestParseFixtureRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no admin", "league: {name: L, initial_budget: 10}\nmembers:\n  - {team_name: A}\n"},
		{"bad player role", "league: {name: L, initial_budget: 10}\nmembers:\n  - {team_name: A, role: ADMIN}\nplayers:\n  - {full_name: P, role: WINGER}\n"},
		{"bad member role", "league: {name: L, initial_budget: 10}\nmembers:\n  - {team_name: A, role: OWNER}\n"},
		{"no budget", "league: {name: L}\nmembers:\n  - {team_name: A, role: ADMIN}\n"},
		{"bad id", "league: {id: nope, name: L, initial_budget: 10}\nmembers:\n  - {team_name: A, role: ADMIN}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseFixture([]byte(tt.body), testLimits); err == nil {
				t.Fatal("parseFixture succeeded, want error")
			}
		})
	}
}
