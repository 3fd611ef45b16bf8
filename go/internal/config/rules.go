package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcdev12/fantamarket/go/internal/models"
	"github.com/mcdev12/fantamarket/go/internal/roster"
	"gopkg.in/yaml.v3"
)

type HeartbeatRules struct {
	Interval            time.Duration `yaml:"interval"`
	DisconnectThreshold time.Duration `yaml:"disconnect_threshold"`
}

// Rules are the league-independent market settings.
type Rules struct {
	AuctionTimerSeconds  int                  `yaml:"auction_timer_seconds"`
	Heartbeat            HeartbeatRules       `yaml:"heartbeat"`
	Contract             roster.ContractRules `yaml:"contract"`
	RosterLimits         models.RosterLimits  `yaml:"roster_limits"`
	SessionCreateRetries uint                 `yaml:"session_create_retries"`
	PlayerCacheSize      int                  `yaml:"player_cache_size"`
}

func DefaultRules() Rules {
	return Rules{
		AuctionTimerSeconds: 30,
		Heartbeat: HeartbeatRules{
			Interval:            30 * time.Second,
			DisconnectThreshold: 45 * time.Second,
		},
		Contract: roster.DefaultContractRules(),
		RosterLimits: models.RosterLimits{
			models.RoleGoalkeeper: 3,
			models.RoleDefender:   8,
			models.RoleMidfielder: 8,
			models.RoleForward:    6,
		},
		SessionCreateRetries: 3,
		PlayerCacheSize:      2048,
	}
}

// LoadRules overlays the YAML file at path on DefaultRules. An empty path
// returns the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("failed to parse rules file: %w", err)
	}
	if err := rules.validate(); err != nil {
		return Rules{}, fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	return rules, nil
}

func (r Rules) validate() error {
	if r.AuctionTimerSeconds < 5 || r.AuctionTimerSeconds > 600 {
		return fmt.Errorf("auction_timer_seconds must be between 5 and 600, got %d", r.AuctionTimerSeconds)
	}
	if r.Heartbeat.DisconnectThreshold <= r.Heartbeat.Interval {
		return fmt.Errorf("heartbeat disconnect_threshold must exceed the interval")
	}
	if r.Contract.SalaryRate <= 0 || r.Contract.DefaultDuration < 1 {
		return fmt.Errorf("contract salary_rate and default_duration must be positive")
	}
	for _, role := range models.FirstMarketRoles {
		if r.RosterLimits.Limit(role) < 1 {
			return fmt.Errorf("roster limit for %s must be positive", role)
		}
	}
	if r.SessionCreateRetries < 1 {
		return fmt.Errorf("session_create_retries must be at least 1")
	}
	return nil
}
