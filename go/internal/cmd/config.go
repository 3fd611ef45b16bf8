package main

import (
	"fmt"

	"github.com/mcdev12/fantamarket/go/internal/config"
	"github.com/rs/zerolog/log"
)

type settings struct {
	config.Config
	Rules config.Rules
}

// loadSettings reads the environment, configures logging and loads the
// market rules file.
func loadSettings() (settings, error) {
	cfg, err := config.Load()
	if err != nil {
		return settings{}, err
	}
	config.SetupLogging(cfg.LogLevel, cfg.LogFormat)

	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return settings{}, fmt.Errorf("failed to load market rules: %w", err)
	}
	log.Info().
		Str("store", cfg.StoreDriver).
		Str("rules", cfg.RulesPath).
		Int("auction_timer_seconds", rules.AuctionTimerSeconds).
		Msg("configuration loaded")

	return settings{Config: cfg, Rules: rules}, nil
}
