package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pawankumarreddy89/snake-byte/internal/arena"
)

// fileConfig is the optional YAML override for arena tuning. Zero fields keep
// their defaults.
type fileConfig struct {
	Arena struct {
		DuelCapacity         int `yaml:"duel_capacity"`
		BattleRoyaleCapacity int `yaml:"battle_royale_capacity"`
		CoopCapacity         int `yaml:"coop_capacity"`
		TickIntervalMS       int `yaml:"tick_interval_ms"`
		CountdownSec         int `yaml:"countdown_sec"`
		GracePeriodSec       int `yaml:"grace_period_sec"`
		GridWidth            int `yaml:"grid_width"`
		GridHeight           int `yaml:"grid_height"`
	} `yaml:"arena"`
}

// loadArenaConfig builds the arena configuration from defaults, an optional
// YAML file, then environment overrides, in that order.
func loadArenaConfig(path string) (arena.Config, error) {
	cfg := arena.DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
		applyFileConfig(&cfg, fc)
	}

	cfg.BattleRoyaleCapacity = getEnvAsInt("ARENA_BATTLE_ROYALE_CAPACITY", cfg.BattleRoyaleCapacity)
	cfg.CoopCapacity = getEnvAsInt("ARENA_COOP_CAPACITY", cfg.CoopCapacity)
	cfg.TickInterval = getEnvAsDuration("ARENA_TICK_INTERVAL", cfg.TickInterval)
	cfg.Countdown = getEnvAsDuration("ARENA_COUNTDOWN", cfg.Countdown)
	cfg.GracePeriod = getEnvAsDuration("ARENA_GRACE_PERIOD", cfg.GracePeriod)

	return cfg, nil
}

func applyFileConfig(cfg *arena.Config, fc fileConfig) {
	if fc.Arena.DuelCapacity > 0 {
		cfg.DuelCapacity = fc.Arena.DuelCapacity
	}
	if fc.Arena.BattleRoyaleCapacity > 0 {
		cfg.BattleRoyaleCapacity = fc.Arena.BattleRoyaleCapacity
	}
	if fc.Arena.CoopCapacity > 0 {
		cfg.CoopCapacity = fc.Arena.CoopCapacity
	}
	if fc.Arena.TickIntervalMS > 0 {
		cfg.TickInterval = time.Duration(fc.Arena.TickIntervalMS) * time.Millisecond
	}
	if fc.Arena.CountdownSec > 0 {
		cfg.Countdown = time.Duration(fc.Arena.CountdownSec) * time.Second
	}
	if fc.Arena.GracePeriodSec > 0 {
		cfg.GracePeriod = time.Duration(fc.Arena.GracePeriodSec) * time.Second
	}
	if fc.Arena.GridWidth > 0 {
		cfg.GridWidth = fc.Arena.GridWidth
	}
	if fc.Arena.GridHeight > 0 {
		cfg.GridHeight = fc.Arena.GridHeight
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
