package config

import (
	"os"
	"time"

	"edulearn-engine/internal/domain"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Auth struct {
		// JWTSecret verifies session tokens minted by the identity
		// collaborator; the engine never issues tokens itself.
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		CacheTTL string `yaml:"cache_ttl"`
		// SweepInterval drives the background deadline sweep; empty or "0"
		// leaves expiry to lazy finalization only.
		SweepInterval string `yaml:"sweep_interval"`
	} `yaml:"quiz"`
	Leaderboard struct {
		// Timezone fixes the weekly window boundary (Monday 00:00 local).
		Timezone string `yaml:"timezone"`
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"leaderboard"`
	Progression Progression `yaml:"progression"`
}

// Progression holds the policy constants the product tunes without code
// changes: reward sizes and the level curve.
type Progression struct {
	LessonXP          int               `yaml:"lesson_xp"`
	DailyChallengeXP  int               `yaml:"daily_challenge_xp"`
	StreakBonusPerDay int               `yaml:"streak_bonus_per_day"`
	MaxStreakBonus    int               `yaml:"max_streak_bonus"`
	LevelCurve        domain.LevelCurve `yaml:"level_curve"`
}

// Load reads YAML config from path and fills in policy defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Default returns a config with only the built-in policy defaults, used when
// no config file is present.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Progression.LessonXP == 0 {
		c.Progression.LessonXP = 50
	}
	if c.Progression.DailyChallengeXP == 0 {
		c.Progression.DailyChallengeXP = 25
	}
	if c.Progression.StreakBonusPerDay == 0 {
		c.Progression.StreakBonusPerDay = 5
	}
	if c.Progression.MaxStreakBonus == 0 {
		c.Progression.MaxStreakBonus = 50
	}
	if c.Progression.LevelCurve.BaseXP == 0 {
		c.Progression.LevelCurve = domain.DefaultLevelCurve()
	}
	if c.Leaderboard.Timezone == "" {
		c.Leaderboard.Timezone = "UTC"
	}
}

// Location resolves the leaderboard timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Leaderboard.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TTLDuration parses a duration string or returns the fallback if empty or
// invalid.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
