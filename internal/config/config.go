// Package config loads the server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the server needs at startup. LLM provider
// selection stays in the providers factory, which reads its own
// environment variables.
type Config struct {
	HTTPAddr string

	RedisAddr     string // empty means the in-memory store
	RedisUsername string
	RedisPassword string
	KeyPrefix     string

	SessionTTL   time.Duration
	GenTimeout   time.Duration
	MaxQuestions int

	OffensiveKeywords []string
	KeywordsFile      string

	AuditDBPath string
	RolesFile   string

	Production bool
}

// Load reads configuration from the environment, applying defaults for
// anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:      ":" + envOr("PORT", envOr("HTTP_PORT", "3000")),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisUsername: os.Getenv("REDIS_USERNAME"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:     os.Getenv("SESSION_KEY_PREFIX"),
		KeywordsFile:  os.Getenv("OFFENSIVE_KEYWORDS_FILE"),
		AuditDBPath:   envOr("AUDIT_DB_PATH", "audits.db"),
		RolesFile:     os.Getenv("INTERVIEW_ROLES_FILE"),
		Production:    os.Getenv("APP_ENV") == "production",
	}

	ttlSecs, err := envInt("SESSION_TTL_SECONDS", 3600)
	if err != nil {
		return nil, err
	}
	cfg.SessionTTL = time.Duration(ttlSecs) * time.Second

	genSecs, err := envInt("GENERATION_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	cfg.GenTimeout = time.Duration(genSecs) * time.Second

	cfg.MaxQuestions, err = envInt("MAX_QUESTIONS", 7)
	if err != nil {
		return nil, err
	}

	if raw := os.Getenv("OFFENSIVE_KEYWORDS"); raw != "" {
		for _, word := range strings.Split(raw, ",") {
			if word = strings.TrimSpace(word); word != "" {
				cfg.OffensiveKeywords = append(cfg.OffensiveKeywords, word)
			}
		}
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
