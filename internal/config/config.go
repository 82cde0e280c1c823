package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for the client-side pacing knobs. They bound store write
// traffic, not correctness.
const (
	DefaultEmojiThrowCooldown = 500 * time.Millisecond
	DefaultMaxEmojisPerMinute = 10
	DefaultVoteUpdateDebounce = 500 * time.Millisecond
	DefaultReactionWindow     = 10
)

// Config holds all configuration values for the application
type Config struct {
	RedisURL           string
	Environment        string
	LogLevel           string
	EmojiThrowCooldown time.Duration // minimum gap between emoji throws per participant
	MaxEmojisPerMinute int           // sliding one-minute cap on emoji throws
	VoteUpdateDebounce time.Duration // wait before flushing a vote write
	ReactionWindow     int           // newest reactions kept visible per game
	IdentityPath       string        // client identity file, empty = user config dir
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		Environment:        getEnv("ENVIRONMENT", "production"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		EmojiThrowCooldown: getDurationMsEnv("EMOJI_THROW_COOLDOWN_MS", DefaultEmojiThrowCooldown),
		MaxEmojisPerMinute: getIntEnv("MAX_EMOJIS_PER_MINUTE", DefaultMaxEmojisPerMinute),
		VoteUpdateDebounce: getDurationMsEnv("VOTE_UPDATE_DEBOUNCE_MS", DefaultVoteUpdateDebounce),
		ReactionWindow:     getIntEnv("REACTION_WINDOW", DefaultReactionWindow),
		IdentityPath:       getEnv("IDENTITY_PATH", ""),
	}, nil
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

// getDurationMsEnv gets a millisecond-valued environment variable with a
// fallback value
func getDurationMsEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * time.Millisecond
		}
	}
	return fallback
}
