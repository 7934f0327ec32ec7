package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	AppName     = "kasko-bot"
	EnvFileName = "config.env"

	DefaultDBPath = "kasko.db"
)

// Config holds the runtime settings read from the environment.
type Config struct {
	BotToken     string
	GeminiAPIKey string
	GeminiModel  string // Empty selects the extractor default
	AdminID      int64
	DBPath       string
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist.
func LoadEnvFile() {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return
	}
	configPath := filepath.Join(configBase, AppName, EnvFileName)
	_ = godotenv.Load(configPath)
}

// MissingRequired returns the names of required variables that are unset.
func MissingRequired() []string {
	var missing []string
	for _, key := range []string{"BOT_TOKEN", "GEMINI_API_KEY", "ADMIN_TELEGRAM_ID"} {
		if strings.TrimSpace(os.Getenv(key)) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// FromEnv builds a Config from the process environment.
func FromEnv() (*Config, error) {
	if missing := MissingRequired(); len(missing) > 0 {
		return nil, fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	adminID, err := strconv.ParseInt(strings.TrimSpace(os.Getenv("ADMIN_TELEGRAM_ID")), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID must be a valid integer: %w", err)
	}

	dbPath := os.Getenv("KASKO_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBPath
	}

	return &Config{
		BotToken:     os.Getenv("BOT_TOKEN"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  os.Getenv("GEMINI_MODEL"),
		AdminID:      adminID,
		DBPath:       dbPath,
	}, nil
}
