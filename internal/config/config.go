// Package config loads settings from the environment, an optional .env file
// and command line flags.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the validated bot configuration.
type Config struct {
	TelegramToken string
	Phone         string

	TotalWipeConfirms    int
	PersonalWipeConfirms int

	AIToken       string
	AITemperature float64
	AIBaseURL     string
	AIModel       string

	SnapshotDir    string
	SnapshotBucket string
	SnapshotPrefix string

	JournalPath string
	ImagesDir   string

	DeleteBatchSize int
	DeletePacing    time.Duration
	APIRate         float64

	HealthAddr string
	LogLevel   string
	LogFile    string
}

// Keys, named after the environment variables they read.
const (
	KeyTelegramToken        = "telegram_bot_token"
	KeyPhone                = "phone"
	KeyTotalWipeConfirms    = "total_wipe_confirms"
	KeyPersonalWipeConfirms = "personal_wipe_confirms"
	KeyAIToken              = "ai_token"
	KeyAITemperature        = "ai_temperature"
	KeyAIBaseURL            = "ai_base_url"
	KeyAIModel              = "ai_model"
	KeySnapshotDir          = "snapshot_dir"
	KeySnapshotBucket       = "snapshot_bucket"
	KeySnapshotPrefix       = "snapshot_prefix"
	KeyJournalPath          = "journal_path"
	KeyImagesDir            = "images_dir"
	KeyDeleteBatchSize      = "delete_batch_size"
	KeyDeletePacing         = "delete_pacing"
	KeyAPIRate              = "api_rate"
	KeyHealthAddr           = "health_addr"
	KeyLogLevel             = "log_level"
	KeyLogFile              = "log_file"
)

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyTotalWipeConfirms, 3)
	v.SetDefault(KeyPersonalWipeConfirms, 2)
	v.SetDefault(KeyAITemperature, 1.0)
	v.SetDefault(KeyAIBaseURL, "https://api.deepseek.com")
	v.SetDefault(KeyAIModel, "deepseek-chat")
	v.SetDefault(KeySnapshotDir, "data/exports")
	v.SetDefault(KeyJournalPath, "data/journal.db")
	v.SetDefault(KeyImagesDir, "images")
	v.SetDefault(KeyDeleteBatchSize, 100)
	v.SetDefault(KeyDeletePacing, 500*time.Millisecond)
	v.SetDefault(KeyAPIRate, 25.0)
	v.SetDefault(KeyHealthAddr, ":8080")
	v.SetDefault(KeyLogLevel, "info")
}

// New returns a viper instance reading environment variables (upper-cased
// keys) and, when flags is non-nil, the matching command line flags.
func New(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags == nil {
		return v, nil
	}

	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
			bindErr = errors.Wrapf(err, "failed to bind flag %s", f.Name)
		}
	})
	return v, bindErr
}

// LoadDotEnv loads .env files into the environment. A missing file is not an
// error; anything else is returned.
func LoadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && !isNotExist(err) {
		return errors.Wrap(err, "failed to load .env file")
	}
	return nil
}

// Load reads and validates a Config from v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		TelegramToken:        v.GetString(KeyTelegramToken),
		Phone:                v.GetString(KeyPhone),
		TotalWipeConfirms:    v.GetInt(KeyTotalWipeConfirms),
		PersonalWipeConfirms: v.GetInt(KeyPersonalWipeConfirms),
		AIToken:              v.GetString(KeyAIToken),
		AITemperature:        v.GetFloat64(KeyAITemperature),
		AIBaseURL:            v.GetString(KeyAIBaseURL),
		AIModel:              v.GetString(KeyAIModel),
		SnapshotDir:          v.GetString(KeySnapshotDir),
		SnapshotBucket:       v.GetString(KeySnapshotBucket),
		SnapshotPrefix:       v.GetString(KeySnapshotPrefix),
		JournalPath:          v.GetString(KeyJournalPath),
		ImagesDir:            v.GetString(KeyImagesDir),
		DeleteBatchSize:      v.GetInt(KeyDeleteBatchSize),
		DeletePacing:         v.GetDuration(KeyDeletePacing),
		APIRate:              v.GetFloat64(KeyAPIRate),
		HealthAddr:           v.GetString(KeyHealthAddr),
		LogLevel:             v.GetString(KeyLogLevel),
		LogFile:              v.GetString(KeyLogFile),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required values and ranges.
func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return errors.New("required environment variable TELEGRAM_BOT_TOKEN is not set")
	}
	if c.TotalWipeConfirms < 1 {
		return errors.Errorf("TOTAL_WIPE_CONFIRMS must be a positive integer, got %d", c.TotalWipeConfirms)
	}
	if c.PersonalWipeConfirms < 1 {
		return errors.Errorf("PERSONAL_WIPE_CONFIRMS must be a positive integer, got %d", c.PersonalWipeConfirms)
	}
	if c.AITemperature < 0 || c.AITemperature > 2 {
		return errors.Errorf("AI_TEMPERATURE must be between 0 and 2, got %g", c.AITemperature)
	}
	if c.DeleteBatchSize < 1 {
		return errors.Errorf("DELETE_BATCH_SIZE must be a positive integer, got %d", c.DeleteBatchSize)
	}
	if c.DeletePacing < 0 {
		return errors.Errorf("DELETE_PACING must not be negative, got %s", c.DeletePacing)
	}
	return nil
}

// AIEnabled reports whether the completion API is configured.
func (c *Config) AIEnabled() bool {
	return c.AIToken != ""
}

func isNotExist(err error) bool {
	var pathErr *os.PathError
	return errors.As(err, &pathErr) && os.IsNotExist(pathErr)
}
