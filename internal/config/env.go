package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3200"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".choreguild/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"choreguild/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
}

type SchedulerEnv struct {
	// Timezone is the canonical calendar timezone for recurrence math and
	// the midnight boundary.
	Timezone string `envconfig:"TIMEZONE" default:"Local"`
	// TickInterval is the period of the due-date boundary tick.
	TickInterval time.Duration `envconfig:"TICK_INTERVAL" default:"1m"`
	// LockWait bounds how long the scanner waits for a contended chore
	// before skipping it until the next pass.
	LockWait time.Duration `envconfig:"LOCK_WAIT" default:"2s"`
	// DefinitionsFile is the local path of the chore definition document,
	// watched for edits when storage is local.
	DefinitionsFile string `envconfig:"DEFINITIONS_FILE" default:".choreguild/data/chores.yaml"`
}

type Env struct {
	BaseEnv
	StorageEnv
	SchedulerEnv
}

const namespace = "CHOREGUILD"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

// Location resolves the configured timezone.
func (e *SchedulerEnv) Location() (*time.Location, error) {
	if e.Timezone == "" || e.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", e.Timezone, err)
	}
	return loc, nil
}
