// Package config loads the service binaries' environment-driven settings
// through viper, with defaults so a local developer can run either binary
// against nothing but a Postgres and Redis instance.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service holds the settings both cmd/api and cmd/worker need. Each binary
// reads only the fields it cares about.
type Service struct {
	DatabaseURL   string
	RedisURL      string
	BindAddr      string
	CORSOrigins   []string
	WorkspaceRoot string
	EngineBinDir  string
	MetricsAddr   string
	LogLevel      string
}

// Load binds the known environment variables (no config file is required;
// one is merged in if present) and returns the resolved Service.
func Load() (Service, error) {
	v := viper.New()
	v.SetEnvPrefix("MMBOT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("database_url", "postgres://localhost:5432/mmbot?sslmode=disable")
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("bind_addr", ":8080")
	v.SetDefault("cors_origins", "*")
	v.SetDefault("workspace_root", ".")
	v.SetDefault("engine_bin_dir", "./bin")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("log_level", "info")

	v.SetConfigName("mmbot")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/mmbot")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Service{}, fmt.Errorf("read config: %w", err)
		}
	}

	origins := v.GetString("cors_origins")
	var corsList []string
	for _, o := range strings.Split(origins, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsList = append(corsList, o)
		}
	}

	return Service{
		DatabaseURL:   v.GetString("database_url"),
		RedisURL:      v.GetString("redis_url"),
		BindAddr:      v.GetString("bind_addr"),
		CORSOrigins:   corsList,
		WorkspaceRoot: v.GetString("workspace_root"),
		EngineBinDir:  v.GetString("engine_bin_dir"),
		MetricsAddr:   v.GetString("metrics_addr"),
		LogLevel:      v.GetString("log_level"),
	}, nil
}

// NewLogger builds a console zap logger at the given level. Both service
// binaries share this so their logs read the same way on stdout.
func NewLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return cfg.Build()
}
