package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration derived from environment variables.
type Config struct {
	HTTPPort      string
	ImportDir     string
	WorkDir       string
	DBPath        string
	JobQueueSize  int
	WorkerCount   int
	JobTimeoutSec int
	Analytics     AnalyticsConfig
	Usage         UsageConfig
	StrictConfig  bool
	InDocker      bool
}

// AnalyticsConfig captures KPI refresh and window settings.
type AnalyticsConfig struct {
	RefreshIntervalSec int
	WindowDays         int
}

// UsageConfig points at the telephony provider's usage endpoint.
type UsageConfig struct {
	Enabled bool
	BaseURL string
	Token   string
}

type fileConfig struct {
	HTTPPort  string              `json:"http_port" yaml:"http_port"`
	ImportDir string              `json:"import_dir" yaml:"import_dir"`
	WorkDir   string              `json:"work_dir" yaml:"work_dir"`
	DBPath    string              `json:"db_path" yaml:"db_path"`
	Analytics analyticsFileConfig `json:"analytics" yaml:"analytics"`
	Usage     usageFileConfig     `json:"usage" yaml:"usage"`
}

type analyticsFileConfig struct {
	RefreshIntervalSec *int `json:"refresh_interval_sec" yaml:"refresh_interval_sec"`
	WindowDays         *int `json:"window_days" yaml:"window_days"`
}

type usageFileConfig struct {
	Enabled *bool  `json:"enabled" yaml:"enabled"`
	BaseURL string `json:"base_url" yaml:"base_url"`
}

const (
	defaultPort          = ":8000"
	defaultImportDir     = "runtime/imports"
	defaultWorkDir       = "runtime/work"
	defaultDBFile        = "coldcall.db"
	minQueueSize         = 1
	defaultQueueSize     = 100
	maxQueueSize         = 1024
	defaultWorkerCount   = 4
	defaultJobTimeoutSec = 60
)

func defaultAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{
		RefreshIntervalSec: 60,
		WindowDays:         30,
	}
}

// Load reads configuration from environment variables and applies sane defaults.
func Load() (Config, error) {
	cfg := Config{
		JobQueueSize:  defaultQueueSize,
		WorkerCount:   defaultWorkerCount,
		JobTimeoutSec: defaultJobTimeoutSec,
		StrictConfig:  parseBoolEnv("STRICT_CONFIG"),
		InDocker:      parseBoolEnv("IN_DOCKER"),
	}

	configPath := getEnv("CONFIG_PATH", filepath.Join("config", "config.yaml"))

	fileCfg, fileErr := loadFileConfig(configPath)
	if fileErr != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("config load failed (%s): %w", configPath, fileErr)
		}
		log.Printf("config load failed (%s): %v (using defaults)", configPath, fileErr)
	}

	cfg.Analytics = applyAnalyticsOverrides(defaultAnalyticsConfig(), fileCfg.Analytics)

	cfg.ImportDir = firstNonEmpty(os.Getenv("IMPORT_DIR"), fileCfg.ImportDir, defaultImportDir)
	cfg.WorkDir = firstNonEmpty(os.Getenv("WORK_DIR"), fileCfg.WorkDir, defaultWorkDir)
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	} else if fileCfg.DBPath != "" {
		cfg.DBPath = fileCfg.DBPath
	} else {
		cfg.DBPath = filepath.Join(cfg.WorkDir, defaultDBFile)
	}

	cfg.HTTPPort = firstNonEmpty(os.Getenv("HTTP_PORT"), fileCfg.HTTPPort, defaultPort)
	if legacyPort := os.Getenv("PORT"); legacyPort != "" && cfg.HTTPPort == defaultPort {
		cfg.HTTPPort = legacyPort
	}
	if !strings.HasPrefix(cfg.HTTPPort, ":") {
		cfg.HTTPPort = ":" + cfg.HTTPPort
	}

	if v := os.Getenv("WORKER_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid WORKER_COUNT=%q, using default %d", v, defaultWorkerCount)
			n = defaultWorkerCount
		}
		if n <= 0 {
			log.Printf("WORKER_COUNT must be positive, using default %d", defaultWorkerCount)
			n = defaultWorkerCount
		}
		cfg.WorkerCount = n
	}

	if v := os.Getenv("JOB_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid JOB_QUEUE_SIZE=%q, using default %d", v, defaultQueueSize)
			n = defaultQueueSize
		}
		if n < minQueueSize {
			log.Printf("JOB_QUEUE_SIZE raised to minimum %d (was %d)", minQueueSize, n)
			n = minQueueSize
		}
		if n > maxQueueSize {
			log.Printf("JOB_QUEUE_SIZE capped at %d (was %d)", maxQueueSize, n)
			n = maxQueueSize
		}
		cfg.JobQueueSize = n
	}

	if cfg.JobQueueSize < cfg.WorkerCount {
		log.Printf("JOB_QUEUE_SIZE must be >= WORKER_COUNT; using default %d", defaultQueueSize)
		cfg.JobQueueSize = max(defaultQueueSize, cfg.WorkerCount)
	}

	if v := os.Getenv("JOB_TIMEOUT_SEC"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid JOB_TIMEOUT_SEC: %w", err)
		}
		if n <= 0 {
			return cfg, fmt.Errorf("JOB_TIMEOUT_SEC must be positive")
		}
		cfg.JobTimeoutSec = n
	}

	if v, ok, err := parseIntEnv("ANALYTICS_REFRESH_INTERVAL_SEC"); err != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("invalid ANALYTICS_REFRESH_INTERVAL_SEC: %w", err)
		}
		log.Printf("invalid ANALYTICS_REFRESH_INTERVAL_SEC: %v (using default)", err)
	} else if ok && v > 0 {
		cfg.Analytics.RefreshIntervalSec = v
	}
	if v, ok, err := parseIntEnv("ANALYTICS_WINDOW_DAYS"); err != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("invalid ANALYTICS_WINDOW_DAYS: %w", err)
		}
		log.Printf("invalid ANALYTICS_WINDOW_DAYS: %v (using default)", err)
	} else if ok && v > 0 {
		cfg.Analytics.WindowDays = v
	}

	cfg.Usage.BaseURL = strings.TrimRight(firstNonEmpty(os.Getenv("USAGE_API_BASE_URL"), fileCfg.Usage.BaseURL), "/")
	cfg.Usage.Token = os.Getenv("USAGE_API_TOKEN")
	if fileCfg.Usage.Enabled != nil {
		cfg.Usage.Enabled = *fileCfg.Usage.Enabled
	}
	if v := strings.TrimSpace(os.Getenv("USAGE_API_ENABLED")); v != "" {
		cfg.Usage.Enabled = parseBoolEnv("USAGE_API_ENABLED")
	}
	if cfg.Usage.Enabled && cfg.Usage.BaseURL == "" {
		log.Printf("usage API enabled without USAGE_API_BASE_URL; disabling")
		cfg.Usage.Enabled = false
	}

	if err := validateConfig(cfg); err != nil {
		if cfg.StrictConfig {
			return cfg, err
		}
		log.Printf("config validation failed: %v (continuing)", err)
	}

	return cfg, nil
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("empty config file")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.ImportDir) == "" {
		return errors.New("IMPORT_DIR is required")
	}
	if strings.TrimSpace(cfg.HTTPPort) == "" {
		return errors.New("HTTP_PORT is required")
	}
	if cfg.Analytics.RefreshIntervalSec <= 0 {
		return errors.New("analytics refresh interval must be positive")
	}
	if cfg.Analytics.WindowDays <= 0 {
		return errors.New("analytics window days must be positive")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return val
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return false
}

func applyAnalyticsOverrides(base AnalyticsConfig, override analyticsFileConfig) AnalyticsConfig {
	if override.RefreshIntervalSec != nil && *override.RefreshIntervalSec > 0 {
		base.RefreshIntervalSec = *override.RefreshIntervalSec
	}
	if override.WindowDays != nil && *override.WindowDays > 0 {
		base.WindowDays = *override.WindowDays
	}
	return base
}

func parseIntEnv(key string) (int, bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false, nil
	}
	val, err := strconv.Atoi(raw)
	return val, true, err
}
