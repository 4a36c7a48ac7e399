package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Guardian gating thresholds
	Guardian GuardianConfig `yaml:"guardian"`

	// Risk assessment settings
	Assess AssessConfig `yaml:"assess"`

	// Pipeline settings
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Outreach execution settings
	Outreach OutreachConfig `yaml:"outreach"`

	// Signal storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Audit settings
	Audit AuditConfig `yaml:"audit"`

	// HTTP server settings
	Server ServerConfig `yaml:"server"`
}

type GuardianConfig struct {
	AutoExecuteBelow float64 `yaml:"auto_execute_below"`
	HoldAt           float64 `yaml:"hold_at"`
}

type AssessConfig struct {
	HighThreshold       float64 `yaml:"high_threshold"`
	MediumThreshold     float64 `yaml:"medium_threshold"`
	EscalationThreshold float64 `yaml:"escalation_threshold"`
}

type PipelineConfig struct {
	HighRiskThreshold float64 `yaml:"high_risk_threshold"`
}

type OutreachConfig struct {
	MaxConcurrent  int     `yaml:"max_concurrent"`
	SendsPerSecond float64 `yaml:"sends_per_second"`
	SendBurst      int     `yaml:"send_burst"`
}

type StorageConfig struct {
	Type        string `yaml:"type"` // "postgres", "sqlite", "none"
	PostgresDSN string `yaml:"postgres_dsn"`
	LocalPath   string `yaml:"local_path"`
}

type AuditConfig struct {
	TrailPath string `yaml:"trail_path"` // JSONL audit trail; empty disables
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Guardian: GuardianConfig{
			AutoExecuteBelow: 0.40,
			HoldAt:           0.70,
		},
		Assess: AssessConfig{
			HighThreshold:       0.70,
			MediumThreshold:     0.40,
			EscalationThreshold: 0.85,
		},
		Pipeline: PipelineConfig{
			HighRiskThreshold: 0.70,
		},
		Outreach: OutreachConfig{
			MaxConcurrent:  4,
			SendsPerSecond: 10,
			SendBurst:      5,
		},
		Storage: StorageConfig{
			Type:      "none",
			LocalPath: filepath.Join(homeDir, ".revenuepilot", "signals.db"),
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults
	cfg := Default()
	v.SetDefault("guardian", cfg.Guardian)
	v.SetDefault("assess", cfg.Assess)
	v.SetDefault("pipeline", cfg.Pipeline)
	v.SetDefault("outreach", cfg.Outreach)
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("audit", cfg.Audit)
	v.SetDefault("server", cfg.Server)

	// Load from environment variables
	v.SetEnvPrefix("REVPILOT")
	v.AutomaticEnv()

	// Try to find config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath(".revenuepilot")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".revenuepilot"))
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	// Unmarshal into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",       // Main environment file
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	// Also try loading from home directory
	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".revenuepilot", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	// Guardian configuration
	if below := os.Getenv("GUARDIAN_AUTO_EXECUTE_BELOW"); below != "" {
		if threshold, err := strconv.ParseFloat(below, 64); err == nil {
			cfg.Guardian.AutoExecuteBelow = threshold
		}
	}
	if hold := os.Getenv("GUARDIAN_HOLD_AT"); hold != "" {
		if threshold, err := strconv.ParseFloat(hold, 64); err == nil {
			cfg.Guardian.HoldAt = threshold
		}
	}

	// Pipeline configuration
	if high := os.Getenv("PIPELINE_HIGH_RISK_THRESHOLD"); high != "" {
		if threshold, err := strconv.ParseFloat(high, 64); err == nil {
			cfg.Pipeline.HighRiskThreshold = threshold
		}
	}

	// Outreach configuration
	if workers := os.Getenv("OUTREACH_MAX_CONCURRENT"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			cfg.Outreach.MaxConcurrent = n
		}
	}
	if rate := os.Getenv("OUTREACH_SENDS_PER_SECOND"); rate != "" {
		if perSecond, err := strconv.ParseFloat(rate, 64); err == nil {
			cfg.Outreach.SendsPerSecond = perSecond
		}
	}

	// Storage configuration
	if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if path := os.Getenv("LOCAL_DB_PATH"); path != "" {
		cfg.Storage.LocalPath = expandPath(path)
	}

	// Audit configuration
	if trail := os.Getenv("AUDIT_TRAIL_PATH"); trail != "" {
		cfg.Audit.TrailPath = expandPath(trail)
	}

	// Server configuration
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("guardian", c.Guardian)
	v.Set("assess", c.Assess)
	v.Set("pipeline", c.Pipeline)
	v.Set("outreach", c.Outreach)
	v.Set("storage", c.Storage)
	v.Set("audit", c.Audit)
	v.Set("server", c.Server)

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
