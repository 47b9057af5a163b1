// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetScoreRefreshCron() string
	GetAutoAssignCron() string
	GetScheduledOrganizations() []string
	GetAutoAssignStrategy() string
	GetAutoAssignLimit() int
}

// ScoringConfig provides the weight table and tuning knobs for the scoring engine.
type ScoringConfig interface {
	GetScoringWeights() ScoringWeights
	GetScoringTuning() ScoringTuning
	GetRefreshConcurrency() int
}

// AssignmentConfig provides settings for the assignment executor.
type AssignmentConfig interface {
	GetAssignBatchCap() int
}

// MailConfig provides settings for assignment digest emails.
type MailConfig interface {
	GetMailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetMailFromName() string
	GetMailFromAddress() string
}

// =============================================================================
// Scoring Weight Table
// =============================================================================

// ScoringWeights holds the per-sub-score weights used to build the composite
// score. The five weights must sum to 1.0; Load validates this at startup so
// a bad deployment fails fast instead of skewing every score.
type ScoringWeights struct {
	Engagement float64 `yaml:"engagement"`
	Source     float64 `yaml:"source"`
	Value      float64 `yaml:"value"`
	Velocity   float64 `yaml:"velocity"`
	Fit        float64 `yaml:"fit"`
}

// Sum returns the total of all weights.
func (w ScoringWeights) Sum() float64 {
	return w.Engagement + w.Source + w.Value + w.Velocity + w.Fit
}

// Validate checks that every weight is non-negative and the table sums to 1.0.
func (w ScoringWeights) Validate() error {
	named := []struct {
		name  string
		value float64
	}{
		{"engagement", w.Engagement},
		{"source", w.Source},
		{"value", w.Value},
		{"velocity", w.Velocity},
		{"fit", w.Fit},
	}
	for _, entry := range named {
		if entry.value < 0 {
			return fmt.Errorf("scoring weight %s is negative (%v)", entry.name, entry.value)
		}
	}
	if math.Abs(w.Sum()-1.0) > 1e-6 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %v", w.Sum())
	}
	return nil
}

// ScoringTuning holds the bucket thresholds and curve constants. These are
// product defaults, not law; deployments override them through the optional
// SCORING_CONFIG_FILE YAML file.
type ScoringTuning struct {
	// Bucket boundaries on the composite score.
	HotThreshold  int `yaml:"hot_threshold"`
	WarmThreshold int `yaml:"warm_threshold"`
	CoolThreshold int `yaml:"cool_threshold"`

	// A sub-score above ReasonHigh contributes a reason string; one below
	// RiskLow contributes a risk string.
	ReasonHigh float64 `yaml:"reason_high"`
	RiskLow    float64 `yaml:"risk_low"`

	// EngagementSaturation controls how quickly weighted activity counts
	// saturate toward 100 (higher = slower saturation).
	EngagementSaturation float64 `yaml:"engagement_saturation"`

	// StallMultiplier: a lead sitting in a stage longer than
	// StallMultiplier x the org median for that stage counts as stalled.
	StallMultiplier float64 `yaml:"stall_multiplier"`
}

// scoringFile is the shape of the optional YAML tuning file.
type scoringFile struct {
	Weights *ScoringWeights `yaml:"weights"`
	Tuning  *ScoringTuning  `yaml:"tuning"`
}

func defaultWeights() ScoringWeights {
	return ScoringWeights{
		Engagement: 0.30,
		Source:     0.15,
		Value:      0.20,
		Velocity:   0.20,
		Fit:        0.15,
	}
}

func defaultTuning() ScoringTuning {
	return ScoringTuning{
		HotThreshold:         70,
		WarmThreshold:        50,
		CoolThreshold:        30,
		ReasonHigh:           70,
		RiskLow:              35,
		EngagementSaturation: 12,
		StallMultiplier:      2.0,
	}
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env             string
	HTTPAddr        string
	DatabaseURL     string
	JWTAccessSecret string
	CORSAllowAll    bool
	CORSOrigins     []string
	CORSAllowCreds  bool

	RedisURL           string
	RedisTLSInsecure   bool
	AsynqQueueName     string
	AsynqConcurrency   int
	ScoreRefreshCron   string
	AutoAssignCron     string
	ScheduledOrgs      []string
	AutoAssignStrat    string
	AutoAssignLimit    int
	AssignBatchCap     int
	RefreshConcurrency int

	Weights ScoringWeights
	Tuning  ScoringTuning

	MailEnabled     bool
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	MailFromName    string
	MailFromAddress string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                 { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool           { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string           { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int            { return c.AsynqConcurrency }
func (c *Config) GetScoreRefreshCron() string         { return c.ScoreRefreshCron }
func (c *Config) GetAutoAssignCron() string           { return c.AutoAssignCron }
func (c *Config) GetScheduledOrganizations() []string { return c.ScheduledOrgs }
func (c *Config) GetAutoAssignStrategy() string       { return c.AutoAssignStrat }
func (c *Config) GetAutoAssignLimit() int             { return c.AutoAssignLimit }

// ScoringConfig implementation
func (c *Config) GetScoringWeights() ScoringWeights { return c.Weights }
func (c *Config) GetScoringTuning() ScoringTuning   { return c.Tuning }
func (c *Config) GetRefreshConcurrency() int        { return c.RefreshConcurrency }

// AssignmentConfig implementation
func (c *Config) GetAssignBatchCap() int { return c.AssignBatchCap }

// MailConfig implementation
func (c *Config) GetMailEnabled() bool       { return c.MailEnabled }
func (c *Config) GetSMTPHost() string        { return c.SMTPHost }
func (c *Config) GetSMTPPort() int           { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string    { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string    { return c.SMTPPassword }
func (c *Config) GetMailFromName() string    { return c.MailFromName }
func (c *Config) GetMailFromAddress() string { return c.MailFromAddress }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	weights := defaultWeights()
	tuning := defaultTuning()
	if file := getEnv("SCORING_CONFIG_FILE", ""); file != "" {
		loaded, err := loadScoringFile(file)
		if err != nil {
			return nil, fmt.Errorf("scoring config file: %w", err)
		}
		if loaded.Weights != nil {
			weights = *loaded.Weights
		}
		if loaded.Tuning != nil {
			tuning = *loaded.Tuning
		}
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if tuning.HotThreshold <= tuning.WarmThreshold || tuning.WarmThreshold <= tuning.CoolThreshold {
		return nil, fmt.Errorf("bucket thresholds must be strictly descending: hot %d, warm %d, cool %d",
			tuning.HotThreshold, tuning.WarmThreshold, tuning.CoolThreshold)
	}

	smtpHost := getEnv("SMTP_HOST", "")
	mailEnabled := strings.EqualFold(getEnv("MAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:    corsAllowAll,
		CORSOrigins:     corsOrigins,
		CORSAllowCreds:  strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		RedisURL:           getEnv("REDIS_URL", ""),
		RedisTLSInsecure:   strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:     getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:   mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		ScoreRefreshCron:   getEnv("SCORE_REFRESH_CRON", ""),
		AutoAssignCron:     getEnv("AUTO_ASSIGN_CRON", ""),
		ScheduledOrgs:      splitCSV(getEnv("SCHEDULED_ORGANIZATIONS", "")),
		AutoAssignStrat:    getEnv("AUTO_ASSIGN_STRATEGY", "workload"),
		AutoAssignLimit:    mustInt(getEnv("AUTO_ASSIGN_LIMIT", "50")),
		AssignBatchCap:     mustInt(getEnv("ASSIGN_BATCH_CAP", "200")),
		RefreshConcurrency: mustInt(getEnv("SCORE_REFRESH_CONCURRENCY", "8")),

		Weights: weights,
		Tuning:  tuning,

		MailEnabled:     mailEnabled && smtpHost != "",
		SMTPHost:        smtpHost,
		SMTPPort:        mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		MailFromName:    getEnv("MAIL_FROM_NAME", "Lead Engine"),
		MailFromAddress: getEnv("MAIL_FROM_ADDRESS", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.MailEnabled && cfg.MailFromAddress == "" {
		return nil, fmt.Errorf("MAIL_FROM_ADDRESS is required when mail is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.AssignBatchCap < 1 {
		return nil, fmt.Errorf("ASSIGN_BATCH_CAP must be positive")
	}

	return cfg, nil
}

func loadScoringFile(path string) (scoringFile, error) {
	var parsed scoringFile
	data, err := os.ReadFile(path)
	if err != nil {
		return parsed, err
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return parsed, err
	}
	return parsed, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
