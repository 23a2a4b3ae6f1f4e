package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	RateLimit  RateLimitConfig
	Tenancy    TenancyConfig
	Limits     LimitsConfig
	Storage    StorageConfig
	Worker     WorkerConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	Env            string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type EncryptionConfig struct {
	Key string
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

// TenancyConfig controls how the tenant of a request is resolved.
type TenancyConfig struct {
	BaseDomain       string // e.g. "ash-erp.com"; subdomains of it are tenant slugs
	DevFallbackSlug  string // honoured only outside production
	LookupCacheSize  int
	LookupCacheTTLMs int
}

// PlanLimits are the maxima for one plan tier. -1 means unlimited.
type PlanLimits struct {
	MaxUsers          int
	MaxOrdersPerMonth int
	MaxStorageGB      float64
}

type LimitsConfig struct {
	CacheTTLSeconds  int
	WarningThreshold float64
	Plans            map[string]PlanLimits
}

type StorageConfig struct {
	Backend         string // s3, gcs or memory (development only)
	Bucket          string
	Region          string
	Endpoint        string
	AccessKey       string
	SecretKey       string
	CredentialsFile string // GCS service account file; empty uses default credentials
	Encrypt         bool
	MaxUploadMB     int
}

type WorkerConfig struct {
	Concurrency    int
	UsageSweepCron string
}

var planTiers = []string{"free", "basic", "professional", "enterprise"}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (j *JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpiryHours) * time.Hour
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func (s *ServerConfig) IsProduction() bool {
	return s.Env == "production"
}

func (l *LimitsConfig) CacheTTL() time.Duration {
	return time.Duration(l.CacheTTLSeconds) * time.Second
}

func (t *TenancyConfig) LookupCacheTTL() time.Duration {
	return time.Duration(t.LookupCacheTTLMs) * time.Millisecond
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("SERVER_ALLOWED_ORIGINS", "")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "asherp")
	v.SetDefault("DATABASE_PASSWORD", "asherp_secret")
	v.SetDefault("DATABASE_NAME", "asherp")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("JWT_EXPIRY_HOURS", 24)
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("TENANT_BASE_DOMAIN", "")
	v.SetDefault("TENANT_DEV_FALLBACK_SLUG", "")
	v.SetDefault("TENANT_LOOKUP_CACHE_SIZE", 1024)
	v.SetDefault("TENANT_LOOKUP_CACHE_TTL_MS", 30000)
	v.SetDefault("LIMITS_CACHE_TTL_SECONDS", 30)
	v.SetDefault("LIMITS_WARNING_THRESHOLD", 0.9)
	v.SetDefault("STORAGE_BACKEND", "s3")
	v.SetDefault("STORAGE_BUCKET", "ash-erp-files")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_ENCRYPT", true)
	v.SetDefault("STORAGE_MAX_UPLOAD_MB", 100)
	v.SetDefault("WORKER_CONCURRENCY", 10)
	v.SetDefault("WORKER_USAGE_SWEEP_CRON", "0 * * * *")

	// Plan defaults mirror the subscription tiers sold today
	v.SetDefault("PLAN_FREE_MAX_USERS", 5)
	v.SetDefault("PLAN_FREE_MAX_ORDERS", 50)
	v.SetDefault("PLAN_FREE_MAX_STORAGE_GB", 5)
	v.SetDefault("PLAN_BASIC_MAX_USERS", 15)
	v.SetDefault("PLAN_BASIC_MAX_ORDERS", 500)
	v.SetDefault("PLAN_BASIC_MAX_STORAGE_GB", 25)
	v.SetDefault("PLAN_PROFESSIONAL_MAX_USERS", 50)
	v.SetDefault("PLAN_PROFESSIONAL_MAX_ORDERS", 5000)
	v.SetDefault("PLAN_PROFESSIONAL_MAX_STORAGE_GB", 100)
	v.SetDefault("PLAN_ENTERPRISE_MAX_USERS", -1)
	v.SetDefault("PLAN_ENTERPRISE_MAX_ORDERS", -1)
	v.SetDefault("PLAN_ENTERPRISE_MAX_STORAGE_GB", -1)

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	plans := make(map[string]PlanLimits, len(planTiers))
	for _, tier := range planTiers {
		prefix := "PLAN_" + strings.ToUpper(tier) + "_"
		plans[tier] = PlanLimits{
			MaxUsers:          v.GetInt(prefix + "MAX_USERS"),
			MaxOrdersPerMonth: v.GetInt(prefix + "MAX_ORDERS"),
			MaxStorageGB:      v.GetFloat64(prefix + "MAX_STORAGE_GB"),
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetInt("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(v.GetString("SERVER_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DATABASE_HOST"),
			Port:     v.GetInt("DATABASE_PORT"),
			User:     v.GetString("DATABASE_USER"),
			Password: v.GetString("DATABASE_PASSWORD"),
			Name:     v.GetString("DATABASE_NAME"),
			SSLMode:  v.GetString("DATABASE_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		JWT: JWTConfig{
			Secret:      v.GetString("JWT_SECRET"),
			ExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
		},
		Encryption: EncryptionConfig{
			Key: v.GetString("ENCRYPTION_KEY"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Tenancy: TenancyConfig{
			BaseDomain:       v.GetString("TENANT_BASE_DOMAIN"),
			DevFallbackSlug:  v.GetString("TENANT_DEV_FALLBACK_SLUG"),
			LookupCacheSize:  v.GetInt("TENANT_LOOKUP_CACHE_SIZE"),
			LookupCacheTTLMs: v.GetInt("TENANT_LOOKUP_CACHE_TTL_MS"),
		},
		Limits: LimitsConfig{
			CacheTTLSeconds:  v.GetInt("LIMITS_CACHE_TTL_SECONDS"),
			WarningThreshold: v.GetFloat64("LIMITS_WARNING_THRESHOLD"),
			Plans:            plans,
		},
		Storage: StorageConfig{
			Backend:         v.GetString("STORAGE_BACKEND"),
			Bucket:          v.GetString("STORAGE_BUCKET"),
			Region:          v.GetString("STORAGE_REGION"),
			Endpoint:        v.GetString("STORAGE_ENDPOINT"),
			AccessKey:       v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:       v.GetString("STORAGE_SECRET_KEY"),
			CredentialsFile: v.GetString("STORAGE_CREDENTIALS_FILE"),
			Encrypt:         v.GetBool("STORAGE_ENCRYPT"),
			MaxUploadMB:     v.GetInt("STORAGE_MAX_UPLOAD_MB"),
		},
		Worker: WorkerConfig{
			Concurrency:    v.GetInt("WORKER_CONCURRENCY"),
			UsageSweepCron: v.GetString("WORKER_USAGE_SWEEP_CRON"),
		},
	}

	if cfg.Server.IsProduction() && cfg.Tenancy.DevFallbackSlug != "" {
		return nil, fmt.Errorf("TENANT_DEV_FALLBACK_SLUG must not be set when SERVER_ENV=production")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
