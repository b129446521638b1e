package config

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/planner"
)

type Config struct {
	Planner  PlannerConfig
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Storage  StorageConfig
	App      AppConfig
	Log      LogConfig
}

type PlannerConfig struct {
	Params       domain.Parameters
	Horizon      int
	MaxAttempts  int
	SolveTimeout time.Duration
	Tolerance    float64
	Precision    int32
	Relaxation   planner.RelaxationConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
	MaxUploadMB    int
}

// DatabaseConfig selects the plan-run store. Driver is one of postgres, pgx,
// sqlite or none.
type DatabaseConfig struct {
	Driver         string
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	Path           string
	MaxConcurrency int64
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	TTLSeconds    int
}

// StorageConfig selects where exports and batch inputs live. Backend is one
// of local, minio or s3.
type StorageConfig struct {
	Enabled   bool
	Backend   string
	LocalDir  string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Prefix    string
}

type AppConfig struct {
	UploadDir string
	DataDir   string
	Workers   int
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

var (
	once     sync.Once
	instance *Config
)

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("PLANNER_YIELD_FACTOR", 0.8)
	v.SetDefault("PLANNER_DENSITY_FACTOR", 0.9)
	v.SetDefault("PLANNER_MAX_PRODUCTION", 300.0)
	v.SetDefault("PLANNER_OBJECTIVE", string(domain.Minimize))
	v.SetDefault("PLANNER_TERMINAL_POLICY", string(domain.TerminalAuto))
	v.SetDefault("PLANNER_HORIZON", 52)
	v.SetDefault("PLANNER_MAX_ATTEMPTS", planner.DefaultMaxAttempts)
	v.SetDefault("PLANNER_SOLVE_TIMEOUT", planner.DefaultSolveTimeout)
	v.SetDefault("PLANNER_TOLERANCE", planner.DefaultTolerance)
	v.SetDefault("PLANNER_REPORT_PRECISION", 3)

	relax := planner.DefaultRelaxationConfig()
	v.SetDefault("RELAX_CAPACITY_MULTIPLIER", relax.CapacityMultiplier)
	v.SetDefault("RELAX_EFFICIENCY_MULTIPLIER", relax.EfficiencyMultiplier)
	v.SetDefault("RELAX_EFFICIENCY_CAPACITY_MULTIPLIER", relax.EfficiencyCapacityMultiplier)
	v.SetDefault("RELAX_SAFETY_STOCK_MULTIPLIER", relax.SafetyStockMultiplier)
	v.SetDefault("RELAX_SAFETY_STOCK_CAPACITY_MULTIPLIER", relax.SafetyStockCapacityMultiplier)
	v.SetDefault("RELAX_INITIAL_STOCK_FLOOR", relax.InitialStockFloor)
	v.SetDefault("RELAX_INITIAL_STOCK_CAPACITY_MULTIPLIER", relax.InitialStockCapacityMultiplier)
	v.SetDefault("RELAX_FALLBACK_MAX_PRODUCTION", relax.FallbackMaxProduction)
	v.SetDefault("RELAX_FALLBACK_INITIAL_STOCK_FLOOR", relax.FallbackInitialStockFloor)
	v.SetDefault("RELAX_LEAD_PERIODS", relax.LeadPeriods)

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER_MAX_UPLOAD_MB", 10)

	v.SetDefault("DB_DRIVER", "none")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "planner")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_PATH", "./data/planner.db")
	v.SetDefault("DB_MAX_CONCURRENCY", 10)

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL_SECONDS", 3600)

	v.SetDefault("STORAGE_ENABLED", false)
	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("STORAGE_LOCAL_DIR", "./data/objects")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_ENDPOINT", "localhost:9000")
	v.SetDefault("STORAGE_ACCESS_KEY", "")
	v.SetDefault("STORAGE_SECRET_KEY", "")
	v.SetDefault("STORAGE_BUCKET", "plans")
	v.SetDefault("STORAGE_USE_SSL", false)
	v.SetDefault("STORAGE_PREFIX", "planner")

	v.SetDefault("APP_UPLOAD_DIR", "./data/uploads")
	v.SetDefault("APP_DATA_DIR", "./data/output")
	v.SetDefault("APP_WORKERS", 4)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("LOG_FILE", "")
}

// Load reads .env and the environment once and returns the shared config.
func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		v := viper.GetViper()
		SetDefaults(v)
		v.AutomaticEnv()

		instance = FromViper(v)

		ensureDir(instance.App.UploadDir)
		ensureDir(instance.App.DataDir)
	})

	return instance
}

// FromViper builds a Config from an explicit viper instance. Defaults must
// already be registered.
func FromViper(v *viper.Viper) *Config {
	objective, ok := domain.ParseObjective(v.GetString("PLANNER_OBJECTIVE"))
	if !ok {
		objective = domain.ObjectiveSense(v.GetString("PLANNER_OBJECTIVE"))
	}
	terminal, ok := domain.ParseTerminalPolicy(v.GetString("PLANNER_TERMINAL_POLICY"))
	if !ok {
		terminal = domain.TerminalPolicy(v.GetString("PLANNER_TERMINAL_POLICY"))
	}

	return &Config{
		Planner: PlannerConfig{
			Params: domain.Parameters{
				YieldFactor:   v.GetFloat64("PLANNER_YIELD_FACTOR"),
				DensityFactor: v.GetFloat64("PLANNER_DENSITY_FACTOR"),
				MaxProduction: v.GetFloat64("PLANNER_MAX_PRODUCTION"),
				Objective:     objective,
				Terminal:      terminal,
			},
			Horizon:      v.GetInt("PLANNER_HORIZON"),
			MaxAttempts:  v.GetInt("PLANNER_MAX_ATTEMPTS"),
			SolveTimeout: v.GetDuration("PLANNER_SOLVE_TIMEOUT"),
			Tolerance:    v.GetFloat64("PLANNER_TOLERANCE"),
			Precision:    v.GetInt32("PLANNER_REPORT_PRECISION"),
			Relaxation: planner.RelaxationConfig{
				CapacityMultiplier:             v.GetFloat64("RELAX_CAPACITY_MULTIPLIER"),
				EfficiencyMultiplier:           v.GetFloat64("RELAX_EFFICIENCY_MULTIPLIER"),
				EfficiencyCapacityMultiplier:   v.GetFloat64("RELAX_EFFICIENCY_CAPACITY_MULTIPLIER"),
				SafetyStockMultiplier:          v.GetFloat64("RELAX_SAFETY_STOCK_MULTIPLIER"),
				SafetyStockCapacityMultiplier:  v.GetFloat64("RELAX_SAFETY_STOCK_CAPACITY_MULTIPLIER"),
				InitialStockFloor:              v.GetFloat64("RELAX_INITIAL_STOCK_FLOOR"),
				InitialStockCapacityMultiplier: v.GetFloat64("RELAX_INITIAL_STOCK_CAPACITY_MULTIPLIER"),
				FallbackMaxProduction:          v.GetFloat64("RELAX_FALLBACK_MAX_PRODUCTION"),
				FallbackInitialStockFloor:      v.GetFloat64("RELAX_FALLBACK_INITIAL_STOCK_FLOOR"),
				LeadPeriods:                    v.GetInt("RELAX_LEAD_PERIODS"),
			},
		},
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			MaxUploadMB:    v.GetInt("SERVER_MAX_UPLOAD_MB"),
		},
		Database: DatabaseConfig{
			Driver:         v.GetString("DB_DRIVER"),
			Host:           v.GetString("DB_HOST"),
			Port:           v.GetString("DB_PORT"),
			User:           v.GetString("DB_USER"),
			Password:       v.GetString("DB_PASSWORD"),
			DBName:         v.GetString("DB_NAME"),
			SSLMode:        v.GetString("DB_SSLMODE"),
			Path:           v.GetString("DB_PATH"),
			MaxConcurrency: v.GetInt64("DB_MAX_CONCURRENCY"),
		},
		Cache: CacheConfig{
			Enabled:       v.GetBool("CACHE_ENABLED"),
			RedisURL:      v.GetString("REDIS_URL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			TTLSeconds:    v.GetInt("CACHE_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Enabled:   v.GetBool("STORAGE_ENABLED"),
			Backend:   v.GetString("STORAGE_BACKEND"),
			LocalDir:  v.GetString("STORAGE_LOCAL_DIR"),
			Region:    v.GetString("STORAGE_REGION"),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
			Prefix:    v.GetString("STORAGE_PREFIX"),
		},
		App: AppConfig{
			UploadDir: v.GetString("APP_UPLOAD_DIR"),
			DataDir:   v.GetString("APP_DATA_DIR"),
			Workers:   v.GetInt("APP_WORKERS"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			File:   v.GetString("LOG_FILE"),
		},
	}
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
