package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage modes for audio resources.
const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// Persistence backends for tracks, presets, settings and playlist orders.
const (
	PersistenceMySQL  = "mysql"  // gorm/MySQL plus Redis for playlist orders
	PersistenceMemory = "memory" // lost on restart
)

// Config stores the application configuration.
type Config struct {
	HTTPAddr string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO配置
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string

	StorageMode string // local or minio
	Persistence string // mysql or memory
	WatchAssets bool
	AssetsDir   string // root of the scanned audio tree: {type}/{category}/{subcategory}/file
	BackendURL  string // persistence service used by the console

	LogLevel string
	LogFile  string

	JWTSecret         string
	TokenTTL          time.Duration
	AdminUser         string
	AdminPasswordHash string // bcrypt; empty disables /api/auth/token

	AudioOutput     string // "speaker" or "none"
	AudioSampleRate int
	AudioBufferSize time.Duration
	AudioSFXCache   int // decoded effects kept in memory
	TransportFPS    int

	DefaultContext string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("100ms") or bare milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	cfg := &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default for the password
		DBName:     getEnv("DB_NAME", "rpgmixer"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "rpgmixer"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),

		StorageMode: strings.ToLower(getEnv("STORAGE_MODE", StorageLocal)),
		Persistence: strings.ToLower(getEnv("PERSISTENCE", PersistenceMySQL)),
		WatchAssets: getEnvBool("WATCH_ASSETS", true),
		AssetsDir:   getEnv("ASSETS_DIR", "assets"),
		BackendURL:  getEnv("BACKEND_URL", "http://localhost:8080"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		TokenTTL:          getEnvDuration("TOKEN_TTL", 12*time.Hour),
		AdminUser:         getEnv("ADMIN_USER", "gm"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		AudioOutput:     strings.ToLower(getEnv("AUDIO_OUTPUT", "speaker")),
		AudioSampleRate: getEnvInt("AUDIO_SAMPLE_RATE", 44100),
		AudioBufferSize: getEnvDuration("AUDIO_BUFFER_MS", 100*time.Millisecond),
		AudioSFXCache:   getEnvInt("AUDIO_SFX_CACHE", 64),
		TransportFPS:    getEnvInt("TRANSPORT_FPS", 60),

		DefaultContext: getEnv("DEFAULT_CONTEXT", "Fantasy"),
	}

	if cfg.TransportFPS <= 0 {
		cfg.TransportFPS = 60
	}
	return cfg
}

// FrameInterval is the transport sampling period derived from TransportFPS.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.TransportFPS)
}
