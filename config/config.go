package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// ServerConfig contains all of the server settings
type ServerConfig struct {
	ListenAddrIP   string
	ListenAddrPort string

	DatabaseType     string
	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string `json:"-"`
	DatabaseDbname   string
	DatabaseSslmode  string

	// Handle store settings
	StoreBackend  string // memory or redis
	RedisAddr     string
	RedisPassword string `json:"-"`
	RedisDB       int

	// HandleTTLMinutes bounds how long an unreleased preview handle lives
	// before the purge job reclaims it.
	HandleTTLMinutes     int
	PurgeIntervalMinutes int
	JobRetentionHours    int
	PreviewRetentionDays int

	MaxUploadBytes int64

	// RenderingDisabled marks API-only replicas that must never load the
	// rendering engine.
	RenderingDisabled bool

	UseReverseProxy bool
	BaseURL         string
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolVal
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// getEnvInt64 gets a 64-bit integer environment variable with a default value
func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// SetupServer loads configuration and returns ServerConfig and Logger
func SetupServer() (ServerConfig, *slog.Logger) {
	serverConfigLive := ServerConfig{}

	// Load .env file (silently ignore if doesn't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")

	logger := setupLogging()
	Logger = logger

	// Server configuration
	serverConfigLive.ListenAddrPort = getEnv("SERVER_PORT", "8000")
	serverConfigLive.ListenAddrIP = getEnv("SERVER_ADDR", "")

	// Database configuration
	serverConfigLive.DatabaseType = getEnv("DATABASE_TYPE", "sqlite")
	serverConfigLive.DatabaseHost = getEnv("DATABASE_HOST", "localhost")
	serverConfigLive.DatabasePort = getEnv("DATABASE_PORT", "5432")
	serverConfigLive.DatabaseUser = getEnv("DATABASE_USER", "previewd")
	serverConfigLive.DatabasePassword = getEnv("DATABASE_PASSWORD", "")
	serverConfigLive.DatabaseDbname = getEnv("DATABASE_NAME", "previewd")
	serverConfigLive.DatabaseSslmode = getEnv("DATABASE_SSLMODE", "")

	logger.Info("Database configuration loaded", "type", serverConfigLive.DatabaseType)

	// Handle store configuration
	serverConfigLive.StoreBackend = getEnv("STORE_BACKEND", "memory")
	serverConfigLive.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	serverConfigLive.RedisPassword = getEnv("REDIS_PASSWORD", "")
	serverConfigLive.RedisDB = getEnvInt("REDIS_DB", 0)

	// Retention configuration
	serverConfigLive.HandleTTLMinutes = getEnvInt("HANDLE_TTL", 60)
	serverConfigLive.PurgeIntervalMinutes = getEnvInt("PURGE_INTERVAL", 10)
	serverConfigLive.JobRetentionHours = getEnvInt("JOB_RETENTION_HOURS", 72)
	serverConfigLive.PreviewRetentionDays = getEnvInt("PREVIEW_RETENTION_DAYS", 30)

	// Upload configuration
	serverConfigLive.MaxUploadBytes = getEnvInt64("MAX_UPLOAD_BYTES", 64<<20)

	// Rendering configuration
	serverConfigLive.RenderingDisabled = getEnvBool("RENDERING_DISABLED", false)
	if serverConfigLive.RenderingDisabled {
		logger.Warn("Rendering disabled for this process, conversion requests will fail")
	}

	// Reverse proxy configuration
	serverConfigLive.UseReverseProxy = getEnvBool("PROXY_ENABLED", false)
	serverConfigLive.BaseURL = getEnv("BASE_URL", "")

	fmt.Println("\n========================================")
	fmt.Println("   previewd - Document Preview Server")
	fmt.Println("========================================")
	fmt.Printf("Server will start on: %s:%s\n", serverConfigLive.ListenAddrIP, serverConfigLive.ListenAddrPort)
	if serverConfigLive.ListenAddrIP == "" {
		fmt.Println("(Listening on all network interfaces)")
	}
	fmt.Printf("Detailed logs: %s\n", getEnv("LOG_FILE", "previewd.log"))
	fmt.Println("Initializing...")

	return serverConfigLive, logger
}

// setupLogging configures the application logger
func setupLogging() *slog.Logger {
	logLevel := getEnv("LOG_LEVEL", "debug")
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelDebug
	}

	handlerOptions := &slog.HandlerOptions{Level: level}

	logOutput := getEnv("LOG_OUTPUT", "file")
	var logWriter io.Writer

	if logOutput == "stdout" {
		logWriter = os.Stdout
	} else {
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "previewd.log")))
		if err != nil {
			fmt.Printf("Error creating log file path: %v\n", err)
			logWriter = os.Stdout
		} else {
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Printf("Failed to open log file: %v\n", err)
				logWriter = os.Stdout
			} else {
				logWriter = logFile
				fmt.Println("Logging to file: ", logPath)
			}
		}
	}

	handler := slog.NewTextHandler(logWriter, handlerOptions)
	return slog.New(handler)
}
