package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Store
	StoreBackend string
	DataPath     string
	DatabaseURL  string
	RedisURL     string

	Location      *time.Location
	ReminderHour  int
	SweepInterval time.Duration

	LogLevel string
	LogFile  string

	MeiliURL       string
	MeiliMasterKey string

	// SMTP Configuration
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	BackupDir string
	// Object storage for published snapshots and calendars
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool

	ExportICSPath string
}

// Load reads the environment. A .env file in the working directory, if any,
// is applied first without overriding variables that are already set.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		StoreBackend: strings.ToLower(getenv("CRM_STORE_BACKEND", "")),
		DataPath:     getenv("CRM_DATA_PATH", "data/crm.db"),
		DatabaseURL:  getenv("CRM_DATABASE_URL", ""),
		RedisURL:     getenv("CRM_REDIS_URL", ""),

		Location:      getenvLocation("CRM_TIMEZONE", time.Local),
		ReminderHour:  getenvInt("CRM_REMINDER_HOUR", 9),
		SweepInterval: time.Duration(getenvInt("CRM_SWEEP_INTERVAL_SECONDS", 3600)) * time.Second,

		LogLevel: getenv("CRM_LOG_LEVEL", "info"),
		LogFile:  getenv("CRM_LOG_FILE", ""),

		// Meilisearch - quick find is disabled when the URL is empty
		MeiliURL:       getenv("CRM_MEILI_URL", ""),
		MeiliMasterKey: getenv("CRM_MEILI_KEY", ""),

		// SMTP - empty by default, email disabled if not configured
		SMTPHost:     getenv("CRM_SMTP_HOST", ""),
		SMTPPort:     getenv("CRM_SMTP_PORT", "587"),
		SMTPUsername: getenv("CRM_SMTP_USERNAME", ""),
		SMTPPassword: getenv("CRM_SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("CRM_SMTP_FROM", ""),
		SMTPFromName: getenv("CRM_SMTP_FROM_NAME", "SK CRM"),

		BackupDir:   getenv("CRM_BACKUP_DIR", "data/backups"),
		S3Endpoint:  getenv("CRM_S3_ENDPOINT", ""),
		S3AccessKey: getenv("CRM_S3_ACCESS_KEY", ""),
		S3SecretKey: getenv("CRM_S3_SECRET_KEY", ""),
		S3Bucket:    getenv("CRM_S3_BUCKET", "sk-crm"),
		S3UseSSL:    getenvBool("CRM_S3_USE_SSL", false),

		ExportICSPath: getenv("CRM_EXPORT_ICS", ""),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvLocation(key string, fallback *time.Location) *time.Location {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	loc, err := time.LoadLocation(value)
	if err != nil {
		return fallback
	}
	return loc
}
