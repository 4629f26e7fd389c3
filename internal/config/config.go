// internal/config/config.go
package config

import (
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AWS      AWSConfig
	Storage  StorageConfig
	Tagger   TaggerConfig
	Database DatabaseConfig
	Cleanup  CleanupConfig
	Monitor  MonitorConfig
	Cache    CacheConfig
	Server   ServerConfig
	Metrics  MetricsConfig
	Drive    DriveConfig
	Log      LogConfig
}

type AWSConfig struct {
	Profile         string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type StorageConfig struct {
	Backend     string
	Bucket      string
	UseSSL      bool
	MaxRetries  int
	RetryBase   time.Duration
	RetryMax    time.Duration
	RateLimit   float64
	CallTimeout time.Duration
}

type TaggerConfig struct {
	TagKey           string
	TagValue         string
	PrefixColumn     string
	FilenameColumn   string
	Namespace        string
	Extension        string
	DiscoveryWorkers int
	TaggingWorkers   int
	BatchSize        int
	RunTimeout       time.Duration
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CleanupConfig struct {
	VideoTable        string
	PlayActivityTable string
	PlayVideoColumn   string
	SyncedStatus      string
	IDColumn          string
}

type MonitorConfig struct {
	Prefix         string
	RetentionDays  int
	LookbackHours  int
	SNSTopicARN    string
	AlertThreshold int
	OutputFile     string
	Workers        int
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	ReportTTL     time.Duration
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type MetricsConfig struct {
	PushgatewayURL string
	Job            string
}

type DriveConfig struct {
	CredentialsJSON string
	DownloadDir     string
}

type LogConfig struct {
	Level string
	JSON  bool
}

var (
	once     sync.Once
	instance *Config
)

// Load reads .env (if present) and the process environment once.
func Load() *Config {
	once.Do(func() {
		_ = godotenv.Load()

		v := viper.New()
		SetDefaults(v)
		v.AutomaticEnv()

		instance = FromViper(v)
	})

	return instance
}

// SetDefaults registers every recognised key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("AWS_PROFILE", "")
	v.SetDefault("AWS_REGION", "us-west-2")
	v.SetDefault("AWS_ENDPOINT_URL", "")
	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")

	v.SetDefault("STORAGE_BACKEND", "aws")
	v.SetDefault("S3_BUCKET", "svodvideos")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("STORAGE_MAX_RETRIES", 5)
	v.SetDefault("STORAGE_RETRY_BASE", 200*time.Millisecond)
	v.SetDefault("STORAGE_RETRY_MAX", 10*time.Second)
	v.SetDefault("STORAGE_RATE_LIMIT", 0.0)
	v.SetDefault("TAGGER_CALL_TIMEOUT", 30*time.Second)

	v.SetDefault("TAG_KEY", "PERMANENT_DELETE")
	v.SetDefault("TAG_VALUE", "CONFIRMED")
	v.SetDefault("TAGGER_PREFIX_COLUMN", "location_folder")
	v.SetDefault("TAGGER_FILENAME_COLUMN", "location_file")
	v.SetDefault("TAGGER_NAMESPACE", "TvShows")
	v.SetDefault("TAGGER_EXTENSION", "mp4")
	v.SetDefault("TAGGER_DISCOVERY_WORKERS", 10)
	v.SetDefault("TAGGER_TAGGING_WORKERS", 50)
	v.SetDefault("TAGGER_BATCH_SIZE", 100)
	v.SetDefault("TAGGER_RUN_TIMEOUT", time.Duration(0))

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "media")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("CLEANUP_VIDEO_TABLE", "content_vid")
	v.SetDefault("CLEANUP_PLAY_ACTIVITY_TABLE", "activity_playactivity")
	v.SetDefault("CLEANUP_PLAY_VIDEO_COLUMN", "video_id")
	v.SetDefault("CLEANUP_SYNCED_STATUS", "synced")
	v.SetDefault("CLEANUP_ID_COLUMN", "id")

	v.SetDefault("MONITOR_PREFIX", "")
	v.SetDefault("MONITOR_RETENTION_DAYS", 2)
	v.SetDefault("MONITOR_LOOKBACK_HOURS", 24)
	v.SetDefault("MONITOR_SNS_TOPIC_ARN", "")
	v.SetDefault("MONITOR_ALERT_THRESHOLD", 100)
	v.SetDefault("MONITOR_OUTPUT_FILE", "")
	v.SetDefault("MONITOR_WORKERS", 20)

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_REPORT_TTL", 7*24*time.Hour)

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "release")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 15)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})

	v.SetDefault("METRICS_PUSHGATEWAY_URL", "")
	v.SetDefault("METRICS_JOB", "s3-permanent-deletes")

	v.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
	v.SetDefault("DRIVE_DOWNLOAD_DIR", "./data/tmp/drive")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_JSON", false)
}

// FromViper materialises a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		AWS: AWSConfig{
			Profile:         v.GetString("AWS_PROFILE"),
			Region:          v.GetString("AWS_REGION"),
			Endpoint:        v.GetString("AWS_ENDPOINT_URL"),
			AccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
		},
		Storage: StorageConfig{
			Backend:     strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_BACKEND"))),
			Bucket:      v.GetString("S3_BUCKET"),
			UseSSL:      v.GetBool("STORAGE_USE_SSL"),
			MaxRetries:  v.GetInt("STORAGE_MAX_RETRIES"),
			RetryBase:   v.GetDuration("STORAGE_RETRY_BASE"),
			RetryMax:    v.GetDuration("STORAGE_RETRY_MAX"),
			RateLimit:   v.GetFloat64("STORAGE_RATE_LIMIT"),
			CallTimeout: v.GetDuration("TAGGER_CALL_TIMEOUT"),
		},
		Tagger: TaggerConfig{
			TagKey:           v.GetString("TAG_KEY"),
			TagValue:         v.GetString("TAG_VALUE"),
			PrefixColumn:     v.GetString("TAGGER_PREFIX_COLUMN"),
			FilenameColumn:   v.GetString("TAGGER_FILENAME_COLUMN"),
			Namespace:        v.GetString("TAGGER_NAMESPACE"),
			Extension:        v.GetString("TAGGER_EXTENSION"),
			DiscoveryWorkers: v.GetInt("TAGGER_DISCOVERY_WORKERS"),
			TaggingWorkers:   v.GetInt("TAGGER_TAGGING_WORKERS"),
			BatchSize:        v.GetInt("TAGGER_BATCH_SIZE"),
			RunTimeout:       v.GetDuration("TAGGER_RUN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Cleanup: CleanupConfig{
			VideoTable:        v.GetString("CLEANUP_VIDEO_TABLE"),
			PlayActivityTable: v.GetString("CLEANUP_PLAY_ACTIVITY_TABLE"),
			PlayVideoColumn:   v.GetString("CLEANUP_PLAY_VIDEO_COLUMN"),
			SyncedStatus:      v.GetString("CLEANUP_SYNCED_STATUS"),
			IDColumn:          v.GetString("CLEANUP_ID_COLUMN"),
		},
		Monitor: MonitorConfig{
			Prefix:         v.GetString("MONITOR_PREFIX"),
			RetentionDays:  v.GetInt("MONITOR_RETENTION_DAYS"),
			LookbackHours:  v.GetInt("MONITOR_LOOKBACK_HOURS"),
			SNSTopicARN:    v.GetString("MONITOR_SNS_TOPIC_ARN"),
			AlertThreshold: v.GetInt("MONITOR_ALERT_THRESHOLD"),
			OutputFile:     v.GetString("MONITOR_OUTPUT_FILE"),
			Workers:        v.GetInt("MONITOR_WORKERS"),
		},
		Cache: CacheConfig{
			Enabled:       v.GetBool("CACHE_ENABLED"),
			RedisURL:      v.GetString("REDIS_URL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			ReportTTL:     v.GetDuration("CACHE_REPORT_TTL"),
		},
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Metrics: MetricsConfig{
			PushgatewayURL: v.GetString("METRICS_PUSHGATEWAY_URL"),
			Job:            v.GetString("METRICS_JOB"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			DownloadDir:     v.GetString("DRIVE_DOWNLOAD_DIR"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
			JSON:  v.GetBool("LOG_JSON"),
		},
	}
}
