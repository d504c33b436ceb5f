package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers          []string
	KafkaGroupID          string
	FollowUpResponseTopic string
	FollowUpDLQTopic      string
	PipelineTopic         string
	NotificationTopic     string

	// Intake
	DedupTimeBucket      time.Duration
	IntakeAllowedSources []string

	// Case linking
	LinkingWindowDays int

	// Follow-up
	FollowUpDueDays     int
	FollowUpMaxAttempts int
	FollowUpTokenTTL    time.Duration

	// Normalizer
	LexiconPath string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "pharmaguard"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "pharmaguard123"),
		PostgresDB:       getEnv("POSTGRES_DB", "pharmaguard"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:          getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:          getEnv("KAFKA_GROUP_ID", "pharmaguard-pipeline"),
		FollowUpResponseTopic: getEnv("FOLLOWUP_RESPONSE_TOPIC", "followup-responses"),
		FollowUpDLQTopic:      getEnv("FOLLOWUP_DLQ_TOPIC", "followup-requests-dlq"),
		PipelineTopic:         getEnv("PIPELINE_TOPIC", "pipeline-results"),
		NotificationTopic:     getEnv("NOTIFICATION_TOPIC", "outbound-notifications"),

		DedupTimeBucket:      getDuration("DEDUP_TIME_BUCKET", time.Hour),
		IntakeAllowedSources: getStringSliceEnv("INTAKE_ALLOWED_SOURCES", nil),

		LinkingWindowDays: getIntEnv("LINKING_WINDOW_DAYS", 365),

		FollowUpDueDays:     getIntEnv("FOLLOWUP_DUE_DAYS", 7),
		FollowUpMaxAttempts: getIntEnv("FOLLOWUP_MAX_ATTEMPTS", 3),
		FollowUpTokenTTL:    getDuration("FOLLOWUP_TOKEN_TTL", 72*time.Hour),

		LexiconPath: getEnv("LEXICON_PATH", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
