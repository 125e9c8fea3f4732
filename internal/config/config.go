package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config 应用配置
type Config struct {
	Port      string
	DBPath    string
	JWTSecret string // empty disables auth on analysis endpoints

	// InputDir is the only directory the HTTP API reads images and videos from
	InputDir string

	// Observation log
	ObservationLogPath string
	DefaultLocation    string

	// Detector
	DetectorPython     string
	DetectorScript     string
	DetectorModel      string
	DetectorConfidence float64
	FrameSkip          int

	// Rate limiting
	RateLimit       int
	RateLimitWindow time.Duration

	// Logging
	LogLevel       string
	LogDevelopment bool

	// Observation events, disabled when KafkaBootstrapServers is empty
	KafkaBootstrapServers string
	KafkaTopic            string
	KafkaSecurityProtocol string
	KafkaSASLMechanism    string
	KafkaSASLUsername     string
	KafkaSASLPassword     string
}

// Load 加载配置. A .env file in the working directory is read first if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:      getEnv("PORT", ":8080"),
		DBPath:    getEnv("DB_PATH", "./data/runs.db"),
		JWTSecret: getEnv("JWT_SECRET", ""),
		InputDir:  getEnv("INPUT_DIR", "./data/inputs"),

		ObservationLogPath: getEnv("OBSERVATION_LOG", "./data/traffic_data.csv"),
		DefaultLocation:    getEnv("DEFAULT_LOCATION", "Junction-1"),

		DetectorPython:     getEnv("DETECTOR_PYTHON", "python"),
		DetectorScript:     getEnv("DETECTOR_SCRIPT", "./scripts/detect.py"),
		DetectorModel:      getEnv("DETECTOR_MODEL", "./models/best.pt"),
		DetectorConfidence: getEnvFloat("DETECTOR_CONFIDENCE", 0.25),
		FrameSkip:          getEnvInt("FRAME_SKIP", 15),

		RateLimit:       getEnvInt("RATE_LIMIT", 60),
		RateLimitWindow: time.Minute,

		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogDevelopment: getEnvBool("LOG_DEVELOPMENT", false),

		KafkaBootstrapServers: getEnv("KAFKA_BOOTSTRAP_SERVERS", ""),
		KafkaTopic:            getEnv("KAFKA_TOPIC", "traffic-observations"),
		KafkaSecurityProtocol: getEnv("KAFKA_SECURITY_PROTOCOL", "PLAINTEXT"),
		KafkaSASLMechanism:    getEnv("KAFKA_SASL_MECHANISM", ""),
		KafkaSASLUsername:     getEnv("KAFKA_SASL_USERNAME", ""),
		KafkaSASLPassword:     getEnv("KAFKA_SASL_PASSWORD", ""),
	}
}

// Validate checks values that would make the pipelines misbehave
func (c *Config) Validate() error {
	if c.FrameSkip <= 0 {
		return fmt.Errorf("FRAME_SKIP must be positive, got %d", c.FrameSkip)
	}
	if c.DetectorConfidence <= 0 || c.DetectorConfidence > 1 {
		return fmt.Errorf("DETECTOR_CONFIDENCE must be in (0, 1], got %v", c.DetectorConfidence)
	}
	if c.ObservationLogPath == "" {
		return fmt.Errorf("OBSERVATION_LOG must not be empty")
	}
	if c.InputDir == "" {
		return fmt.Errorf("INPUT_DIR must not be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
