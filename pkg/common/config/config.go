package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrMissingBucket = errors.New("BUCKET is required")

const (
	LayoutNested = "nested"
	LayoutFlat   = "flat"
)

type Config struct {
	// Storage
	Bucket         string
	RawPrefix      string
	CuratedPrefix  string
	FHIRPrefix     string
	OutputLayout   string
	LocalOutputDir string
	AWSRegion      string
	S3Endpoint     string
	S3SSE          string

	// HTTP upload destination
	UploadBaseURL      string
	UploadTokenURL     string
	UploadClientID     string
	UploadClientSecret string

	// De-identification. IdentifierColumn overrides the policy file when set.
	PseudonymSalt    string
	IdentifierColumn string
	DeIDPolicyPath   string
	DLPRulesPath     string

	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Ledger
	LedgerEnabled    bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Feature cache
	FeatureCacheEnabled bool
	FeatureCachePrefix  string
	FeatureCacheTTL     time.Duration
	RedisHost           string
	RedisPort           string
	RedisPassword       string
	RedisDB             int

	// Kafka
	KafkaBrokers      []string
	KafkaGroupID      string
	KafkaTriggerTopic string
	KafkaResultTopic  string

	// Clustering
	ClusterK             int
	ClusterReferenceYear int
	ClusterOutputKey     string
	ClusterLocalPath     string
}

func Load() *Config {
	return &Config{
		Bucket:         getEnv("BUCKET", ""),
		RawPrefix:      getEnv("RAW_PREFIX", "raw/"),
		CuratedPrefix:  getEnv("CURATED_PREFIX", "curated/"),
		FHIRPrefix:     getEnv("FHIR_PREFIX", "fhir/"),
		OutputLayout:   strings.ToLower(getEnv("OUTPUT_LAYOUT", LayoutNested)),
		LocalOutputDir: getEnv("LOCAL_OUTPUT_DIR", ""),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3SSE:          getEnv("S3_SSE", "AES256"),

		UploadBaseURL:      getEnv("UPLOAD_BASE_URL", ""),
		UploadTokenURL:     getEnv("UPLOAD_TOKEN_URL", ""),
		UploadClientID:     getEnv("UPLOAD_CLIENT_ID", ""),
		UploadClientSecret: getEnv("UPLOAD_CLIENT_SECRET", ""),

		PseudonymSalt:    getEnv("PSEUD_ID_SALT", "demo-salt"),
		IdentifierColumn: getEnv("PSEUD_ID_COLUMN", ""),
		DeIDPolicyPath:   getEnv("DEID_POLICY_PATH", ""),
		DLPRulesPath:     getEnv("DLP_RULES_PATH", ""),

		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 5*time.Minute),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),

		LedgerEnabled:    getBoolEnv("LEDGER_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "curator"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "curator"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		FeatureCacheEnabled: getBoolEnv("FEATURE_CACHE_ENABLED", false),
		FeatureCachePrefix:  getEnv("FEATURE_CACHE_PREFIX", "features:"),
		FeatureCacheTTL:     getDuration("FEATURE_CACHE_TTL", 24*time.Hour),
		RedisHost:           getEnv("REDIS_HOST", "localhost"),
		RedisPort:           getEnv("REDIS_PORT", "6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getIntEnv("REDIS_DB", 0),

		KafkaBrokers:      getStringSliceEnv("KAFKA_BROKERS", nil),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "curation-service"),
		KafkaTriggerTopic: getEnv("KAFKA_TRIGGER_TOPIC", ""),
		KafkaResultTopic:  getEnv("KAFKA_RESULT_TOPIC", ""),

		ClusterK:             getIntEnv("CLUSTER_K", 3),
		ClusterReferenceYear: getIntEnv("CLUSTER_REFERENCE_YEAR", time.Now().UTC().Year()),
		ClusterOutputKey:     getEnv("CLUSTER_OUTPUT_KEY", "analytics/kmeans/assignments.csv"),
		ClusterLocalPath:     getEnv("CLUSTER_LOCAL_PATH", "reports/cluster_assignments.csv"),
	}
}

// Validate reports configuration that makes a remote run impossible. Callers
// treat a non-nil error as fatal.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return ErrMissingBucket
	}
	return nil
}

func (c *Config) FlatLayout() bool {
	return c.OutputLayout == LayoutFlat
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

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
