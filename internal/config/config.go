package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends
const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

// File storage providers for vault uploads
const (
	FileStorageS3         = "s3"
	FileStorageCloudinary = "cloudinary"
)

const defaultCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

type Config struct {
	Environment string // ENV: production, development, etc.
	Port        string
	ClientURL   string // the single origin allowed by CORS

	FirebaseProjectID string
	FirebaseCertsURL  string

	StorageBackend string
	PostgresURI    string
	MongoURI       string
	RedisURI       string // optional; rate limiting and realtime fall back to in-process

	RateLimitWindow time.Duration
	RateLimitMax    int

	FileStorage         string
	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	S3Endpoint          string // Supabase Storage S3 endpoint, e.g. https://<ref>.supabase.co/storage/v1/s3
	S3Region            string
	S3Bucket            string
	S3AccessKey         string
	S3SecretKey         string
	S3PublicBaseURL     string // if empty, presigned GET URLs are returned

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	CalendarTokenKey   string // base64-encoded 32 bytes

	SafetyTimer time.Duration
	SOSPhone    string
}

func Load() *Config {
	return &Config{
		Environment: strings.ToLower(strings.TrimSpace(getEnv("ENV", getEnv("NODE_ENV", "development")))),
		Port:        getEnv("PORT", "3001"),
		ClientURL:   strings.TrimRight(getEnv("CLIENT_URL", "http://localhost:5173"), "/"),

		FirebaseProjectID: getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCertsURL:  getEnv("FIREBASE_CERTS_URL", defaultCertsURL),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendPostgres)),
		PostgresURI:    getEnv("POSTGRES_URI", getEnv("DATABASE_URL", "postgres://localhost:5432/empowerment?sslmode=disable")),
		MongoURI:       getEnv("MONGODB_URI", "mongodb://localhost:27017/empowerment"),
		RedisURI:       getEnv("REDIS_URI", ""),

		RateLimitWindow: getDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		RateLimitMax:    getInt("RATE_LIMIT_MAX", 100),

		FileStorage:         strings.ToLower(getEnv("FILE_STORAGE", "")),
		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		S3Endpoint:          getEnv("S3_ENDPOINT", ""),
		S3Region:            getEnv("S3_REGION", "us-east-1"),
		S3Bucket:            getEnv("S3_BUCKET", "documents"),
		S3AccessKey:         getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:         getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3PublicBaseURL:     strings.TrimRight(getEnv("S3_PUBLIC_BASE_URL", ""), "/"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:3001/api/calendar/callback"),
		CalendarTokenKey:   getEnv("CALENDAR_TOKEN_KEY", ""),

		SafetyTimer: time.Duration(getInt("SAFETY_TIMER_SECONDS", 3600)) * time.Second,
		SOSPhone:    getEnv("SOS_PHONE", ""),
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.FirebaseProjectID == "" {
		errs = append(errs, errors.New("FIREBASE_PROJECT_ID is required"))
	}
	switch c.StorageBackend {
	case BackendPostgres, BackendMongo, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND %q is not one of postgres, mongo, memory", c.StorageBackend))
	}
	switch c.FileStorage {
	case "", FileStorageCloudinary:
	case FileStorageS3:
		if c.S3Endpoint == "" || c.S3AccessKey == "" || c.S3SecretKey == "" {
			errs = append(errs, errors.New("FILE_STORAGE=s3 requires S3_ENDPOINT, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("FILE_STORAGE %q is not one of s3, cloudinary", c.FileStorage))
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("rate limit window and max must be positive"))
	}
	if c.CalendarEnabled() {
		if _, err := c.CalendarKey(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// CalendarEnabled reports whether Google OAuth credentials are configured.
func (c *Config) CalendarEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// CloudinaryEnabled reports whether all Cloudinary credentials are set.
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// CalendarKey decodes CALENDAR_TOKEN_KEY. It must be base64-encoded 32 bytes.
func (c *Config) CalendarKey() ([]byte, error) {
	if c.CalendarTokenKey == "" {
		return nil, errors.New("CALENDAR_TOKEN_KEY must be set when Google Calendar is enabled")
	}
	key, err := base64.StdEncoding.DecodeString(c.CalendarTokenKey)
	if err != nil {
		return nil, errors.New("CALENDAR_TOKEN_KEY must be base64-encoded")
	}
	if len(key) != 32 {
		return nil, errors.New("CALENDAR_TOKEN_KEY must decode to exactly 32 bytes")
	}
	return key, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}
