package config

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env       string
	Addr      string
	PublicURL *url.URL
	DBDSN     string
	LogLevel  string

	StaffAPIKey string
	CronSecret  string
	OwnerID     string

	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPTLSMode   string
	SMTPFromName  string
	SMTPFromEmail string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool

	UploadURLTTL   time.Duration
	DispatchBatch  int
	SchedulerBatch int
}

// DefaultOwnerID identifies the single staff tenant until real accounts
// exist.
const DefaultOwnerID = "00000000-0000-0000-0000-000000000001"

func Load() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := loadDotEnvFile(".env", os.Setenv, os.Getenv); err != nil {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:         getenv("APP_ENV"),
		Addr:        getenv("APP_ADDR"),
		DBDSN:       getenv("APP_DB_DSN"),
		LogLevel:    getenv("APP_LOG_LEVEL"),
		StaffAPIKey: getenv("APP_STAFF_API_KEY"),
		CronSecret:  getenv("APP_CRON_SECRET"),
		OwnerID:     strings.TrimSpace(getenv("APP_OWNER_ID")),

		SMTPHost:      getenv("APP_SMTP_HOST"),
		SMTPUsername:  getenv("APP_SMTP_USERNAME"),
		SMTPPassword:  getenv("APP_SMTP_PASSWORD"),
		SMTPTLSMode:   getenv("APP_SMTP_TLS_MODE"),
		SMTPFromName:  getenv("APP_SMTP_FROM_NAME"),
		SMTPFromEmail: getenv("APP_SMTP_FROM_EMAIL"),

		S3Endpoint:  getenv("APP_S3_ENDPOINT"),
		S3AccessKey: getenv("APP_S3_ACCESS_KEY"),
		S3SecretKey: getenv("APP_S3_SECRET_KEY"),
		S3Bucket:    getenv("APP_S3_BUCKET"),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.OwnerID == "" {
		cfg.OwnerID = DefaultOwnerID
	}
	if cfg.S3Bucket == "" {
		cfg.S3Bucket = "docuvault-uploads"
	}
	if cfg.SMTPTLSMode == "" {
		cfg.SMTPTLSMode = "starttls"
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	publicURLRaw := getenv("APP_PUBLIC_URL")
	if publicURLRaw != "" {
		parsed, err := url.Parse(publicURLRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_PUBLIC_URL: %w", err)
		}
		if !parsed.IsAbs() || parsed.Host == "" {
			return Config{}, errors.New("APP_PUBLIC_URL: must be an absolute URL")
		}
		switch parsed.Scheme {
		case "http", "https":
		default:
			return Config{}, errors.New("APP_PUBLIC_URL: scheme must be http or https")
		}
		cfg.PublicURL = parsed
	}

	var err error
	if cfg.SMTPPort, err = intEnv(getenv, "APP_SMTP_PORT", 587); err != nil {
		return Config{}, err
	}
	if cfg.DispatchBatch, err = intEnv(getenv, "APP_DISPATCH_BATCH", 100); err != nil {
		return Config{}, err
	}
	if cfg.SchedulerBatch, err = intEnv(getenv, "APP_SCHEDULER_BATCH", 500); err != nil {
		return Config{}, err
	}
	if cfg.UploadURLTTL, err = durationEnv(getenv, "APP_UPLOAD_URL_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}

	switch strings.ToLower(getenv("APP_S3_USE_SSL")) {
	case "", "0", "false", "no":
		cfg.S3UseSSL = false
	case "1", "true", "yes":
		cfg.S3UseSSL = true
	default:
		return Config{}, errors.New("APP_S3_USE_SSL: must be a boolean")
	}

	if cfg.IsProd() {
		if cfg.PublicURL == nil {
			return Config{}, errors.New("APP_PUBLIC_URL: required in prod")
		}
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required in prod")
		}
		if len(cfg.StaffAPIKey) < 32 {
			return Config{}, errors.New("APP_STAFF_API_KEY: must be at least 32 bytes in prod")
		}
		if len(cfg.CronSecret) < 16 {
			return Config{}, errors.New("APP_CRON_SECRET: must be at least 16 bytes in prod")
		}
		if cfg.S3Endpoint == "" || cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
			return Config{}, errors.New("APP_S3_ENDPOINT/APP_S3_ACCESS_KEY/APP_S3_SECRET_KEY: required in prod")
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func (c Config) PublicURLString() string {
	if c.PublicURL == nil {
		return "http://" + c.Addr
	}
	return strings.TrimRight(c.PublicURL.String(), "/")
}

func intEnv(getenv func(string) string, key string, def int) (int, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: must be > 0", key)
	}
	return n, nil
}

func durationEnv(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be > 0", key)
	}
	return d, nil
}

// loadDotEnvFile applies KEY=VALUE lines from a dotenv file without
// overriding variables already present in the environment.
func loadDotEnvFile(path string, setenv func(string, string) error, getenv func(string) string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		if key == "" || value == "" {
			continue
		}
		if getenv(key) != "" {
			continue
		}
		if err := setenv(key, value); err != nil {
			return err
		}
	}
	return sc.Err()
}
