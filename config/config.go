package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type (
	APP struct {
		Name              string
		Host              string
		Port              string
		Env               string
		PublicBaseURL     string
		JWTSecret         string
		AdminEmail        string
		AdminPasswordHash string
		CorsOrigins       []string
		TrustedProxies    []string
	}
	DB struct {
		URL      string
		User     string
		Password string
		Name     string
		Host     string
		Port     string
	}
	S3 struct {
		Region          string
		AccessKeyID     string
		SecretAccessKey string
		BucketUploads   string
		Endpoint        string
		PublicBaseURL   string
	}
	MQ struct {
		User         string
		Password     string
		Vhost        string
		Host         string
		AmqpPort     string
		Exchange     string
		ExchangeType string
		QueueName    string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Upload struct {
		MaxBytes            int64
		Concurrency         int
		LargeThresholdBytes int64
		PartSizeBytes       int64
		RatePerMinute       int
	}
	Sweep struct {
		Interval  time.Duration
		BatchSize int
	}
	Cache struct {
		Size int
		TTL  time.Duration
	}
	Log struct {
		Level      string
		Path       string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
		Compress   bool
	}

	Config struct {
		App    APP
		DB     DB
		S3     S3
		MQ     MQ
		Redis  Redis
		Upload Upload
		Sweep  Sweep
		Cache  Cache
		Log    Log
	}
)

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getEnvInt64(key string, def int64) int64 {
	v, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getEnvList(key string, def []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func Load() Config {
	app := APP{
		Name:              getEnv("SERVICE_NAME", "dropshare"),
		Host:              getEnv("SERVICE_HOST", ""),
		Port:              getEnv("SERVICE_PORT", "8080"),
		Env:               getEnv("SERVICE_ENV", "development"),
		PublicBaseURL:     strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		JWTSecret:         getEnv("SERVICE_JWT_SECRET", ""),
		AdminEmail:        getEnv("ADMIN_EMAIL", ""),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		CorsOrigins:       getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		TrustedProxies:    getEnvList("TRUSTED_PROXIES", nil),
	}
	db := DB{
		URL:      getEnv("DATABASE_URL", ""),
		User:     getEnv("POSTGRES_USER", ""),
		Password: getEnv("POSTGRES_PASSWORD", ""),
		Name:     getEnv("POSTGRES_DB", ""),
		Host:     getEnv("POSTGRES_HOST", ""),
		Port:     getEnv("POSTGRES_PORT", "5432"),
	}
	s3 := S3{
		Region:          getEnv("S3_REGION", "auto"),
		AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		BucketUploads:   getEnv("S3_BUCKET_UPLOADS", ""),
		Endpoint:        getEnv("S3_ENDPOINT", ""),
		PublicBaseURL:   strings.TrimRight(getEnv("S3_PUBLIC_BASE_URL", ""), "/"),
	}
	mq := MQ{
		User:         getEnv("RABBITMQ_USER", ""),
		Password:     getEnv("RABBITMQ_PASSWORD", ""),
		Vhost:        getEnv("RABBITMQ_VHOST", ""),
		Host:         getEnv("RABBITMQ_HOST", ""),
		AmqpPort:     getEnv("RABBITMQ_AMQP_PORT", "5672"),
		Exchange:     getEnv("RABBITMQ_EXCHANGE", "dropshare.lifecycle"),
		ExchangeType: getEnv("RABBITMQ_EXCHANGE_TYPE", "direct"),
		QueueName:    getEnv("RABBITMQ_QUEUE_NAME", "dropshare.audit"),
	}
	redis := Redis{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}
	upload := Upload{
		MaxBytes:            getEnvInt64("UPLOAD_MAX_BYTES", 512<<20),
		Concurrency:         getEnvInt("UPLOAD_CONCURRENCY", 4),
		LargeThresholdBytes: getEnvInt64("UPLOAD_LARGE_THRESHOLD_BYTES", 64<<20),
		PartSizeBytes:       getEnvInt64("UPLOAD_PART_SIZE_BYTES", 8<<20),
		RatePerMinute:       getEnvInt("UPLOAD_RATE_PER_MINUTE", 30),
	}
	sweep := Sweep{
		Interval:  getEnvDuration("SWEEP_INTERVAL", time.Minute),
		BatchSize: getEnvInt("SWEEP_BATCH_SIZE", 100),
	}
	cache := Cache{
		Size: getEnvInt("CACHE_SIZE", 1024),
		TTL:  getEnvDuration("CACHE_TTL", 30*time.Second),
	}
	log := Log{
		Level:      getEnv("LOG_LEVEL", "info"),
		Path:       getEnv("LOG_PATH", ""),
		MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
		MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
		MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 7),
		Compress:   getEnvBool("LOG_COMPRESS", false),
	}

	return Config{
		App:    app,
		DB:     db,
		S3:     s3,
		MQ:     mq,
		Redis:  redis,
		Upload: upload,
		Sweep:  sweep,
		Cache:  cache,
		Log:    log,
	}
}

// DBDSN prefers DATABASE_URL and falls back to the POSTGRES_* parts.
func (c Config) DBDSN() (string, error) {
	if c.DB.URL != "" {
		return c.DB.URL, nil
	}
	if c.DB.User == "" || c.DB.Name == "" || c.DB.Host == "" || c.DB.Port == "" {
		return "", fmt.Errorf("incomplete DB config")
	}
	return fmt.Sprintf(
		"postgres://%s@%s:%s/%s",
		url.UserPassword(c.DB.User, c.DB.Password).String(),
		c.DB.Host,
		c.DB.Port,
		c.DB.Name,
	), nil
}

func (c Config) AMQPDSN() (string, error) {
	if c.MQ.User == "" || c.MQ.Host == "" || c.MQ.AmqpPort == "" {
		return "", fmt.Errorf("invalid MQ config: user, host and amqp port are required")
	}

	return fmt.Sprintf(
		"%s://%s@%s:%s/%s",
		"amqp",
		url.UserPassword(c.MQ.User, c.MQ.Password).String(),
		c.MQ.Host,
		c.MQ.AmqpPort,
		url.PathEscape(c.MQ.Vhost),
	), nil
}

func (c Config) MQEnabled() bool    { return c.MQ.Host != "" }
func (c Config) RedisEnabled() bool { return c.Redis.Addr != "" }
func (c Config) AdminEnabled() bool {
	return c.App.AdminEmail != "" && c.App.AdminPasswordHash != "" && c.App.JWTSecret != ""
}

// ShareLink is the public URL of a container.
func (c Config) ShareLink(publicID string) string {
	return c.App.PublicBaseURL + "/share/" + publicID
}
