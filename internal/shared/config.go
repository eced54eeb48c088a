package shared

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string

	StoreDriver string // mongo | mysql
	MongoURI    string
	MongoDB     string
	MySQLDSN    string

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	StripeKey           string
	StripeWebhookSecret string
	Currency            string

	ClerkBase          string
	ClerkSecretKey     string
	ClerkJWTKey        string
	ClerkWebhookSecret string

	CloudinaryName   string
	CloudinaryKey    string
	CloudinarySecret string

	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	SenderEmail string

	PaidOnlyRevenue   bool
	RateLimitRPS      float64
	ReconcileWorkers  int
	ReconcileBatch    int
	WorkerConcurrency int
}

func defaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "prod")
	v.SetDefault("HTTP_ADDR", ":3000")
	v.SetDefault("METRICS_ADDR", "")
	v.SetDefault("STORE_DRIVER", "mongo")
	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGODB_DATABASE", "hotel-booking")
	v.SetDefault("MYSQL_DSN", "root:root@tcp(localhost:3306)/hotel?parseTime=true&charset=utf8mb4,utf8&loc=UTC")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL_SECONDS", 300)
	v.SetDefault("CURRENCY", "usd")
	v.SetDefault("CLERK_API_BASE", "https://api.clerk.com/v1")
	v.SetDefault("SMTP_HOST", "smtp-relay.brevo.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("DASHBOARD_PAID_ONLY", false)
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RECONCILE_WORKERS", 8)
	v.SetDefault("RECONCILE_BATCH", 200)
	v.SetDefault("WORKER_CONCURRENCY", 10)
}

// Load reads .env when present, then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg(".env could not be read")
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	defaults(v)
	return v
}

func FromViper(v *viper.Viper) Config {
	c := Config{
		AppEnv:      v.GetString("APP_ENV"),
		HTTPAddr:    v.GetString("HTTP_ADDR"),
		MetricsAddr: v.GetString("METRICS_ADDR"),

		StoreDriver: v.GetString("STORE_DRIVER"),
		MongoURI:    v.GetString("MONGODB_URI"),
		MongoDB:     v.GetString("MONGODB_DATABASE"),
		MySQLDSN:    v.GetString("MYSQL_DSN"),

		RedisAddr: v.GetString("REDIS_ADDR"),
		RedisDB:   v.GetInt("REDIS_DB"),
		RedisPass: v.GetString("REDIS_PASSWORD"),
		CacheTTL:  time.Duration(v.GetInt("CACHE_TTL_SECONDS")) * time.Second,

		StripeKey:           v.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
		Currency:            v.GetString("CURRENCY"),

		ClerkBase:          v.GetString("CLERK_API_BASE"),
		ClerkSecretKey:     v.GetString("CLERK_SECRET_KEY"),
		ClerkJWTKey:        v.GetString("CLERK_JWT_KEY"),
		ClerkWebhookSecret: v.GetString("CLERK_WEBHOOK_SECRET"),

		CloudinaryName:   v.GetString("CLOUDINARY_CLOUD_NAME"),
		CloudinaryKey:    v.GetString("CLOUDINARY_API_KEY"),
		CloudinarySecret: v.GetString("CLOUDINARY_API_SECRET"),

		SMTPHost:    v.GetString("SMTP_HOST"),
		SMTPPort:    v.GetInt("SMTP_PORT"),
		SMTPUser:    v.GetString("SMTP_USER"),
		SMTPPass:    v.GetString("SMTP_PASS"),
		SenderEmail: v.GetString("SENDER_EMAIL"),

		PaidOnlyRevenue:   v.GetBool("DASHBOARD_PAID_ONLY"),
		RateLimitRPS:      v.GetFloat64("RATE_LIMIT_RPS"),
		ReconcileWorkers:  v.GetInt("RECONCILE_WORKERS"),
		ReconcileBatch:    v.GetInt("RECONCILE_BATCH"),
		WorkerConcurrency: v.GetInt("WORKER_CONCURRENCY"),
	}
	for k, val := range map[string]string{
		"STRIPE_SECRET_KEY": c.StripeKey,
		"CLERK_SECRET_KEY":  c.ClerkSecretKey,
	} {
		if val == "" {
			log.Warn().Msgf("%s is empty", k)
		}
	}
	return c
}
