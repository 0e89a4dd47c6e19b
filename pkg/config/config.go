package config

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix scopes every environment variable read by Load.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "DESIOTAKU_DB_DSN"
	EnvDBHost = "DESIOTAKU_DB_HOST"
	EnvDBUser = "DESIOTAKU_DB_USER"
	EnvDBName = "DESIOTAKU_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Checkout      CheckoutConfig
	Razorpay      RazorpayConfig
	Notifications NotificationsConfig
	Shipping      ShippingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Checkout.ParseQuantityTiers(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DESIOTAKU_APP_ENV" required:"true"`
	Port         string `envconfig:"DESIOTAKU_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DESIOTAKU_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DESIOTAKU_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DESIOTAKU_DB_DSN"`
	Driver string `envconfig:"DESIOTAKU_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DESIOTAKU_DB_HOST"`
	LegacyPort     int    `envconfig:"DESIOTAKU_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DESIOTAKU_DB_USER"`
	LegacyPassword string `envconfig:"DESIOTAKU_DB_PASSWORD"`
	LegacyName     string `envconfig:"DESIOTAKU_DB_NAME"`
	LegacySSLMode  string `envconfig:"DESIOTAKU_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DESIOTAKU_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DESIOTAKU_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DESIOTAKU_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DESIOTAKU_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DESIOTAKU_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DESIOTAKU_REDIS_ADDR"`
	Password     string        `envconfig:"DESIOTAKU_REDIS_PASSWORD"`
	DB           int           `envconfig:"DESIOTAKU_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DESIOTAKU_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DESIOTAKU_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DESIOTAKU_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DESIOTAKU_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DESIOTAKU_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"DESIOTAKU_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DESIOTAKU_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"DESIOTAKU_JWT_EXPIRATION_MINUTES" default:"60"`
}

// CheckoutConfig holds the pricing/discount knobs. Amounts are paise.
type CheckoutConfig struct {
	// AmountTolerancePaise bounds the accepted difference between the
	// server-computed total and the gateway-captured amount.
	AmountTolerancePaise int64 `envconfig:"DESIOTAKU_CHECKOUT_AMOUNT_TOLERANCE_PAISE" default:"100"`

	ShippingFlatPaise        int64 `envconfig:"DESIOTAKU_CHECKOUT_SHIPPING_FLAT_PAISE" default:"9900"`
	FreeShippingMinPaise     int64 `envconfig:"DESIOTAKU_CHECKOUT_FREE_SHIPPING_MIN_PAISE" default:"99900"`
	PointValuePaise          int64 `envconfig:"DESIOTAKU_CHECKOUT_POINT_VALUE_PAISE" default:"50"`
	MaxPointsPerOrder        int   `envconfig:"DESIOTAKU_CHECKOUT_MAX_POINTS_PER_ORDER" default:"50"`
	OnlinePaymentDiscountPct int   `envconfig:"DESIOTAKU_CHECKOUT_ONLINE_PAYMENT_DISCOUNT_PCT" default:"5"`
	RewardEarnRatePct        int   `envconfig:"DESIOTAKU_CHECKOUT_REWARD_EARN_RATE_PCT" default:"1"`
	DefaultSideFeePaise      int64 `envconfig:"DESIOTAKU_CHECKOUT_DEFAULT_SIDE_FEE_PAISE" default:"15000"`
	CustomBasePaise          int64 `envconfig:"DESIOTAKU_CHECKOUT_CUSTOM_BASE_PAISE" default:"49900"`

	// QuantityTiers is "count:percent" pairs, e.g. "3:10,5:15,10:20".
	QuantityTiers string `envconfig:"DESIOTAKU_CHECKOUT_QUANTITY_TIERS" default:"3:10,5:15,10:20"`

	RiskScoreThreshold int           `envconfig:"DESIOTAKU_CHECKOUT_RISK_SCORE_THRESHOLD" default:"70"`
	VelocityWindow     time.Duration `envconfig:"DESIOTAKU_CHECKOUT_VELOCITY_WINDOW" default:"1h"`
}

// QuantityTier is one threshold of the quantity discount ladder.
type QuantityTier struct {
	MinItems int
	Percent  int
	Label    string
}

// ParseQuantityTiers decodes the tier ladder, sorted ascending by threshold.
func (c CheckoutConfig) ParseQuantityTiers() ([]QuantityTier, error) {
	raw := strings.TrimSpace(c.QuantityTiers)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	tiers := make([]QuantityTier, 0, len(parts))
	for _, part := range parts {
		pair := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(pair) != 2 {
			return nil, fmt.Errorf("invalid quantity tier %q", part)
		}
		minItems, err := strconv.Atoi(pair[0])
		if err != nil || minItems <= 0 {
			return nil, fmt.Errorf("invalid quantity tier threshold %q", pair[0])
		}
		percent, err := strconv.Atoi(pair[1])
		if err != nil || percent <= 0 || percent > 100 {
			return nil, fmt.Errorf("invalid quantity tier percent %q", pair[1])
		}
		tiers = append(tiers, QuantityTier{
			MinItems: minItems,
			Percent:  percent,
			Label:    fmt.Sprintf("%d+ items: %d%% off", minItems, percent),
		})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinItems < tiers[j].MinItems })
	return tiers, nil
}

type RazorpayConfig struct {
	KeyID     string        `envconfig:"DESIOTAKU_RAZORPAY_KEY_ID" required:"true"`
	KeySecret string        `envconfig:"DESIOTAKU_RAZORPAY_KEY_SECRET" required:"true"`
	BaseURL   string        `envconfig:"DESIOTAKU_RAZORPAY_BASE_URL" default:"https://api.razorpay.com"`
	Timeout   time.Duration `envconfig:"DESIOTAKU_RAZORPAY_TIMEOUT" default:"10s"`
}

type NotificationsConfig struct {
	EmailEndpoint string        `envconfig:"DESIOTAKU_NOTIFY_EMAIL_ENDPOINT"`
	EmailAPIKey   string        `envconfig:"DESIOTAKU_NOTIFY_EMAIL_API_KEY"`
	EmailFrom     string        `envconfig:"DESIOTAKU_NOTIFY_EMAIL_FROM" default:"orders@desiotaku.in"`
	SMSEndpoint   string        `envconfig:"DESIOTAKU_NOTIFY_SMS_ENDPOINT"`
	SMSAPIKey     string        `envconfig:"DESIOTAKU_NOTIFY_SMS_API_KEY"`
	AlertWebhook  string        `envconfig:"DESIOTAKU_NOTIFY_ALERT_WEBHOOK"`
	SendTimeout   time.Duration `envconfig:"DESIOTAKU_NOTIFY_SEND_TIMEOUT" default:"10s"`
	MaxRetries    int           `envconfig:"DESIOTAKU_NOTIFY_MAX_RETRIES" default:"3"`
}

type ShippingConfig struct {
	CarrierEndpoint string        `envconfig:"DESIOTAKU_SHIPPING_CARRIER_ENDPOINT"`
	CarrierAPIKey   string        `envconfig:"DESIOTAKU_SHIPPING_CARRIER_API_KEY"`
	CreateTimeout   time.Duration `envconfig:"DESIOTAKU_SHIPPING_CREATE_TIMEOUT" default:"15s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"DESIOTAKU_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"DESIOTAKU_PUBSUB_ORDERS_TOPIC" default:"do-order-events"`
	OrdersSubscription string `envconfig:"DESIOTAKU_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"DESIOTAKU_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"DESIOTAKU_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"DESIOTAKU_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DESIOTAKU_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
