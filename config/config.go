package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"storefront-order-service/internal/service"

	"github.com/Anabol1ks/orderhub-pkg-proto/pkg/database"

	"go.uber.org/zap"
)

type Config struct {
	Port string
	DB   DB

	Auth  Auth
	Redis Redis
	Kafka Kafka

	Orders    Orders
	Retention Retention
	// CatalogAddr switches price lookups to the inventory service when set.
	CatalogAddr string
	CORSOrigins []string
}

type DB struct {
	database.Config
}

type AuthMode string

const (
	AuthModeIntrospect AuthMode = "introspect"
	AuthModeJWT        AuthMode = "jwt"
)

type Auth struct {
	Mode      AuthMode
	Addr      string
	JWTSecret string
	Issuer    string
	Audience  string
}

type Redis struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type Kafka struct {
	Brokers     []string
	OrderTopic  string
	EmailTopic  string
	EmailEnable bool
}

type Orders struct {
	NumberPrefix                 string
	NumberMaxAttempts            int
	PricePolicy                  string
	GuestCheckout                bool
	ReserveStock                 bool
	BlockDeliveryOnFailedPayment bool
	DefaultCountry               string
	StoreTimeout                 time.Duration
	IdempotencyTTL               time.Duration
}

type Retention struct {
	Days        int
	PendingTTL  time.Duration
	ExpiryEvery time.Duration
	PurgeEvery  time.Duration
	SchedulerOn bool
}

func Load(log *zap.Logger) *Config {
	cfg := &Config{
		Port: getEnv("APP_PORT", log),
		DB:   LoadDB(log),
		Auth: Auth{
			Mode:     AuthMode(strings.ToLower(getEnvDefault("AUTH_MODE", string(AuthModeIntrospect)))),
			Issuer:   os.Getenv("JWT_ISSUER"),
			Audience: os.Getenv("JWT_AUDIENCE"),
		},
		Redis: Redis{
			Enabled:  boolDefault(os.Getenv("REDIS_ENABLED"), false),
			Addr:     getEnvDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       atoiDefault(os.Getenv("REDIS_DB"), 0),
		},
		Kafka:       LoadKafka(),
		Orders:      LoadOrders(),
		Retention:   LoadRetention(),
		CatalogAddr: os.Getenv("INVENTORY_ADDR"),
		CORSOrigins: splitAndTrim(os.Getenv("CORS_ORIGINS")),
	}

	switch cfg.Auth.Mode {
	case AuthModeIntrospect:
		cfg.Auth.Addr = getEnv("AUTH_ADDR", log)
	case AuthModeJWT:
		cfg.Auth.JWTSecret = getEnv("JWT_ACCESS_SECRET", log)
	default:
		log.Error("Неизвестный AUTH_MODE", zap.String("mode", string(cfg.Auth.Mode)))
		panic(fmt.Sprintf("unknown AUTH_MODE %q", cfg.Auth.Mode))
	}
	return cfg
}

// LoadDB читает только настройки базы, для миграций и cleanup CLI.
func LoadDB(log *zap.Logger) DB {
	return DB{
		Config: database.Config{
			Host:     getEnv("DB_HOST", log),
			Port:     getEnv("DB_PORT", log),
			User:     getEnv("DB_USER", log),
			Password: getEnv("DB_PASSWORD", log),
			Name:     getEnv("DB_NAME", log),
			SSLMode:  getEnv("DB_SSLMODE", log),
		},
	}
}

func LoadKafka() Kafka {
	return Kafka{
		Brokers:     splitAndTrim(os.Getenv("KAFKA_BROKERS")),
		OrderTopic:  getEnvDefault("KAFKA_TOPIC_ORDERS", "order-events"),
		EmailTopic:  getEnvDefault("KAFKA_TOPIC_EMAIL", "email-notifications"),
		EmailEnable: boolDefault(os.Getenv("ORDER_CONFIRMATION_EMAIL"), true),
	}
}

func LoadOrders() Orders {
	return Orders{
		NumberPrefix:                 getEnvDefault("ORDER_NUMBER_PREFIX", "CP"),
		NumberMaxAttempts:            atoiDefault(os.Getenv("ORDER_NUMBER_MAX_ATTEMPTS"), 5),
		PricePolicy:                  getEnvDefault("PRICE_POLICY", "strict"),
		GuestCheckout:                boolDefault(os.Getenv("GUEST_CHECKOUT_ENABLED"), false),
		ReserveStock:                 boolDefault(os.Getenv("RESERVE_STOCK"), true),
		BlockDeliveryOnFailedPayment: boolDefault(os.Getenv("BLOCK_DELIVERY_ON_FAILED_PAYMENT"), true),
		DefaultCountry:               getEnvDefault("DEFAULT_COUNTRY", "Deutschland"),
		StoreTimeout:                 durationDefault(os.Getenv("STORE_TIMEOUT"), 5*time.Second),
		IdempotencyTTL:               durationDefault(os.Getenv("IDEMPOTENCY_TTL"), 24*time.Hour),
	}
}

// ServiceOptions переводит настройки заказов в опции сервиса.
func (o Orders) ServiceOptions() (service.Options, error) {
	policy, err := service.ParsePricePolicy(o.PricePolicy)
	if err != nil {
		return service.Options{}, err
	}
	opt := service.DefaultOptions()
	opt.OrderNumberPrefix = o.NumberPrefix
	opt.OrderNumberMaxAttempts = o.NumberMaxAttempts
	opt.PricePolicy = policy
	opt.Transitions.BlockDeliveryOnFailedPayment = o.BlockDeliveryOnFailedPayment
	opt.GuestCheckout = o.GuestCheckout
	opt.ReserveStock = o.ReserveStock
	opt.DefaultCountry = o.DefaultCountry
	opt.StoreTimeout = o.StoreTimeout
	opt.IdempotencyTTL = o.IdempotencyTTL
	return opt, nil
}

// LoadRetention читает настройки очистки.
func LoadRetention() Retention {
	return Retention{
		Days:        atoiDefault(os.Getenv("RETENTION_DAYS"), 0),
		PendingTTL:  durationDefault(os.Getenv("PENDING_TTL"), 0),
		ExpiryEvery: durationDefault(os.Getenv("EXPIRY_INTERVAL"), 15*time.Minute),
		PurgeEvery:  durationDefault(os.Getenv("PURGE_INTERVAL"), 6*time.Hour),
		SchedulerOn: boolDefault(os.Getenv("CLEANUP_SCHEDULER_ENABLED"), true),
	}
}

func getEnv(key string, log *zap.Logger) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	log.Error("Обязательная переменная окружения не установлена", zap.String("key", key))
	panic("missing required environment variable: " + key)
}

func getEnvDefault(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

func boolDefault(s string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return b
}

// durationDefault понимает "90s", "15m" и голое число секунд.
func durationDefault(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := []string{}
	for _, p := range strings.Split(s, ",") {
		pt := strings.TrimSpace(p)
		if pt != "" {
			parts = append(parts, pt)
		}
	}
	return parts
}
