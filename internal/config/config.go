package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/money"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Messaging  MessagingConfig
	Settlement SettlementConfig
}

type AppConfig struct {
	Port        string
	Env         string
	LogLevel    string
	StoreDriver string
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MigrationsPath  string
}

type MessagingConfig struct {
	KafkaBrokers     []string
	KafkaNotifyTopic string
	RedisAddr        string
}

type SettlementConfig struct {
	AutoApproveAfter         time.Duration
	AutoCancelAfter          time.Duration
	SweepInterval            time.Duration
	SellerShare              decimal.Decimal
	MinimumWithdraw          money.Money
	RecordPlatformFee        bool
	AllowRefundWithoutReturn bool
	ReturnReviewByAdmin      bool
}

// NewConfig reads an optional .env file and then the process environment.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the environment alone.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.App.Port = getEnv("APP_PORT", "8080")
	cfg.App.Env = getEnv("APP_ENV", "development")
	cfg.App.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.App.StoreDriver = getEnv("STORE_DRIVER", DriverPostgres)
	if cfg.App.StoreDriver != DriverPostgres && cfg.App.StoreDriver != DriverMemory {
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, cfg.App.StoreDriver))
	}

	cfg.Postgres.Host = os.Getenv("DB_HOST")
	cfg.Postgres.Port = getEnv("DB_PORT", "5432")
	cfg.Postgres.User = os.Getenv("DB_USER")
	cfg.Postgres.Password = os.Getenv("DB_PASSWORD")
	cfg.Postgres.DBName = os.Getenv("DB_NAME")
	cfg.Postgres.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Postgres.MigrationsPath = getEnv("DB_MIGRATIONS_PATH", "migrations")
	cfg.Postgres.MaxConns = int32(parseInt("DB_MAX_CONNS", 10, &errs))
	cfg.Postgres.MinConns = int32(parseInt("DB_MIN_CONNS", 2, &errs))
	cfg.Postgres.MaxConnLifetime = parseDuration("DB_MAX_CONN_LIFETIME", time.Hour, &errs)
	if cfg.App.StoreDriver == DriverPostgres {
		required := []struct{ name, value string }{
			{"DB_HOST", cfg.Postgres.Host},
			{"DB_USER", cfg.Postgres.User},
			{"DB_PASSWORD", cfg.Postgres.Password},
			{"DB_NAME", cfg.Postgres.DBName},
		}
		for _, r := range required {
			if r.value == "" {
				errs = append(errs, fmt.Errorf("%s is required", r.name))
			}
		}
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Messaging.KafkaBrokers = append(cfg.Messaging.KafkaBrokers, b)
			}
		}
	}
	cfg.Messaging.KafkaNotifyTopic = getEnv("KAFKA_NOTIFY_TOPIC", "settlement.notifications")
	cfg.Messaging.RedisAddr = os.Getenv("REDIS_ADDR")

	s := &cfg.Settlement
	s.AutoApproveAfter = parseDuration("AUTO_APPROVE_AFTER", 10*time.Minute, &errs)
	s.AutoCancelAfter = parseDuration("AUTO_CANCEL_AFTER", 24*time.Hour, &errs)
	s.SweepInterval = parseDuration("SWEEP_INTERVAL", time.Minute, &errs)
	s.RecordPlatformFee = parseBool("RECORD_PLATFORM_FEE", false, &errs)
	s.AllowRefundWithoutReturn = parseBool("ALLOW_REFUND_WITHOUT_RETURN", true, &errs)
	s.ReturnReviewByAdmin = parseBool("RETURN_REVIEW_BY_ADMIN", false, &errs)

	share, err := decimal.NewFromString(getEnv("SELLER_SHARE", "0.90"))
	if err != nil || share.IsNegative() || share.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("SELLER_SHARE must be a decimal between 0 and 1"))
	}
	s.SellerShare = share

	minWithdraw, err := money.Parse(getEnv("MINIMUM_WITHDRAW", "10.00"))
	if err != nil {
		errs = append(errs, fmt.Errorf("MINIMUM_WITHDRAW: %w", err))
	}
	s.MinimumWithdraw = minWithdraw

	if s.AutoCancelAfter < s.AutoApproveAfter {
		errs = append(errs, fmt.Errorf("AUTO_CANCEL_AFTER (%s) must not be shorter than AUTO_APPROVE_AFTER (%s)",
			s.AutoCancelAfter, s.AutoApproveAfter))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DSN is the keyword/value connection string understood by pgxpool.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		dsnValue(p.Host), dsnValue(p.Port), dsnValue(p.User), dsnValue(p.Password), dsnValue(p.DBName), dsnValue(p.SSLMode))
}

// dsnValue quotes a keyword/value parameter when it is empty or holds
// spaces, quotes or backslashes.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
}

// MigrateURL is the pgx5:// URL used by golang-migrate.
func (p PostgresConfig) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(p.User, p.Password),
		Host:     net.JoinHostPort(p.Host, p.Port),
		Path:     "/" + p.DBName,
		RawQuery: url.Values{"sslmode": {p.SSLMode}}.Encode(),
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func parseInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func parseDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func parseBool(key string, fallback bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}
