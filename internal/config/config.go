package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is the typed view over the process environment.
type Config struct {
	Env         string
	Port        string
	StoreDriver string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string

	Ledger   LedgerConfig
	Gateway  GatewayConfig
	Purchase PurchaseConfig
	Fraud    FraudConfig
}

type LedgerConfig struct {
	DailySpendLimit   decimal.Decimal
	MonthlySpendLimit decimal.Decimal
	CommissionRate    decimal.Decimal
	StrictCheck       bool
}

type GatewayConfig struct {
	StripeSecretKey       string
	Currency              string
	WebhookSecret         string
	WebhookTolerance      time.Duration
	Timeout               time.Duration
	MaxRetries            int
	DepositExpiry         time.Duration
	ExpirySweepInterval   time.Duration
	PearlsPerCurrencyUnit decimal.Decimal
	MinDeposit            decimal.Decimal
	MaxDeposit            decimal.Decimal
	HashidsSalt           string
	BankName              string
	BankAccount           string
}

type PurchaseConfig struct {
	MaxCardsPerPurchase int
	DefaultCardPrice    decimal.Decimal
}

type FraudConfig struct {
	MaxAttempts           int
	AttemptWindow         time.Duration
	NewAccountAge         time.Duration
	NewAccountLargeAmount decimal.Decimal
	MaxMethodsPerIP       int
	MethodWindow          time.Duration
}

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}
}

// Load reads the .env file (if any) and builds a Config with defaults applied.
func Load() Config {
	LoadEnv()

	return Config{
		Env:         GetEnv("ENV", "development"),
		Port:        GetEnv("PORT", "3000"),
		StoreDriver: GetEnv("STORE_DRIVER", "postgres"),

		DBHost:     GetEnv("DB_HOST", "localhost"),
		DBPort:     GetEnv("DB_PORT", "5432"),
		DBUser:     GetEnv("DB_USER", "postgres"),
		DBPassword: GetEnv("DB_PASSWORD", "postgres"),
		DBName:     GetEnv("DB_NAME", "pearlbingo"),
		DBSSLMode:  GetEnv("DB_SSLMODE", "disable"),

		RedisAddr:     GetEnv("REDIS_HOST", "localhost") + ":" + GetEnv("REDIS_PORT", "6379"),
		RedisPassword: GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       GetIntEnv("REDIS_DB", 0),

		JWTSecret: GetEnv("JWT_SECRET", "pearlbingo"),

		Ledger: LedgerConfig{
			DailySpendLimit:   GetDecimalEnv("DAILY_SPEND_LIMIT", decimal.NewFromInt(20000)),
			MonthlySpendLimit: GetDecimalEnv("MONTHLY_SPEND_LIMIT", decimal.NewFromInt(200000)),
			CommissionRate:    GetDecimalEnv("P2P_COMMISSION_RATE", decimal.RequireFromString("0.025")),
			StrictCheck:       GetBoolEnv("LEDGER_STRICT_CHECK", false),
		},
		Gateway: GatewayConfig{
			StripeSecretKey:       GetEnv("STRIPE_SECRET_KEY", ""),
			Currency:              GetEnv("GATEWAY_CURRENCY", "mxn"),
			WebhookSecret:         GetEnv("WEBHOOK_SECRET", ""),
			WebhookTolerance:      GetDurationEnv("WEBHOOK_TOLERANCE", 5*time.Minute),
			Timeout:               GetDurationEnv("GATEWAY_TIMEOUT", 15*time.Second),
			MaxRetries:            GetIntEnv("GATEWAY_MAX_RETRIES", 2),
			DepositExpiry:         GetDurationEnv("DEPOSIT_EXPIRY", 24*time.Hour),
			ExpirySweepInterval:   GetDurationEnv("DEPOSIT_SWEEP_INTERVAL", time.Minute),
			PearlsPerCurrencyUnit: GetDecimalEnv("PEARLS_PER_CURRENCY_UNIT", decimal.NewFromInt(1)),
			MinDeposit:            GetDecimalEnv("MIN_DEPOSIT", decimal.NewFromInt(10)),
			MaxDeposit:            GetDecimalEnv("MAX_DEPOSIT", decimal.NewFromInt(10000)),
			HashidsSalt:           GetEnv("HASHIDS_SALT", "pearlbingo"),
			BankName:              GetEnv("BANK_NAME", ""),
			BankAccount:           GetEnv("BANK_ACCOUNT", ""),
		},
		Purchase: PurchaseConfig{
			MaxCardsPerPurchase: GetIntEnv("MAX_CARDS_PER_PURCHASE", 10),
			DefaultCardPrice:    GetDecimalEnv("CARD_PRICE", decimal.NewFromInt(10)),
		},
		Fraud: FraudConfig{
			MaxAttempts:           GetIntEnv("FRAUD_MAX_ATTEMPTS", 5),
			AttemptWindow:         GetDurationEnv("FRAUD_ATTEMPT_WINDOW", 5*time.Minute),
			NewAccountAge:         GetDurationEnv("FRAUD_NEW_ACCOUNT_AGE", 7*24*time.Hour),
			NewAccountLargeAmount: GetDecimalEnv("FRAUD_NEW_ACCOUNT_AMOUNT", decimal.NewFromInt(1000)),
			MaxMethodsPerIP:       GetIntEnv("FRAUD_MAX_METHODS_PER_IP", 3),
			MethodWindow:          GetDurationEnv("FRAUD_METHOD_WINDOW", 24*time.Hour),
		},
	}
}

// DSN builds the Postgres connection string.
func (c Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode
}

// GetEnv returns an environment variable or a default value.
func GetEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// GetIntEnv returns an int environment variable or a default value.
func GetIntEnv(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func GetBoolEnv(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func GetDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// GetDecimalEnv parses a fixed-point amount, falling back on malformed input.
func GetDecimalEnv(key string, defaultVal decimal.Decimal) decimal.Decimal {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := decimal.NewFromString(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// IsProduction checks if the app runs in production mode.
func IsProduction() bool {
	return GetEnv("ENV", "development") == "production"
}
