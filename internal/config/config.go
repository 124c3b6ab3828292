package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"supplier-import-service/internal/models"
	"supplier-import-service/internal/pricing"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisURL string

	// NATS
	NATSURL string

	// Server
	Port        string
	Environment string

	// Supplier API
	SupplierAPIBaseURL   string
	SupplierAPIKey       string
	SupplierAPITimeout   time.Duration
	SupplierAPIRateLimit float64 // requests per second
	SupplierAPIBurst     int
	SupplierAPIRetries   int

	// Reconciliation
	StockBuffer      int
	PreferredCarrier string // regexp matched against carrier names

	// Pricing
	DestinationCountry string
	FreightQty         int
	DefaultRate        float64            // fallback conversion rate
	CurrencyRates      map[string]float64 // supplier currency -> reference currency
	DefaultPricingRule pricing.Rule
	PricingRules       map[string]pricing.Rule // per category label

	// Workers
	ImportWorkers  int
	FreightWorkers int

	// Stale pending escalation
	StaleCheckInterval time.Duration
	StalePendingAge    time.Duration
}

func Load() *Config {
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	timeoutSec, _ := strconv.Atoi(getEnv("SUPPLIER_API_TIMEOUT_SECONDS", "30"))
	rateLimit, _ := strconv.ParseFloat(getEnv("SUPPLIER_API_RATE_LIMIT", "5"), 64)
	burst, _ := strconv.Atoi(getEnv("SUPPLIER_API_BURST", "10"))
	retries, _ := strconv.Atoi(getEnv("SUPPLIER_API_RETRIES", "3"))
	stockBuffer, _ := strconv.Atoi(getEnv("STOCK_BUFFER", "5"))
	freightQty, _ := strconv.Atoi(getEnv("FREIGHT_QTY", "1"))
	defaultRate, _ := strconv.ParseFloat(getEnv("DEFAULT_CURRENCY_RATE", "1"), 64)
	importWorkers, _ := strconv.Atoi(getEnv("IMPORT_WORKERS", "4"))
	freightWorkers, _ := strconv.Atoi(getEnv("FREIGHT_WORKERS", "5"))
	staleInterval, _ := time.ParseDuration(getEnv("STALE_CHECK_INTERVAL", "1h"))
	staleAge, _ := time.ParseDuration(getEnv("STALE_PENDING_AGE", "72h"))

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "supplier_import_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		NATSURL:  os.Getenv("NATS_URL"),

		Port:        getEnv("PORT", "8093"),
		Environment: getEnv("ENVIRONMENT", "development"),

		SupplierAPIBaseURL:   getEnv("SUPPLIER_API_BASE_URL", "http://localhost:9000"),
		SupplierAPIKey:       os.Getenv("SUPPLIER_API_KEY"),
		SupplierAPITimeout:   time.Duration(timeoutSec) * time.Second,
		SupplierAPIRateLimit: rateLimit,
		SupplierAPIBurst:     burst,
		SupplierAPIRetries:   retries,

		StockBuffer:      stockBuffer,
		PreferredCarrier: getEnv("PREFERRED_CARRIER", ""),

		DestinationCountry: getEnv("DESTINATION_COUNTRY", "SA"),
		FreightQty:         freightQty,
		DefaultRate:        defaultRate,
		CurrencyRates:      parseCurrencyRates(getEnv("CURRENCY_RATES", "")),
		DefaultPricingRule: loadDefaultRule(),
		PricingRules:       parsePricingRules(os.Getenv("PRICING_RULES")),

		ImportWorkers:  importWorkers,
		FreightWorkers: freightWorkers,

		StaleCheckInterval: staleInterval,
		StalePendingAge:    staleAge,
	}
}

// loadDefaultRule builds the fallback pricing rule from env, one knob per
// variable so operators can tune without a JSON blob.
func loadDefaultRule() pricing.Rule {
	rule := pricing.DefaultRule()
	if v, err := strconv.ParseFloat(getEnv("PRICING_MARGIN_PERCENT", ""), 64); err == nil {
		rule.MarginPercent = v
	}
	if v, err := strconv.ParseFloat(getEnv("PRICING_MIN_PROFIT", ""), 64); err == nil {
		rule.MinProfit = v
	}
	if v, err := strconv.ParseFloat(getEnv("PRICING_PAYMENT_FEE_PERCENT", ""), 64); err == nil {
		rule.PaymentFeePercent = v
	}
	if v, err := strconv.ParseBool(getEnv("PRICING_SMART_ROUNDING", "")); err == nil {
		rule.SmartRounding = v
	}
	if targets := parseFloatList(getEnv("PRICING_ROUNDING_TARGETS", "")); len(targets) > 0 {
		rule.RoundingTargets = targets
	}
	return rule
}

// parseCurrencyRates parses "USD:3.75,CNY:0.52" into a rate map
func parseCurrencyRates(raw string) map[string]float64 {
	rates := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			continue
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || rate <= 0 {
			continue
		}
		rates[strings.ToUpper(strings.TrimSpace(parts[0]))] = rate
	}
	return rates
}

// parsePricingRules parses the per-category rule overrides, a JSON object
// keyed by category label.
func parsePricingRules(raw string) map[string]pricing.Rule {
	if raw == "" {
		return nil
	}
	var rules map[string]pricing.Rule
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		log.Printf("WARNING: Failed to parse PRICING_RULES: %v (using defaults)", err)
		return nil
	}
	return rules
}

func parseFloatList(raw string) []float64 {
	var values []float64
	for _, part := range strings.Split(raw, ",") {
		if v, err := strconv.ParseFloat(strings.TrimSpace(part), 64); err == nil {
			values = append(values, v)
		}
	}
	return values
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Running auto-migrations...")
	if err := db.AutoMigrate(
		&models.QueuedProduct{},
		&models.Product{},
		&models.ProductVariant{},
		&models.Category{},
		&models.ProductCategoryLink{},
		&models.SupplierCategoryMapping{},
	); err != nil {
		// Migration can trip over constraints that predate the current
		// naming convention; those are safe to skip.
		errStr := err.Error()
		if strings.Contains(errStr, "does not exist") && strings.Contains(errStr, "constraint") {
			log.Printf("Note: Migration constraint warning (safe to ignore): %v", err)
		} else {
			return nil, fmt.Errorf("failed to run auto-migrations: %w", err)
		}
	}
	log.Println("Auto-migrations completed successfully")

	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
