package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Billing  BillingConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	JWTSecret          string
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

// CatalogItem maps a purchasable key to its gateway price and what it grants.
type CatalogItem struct {
	PriceID  string `json:"price_id"`
	Kind     string `json:"kind"` // "token_pack" or "plan"
	Tokens   int64  `json:"tokens,omitempty"`
	PlanSlug string `json:"plan_slug,omitempty"`
}

type BillingConfig struct {
	StripeSecretKey     string
	WebhookSecret       string
	MaxRenewalAttempts  int
	DefaultTokenGrant   int64
	BaselinePlanSlug    string
	DispatcherWorkers   int
	RetryBaseSeconds    int
	MaxHandlerAttempts  int
	Catalog             map[string]CatalogItem
	CheckoutSuccessPath string
	CheckoutCancelPath  string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "AdStudio"),
		},
		Billing: BillingConfig{
			StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:       getEnv("STRIPE_WEBHOOK_SECRET", ""),
			MaxRenewalAttempts:  getEnvAsInt("BILLING_MAX_RENEWAL_ATTEMPTS", 3),
			DefaultTokenGrant:   int64(getEnvAsInt("BILLING_DEFAULT_TOKEN_GRANT", 100)),
			BaselinePlanSlug:    getEnv("BILLING_BASELINE_PLAN", "free"),
			DispatcherWorkers:   getEnvAsInt("BILLING_DISPATCHER_WORKERS", 4),
			RetryBaseSeconds:    getEnvAsInt("BILLING_RETRY_BASE_SECONDS", 2),
			MaxHandlerAttempts:  getEnvAsInt("BILLING_MAX_HANDLER_ATTEMPTS", 5),
			Catalog:             loadCatalog(),
			CheckoutSuccessPath: getEnv("CHECKOUT_SUCCESS_PATH", "/app/billing?checkout=success"),
			CheckoutCancelPath:  getEnv("CHECKOUT_CANCEL_PATH", "/app/billing?checkout=canceled"),
		},
	}
}

// loadCatalog reads the purchasable-key map from PRODUCT_CATALOG_JSON.
// The catalog is deployment configuration, never end-user input.
func loadCatalog() map[string]CatalogItem {
	raw := getEnv("PRODUCT_CATALOG_JSON", "")
	if raw == "" {
		return defaultCatalog()
	}
	var catalog map[string]CatalogItem
	if err := json.Unmarshal([]byte(raw), &catalog); err != nil {
		log.Printf("Warn: invalid PRODUCT_CATALOG_JSON, falling back to defaults: %v", err)
		return defaultCatalog()
	}
	return catalog
}

func defaultCatalog() map[string]CatalogItem {
	return map[string]CatalogItem{
		"tokens_100":  {PriceID: "price_tokens_100", Kind: "token_pack", Tokens: 100},
		"tokens_500":  {PriceID: "price_tokens_500", Kind: "token_pack", Tokens: 500},
		"plan_pro":    {PriceID: "price_plan_pro", Kind: "plan", PlanSlug: "pro"},
		"plan_studio": {PriceID: "price_plan_studio", Kind: "plan", PlanSlug: "studio"},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
