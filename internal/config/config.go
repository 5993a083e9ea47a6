/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the wallet-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                string `mapstructure:"SERVER_PORT"`
	DatabaseURL               string `mapstructure:"DATABASE_URL"`
	RedisURL                  string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix      string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL               string `mapstructure:"RABBITMQ_URL"`
	WalletEventExchange       string `mapstructure:"WALLET_EVENT_EXCHANGE"`
	PaystackAPIBaseURL        string `mapstructure:"PAYSTACK_API_BASE_URL"`
	PaystackSecretKey         string `mapstructure:"PAYSTACK_SECRET_KEY"`
	JWTSecret                 string `mapstructure:"JWT_SECRET"`
	InternalAPIKey            string `mapstructure:"INTERNAL_API_KEY"`
	APIKeyExpirationDays      int    `mapstructure:"APIKEY_EXPIRATION_DAYS"`
	DepositRateLimitPerMinute int    `mapstructure:"DEPOSIT_RATE_LIMIT_PER_MINUTE"`
	WebhookRateLimitPerMinute int    `mapstructure:"WEBHOOK_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "payvault:rate_limit")
	viper.SetDefault("WALLET_EVENT_EXCHANGE", "wallet.events")
	viper.SetDefault("PAYSTACK_API_BASE_URL", "https://api.paystack.co")
	viper.SetDefault("APIKEY_EXPIRATION_DAYS", 30)
	viper.SetDefault("DEPOSIT_RATE_LIMIT_PER_MINUTE", 60)
	viper.SetDefault("WEBHOOK_RATE_LIMIT_PER_MINUTE", 120)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "WALLET_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("WALLET_EVENT_EXCHANGE")
	_ = viper.BindEnv("PAYSTACK_API_BASE_URL")
	_ = viper.BindEnv("PAYSTACK_SECRET_KEY")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "WALLET_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("APIKEY_EXPIRATION_DAYS")
	_ = viper.BindEnv("DEPOSIT_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("WEBHOOK_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// A missing .env file is fine; anything else is logged and the
		// environment values are used as-is.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("WALLET_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "payvault:rate_limit"
	}

	if config.APIKeyExpirationDays <= 0 {
		config.APIKeyExpirationDays = 30
	}
	if config.DepositRateLimitPerMinute <= 0 {
		config.DepositRateLimitPerMinute = 60
	}
	if config.WebhookRateLimitPerMinute <= 0 {
		config.WebhookRateLimitPerMinute = 120
	}

	return
}
