package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_UsesWalletServiceInternalAPIKeyAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "INTERNAL_API_KEY")
	setEnvWithCleanup(t, "WALLET_SERVICE_INTERNAL_API_KEY", "alias-only-key")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.InternalAPIKey != "alias-only-key" {
		t.Fatalf("expected InternalAPIKey from alias env var, got %q", cfg.InternalAPIKey)
	}
}

func TestLoadConfig_InternalAPIKeyTakesPrecedenceOverAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "INTERNAL_API_KEY", "primary-key")
	setEnvWithCleanup(t, "WALLET_SERVICE_INTERNAL_API_KEY", "alias-key")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.InternalAPIKey != "primary-key" {
		t.Fatalf("expected InternalAPIKey to prioritize INTERNAL_API_KEY, got %q", cfg.InternalAPIKey)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "APIKEY_EXPIRATION_DAYS")
	unsetEnvWithCleanup(t, "DEPOSIT_RATE_LIMIT_PER_MINUTE")
	unsetEnvWithCleanup(t, "WEBHOOK_RATE_LIMIT_PER_MINUTE")
	unsetEnvWithCleanup(t, "PAYSTACK_API_BASE_URL")
	unsetEnvWithCleanup(t, "WALLET_EVENT_EXCHANGE")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.APIKeyExpirationDays != 30 {
		t.Fatalf("expected default APIKeyExpirationDays of 30, got %d", cfg.APIKeyExpirationDays)
	}
	if cfg.DepositRateLimitPerMinute != 60 {
		t.Fatalf("expected default DepositRateLimitPerMinute of 60, got %d", cfg.DepositRateLimitPerMinute)
	}
	if cfg.WebhookRateLimitPerMinute != 120 {
		t.Fatalf("expected default WebhookRateLimitPerMinute of 120, got %d", cfg.WebhookRateLimitPerMinute)
	}
	if cfg.PaystackAPIBaseURL != "https://api.paystack.co" {
		t.Fatalf("expected default Paystack base URL, got %q", cfg.PaystackAPIBaseURL)
	}
	if cfg.WalletEventExchange != "wallet.events" {
		t.Fatalf("expected default event exchange, got %q", cfg.WalletEventExchange)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
