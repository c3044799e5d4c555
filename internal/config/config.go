/**
 * @description
 * This package handles the configuration management for the checkout-service.
 * It uses the Viper library to read configuration from environment variables
 * (with an optional local .env file), providing a centralized and
 * straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 * - github.com/joho/godotenv: Loads a local .env file during development.
 */

package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the checkout-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort            string `mapstructure:"SERVER_PORT"`
	RedisURL              string `mapstructure:"REDIS_URL"`
	RedisAttemptPrefix    string `mapstructure:"REDIS_ATTEMPT_PREFIX"`
	RabbitMQURL           string `mapstructure:"RABBITMQ_URL"`
	AnalyticsExchange     string `mapstructure:"ANALYTICS_EXCHANGE"`
	EligibilityAPIBaseURL string `mapstructure:"ELIGIBILITY_API_BASE_URL"`
	PaymentAPIBaseURL     string `mapstructure:"PAYMENT_API_BASE_URL"`
	PaymentAPIKey         string `mapstructure:"PAYMENT_API_KEY"`
	StripePublishableKey  string `mapstructure:"STRIPE_PUBLISHABLE_KEY"`
	HandleSigningSecret   string `mapstructure:"HANDLE_SIGNING_SECRET"`
	CheckoutBaseURL       string `mapstructure:"CHECKOUT_BASE_URL"`
	ConfirmationBaseURL   string `mapstructure:"CONFIRMATION_BASE_URL"`
	RequestTimeoutSeconds int    `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	AttemptTTLMinutes     int    `mapstructure:"ATTEMPT_TTL_MINUTES"`
	TransitionDelayMillis int    `mapstructure:"TRANSITION_DELAY_MILLIS"`
	SweeperSchedule       string `mapstructure:"SWEEPER_SCHEDULE"`
}

// RequestTimeout returns the network-call timeout as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// AttemptTTL returns how long an idle attempt survives before the sweeper
// closes it.
func (c Config) AttemptTTL() time.Duration {
	return time.Duration(c.AttemptTTLMinutes) * time.Minute
}

// TransitionDelay returns the fixed UI-transition pause used between a
// successful eligibility check and the redirect to payment.
func (c Config) TransitionDelay() time.Duration {
	return time.Duration(c.TransitionDelayMillis) * time.Millisecond
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Load a local .env if present. Real environment variables win.
	if loadErr := godotenv.Load(strings.TrimSuffix(path, "/") + "/.env"); loadErr != nil {
		// Missing .env is the normal case outside local development.
		if !os.IsNotExist(loadErr) {
			log.Printf("level=warn component=config msg=\"failed to load .env; using environment values\" err=%v", loadErr)
		}
	}

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_ATTEMPT_PREFIX", "curbside:attempt")
	viper.SetDefault("ANALYTICS_EXCHANGE", "checkout_analytics")
	viper.SetDefault("CHECKOUT_BASE_URL", "/checkout")
	viper.SetDefault("CONFIRMATION_BASE_URL", "/confirmation")
	viper.SetDefault("REQUEST_TIMEOUT_SECONDS", 30)
	viper.SetDefault("ATTEMPT_TTL_MINUTES", 30)
	viper.SetDefault("TRANSITION_DELAY_MILLIS", 400)
	viper.SetDefault("SWEEPER_SCHEDULE", "@every 5m")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_ATTEMPT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("ANALYTICS_EXCHANGE")
	_ = viper.BindEnv("ELIGIBILITY_API_BASE_URL")
	_ = viper.BindEnv("PAYMENT_API_BASE_URL")
	_ = viper.BindEnv("PAYMENT_API_KEY")
	_ = viper.BindEnv("STRIPE_PUBLISHABLE_KEY", "STRIPE_PUBLISHABLE_KEY", "STRIPE_PK")
	_ = viper.BindEnv("HANDLE_SIGNING_SECRET", "HANDLE_SIGNING_SECRET", "CHECKOUT_HANDLE_SECRET")
	_ = viper.BindEnv("CHECKOUT_BASE_URL")
	_ = viper.BindEnv("CONFIRMATION_BASE_URL")
	_ = viper.BindEnv("REQUEST_TIMEOUT_SECONDS")
	_ = viper.BindEnv("ATTEMPT_TTL_MINUTES")
	_ = viper.BindEnv("TRANSITION_DELAY_MILLIS")
	_ = viper.BindEnv("SWEEPER_SCHEDULE")

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	// Platform-style deployments inject PORT instead of SERVER_PORT.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisAttemptPrefix = strings.TrimSpace(config.RedisAttemptPrefix)
	if config.RedisAttemptPrefix == "" {
		config.RedisAttemptPrefix = "curbside:attempt"
	}
	config.HandleSigningSecret = strings.TrimSpace(config.HandleSigningSecret)

	if config.RequestTimeoutSeconds <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive request timeout configured; using 30s\" value=%d", config.RequestTimeoutSeconds)
		config.RequestTimeoutSeconds = 30
	}
	if config.AttemptTTLMinutes <= 0 {
		config.AttemptTTLMinutes = 30
	}
	if config.TransitionDelayMillis < 0 {
		config.TransitionDelayMillis = 0
	}

	return
}
