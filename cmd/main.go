/**
 * @description
 * This is the main entry point for the checkout-service. It is responsible for
 * initializing all components of the service, including configuration, the Redis
 * attempt store, external API clients, the analytics producer, the checkout
 * orchestrator, the idle-attempt sweeper, and the HTTP server. It wires
 * everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/redis/go-redis/v9: Redis client for the attempt store.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/analytics, pkg/eligibilityclient, pkg/paymentclient, pkg/stripewidget: Outbound adapters.
 */

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/curbside/checkout-service/internal/api"
	"github.com/curbside/checkout-service/internal/app"
	"github.com/curbside/checkout-service/internal/config"
	"github.com/curbside/checkout-service/internal/store"
	"github.com/curbside/checkout-service/pkg/analytics"
	"github.com/curbside/checkout-service/pkg/eligibilityclient"
	"github.com/curbside/checkout-service/pkg/paymentclient"
	"github.com/curbside/checkout-service/pkg/stripewidget"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.HandleSigningSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"handle signing secret must be configured\" env=HANDLE_SIGNING_SECRET")
	}
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"redis url must be configured\" env=REDIS_URL")
	}

	log.Printf("level=info component=bootstrap msg=\"starting checkout-service\" port=%s", cfg.ServerPort)

	// Connect to Redis, the attempt store. Attempts are short-lived and TTL'd,
	// so Redis is the only storage this service needs.
	redisOptions, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"redis url parse failed\" err=%v", err)
	}
	redisClient := redis.NewClient(redisOptions)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		log.Fatalf("level=fatal component=bootstrap msg=\"redis connection failed\" err=%v", err)
	}
	cancelPing()
	defer redisClient.Close()
	log.Println("level=info component=bootstrap msg=\"redis connected\"")

	// Initialize the analytics producer. Analytics is fire-and-forget; a
	// broker outage must not prevent the service from booting.
	var sink app.AnalyticsSink
	producer, err := analytics.NewProducer(cfg.RabbitMQURL, cfg.AnalyticsExchange)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"analytics producer unavailable; using fallback\" err=%v", err)
		sink = analytics.NopSink{}
	} else {
		defer producer.Close()
		sink = producer
		log.Println("level=info component=bootstrap msg=\"analytics producer connected\"")
	}

	// Initialize the outbound clients with the configured request timeout.
	eligibilityClient := eligibilityclient.NewClient(cfg.EligibilityAPIBaseURL, cfg.RequestTimeout())
	paymentClient := paymentclient.NewClient(cfg.PaymentAPIBaseURL, cfg.PaymentAPIKey, cfg.RequestTimeout())
	widget := stripewidget.New()

	// Initialize the attempt store, modal manager, and orchestrator.
	repository := store.NewRedisAttemptStore(redisClient, cfg.RedisAttemptPrefix, cfg.AttemptTTL())
	modal := app.NewModalManager(cfg.TransitionDelay())
	orchestrator := app.NewOrchestrator(repository, eligibilityClient, paymentClient, widget, sink, modal, app.Options{
		CheckoutBaseURL:     cfg.CheckoutBaseURL,
		ConfirmationBaseURL: cfg.ConfirmationBaseURL,
		TransitionDelay:     cfg.TransitionDelay(),
		FallbackKey:         cfg.StripePublishableKey,
	})

	// Start the idle-attempt sweeper.
	sweeper := app.NewSweeper(orchestrator, cfg.SweeperSchedule, cfg.AttemptTTL())
	sweeper.Start()
	defer sweeper.Stop()

	// Initialize the API handlers and router.
	handlers := api.NewCheckoutHandlers(orchestrator, cfg.HandleSigningSecret)
	router := api.CheckoutRoutes(handlers, cfg.HandleSigningSecret, cfg.RequestTimeout())

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	// Run the server in a goroutine so shutdown signals can be handled.
	go func() {
		log.Printf("level=info component=bootstrap msg=\"http server listening\" addr=%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=bootstrap msg=\"http server failed\" err=%v", err)
		}
	}()

	// Wait for an interrupt signal, then shut down gracefully.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("level=info component=bootstrap msg=\"shutdown signal received\"")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("level=error component=bootstrap msg=\"graceful shutdown failed\" err=%v", err)
	}
	log.Println("level=info component=bootstrap msg=\"checkout-service stopped\"")
}
