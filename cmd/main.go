/**
 * @description
 * This is the main entry point for the wallet-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, the payment gateway client, message brokers, repositories, the
 * core application services, and the HTTP server. It wires everything together
 * and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/paystackclient: Client for the Paystack API.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/payvault/wallet-service/internal/api"
	"github.com/payvault/wallet-service/internal/app"
	"github.com/payvault/wallet-service/internal/config"
	"github.com/payvault/wallet-service/internal/store"
	"github.com/payvault/wallet-service/pkg/paystackclient"
	"github.com/payvault/wallet-service/pkg/rabbitmq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}
	if strings.TrimSpace(cfg.PaystackSecretKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"paystack secret must be configured\" env=PAYSTACK_SECRET_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting wallet-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	// Pool sizing mirrors the other services so deployments behave consistently.
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelMigrate()
	if err := store.EnsureSchema(migrateCtx, dbpool); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"schema bootstrap failed\" err=%v", err)
	}
	log.Println("level=info component=bootstrap msg=\"schema ready\"")

	// Initialize the RabbitMQ producer to publish events. This service only
	// publishes, so a failed broker connection degrades to a no-op producer.
	var producer rabbitmq.Publisher
	rabbitProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
		producer = rabbitProducer
	}

	// Initialize the client for the Paystack API.
	paystackClient := paystackclient.NewClient(cfg.PaystackAPIBaseURL, cfg.PaystackSecretKey)

	// Redis backs the distributed rate limiter; a missing or unreachable Redis
	// disables limiting rather than blocking startup.
	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; rate limiting disabled\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; rate limiting disabled\" err=%v", parseErr)
		} else {
			redisClient = redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; rate limiting disabled\" err=%v", pingErr)
				redisClient.Close()
				redisClient = nil
			} else {
				defer redisClient.Close()
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application services with their dependencies.
	walletService := app.NewService(repository, producer, cfg.WalletEventExchange)
	webhookProcessor := app.NewWebhookProcessor(repository, paystackClient, producer, cfg.WalletEventExchange, cfg.PaystackSecretKey)
	keyManager := app.NewKeyManager(repository, cfg.APIKeyExpirationDays)

	// A nil limiter disables throttling entirely.
	var rateLimiter *app.RedisRateLimiter
	if redisClient != nil {
		rateLimiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
	}

	// Initialize the API handlers and routes.
	walletHandlers := api.NewWalletHandlers(
		walletService,
		webhookProcessor,
		keyManager,
		rateLimiter,
		cfg.DepositRateLimitPerMinute,
		cfg.WebhookRateLimitPerMinute,
	)
	router := api.WalletRoutes(walletHandlers, keyManager, cfg.JWTSecret, cfg.InternalAPIKey)

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
