package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/storefront/cart-service/internal/client"
	"github.com/storefront/cart-service/internal/consumer"
	carthttp "github.com/storefront/cart-service/internal/http"
	"github.com/storefront/cart-service/internal/service"
	"github.com/storefront/cart-service/internal/store"
	"github.com/storefront/cart-service/internal/validation"
)

type Config struct {
	HTTPPort          string
	RedisAddr         string
	RedisPassword     string
	UserServiceURL    string
	ProductServiceURL string
	KafkaBrokers      string
	RequestTimeout    time.Duration
	ShutdownTimeout   time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		UserServiceURL:    getEnv("USER_SERVICE_URL", "http://localhost:9090"),
		ProductServiceURL: getEnv("PRODUCT_SERVICE_URL", "http://localhost:3001"),
		KafkaBrokers:      getEnv("KAFKA_BROKERS", ""),
		RequestTimeout:    30 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()

	// A failed ping is not fatal: the two-tier store serves degraded mode
	// from the in-process fallback until redis comes back.
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("redis unreachable at startup, running degraded: %v", err)
	} else {
		log.Printf("connected to redis at %s", cfg.RedisAddr)
	}

	cartStore := store.NewTwoTierStore(store.NewRedisStore(redisClient))

	userClient := client.NewUserClient(cfg.UserServiceURL, nil)
	productClient := client.NewProductClient(cfg.ProductServiceURL, nil)

	users := validation.NewUserValidator(userClient)
	products := validation.NewProductValidator(productClient)
	users.StartSweepers(ctx)
	products.StartSweepers(ctx)

	carts := service.NewCartService(cartStore, users, products)

	if cfg.KafkaBrokers != "" {
		checkoutConsumer := consumer.New(cartStore, strings.Split(cfg.KafkaBrokers, ",")...)
		defer checkoutConsumer.Close()
		go checkoutConsumer.Run(ctx)
		log.Printf("checkout-completed consumer started on %s", cfg.KafkaBrokers)
	}

	cartHandler := carthttp.NewCartHandler(carts)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(carthttp.RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(carthttp.BearerTokenMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok", "store": "primary"}
		if cartStore.Degraded(r.Context()) {
			status["store"] = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"` + status["status"] + `","store":"` + status["store"] + `"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		cartHandler.Routes(r)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("cart service starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down cart service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	log.Println("cart service stopped")
}
