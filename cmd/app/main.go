package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/courtbooking/api"
	"github.com/Domenick1991/courtbooking/config"
	"github.com/Domenick1991/courtbooking/internal/bootstrap"
	"github.com/Domenick1991/courtbooking/internal/cache"
	"github.com/Domenick1991/courtbooking/internal/kafka"
	"github.com/Domenick1991/courtbooking/internal/logger"
	"github.com/Domenick1991/courtbooking/internal/repository"
	"github.com/Domenick1991/courtbooking/internal/service/availability"
	"github.com/Domenick1991/courtbooking/internal/service/booking"
	"github.com/Domenick1991/courtbooking/internal/service/venues"
	"github.com/Domenick1991/courtbooking/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	kafkaGo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type appCache interface {
	booking.Cache
	venues.VenueCache
}

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := migrations.Up(ctx, pool); err != nil {
		log.Fatal("apply migrations", zap.Error(err))
	}

	venuesTTL := time.Duration(cfg.Booking.VenuesCacheTTL) * time.Second
	var slotCache appCache
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis, venuesTTL)
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			log.Fatal("connect redis", zap.Error(err))
		}
		slotCache = redisCache
	} else {
		log.Warn("redis address not set, slot locks are local to this process")
		slotCache = cache.NewMemoryCache(venuesTTL)
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	defer producer.Close()

	venueRepo := repository.NewVenueRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)

	venueService := venues.NewVenueService(venueRepo, attemptRepo, slotCache,
		venues.WithRadiusKM(cfg.Booking.AlternativesRadiusKM),
		venues.WithLogger(log),
	)

	var source availability.DaySource = venueService
	if cfg.Availability.Simulate {
		source = availability.NewSimulatedSource(venueService, cfg.Availability.SeedAvailableRatio)
	}
	hub := availability.NewHub(source, log, availability.HubConfig{
		Simulate:      cfg.Availability.Simulate,
		FetchTimeout:  cfg.Availability.FetchTimeout(),
		RecentLimit:   cfg.Availability.RecentChangesLimit,
		RecencyWindow: cfg.Availability.RecencyWindow(),
		IdleTimeout:   cfg.Availability.SessionIdle(),
	})
	go hub.Run(ctx, cfg.Availability.AmbientInterval())

	bookingService := booking.NewBookingService(
		attemptRepo,
		venueService,
		slotCache,
		producer,
		cfg.Kafka.BookingTopic,
		time.Duration(cfg.Booking.HoldTTLMinutes)*time.Minute,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithAvailabilityTopic(cfg.Kafka.AvailabilityTopic),
		booking.WithLiveState(hub),
		booking.WithAlternatives(cfg.Booking.AlternativesLimit, cfg.Booking.AlternativesRadiusKM),
		booking.WithLockTTL(time.Duration(cfg.Booking.LockTTLSeconds)*time.Second),
		booking.WithLogger(log),
	)

	if cfg.Kafka.AvailabilityTopic != "" {
		// every instance needs every change, so each one reads with its own group
		host, _ := os.Hostname()
		groupID := fmt.Sprintf("%s-availability-%s", cfg.Kafka.GroupID, host)
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, groupID, cfg.Kafka.AvailabilityTopic, log)
		defer consumer.Close()

		go func() {
			err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
				change, err := kafka.DecodeSlotChange(msg)
				if err != nil {
					return err
				}
				hub.Apply(change)
				return nil
			})
			if err != nil {
				log.Error("availability consumer stopped", zap.Error(err))
			}
		}()
	}

	router := api.NewRouter(api.RouterConfig{
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		RefreshPerMinute: cfg.HTTP.RefreshPerMinute,
	}, log, venueService, hub, bookingService)

	if err := bootstrap.Run(ctx, cfg.HTTP.Address, router, log); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
