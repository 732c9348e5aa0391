package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avolkoff/tourbooking/config"
	"github.com/avolkoff/tourbooking/internal/bootstrap"
	"github.com/avolkoff/tourbooking/internal/cache"
	"github.com/avolkoff/tourbooking/internal/kafka"
	"github.com/avolkoff/tourbooking/internal/repository"
	"github.com/avolkoff/tourbooking/internal/service/assignment"
	"github.com/avolkoff/tourbooking/internal/service/booking"
	"github.com/avolkoff/tourbooking/pkg/logger"
	"github.com/avolkoff/tourbooking/pkg/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	log := logger.NewLogger()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatal("load config", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal("connect postgres", "error", err)
	}
	defer pool.Close()

	m := metrics.NewMetrics(cfg.Metrics.Namespace)
	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Assignment.GuidesCacheTTLSeconds)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	guideRepo := repository.NewGuideRepository(pool)
	availabilityRepo := repository.NewAvailabilityRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)

	assignmentService := assignment.NewAssignmentService(
		guideRepo,
		availabilityRepo,
		bookingRepo,
		log,
		assignment.WithCache(redisCache),
		assignment.WithMetrics(m),
	)

	reminderGate := booking.NewReminderGate(
		bookingRepo,
		producer,
		log,
		cfg.Kafka.NotificationsTopic,
		time.Duration(cfg.Reminder.DebounceMinutes)*time.Minute,
		time.Duration(cfg.Reminder.LeadHours)*time.Hour,
		time.Duration(cfg.Reminder.WindowHours)*time.Hour,
		booking.WithReminderLock(redisCache),
		booking.WithReminderMetrics(m),
	)

	bookingService := booking.NewBookingService(
		bookingRepo,
		guideRepo,
		producer,
		log,
		cfg.Kafka.BookingEventsTopic,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithReminderTrigger(reminderGate),
		booking.WithMetrics(m),
	)

	if err := bootstrap.Run(ctx, cfg, assignmentService, bookingService, guideRepo); err != nil {
		log.Fatal("server error", "error", err)
	}
}
