package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avolkoff/tourbooking/config"
	"github.com/avolkoff/tourbooking/internal/cache"
	"github.com/avolkoff/tourbooking/internal/email"
	"github.com/avolkoff/tourbooking/internal/kafka"
	"github.com/avolkoff/tourbooking/internal/repository"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal("connect postgres", "error", err)
	}
	defer pool.Close()

	m := metrics.NewMetrics(cfg.Metrics.Namespace)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Assignment.GuidesCacheTTLSeconds)*time.Second)

	bookingRepo := repository.NewBookingRepository(pool)
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

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.NotificationsTopic, log)
	defer consumer.Close()

	emailSender := email.NewSender(log)

	go func() {
		if err := consumer.Consume(ctx, func(ctx context.Context, event kafka.BookingEvent) error {
			if err := emailSender.Send(ctx, event); err != nil {
				// A single undeliverable email must not stall the consumer.
				log.Error("email send failed", "booking", event.Reference, "error", err)
			}
			return nil
		}); err != nil {
			log.Warn("consumer stopped", "error", err)
		}
	}()

	sweepTicker := time.NewTicker(time.Duration(cfg.Worker.ReminderSweepMinutes) * time.Minute)
	defer sweepTicker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sweepTicker.C:
			if err := reminderGate.Sweep(ctx); err != nil {
				log.Error("reminder sweep error", "error", err)
			}
		case s := <-sig:
			log.Info("received signal, shutting down", "signal", s.String())
			return
		}
	}
}
