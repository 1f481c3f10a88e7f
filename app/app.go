package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/libtrack/borrowing-service/config"
	"github.com/libtrack/borrowing-service/internal/checkout"
	"github.com/libtrack/borrowing-service/internal/handler"
	"github.com/libtrack/borrowing-service/internal/notify"
	"github.com/libtrack/borrowing-service/internal/repository"
	"github.com/libtrack/borrowing-service/internal/server"
	"github.com/libtrack/borrowing-service/internal/service"
	"github.com/libtrack/borrowing-service/migrations"
	"github.com/libtrack/borrowing-service/pkg/kafka"
	"github.com/libtrack/borrowing-service/pkg/logger"
	"github.com/libtrack/borrowing-service/pkg/postgres"
)

func Run(cfg *config.Config) error {
	log := logger.NewLogger(cfg.Log, "library")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return fmt.Errorf("db init %v", err)
	}
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		return fmt.Errorf("repo %v", err)
	}

	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		return fmt.Errorf("kafka.NewProducer %v", err)
	}

	provider := checkout.NewClient(cfg.Checkout, log)
	svc := service.NewService(repo, provider, service.NewEnqueuer(producer), log)

	sink := notify.NewClient(cfg.Telegram, log)
	consumer, err := kafka.NewConsumer(cfg.Kafka, kafka.NotifyConsumerGroup)
	if err != nil {
		return fmt.Errorf("kafka.NewConsumer %v", err)
	}

	h := handler.New(svc, svc, svc, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Run(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return kafka.Consume(ctx, consumer, handler.NewConsumer(sink.SendMessage, log), kafka.NotifyTopic)
	})
	g.Go(func() error {
		return sweepLoop(ctx, svc, cfg.Sweep.Interval, log)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Debug("Graceful shutdown")

		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()

		if err := srv.Stop(closeCtx); err != nil {
			log.Error("srv.Stop", zap.Error(err))
		}
		if err := consumer.Close(); err != nil {
			log.Error("consumer.Close", zap.Error(err))
		}
		if err := producer.Close(); err != nil {
			log.Error("producer.Close", zap.Error(err))
		}
		db.Close()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("Graceful shutdown finished")
	return nil
}

// sweepLoop runs the overdue sweep on a fixed interval until shutdown.
func sweepLoop(ctx context.Context, svc *service.Service, interval time.Duration, log *zap.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := svc.SweepOverdue(ctx)
			if err != nil {
				log.Error("SweepOverdue", zap.Error(err))
				continue
			}
			log.Info("overdue sweep finished", zap.Int("overdue", n))
		case <-ctx.Done():
			return nil
		}
	}
}
