package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/storyweb/internal/db"
	"github.com/OFFIS-RIT/storyweb/internal/metrics"
	"github.com/OFFIS-RIT/storyweb/internal/queue"
	"github.com/OFFIS-RIT/storyweb/internal/util"
	"github.com/OFFIS-RIT/storyweb/pkg/cluster"
	"github.com/OFFIS-RIT/storyweb/pkg/leaselock"
	"github.com/OFFIS-RIT/storyweb/pkg/logger"
	"github.com/OFFIS-RIT/storyweb/pkg/logger/console"
	"github.com/OFFIS-RIT/storyweb/pkg/ontology"
	storepgx "github.com/OFFIS-RIT/storyweb/pkg/store/pgx"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	util.LoadEnv()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  util.GetEnvBool("DEBUG", false),
		Format: util.GetEnv("LOG_FORMAT"),
	})
	logger.Init(consoleLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Fatal("Worker stopped", "err", err)
	}
	logger.Info("Shutdown signal received, exiting...")
}

func run(ctx context.Context) error {
	databaseURL := util.GetEnv("DATABASE_URL")
	if util.GetEnvBool("MIGRATE_ON_START", true) {
		if err := db.Migrate(databaseURL); err != nil {
			return err
		}
	}
	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	onto, err := ontology.Default()
	if path := util.GetEnv("ONTOLOGY_PATH"); path != "" {
		onto, err = ontology.Load(path)
	}
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	engine := cluster.NewEngine(
		storepgx.NewStorage(pool),
		onto,
		cluster.WithRecorder(m),
		cluster.WithBatchSize(util.GetEnvInt("AUTO_MERGE_BATCH_SIZE", 10000)),
	)

	// Init rabbitmq
	conn, err := queue.Dial(ctx, queue.URLFromEnv())
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		return err
	}

	handler := &queue.Handler{
		Ingester: engine,
		Merger:   engine,
		Locks:    leaselock.New(pool),
		LeaseTTL: util.GetEnvDuration("AUTO_MERGE_LEASE_TTL", 5*time.Minute),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return queue.Consume(ctx, conn, queue.Queues, handler.Handle, m)
	})

	if spec := util.GetEnv("AUTO_MERGE_SCHEDULE"); spec != "" {
		schedule, err := queue.NewAutoMergeSchedule(
			spec,
			queue.NewChannelPublisher(ch),
			util.GetEnvBool("AUTO_MERGE_CHECK_LINKS", true),
		)
		if err != nil {
			return err
		}
		schedule.Start()
		logger.Info("[AutoMerge] Scheduled", "spec", spec)
		g.Go(func() error {
			<-ctx.Done()
			<-schedule.Stop().Done()
			return nil
		})
	}

	if addr := util.GetEnv("METRICS_ADDR"); addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("Serving metrics", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
