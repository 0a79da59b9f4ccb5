package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/inplay-mirror/internal/history/consumer"
	"github.com/radieske/inplay-mirror/internal/history/repository"
	"github.com/radieske/inplay-mirror/internal/shared/config"
	"github.com/radieske/inplay-mirror/internal/shared/db"
	"github.com/radieske/inplay-mirror/internal/shared/kafka"
	"github.com/radieske/inplay-mirror/internal/shared/logger"
	"github.com/radieske/inplay-mirror/internal/shared/metrics"
)

func main() {
	cfg := config.LoadFor("history-worker")
	log, err := logger.NewWithFile(cfg.ServiceName, cfg.Env, logger.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	brokers := cfg.KafkaBrokerList()
	if len(brokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required")
	}

	// Inicializa Postgres e garante as tabelas de histórico
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	repo := repository.NewPostgresRepo(pg)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal("ensure schema", zap.Error(err))
	}

	// Consumer group próprio: cada worker de histórico lê o stream inteiro uma vez
	reader := kafka.NewReader(brokers, cfg.TopicLiveData, "history-worker")
	defer reader.Close()

	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "history_messages_consumed_total", Help: "mensagens consumidas"})
	persist := prometheus.NewCounter(prometheus.CounterOpts{Name: "history_db_writes_total", Help: "linhas gravadas (mudanças + ressincronizações)"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "history_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, persist, errorsBy)

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Store:      repo,
		OnConsumed: func() { consumed.Inc() },
		OnPersist:  func() { persist.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	}, log)

	log.Info("history-worker started", zap.String("topic", cfg.TopicLiveData))
	if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("processor stopped with error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("history-worker stopped")
}
