package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/radieske/inplay-mirror/internal/mirror/engine"
	"github.com/radieske/inplay-mirror/internal/mirror/extractor"
	"github.com/radieske/inplay-mirror/internal/mirror/gateway"
	httpapi "github.com/radieske/inplay-mirror/internal/mirror/http"
	"github.com/radieske/inplay-mirror/internal/mirror/producer"
	"github.com/radieske/inplay-mirror/internal/mirror/publisher"
	"github.com/radieske/inplay-mirror/internal/mirror/ws"
	"github.com/radieske/inplay-mirror/internal/shared/cache"
	"github.com/radieske/inplay-mirror/internal/shared/config"
	"github.com/radieske/inplay-mirror/internal/shared/logger"
	"github.com/radieske/inplay-mirror/internal/shared/metrics"
	"github.com/radieske/inplay-mirror/pkg/contracts/events"
)

func main() {
	// carrega config
	cfg := config.LoadFor("mirror-service")

	// inicia logger
	log, err := logger.NewWithFile(cfg.ServiceName, cfg.Env, logger.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service",
		zap.String("source", cfg.InplayURL),
		zap.Duration("full_resync_interval", cfg.FullResyncInterval),
		zap.Duration("fast_poll_interval", cfg.FastPollInterval),
	)

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Métricas Prometheus do espelho
	resyncs := prometheus.NewCounter(prometheus.CounterOpts{Name: "mirror_full_resyncs_total", Help: "ressincronizações completas aplicadas"})
	fixtures := prometheus.NewGauge(prometheus.GaugeOpts{Name: "mirror_fixtures", Help: "partidas no estado canônico"})
	changes := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "mirror_changes_total", Help: "eventos de mudança por campo"}, []string{"field"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "mirror_extraction_errors_total", Help: "falhas de extração por cadência"}, []string{"cadence"})
	stale := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "mirror_stale_updates_total", Help: "atualizações descartadas por índice/geração obsoletos"}, []string{"cadence"})
	broadcasts := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "mirror_broadcasts_total", Help: "payloads emitidos por tipo"}, []string{"kind"})
	observers := prometheus.NewGauge(prometheus.GaugeOpts{Name: "mirror_ws_observers", Help: "observadores WebSocket conectados"})
	droppedObs := prometheus.NewCounter(prometheus.CounterOpts{Name: "mirror_ws_observers_dropped_total", Help: "observadores lentos derrubados"})
	sinkErrors := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "mirror_sink_errors_total", Help: "falhas de publicação por sink"}, []string{"sink"})
	sinkDrops := prometheus.NewCounter(prometheus.CounterOpts{Name: "mirror_sink_drops_total", Help: "eventos descartados com a fila de sinks cheia"})
	sinkCircuit := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "mirror_sink_circuit_state", Help: "estado do circuit breaker por sink (0 fechado, 1 half-open, 2 aberto)"}, []string{"sink"})
	prometheus.MustRegister(resyncs, fixtures, changes, errorsBy, stale, broadcasts, observers, droppedObs, sinkErrors, sinkDrops, sinkCircuit)

	onCircuit := func(name string, to gobreaker.State) { sinkCircuit.WithLabelValues(name).Set(float64(to)) }

	// Sinks opcionais: Redis (réplicas de borda) e Kafka (histórico)
	var sinks []gateway.Sink
	var sinkNames []string
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisClient.Close()
		rp := publisher.NewRedisPublisher(redisClient, cfg.RedisPubSubChannel, cfg.RedisStateKey, cfg.StateTTL)
		sinks = append(sinks, publisher.WithBreaker("redis", rp, publisher.BreakerSettings{}, log, onCircuit))
		sinkNames = append(sinkNames, "redis")
		log.Info("redis sink ready", zap.String("channel", cfg.RedisPubSubChannel))
	}
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		kp, err := publisher.NewKafkaPublisher(brokers, cfg.TopicLiveData, log)
		if err != nil {
			log.Fatal("failed to create kafka publisher", zap.Error(err))
		}
		defer kp.Close()
		sinks = append(sinks, publisher.WithBreaker("kafka", kp, publisher.BreakerSettings{}, log, onCircuit))
		sinkNames = append(sinkNames, "kafka")
		log.Info("kafka sink ready", zap.String("topic", cfg.TopicLiveData))
	}

	// Estado canônico, hub de observadores e gateway
	eng := engine.New()
	hub := ws.NewHub(ws.OriginList(cfg.AllowedOrigins), log, cfg.ObserverQueue)
	gw := gateway.New(hub, eng, log, cfg.SinkQueue, sinks...)
	gw.OnBroadcast = func(kind string) { broadcasts.WithLabelValues(kind).Inc() }
	gw.OnSinkError = func(i int) { sinkErrors.WithLabelValues(sinkNames[i]).Inc() }
	gw.OnSinkDrop = func() { sinkDrops.Inc() }
	go gw.RunSinks(ctx)

	hub.OnConnected = gw.OnObserverConnected
	hub.OnCount = func(n int) { observers.Set(float64(n)) }
	hub.OnDropped = func() { droppedObs.Inc() }

	// Extractor HTML + observador de relógio/placar
	x := extractor.NewHTMLExtractor(extractor.HTMLConfig{
		URL:           cfg.InplayURL,
		Timeout:       cfg.ExtractorTimeout,
		RPS:           cfg.ExtractorRPS,
		Burst:         cfg.ExtractorBurst,
		WatchInterval: cfg.MutationWatchInterval,
	}, log)
	go x.Watch(ctx)

	sched := &producer.Scheduler{
		Engine:             eng,
		Extractor:          x,
		Gateway:            gw,
		Log:                log,
		FullResyncInterval: cfg.FullResyncInterval,
		FastPollInterval:   cfg.FastPollInterval,
		OnResync: func(n int) {
			resyncs.Inc()
			fixtures.Set(float64(n))
		},
		OnChange: func(f events.Field) { changes.WithLabelValues(string(f)).Inc() },
		OnError:  func(c string) { errorsBy.WithLabelValues(c).Inc() },
		OnStale:  func(c string) { stale.WithLabelValues(c).Inc() },
	}

	// Servidor de métricas e health: saudável depois da primeira ressincronização
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if eng.Generation() == 0 {
			return errors.New("waiting for first full resync")
		}
		if redisClient != nil {
			return redisClient.Ping(ctx).Err()
		}
		return nil
	}, log)

	// Servidor público: REST + /ws
	api := &httpapi.API{State: eng, WS: http.HandlerFunc(hub.HandleWS), AllowedOrigins: cfg.AllowedOrigins}
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("public server listening", zap.String("addr", srv.Addr), zap.String("paths", "/v1/fixtures,/ws"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("public server failed", zap.Error(err))
		}
	}()

	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("scheduler stopped with error", zap.Error(err))
	}
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	hub.Close()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("mirror-service stopped")
}
