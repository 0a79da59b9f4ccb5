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
	"go.uber.org/zap"

	"github.com/radieske/inplay-mirror/internal/edge/replica"
	"github.com/radieske/inplay-mirror/internal/edge/upstream"
	"github.com/radieske/inplay-mirror/internal/mirror/gateway"
	httpapi "github.com/radieske/inplay-mirror/internal/mirror/http"
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
	cfg := config.LoadFor("edge-service")

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

	log.Info("starting service", zap.String("env", cfg.Env))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	relayed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "edge_relayed_total", Help: "payloads repassados aos observadores"}, []string{"kind"})
	outOfOrder := prometheus.NewCounter(prometheus.CounterOpts{Name: "edge_out_of_order_total", Help: "payloads ignorados por ts antigo"})
	reconnects := prometheus.NewCounter(prometheus.CounterOpts{Name: "edge_upstream_reconnects_total", Help: "reconexões ao /ws do mirror"})
	observers := prometheus.NewGauge(prometheus.GaugeOpts{Name: "edge_ws_observers", Help: "observadores WebSocket conectados"})
	droppedObs := prometheus.NewCounter(prometheus.CounterOpts{Name: "edge_ws_observers_dropped_total", Help: "observadores lentos derrubados"})
	prometheus.MustRegister(relayed, outOfOrder, reconnects, observers, droppedObs)

	rep := replica.New()
	hub := ws.NewHub(ws.OriginList(cfg.AllowedOrigins), log, cfg.ObserverQueue)
	gw := gateway.New(hub, rep, log, cfg.SinkQueue)
	gw.OnBroadcast = func(kind string) { relayed.WithLabelValues(kind).Inc() }
	hub.OnConnected = gw.OnObserverConnected
	hub.OnCount = func(n int) { observers.Set(float64(n)) }
	hub.OnDropped = func() { droppedObs.Inc() }

	// cada payload aceito pela réplica é repassado aos observadores locais
	// aplicar + repassar num único Sequence: um observador novo não recebe
	// o estado da réplica antes do relay que o produziu
	handle := func(ld events.LiveData) {
		gw.Sequence(func() {
			if !rep.Apply(ld) {
				outOfOrder.Inc()
				return
			}
			gw.Relay(ld)
		})
	}

	var health metrics.HealthFunc
	if cfg.UpstreamWSURL != "" {
		// Modo upstream: segue o /ws do mirror, que manda o estado completo a cada conexão
		client := &upstream.WSClient{
			URL:         cfg.UpstreamWSURL,
			Log:         log,
			Handle:      handle,
			OnReconnect: func() { reconnects.Inc() },
		}
		go client.Start(ctx)
		health = func(context.Context) error {
			if rep.LastTs() == 0 {
				return errors.New("no state received from upstream")
			}
			return nil
		}
		log.Info("following upstream websocket", zap.String("url", cfg.UpstreamWSURL))
	} else {
		// Modo Redis: parte do último estado salvo e segue o Pub/Sub
		if cfg.RedisAddr == "" {
			log.Fatal("REDIS_ADDR or UPSTREAM_WS_URL is required")
		}
		redisClient, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisClient.Close()
		log.Info("redis connected")

		if ld, ok, err := publisher.LoadState(ctx, redisClient, cfg.RedisStateKey); err != nil {
			log.Warn("failed to load last state", zap.Error(err))
		} else if ok {
			rep.Apply(ld)
			log.Info("replica primed", zap.Int("fixtures", len(ld.Data)), zap.Int64("ts", ld.Ts))
		}

		ws.StartRedisSubscriber(ctx, redisClient, cfg.RedisPubSubChannel, log, handle)
		health = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, health, log)

	api := &httpapi.API{State: rep, WS: http.HandlerFunc(hub.HandleWS), AllowedOrigins: cfg.AllowedOrigins}
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("edge server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("edge server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	hub.Close()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("edge-service stopped")
}
