package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/inplay-mirror/internal/shared/config"
	"github.com/radieske/inplay-mirror/internal/shared/logger"
	"github.com/radieske/inplay-mirror/internal/shared/metrics"
	"github.com/radieske/inplay-mirror/internal/simulator/page"
)

var (
	// Métricas Prometheus do simulador
	pageRenders = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulator_page_renders_total",
		Help: "Total de páginas in-play servidas",
	})
	liveMatches = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "simulator_matches",
		Help: "Partidas listadas na página",
	})
)

func main() {
	cfg := config.LoadFor("inplay-simulator")
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(pageRenders, liveMatches)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	market := page.New(cfg.SimFixtures, time.Now().UnixNano())
	liveMatches.Set(float64(market.Len()))

	// Avança o relógio das partidas; cada tick equivale a um minuto de jogo
	go func() {
		t := time.NewTicker(cfg.SimTick)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				market.Tick(60)
				liveMatches.Set(float64(market.Len()))
			}
		}
	}()

	render := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := market.Render(w); err != nil {
			log.Warn("render failed", zap.Error(err))
			return
		}
		pageRenders.Inc()
	}

	r := chi.NewRouter()
	r.Get("/", render)
	r.Get("/betting/en-gb/in-play/football", render)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil, log)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("inplay page listening", zap.String("addr", srv.Addr), zap.Int("matches", market.Len()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("simulator server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("inplay-simulator stopped")
}
