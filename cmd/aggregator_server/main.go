package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"local-events-aggregator/internal/app"
	"local-events-aggregator/internal/config"
)

func main() {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.New(ctx, cfg, reg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	var scheduler *cron.Cron
	if cfg.BatchSchedule != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.BatchSchedule, func() {
			resp, status := a.Handler.ScheduledBatch(ctx)
			log.Printf("Scheduled batch finished with status %d: %d processed, %d failed, %d new events",
				status, deref(resp.CitiesProcessed), deref(resp.CitiesFailed), resp.TotalEvents)
		})
		if err != nil {
			log.Fatalf("Invalid BATCH_SCHEDULE %q: %v", cfg.BatchSchedule, err)
		}
		scheduler.Start()
		log.Printf("Scheduled batch passes: %s", cfg.BatchSchedule)
	}

	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           a.Handler.Router(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Aggregator API listening on %s", cfg.ServerAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
