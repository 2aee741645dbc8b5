package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Boflo-hub/pima-poa-league/internal/api"
	"github.com/Boflo-hub/pima-poa-league/internal/config"
	"github.com/Boflo-hub/pima-poa-league/internal/forecast"
	"github.com/Boflo-hub/pima-poa-league/internal/scheduler"
)

func runServe(ctx context.Context, cfg *config.Config, log *logrus.Logger) int {
	log.WithFields(logrus.Fields{
		"port":   cfg.Port,
		"env":    cfg.Env,
		"source": cfg.DataSource,
	}).Info("Starting forecast service")

	src, closeSrc, err := openSource(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("Failed to open season source")
		return 1
	}
	defer closeSrc()

	c, closeCache := openCache(ctx, cfg, log)
	defer closeCache()

	svc := forecast.NewService(src, c, cfg.CacheTTL, simOptions(cfg), cfg.SimMaxRuns, cfg.SimMaxWorkers, log)

	if season := cfg.ServedSeason(); cfg.RefreshSchedule != "" && season != "" {
		sched, err := scheduler.New(svc, season, cfg.RefreshSchedule, time.Minute, log)
		if err != nil {
			log.WithError(err).Error("Failed to schedule forecast refresh")
			return 1
		}
		if err := sched.Start(); err != nil {
			log.WithError(err).Error("Failed to start scheduler")
			return 1
		}
		defer sched.Stop()
		// warm the cache before the first tick
		go sched.RunNow()
	}

	handlers := api.NewHandlers(svc, log)
	router := api.NewRouter(handlers, api.RateLimit{Limit: cfg.RateLimit, Burst: cfg.RateBurst}, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("HTTP server failed")
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
		return 1
	}
	log.Info("Server exited")
	return 0
}
