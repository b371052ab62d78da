// Command arenacache runs the cache server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/raniellyferreira/arenacache"
	"github.com/raniellyferreira/arenacache/config"
	"github.com/raniellyferreira/arenacache/logging"
)

func main() {
	var configPath = flag.String("config", "", "Lua configuration file")
	var envFile = flag.String("env-file", ".env", "Dotenv file loaded before reading ARENACACHE_* variables")
	var listen = flag.String("listen", "", "Listen address (overrides config)")
	var metricsAddr = flag.String("metrics", "", "Serve Prometheus metrics on this address (overrides config)")
	var versionFlag = flag.Bool("version", false, "Print version and exit")

	flag.Parse()

	if *versionFlag {
		for k, v := range arenacache.VersionInfo() {
			fmt.Printf("%s: %s\n", k, v)
		}
		os.Exit(0)
	}

	if err := run(*configPath, *envFile, *listen, *metricsAddr); err != nil {
		log.Fatalf("arenacache: %v", err)
	}
}

func run(configPath, envFile, listen, metricsAddr string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	f := &config.File{}
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		f = loaded
	}
	if err := config.ApplyEnv(f); err != nil {
		return err
	}

	opts, err := f.Options()
	if err != nil {
		return err
	}
	if listen != "" {
		opts = append(opts, arenacache.WithListenAddr(listen))
	}
	if metricsAddr != "" {
		opts = append(opts, arenacache.WithMetricsAddr(metricsAddr))
	}

	level, err := logging.ParseLevel(f.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.Std(level)
	if f.StatsInterval > 0 {
		opts = append(opts, arenacache.WithStatsSink(statsLogger(logger), f.StatsInterval))
	}

	cache, err := arenacache.New(opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cache.Start(ctx); err != nil {
		_ = cache.Close()
		return err
	}

	<-ctx.Done()
	logger.Info("Shutting down")
	return cache.Close()
}

// statsLogger logs a one-line summary of every snapshot
func statsLogger(logger logging.Logger) arenacache.StatsSink {
	return arenacache.StatsSinkFunc(func(s arenacache.Stats) {
		t := s.Store.Total
		logger.Info("stats",
			logging.F("keys", t.Keys),
			logging.F("bytes", t.Bytes),
			logging.F("hit_rate", fmt.Sprintf("%.4f", t.HitRate())),
			logging.F("evictions", t.Evictions),
			logging.F("clients", s.Server.ConnectedClients),
			logging.F("commands", s.Server.TotalCommands),
			logging.F("pool_hit_rate", fmt.Sprintf("%.4f", s.Server.Pool.HitRate())),
		)
	})
}
