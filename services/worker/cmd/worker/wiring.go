package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"yourarch/internal/ratelimit"
	"yourarch/internal/throttle"
	"yourarch/pkg/storage"
	"yourarch/services/worker/internal/app"
	"yourarch/services/worker/internal/config"
)

// buildApp wires the worker from config. The returned closers must be closed
// after the app.
func buildApp(cfg config.FileConfig) (*app.App, []io.Closer, error) {
	var closers []io.Closer
	throttleUnit := seconds(cfg.ThrottleUnitSeconds)

	throttleOpts := []throttle.Option{throttle.WithUnit(throttleUnit)}
	var shared *ratelimit.FixedWindowLimiter
	if cfg.RedisAddr != "" {
		mirror, err := throttle.NewRedisMirror(cfg.RedisAddr, cfg.RedisPassword, prefixed(cfg.RedisPrefix, "throttle"), time.Hour)
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, mirror)
		throttleOpts = append(throttleOpts, throttle.WithMirror(mirror))

		if cfg.SharedRequestsPerMinute > 0 {
			shared, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword,
				prefixed(cfg.RedisPrefix, "ratelimit:platform"), cfg.SharedRequestsPerMinute, time.Minute)
			if err != nil {
				return nil, closers, err
			}
			closers = append(closers, shared)
		}
	}

	var archive app.TranscriptArchiver
	if cfg.MinioEndpoint != "" {
		objects, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, closers, fmt.Errorf("init transcript archive: %w", err)
		}
		archive = storage.NewTranscriptArchive(objects)
	}

	core, err := app.New(app.Config{
		DatabaseURL:     cfg.DatabaseURL,
		Throttle:        throttle.New(throttleOpts...),
		Archive:         archive,
		PlatformBaseURL: cfg.PlatformBaseURL,
		UserAgent:       cfg.UserAgent,
		AcceptLanguage:  cfg.AcceptLanguage,
		FetchTimeout:    seconds(cfg.FetchTimeoutSeconds),
		Limiter:         ratelimit.Chain(ratelimit.NewLocalLimiter(cfg.RequestsPerMinute), shared),
		BatchSize:       cfg.BatchSize,
		Concurrency:     cfg.Concurrency,
		IdleWait:        seconds(cfg.IdleWaitSeconds),
		Cooldown:        seconds(cfg.CooldownSeconds),
		ThrottleUnit:    throttleUnit,
	})
	if err != nil {
		return nil, closers, fmt.Errorf("init app: %w", err)
	}
	return core, closers, nil
}

func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			slog.Warn("close failed", "err", err)
		}
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func prefixed(prefix, name string) string {
	if prefix == "" {
		prefix = "yourarch"
	}
	return prefix + ":" + name
}
