package main

import (
	"context"
	"io"
	"math/rand"
	"time"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"

	"routeopt/internal/api"
	"routeopt/internal/config"
	"routeopt/internal/logging"
	"routeopt/internal/opt"
	"routeopt/internal/progress"
	"routeopt/internal/store"
	"routeopt/internal/webhooks"
)

// dependencies are the optional backends a run reports to.
type dependencies struct {
	store     store.Store
	broker    progress.EventBroker
	publisher *progress.Publisher
	recorder  *store.Recorder
	webhooks  *webhooks.Worker
	closers   []io.Closer
}

// newDependencies connects to Postgres and Redis when they are configured,
// and falls back to in-process implementations otherwise. An unreachable
// Redis is not fatal; an unreachable database is.
func newDependencies(ctx context.Context, cfg config.Config, log logr.Logger) (*dependencies, error) {
	d := &dependencies{}

	if cfg.Database.URL != "" {
		pg, err := store.NewPostgres(cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, pg)
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = pg.Migrate(migrateCtx)
		cancel()
		if err != nil {
			_ = d.Close()
			return nil, err
		}
		d.store = pg
		log.V(logging.DEFAULT).Info("Recording rounds in Postgres")
	} else {
		d.store = store.NewMemory()
	}

	d.broker = progress.NewBroker()
	if cfg.Redis.URL != "" {
		rb, err := progress.NewRedisBroker(cfg.Redis.URL, cfg.Redis.Channel, log.WithName("redis"))
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err = rb.Ping(pingCtx)
			cancel()
			if err != nil {
				_ = rb.Close()
			}
		}
		if err != nil {
			log.Info("Failed to connect to Redis, using in-process progress events", "reason", err.Error())
		} else {
			d.broker = rb
			d.closers = append(d.closers, rb)
			log.V(logging.DEFAULT).Info("Publishing progress to Redis", "channel", cfg.Redis.Channel)
		}
	}

	d.publisher = progress.NewPublisher(d.broker, cfg.Progress.RatePerSecond, cfg.Progress.Burst, log.WithName("progress"))
	d.closers = append(d.closers, closerFunc(d.publisher.Close))
	d.recorder = &store.Recorder{Store: d.store, Log: log.WithName("store")}
	if len(cfg.Webhooks.URLs) > 0 {
		d.webhooks = webhooks.NewWorker(cfg.Webhooks.URLs, cfg.Webhooks.Secret, cfg.Webhooks.MaxAttempts, log.WithName("webhooks"))
		d.webhooks.Start(context.WithoutCancel(ctx))
		d.closers = append(d.closers, closerFunc(func() error { d.webhooks.Stop(); return nil }))
	}
	return d, nil
}

func (d *dependencies) sink() opt.ProgressSink {
	sinks := []opt.ProgressSink{d.publisher, d.recorder}
	if d.webhooks != nil {
		sinks = append(sinks, d.webhooks)
	}
	return progress.Tee(sinks...)
}

func (d *dependencies) server(status api.Status, log logr.Logger) *api.Server {
	return &api.Server{Status: status, Store: d.store, Broker: d.broker, Log: log}
}

func (d *dependencies) Close() error {
	var err error
	for i := len(d.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, d.closers[i].Close())
	}
	d.closers = nil
	return err
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func newRand(seed int64) *rand.Rand { return rand.New(rand.NewSource(seed)) }
