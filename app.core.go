package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type AppProvider interface {
	Run() error
	Serve() func() error
	Stop(context.Context, context.Context) func() error
}

type App struct {
	logger         *zap.Logger
	config         *Config
	server         *http.Server
	cleanups       []func()
	queueConsumers []func(context.Context) error
}

// NewApp provides an instance of App.
func NewApp() (AppProvider, error) {
	config, err := LoadAndInitConfigs("./config.yml", "./config.env", GitCommit, GitTag, BuildTime)
	if err != nil {
		return nil, fmt.Errorf("failed to setup app configuration: %s", err)
	}

	// ensure the logs folder exists and Setup the logging module.
	if err = os.MkdirAll(config.LogFolder, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create logging folder: %s", err)
	}
	clock := NewClock(config.IsProduction)
	logWriter := NewRSyncWriter(config, clock)
	logger, flusher := SetupLogging(config, logWriter, NewTickClock(clock))

	app := &App{
		logger: logger,
		config: config,
		cleanups: []func(){
			func() {
				if ferr := flusher(); ferr != nil {
					fmt.Println(ferr)
				}
			},
			func() {
				if cerr := logWriter.Close(); cerr != nil {
					fmt.Println("error during closing of log file: ", cerr)
				}
			},
		},
	}

	storage, err := app.setupStorage()
	if err != nil {
		app.Clean()
		return nil, err
	}

	idsHandler := NewIDsHandler()
	catalog := NewCatalogStore(logger, storage, idsHandler)
	sessions := NewSessionStore(logger, storage)

	apiService := NewAPIHandler(
		logger,
		config,
		&Statistics{
			version:   config.GitTag,
			container: IsAppRunningInDocker(),
			started:   clock.Now(),
			runtime:   runtime.Version(),
			platform:  runtime.GOOS + "/" + runtime.GOARCH,
		},
		clock,
		idsHandler,
		catalog,
		sessions,
	)

	// Use git commit in case the tag is not set.
	if config.GitTag == "" {
		apiService.stats.version = config.GitCommit
	}

	// Build the map of middlewares stacks.
	middlewaresPublic, middlewaresOps := apiService.MiddlewaresStacks()

	// Configure the endpoints with their handlers and middlewares.
	router := apiService.SetupRoutes(httprouter.New(),
		&MiddlewareMap{
			public: middlewaresPublic.Chain,
			ops:    middlewaresOps.Chain,
		},
	)

	// Wrap the router with the default http timeout handler.
	routerWithTimeout := http.TimeoutHandler(
		router,
		config.Server.RequestTimeout,
		"Timeout. Processing taking too long. Please reach out to support.")

	app.server = &http.Server{
		Addr:           fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port),
		Handler:        routerWithTimeout,
		ReadTimeout:    config.Server.ReadTimeout,
		WriteTimeout:   config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // Max headers size : 1MB
	}

	return app, nil
}

// setupStorage connects the configured backend. With the mirror enabled each
// redis write is queued then replayed into the boltdb file by a consumer.
func (app *App) setupStorage() (KVStore, error) {
	switch app.config.Storage.Backend {
	case BackendMemory:
		return NewMemoryKVStore(), nil

	case BackendBolt:
		boltStore, err := app.setupBoltStore()
		if err != nil {
			return nil, err
		}
		return boltStore, nil

	case BackendSQLite:
		db, err := GetSQLiteClient(&app.config.SQLite)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite file: %s", err)
		}
		sqliteStore := NewSQLiteKVStore(app.logger, db)
		app.cleanups = append(app.cleanups, func() {
			if cerr := sqliteStore.Close(); cerr != nil {
				app.logger.Error("failed to close sqlite file", zap.Error(cerr))
			}
		})
		return sqliteStore, nil

	case BackendPostgres:
		pool, err := GetPostgresPool(context.Background(), &app.config.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres server: %s", err)
		}
		pgStore := NewPostgresKVStore(app.logger, pool, app.config.Postgres.Timeout)
		app.cleanups = append(app.cleanups, pgStore.Close)
		return pgStore, nil

	case BackendRedis:
		redisClient, err := GetRedisClient(&app.config.Redis)
		if err != nil {
			_ = redisClient.Close()
			return nil, fmt.Errorf("failed to connect to redis server: %s", err)
		}
		app.cleanups = append(app.cleanups, func() { _ = redisClient.Close() })

		var storage KVStore = NewRedisKVStore(app.logger, redisClient, app.config.Redis.HashName)
		if !app.config.Storage.MirrorEnable {
			return storage, nil
		}

		replica, err := app.setupBoltStore()
		if err != nil {
			return nil, err
		}
		queue := NewRedisQueue(redisClient)
		consumer := NewMirrorConsumer(app.logger, queue, replica)
		app.queueConsumers = append(app.queueConsumers, func(ctx context.Context) error {
			return consumer.Consume(ctx, MirrorQueue)
		})
		return NewMirroredKVStore(app.logger, storage, queue), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, app.config.Storage.Backend)
}

func (app *App) setupBoltStore() (*boltKVStore, error) {
	boltDBClient, err := GetBoltDBClient(&app.config.BoltDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb file: %s", err)
	}
	boltStore := NewBoltKVStore(app.logger, &app.config.BoltDB, boltDBClient)
	app.cleanups = append(app.cleanups, func() {
		if cerr := boltStore.Close(); cerr != nil {
			app.logger.Error("failed to close boltdb file", zap.Error(cerr))
		}
	})
	return boltStore, nil
}

// Run starts the api web server and a goroutine which is responsible to stop it.
func (app *App) Run() error {
	defer app.Clean()
	nCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(nCtx)

	g.Go(app.ConsumeQueues(gCtx, g))
	g.Go(app.Serve())
	g.Go(app.Stop(nCtx, gCtx))

	err := g.Wait()
	app.logger.Info("api server stopped",
		zap.String("app.host", app.config.Server.Host),
		zap.String("app.port", app.config.Server.Port),
		zap.Error(err),
	)
	return err
}

// Clean calls all registered cleanups functions in reverse order.
func (app *App) Clean() {
	for i := len(app.cleanups) - 1; i >= 0; i-- {
		app.cleanups[i]()
	}
}

// Serve starts the api web server. It returned error
// will be caught by the errorgroup.
func (app *App) Serve() func() error {
	return func() error {
		app.logger.Info("api server starting",
			zap.String("app.host", app.config.Server.Host),
			zap.String("app.port", app.config.Server.Port),
			zap.String("app.storage", app.config.Storage.Backend),
			zap.Bool("app.mirror", app.config.Storage.MirrorEnable),
		)
		err := app.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return err
	}
}

// Stop listens for the group context and triggers the server graceful shutdown.
// It states the reason of its call. We proceed with a brutal shutdown if the
// the graceful did not complete successfully. We explicitly return `nil` to
// allow the errorgroup catches only the `Serve` method result.
func (app *App) Stop(nCtx, gCtx context.Context) func() error {
	return func() error {
		<-gCtx.Done()

		if nCtx.Err() != nil {
			app.logger.Info("api server stopping. reason: requested to stop")
		} else {
			app.logger.Info("api server stopping. reason: errored at running")
		}

		sCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()
		err := app.server.Shutdown(sCtx)
		switch {
		case err == nil, errors.Is(err, http.ErrServerClosed):
			app.logger.Info("api server graceful shutdown succeeded")
		case errors.Is(err, context.DeadlineExceeded):
			app.logger.Info("api server graceful shutdown timed out")
		default:
			app.logger.Info("api server graceful shutdown failed", zap.Error(err))
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Info("api server going to force shutdown", zap.Error(app.server.Close()))
		}
		return nil
	}
}

// ConsumeQueues runs all queue consumers into separate controlled goroutines.
func (app *App) ConsumeQueues(gCtx context.Context, g *errgroup.Group) func() error {
	return func() error {
		for _, consume := range app.queueConsumers {
			consume := consume
			g.Go(func() error {
				return consume(gCtx)
			})
		}
		return nil
	}
}
