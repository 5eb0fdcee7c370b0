package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/darkweak/offline-gateway/configuration"
	"github.com/darkweak/offline-gateway/helpers"
	"github.com/darkweak/offline-gateway/pkg/lifecycle"
	"github.com/darkweak/offline-gateway/pkg/middleware"
	"github.com/darkweak/offline-gateway/pkg/storage"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

type gateway struct {
	controller *lifecycle.Controller
	router     http.Handler
	logger     *zap.Logger
}

func newGateway(c *configuration.Configuration, transport http.RoundTripper) (*gateway, error) {
	logger := helpers.InitializeLogger(c)

	s, err := storage.NewStorage(c)
	if err != nil {
		return nil, err
	}
	controller := lifecycle.NewController(s, transport, logger)

	handler, err := middleware.NewOfflineGatewayHandler(c, controller, transport)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Handle("/*", handler)

	return &gateway{
		controller: controller,
		router:     router,
		logger:     logger,
	}, nil
}

// install keeps serving on failure, the previous worker stays active
func (g *gateway) install(ctx context.Context, c *configuration.Configuration) {
	if c.GetLogger() == nil {
		c.SetLogger(g.logger)
	}
	if _, err := g.controller.Install(ctx, c); err != nil {
		g.logger.Sugar().Errorf("Install of the version %s aborted: %v", c.GetVersion(), err)
	}
}

func serve(ctx context.Context, c *configuration.Configuration, opts *options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, err := newGateway(c, http.DefaultTransport)
	if err != nil {
		return err
	}
	g.install(ctx, c)

	if opts.watch {
		go func() {
			if e := configuration.Watch(ctx, opts.configPath, g.logger, func(changed *configuration.Configuration) {
				g.install(ctx, changed)
			}); e != nil {
				g.logger.Sugar().Errorf("Impossible to watch the configuration %s: %v", opts.configPath, e)
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + c.GetPort().Web,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		g.logger.Info("Shutting down the offline gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if e := srv.Shutdown(shutdownCtx); e != nil {
			g.logger.Sugar().Warnf("Shutdown error: %v", e)
		}
	}()

	g.logger.Sugar().Infof("Offline gateway listening on %s", srv.Addr)
	if err = srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	g.controller.Wait()

	return nil
}
