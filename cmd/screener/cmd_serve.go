package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/persistorai/screener/internal/api"
	"github.com/persistorai/screener/internal/config"
	"github.com/persistorai/screener/internal/service"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the screening HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			return serve(ctx, cfg, newLogger(cfg.LogLevel, true))
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	gin.SetMode(gin.ReleaseMode)

	sc, err := searchConfig(cfg)
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	src, err := newSource(cfg, "", log)
	if err != nil {
		return err
	}

	var opts []service.ScreenOption
	if st.checkpoints != nil {
		opts = append(opts, service.WithCheckpoints(st.checkpoints))
	}

	var worker *service.ReportWorker
	if st.reports != nil {
		worker = service.NewReportWorker(st.reports, log, 0)
		opts = append(opts, service.WithReports(st.reports, worker))
	}

	screener := service.NewScreenService(sc, src, log, opts...)

	srv := &http.Server{
		Handler: api.NewRouter(ctx, &api.RouterDeps{
			Log:         log,
			Pool:        st.pool,
			Screener:    screener,
			CORSOrigins: cfg.CORSOrigins,
			Version:     config.Version,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr(), err)
	}

	var bg backgroundWorker
	if worker != nil {
		bg = worker
	}

	return runServer(ctx, srv, ln, bg, log)
}

type backgroundWorker interface {
	Run(ctx context.Context)
}

// runServer serves srv on ln until ctx is done, then shuts it down. worker is
// stopped only after Shutdown returns, so requests still finishing during
// shutdown can hand it work.
func runServer(ctx context.Context, srv *http.Server, ln net.Listener, worker backgroundWorker, log *logrus.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorker()

	if worker != nil {
		g.Go(func() error {
			worker.Run(workerCtx)
			return nil
		})
	}

	g.Go(func() error {
		log.WithField("addr", ln.Addr().String()).Info("screener listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		defer stopWorker()

		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
