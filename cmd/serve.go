package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/inference-sim/pagesim/sim/fleet"
)

var (
	configPath  string        // Optional YAML config file
	shutdownTTL time.Duration // Grace period for in-flight requests
)

// serveCmd runs the HTTP service
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the page replacement engines over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadServiceConfig(configPath, cmd.Flags())
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", cfg.LogLevel)
		}
		logrus.SetLevel(level)

		f, err := fleet.New(cfg.FleetConfig())
		if err != nil {
			logrus.Fatalf("Failed to build fleet: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := serve(ctx, cfg.Addr, newServer(f).routes()); err != nil {
			logrus.Fatalf("Server failed: %v", err)
		}
	},
}

// serve runs handler on addr until ctx is cancelled, then drains in-flight
// requests for at most shutdownTTL.
func serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.Infof("Serving on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("Shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTTL)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML service config")
	serveCmd.Flags().String("addr", ":8000", "Listen address")
	serveCmd.Flags().Int("frames", 0, "Initial physical frame count (default from config, 4)")
	serveCmd.Flags().StringSlice("models", nil, "Model families to serve (default all registered)")
	serveCmd.Flags().String("codec", "", "Snapshot codec: none, snappy, lz4")
	serveCmd.Flags().String("trace", "", "Decision trace level: none, decisions")
	serveCmd.Flags().DurationVar(&shutdownTTL, "shutdown-timeout", 10*time.Second, "Grace period for in-flight requests")

	rootCmd.AddCommand(serveCmd)
}
