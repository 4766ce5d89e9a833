package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/api"
)

var (
	servePort     int
	serveUpstream string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the zoning API and map session server",
	Long: `Serves the parcel REST API under /api and interactive map sessions over
WebSocket at /ws/session. Parcels come from the configured store, or from
another zoning API when --upstream is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		b, closeBackend, err := openBackend(ctx, serveUpstream)
		if err != nil {
			return err
		}
		defer closeBackend()

		sessCfg, err := sessionConfig()
		if err != nil {
			return err
		}

		server := api.NewServer(b, api.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Session:        sessCfg,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      server.Router(),
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		}

		// Graceful shutdown
		done := make(chan struct{})
		go func() {
			defer close(done)
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSecs)*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
			server.Hub().Shutdown()
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("store", cfg.Store.Driver),
			zap.String("upstream", serveUpstream),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		<-done
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveUpstream, "upstream", "", "serve parcels from another zoning API instead of the store")
	rootCmd.AddCommand(serveCmd)
}
