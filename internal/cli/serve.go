package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmynk/billtx/internal/api"
	"github.com/mmynk/billtx/internal/auth"
	"github.com/mmynk/billtx/internal/config"
	"github.com/mmynk/billtx/internal/metrics"
	"github.com/mmynk/billtx/internal/server"
	"github.com/mmynk/billtx/internal/txn"
	"github.com/mmynk/billtx/pkg/logging"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the RPC server",
		Long:  "Start the billing RPC server with /metrics and /healthz on the configured port",
		RunE:  runServe,
	}

	cmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides BILLTX_PORT)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Port = port
	}

	logger := logging.Setup(cfg.LogLevel)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("Storage initialized", "driver", cfg.StoreDriver)

	m := metrics.New()
	svc := newUserService(store, logger, txn.WithObserver(m))

	routerCfg := server.RouterConfig{
		Billing: api.NewBillingHandler(svc, logger),
		Metrics: m,
		Logger:  logger,
	}
	if cfg.AuthEnabled() {
		routerCfg.JWT = auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
		logger.Info("Bearer token auth enabled")
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.H2C(server.NewRouter(routerCfg)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Connect server starting", "address", srv.Addr, "url", fmt.Sprintf("http://localhost%s", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}
