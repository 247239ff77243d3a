package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/achingachris/mya-server/internal/app"
	"github.com/achingachris/mya-server/internal/clock"
	"github.com/achingachris/mya-server/internal/gateway/paystack"
	transporthttp "github.com/achingachris/mya-server/internal/transport/http"
)

func (c *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context())
		},
	}
	cmd.Flags().String("port", "", "listen port (default 8080)")
	_ = c.v.BindPFlag("port", cmd.Flags().Lookup("port"))
	return cmd
}

func (c *cli) serve(ctx context.Context) error {
	cfg, logger := c.cfg, c.logger
	if err := cfg.RequireServe(); err != nil {
		return err
	}

	l, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer l.close()
	for _, name := range l.applied {
		logger.Info("migration applied", "name", name)
	}

	clk := clock.NewSystem()
	gateway := paystack.NewClient(cfg.Paystack.SecretKey,
		paystack.WithBaseURL(cfg.Paystack.BaseURL),
		paystack.WithHTTPClient(&http.Client{Timeout: cfg.Paystack.Timeout}),
		paystack.WithWebhookSecret(cfg.Paystack.WebhookSecret),
	)

	checkout := app.NewCheckoutService(l.charges, gateway, clk,
		app.WithCurrency(cfg.Checkout.Currency),
		app.WithMaxTicketsPerCharge(cfg.Checkout.MaxTicketsPerCharge),
		app.WithCallbackURL(cfg.CallbackURL()),
		app.WithGatewayTimeout(cfg.Paystack.Timeout),
		app.WithCheckoutLogger(logger),
	)
	reconciler := app.NewReconciler(l.charges, app.NewProjector(l.charges, clk), gateway, gateway, clk,
		app.WithVerifyTimeout(cfg.Checkout.VerifyTimeout),
		app.WithReconcilerLogger(logger),
	)
	catalog := app.NewCatalogService(l.catalog, clk)
	reports := app.NewReportService(l.reports)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := transporthttp.NewIPRateLimiter(cfg.Limits.RequestsPerSecond, cfg.Limits.Burst)
	go limiter.Run(runCtx, 5*time.Minute)

	resultURL := ""
	if cfg.FrontendURL != "" {
		resultURL = cfg.FrontendURL + "/payment/status"
	}
	handler := transporthttp.NewRouter(transporthttp.RouterConfig{
		Logger:            logger,
		Clock:             clk,
		CORSOrigins:       cfg.CORSOrigins,
		JWTSecret:         cfg.JWTSecret,
		CallbackResultURL: resultURL,
		Limiter:           limiter,
	}, transporthttp.Services{
		Checkout:  checkout,
		Webhooks:  reconciler,
		Callbacks: reconciler,
		Catalog:   catalog,
		Admin:     catalog,
		Charges:   reports,
		Reports:   reports,
		Store:     l.pinger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("api listening", "addr", server.Addr, "store", cfg.Store)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-runCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
	return nil
}
